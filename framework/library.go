/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package framework

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/status"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// LibraryPathsEnv is the name of the environment variable that defines the search paths for
	// kernel libraries, a ":" separated list of directories.
	LibraryPathsEnv = "CUSTOM_KERNEL_LIBRARY_PATH"

	// GetKernelMetaInfoMapSymbol is the name of the function exported by kernel libraries.
	// Its type must be func() *kernel.MetaInfoMap.
	GetKernelMetaInfoMapSymbol = "GetKernelMetaInfoMap"

	// GetOpMetaInfoMapSymbol is the name of the function exported by custom operator libraries.
	// Its type must be func() *kernel.OpMetaInfoMap.
	GetOpMetaInfoMapSymbol = "GetOpMetaInfoMap"

	availableLibrariesTTL = time.Minute
)

// defaultSearchPaths is set during initialization from LibraryPathsEnv or, if it is not set,
// from osDefaultLibraryPaths.
var defaultSearchPaths []string

func init() {
	envPaths, found := os.LookupEnv(LibraryPathsEnv)
	if !found {
		defaultSearchPaths = osDefaultLibraryPaths()
	} else {
		defaultSearchPaths = slices.DeleteFunc(strings.Split(envPaths, ":"), func(p string) bool {
			return p == ""
		})
	}
}

// DefaultSearchPaths returns the directories where kernel libraries are searched by default.
//
// They are given by CUSTOM_KERNEL_LIBRARY_PATH. If it is not set: "${HOME}/.local/lib/gokernels",
// "/usr/local/lib/gokernels" and the standard library directories of the system (LD_LIBRARY_PATH
// and /etc/ld.so.conf), in that order.
func DefaultSearchPaths() []string {
	return slices.Clone(defaultSearchPaths)
}

// libraryHandle is an opened library.
type libraryHandle interface {
	// Lookup returns the exported symbol with the given name.
	Lookup(symbol string) (any, error)
}

// libraryOpener opens the library in the given path.
type libraryOpener func(path string) (libraryHandle, error)

// Library is a kernel or custom operator library loaded by a Host.
type Library struct {
	name, path string
	handle     libraryHandle

	kernelsRegistered, opsRegistered bool
}

// Name returns the name of the library, extracted from its file name.
func (lib *Library) Name() string { return lib.name }

// Path returns the path from where the library was loaded.
func (lib *Library) Path() string { return lib.path }

// String implements fmt.Stringer.
func (lib *Library) String() string {
	return fmt.Sprintf("kernel library %q (%s)", lib.name, lib.path)
}

// lookup returns the symbol, or a NotFound error if the library doesn't export it.
func (lib *Library) lookup(symbol string) (any, error) {
	value, err := lib.handle.Lookup(symbol)
	if err != nil {
		return nil, status.Wrapf(status.NotFound, err, "symbol %q not found in %s", symbol, lib)
	}
	return value, nil
}

var (
	// Patterns of library file names.
	libraryPatterns = []string{"libcustom_kernel_*.so", "custom_kernel_*.so", "*_kernels.so"}

	// Patterns to extract the name from the library file names.
	reLibraryName = []*regexp.Regexp{
		regexp.MustCompile(`^(?:lib)?custom_kernel_(\w+)\.so$`),
		regexp.MustCompile(`^(\w+)_kernels\.so$`),
	}
)

// pathToLibraryName returns the name of the library if libPath is a matching library file name,
// otherwise returns "".
func pathToLibraryName(libPath string) string {
	base := filepath.Base(libPath)
	for _, re := range reLibraryName {
		if subMatches := re.FindStringSubmatch(base); len(subMatches) > 0 {
			return subMatches[1]
		}
	}
	return ""
}

// isLibraryPath returns whether name refers to a file, as opposed to a library name to search for.
func isLibraryPath(name string) bool {
	return filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) || filepath.Ext(name) == ".so"
}

// AvailableKernelLibraries searches the host search paths for kernel libraries and returns a map
// from their name to their paths. Libraries already loaded are included.
//
// If there are libraries with the same name in different directories, the first directory in the
// search paths takes precedence. Results of the directory search are cached for a minute.
//
// Candidates are not opened: a Go plugin can't be unloaded.
func (h *Host) AvailableKernelLibraries() map[string]string {
	h.muLibraries.Lock()
	defer h.muLibraries.Unlock()
	return h.searchLibrariesLocked()
}

func (h *Host) searchLibrariesLocked() map[string]string {
	libPaths := make(map[string]string)
	for _, lib := range h.libraries {
		libPaths[lib.name] = lib.path
	}

	cacheKey := strings.Join(h.searchPaths, ":")
	var found map[string]string
	if cached, ok := h.available.Get(cacheKey); ok {
		found = cached.(map[string]string)
	} else {
		found = searchLibraries(h.searchPaths)
		h.available.SetDefault(cacheKey, found)
	}
	for name, libPath := range found {
		if _, loaded := libPaths[name]; !loaded {
			libPaths[name] = libPath
		}
	}
	return libPaths
}

func searchLibraries(searchPaths []string) map[string]string {
	libPaths := make(map[string]string)
	for _, dir := range searchPaths {
		for _, pattern := range libraryPatterns {
			candidates, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				continue
			}
			for _, candidate := range candidates {
				name := pathToLibraryName(candidate)
				if name == "" {
					continue
				}
				if _, found := libPaths[name]; found {
					continue
				}
				if info, err := os.Stat(candidate); err != nil || info.IsDir() {
					continue
				}
				libPaths[name] = candidate
			}
		}
	}
	klog.V(2).Infof("kernel libraries found in %v: %v", searchPaths, libPaths)
	return libPaths
}

// loadLibrary returns the library for the given name or path, loading it if needed.
//
// It uses a mutex to serialize calls from different goroutines.
func (h *Host) loadLibrary(name string) (*Library, error) {
	h.muLibraries.Lock()
	defer h.muLibraries.Unlock()

	libPath := name
	if isLibraryPath(name) {
		var err error
		libPath, err = filepath.Abs(name)
		if err != nil {
			return nil, status.Wrapf(status.InvalidArgument, err, "invalid library path %q", name)
		}
	} else {
		var found bool
		libPath, found = h.searchLibrariesLocked()[name]
		if !found {
			return nil, status.Errorf(status.NotFound,
				"kernel library %q not found in paths %v: set %s to the directories to search; "+
					"libraries should be named libcustom_kernel_<name>.so, custom_kernel_<name>.so or <name>_kernels.so",
				name, h.searchPaths, LibraryPathsEnv)
		}
	}
	if lib, found := h.libraries[libPath]; found {
		return lib, nil
	}

	klog.V(1).Infof("attempting to load kernel library from %s", libPath)
	handle, err := h.open(libPath)
	if err != nil {
		return nil, status.Wrapf(status.External, err, "failed to load kernel library %q", name)
	}
	libName := pathToLibraryName(libPath)
	if libName == "" {
		libName = strings.TrimSuffix(filepath.Base(libPath), filepath.Ext(libPath))
	}
	lib := &Library{name: libName, path: libPath, handle: handle}
	h.libraries[libPath] = lib
	klog.V(1).Infof("loaded %s", lib)
	return lib, nil
}

// LoadedLibraries returns the libraries loaded so far, sorted by path.
func (h *Host) LoadedLibraries() []*Library {
	h.muLibraries.Lock()
	defer h.muLibraries.Unlock()
	libs := make([]*Library, 0, len(h.libraries))
	for _, libPath := range slices.Sorted(maps.Keys(h.libraries)) {
		libs = append(libs, h.libraries[libPath])
	}
	return libs
}

// IsLoaded returns whether the library in libPath was already loaded.
func (h *Host) IsLoaded(libPath string) bool {
	absPath, err := filepath.Abs(libPath)
	if err != nil {
		return false
	}
	h.muLibraries.Lock()
	defer h.muLibraries.Unlock()
	_, found := h.libraries[absPath]
	return found
}

// claim sets *flag and returns true if it was not set yet.
func (h *Host) claim(flag *bool) bool {
	h.muLibraries.Lock()
	defer h.muLibraries.Unlock()
	if *flag {
		return false
	}
	*flag = true
	return true
}

// LoadKernelMetaInfoAndRegisterKernel loads the kernel library (given by path, or by name to
// search in the search paths) and registers its kernels with RegisterKernelWithMetaInfoMap.
//
// The library must export GetKernelMetaInfoMap: a NotFound error is returned if it doesn't, and
// an InvalidArgument error if it has the wrong type. Loading the same library again is a no-op.
func (h *Host) LoadKernelMetaInfoAndRegisterKernel(name string) (RegistrationReport, error) {
	lib, err := h.loadLibrary(name)
	if err != nil {
		return RegistrationReport{}, err
	}
	symbol, err := lib.lookup(GetKernelMetaInfoMapSymbol)
	if err != nil {
		return RegistrationReport{}, err
	}
	var getMap func() *kernel.MetaInfoMap
	switch fn := symbol.(type) {
	case func() *kernel.MetaInfoMap:
		getMap = fn
	case *func() *kernel.MetaInfoMap:
		getMap = *fn
	}
	if getMap == nil {
		return RegistrationReport{}, status.Errorf(status.InvalidArgument,
			"symbol %q of %s has type %T, expected func() *kernel.MetaInfoMap", GetKernelMetaInfoMapSymbol, lib, symbol)
	}
	m := getMap()
	if m == nil {
		return RegistrationReport{}, status.Errorf(status.InvalidArgument, "%s returned a nil kernel registry", lib)
	}
	if !h.claim(&lib.kernelsRegistered) {
		klog.V(1).Infof("kernels of %s already registered", lib)
		return RegistrationReport{}, nil
	}
	return h.RegisterKernelWithMetaInfoMap(m), nil
}

// LoadCustomKernelLib loads the kernel library and registers its kernels. The process is
// terminated if it fails: use LoadKernelMetaInfoAndRegisterKernel to handle the error instead.
func (h *Host) LoadCustomKernelLib(name string) RegistrationReport {
	report, err := h.LoadKernelMetaInfoAndRegisterKernel(name)
	if err != nil {
		klog.Fatalf("failed to load custom kernel library %q: %+v", name, err)
	}
	return report
}

// LoadOpMetaInfoAndRegisterOp loads the custom operator library (given by path, or by name) and
// registers its operators with RegisterOperatorWithMetaInfoMap.
//
// The library must export GetOpMetaInfoMap, with the same errors as LoadKernelMetaInfoAndRegisterKernel.
func (h *Host) LoadOpMetaInfoAndRegisterOp(name string) error {
	lib, err := h.loadLibrary(name)
	if err != nil {
		return err
	}
	symbol, err := lib.lookup(GetOpMetaInfoMapSymbol)
	if err != nil {
		return err
	}
	var getMap func() *kernel.OpMetaInfoMap
	switch fn := symbol.(type) {
	case func() *kernel.OpMetaInfoMap:
		getMap = fn
	case *func() *kernel.OpMetaInfoMap:
		getMap = *fn
	}
	if getMap == nil {
		return status.Errorf(status.InvalidArgument,
			"symbol %q of %s has type %T, expected func() *kernel.OpMetaInfoMap", GetOpMetaInfoMapSymbol, lib, symbol)
	}
	opMap := getMap()
	if opMap == nil {
		return status.Errorf(status.InvalidArgument, "%s returned a nil operator registry", lib)
	}
	if !h.claim(&lib.opsRegistered) {
		klog.V(1).Infof("custom operators of %s already registered", lib)
		return nil
	}
	if err := h.RegisterOperatorWithMetaInfoMap(opMap); err != nil {
		return errors.WithMessagef(err, "registering custom operators of %s", lib)
	}
	return nil
}

// LoadCustomOperatorLib loads the custom operator library and registers its operators. The process
// is terminated if it fails: use LoadOpMetaInfoAndRegisterOp to handle the error instead.
func (h *Host) LoadCustomOperatorLib(name string) {
	if err := h.LoadOpMetaInfoAndRegisterOp(name); err != nil {
		klog.Fatalf("failed to load custom operator library %q: %+v", name, err)
	}
}
