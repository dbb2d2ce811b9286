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
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/gokernels/dtypes"
	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/tensor"
	"k8s.io/klog/v2"
)

// LibraryType is the kernel library a kernel is implemented with, on top of its place.
type LibraryType int

const (
	PlainLibrary LibraryType = iota
	MKLDNNLibrary
	CUDNNLibrary
)

// String implements fmt.Stringer.
func (l LibraryType) String() string {
	switch l {
	case PlainLibrary:
		return "PLAIN"
	case MKLDNNLibrary:
		return "MKLDNN"
	case CUDNNLibrary:
		return "CUDNN"
	}
	return fmt.Sprintf("LibraryType(%d)", int(l))
}

// OpKernelType is the host's dispatch key: where a kernel runs, on which layout and dtype,
// and with which library.
type OpKernelType struct {
	Place   tensor.Place
	Layout  kernel.DataLayout
	DType   dtypes.DType
	Library LibraryType
}

// String implements fmt.Stringer.
func (t OpKernelType) String() string {
	return fmt.Sprintf("{place=%s, layout=%s, dtype=%s, library=%s}", t.Place, t.Layout, t.DType, t.Library)
}

// TransKernelKeyToOpKernelType converts a plugin kernel.Key to the host dispatch key.
//
// The MKLDNN and CUDNN backends are libraries on top of the CPU and GPU places respectively.
// Layout and dtype are copied.
func TransKernelKeyToOpKernelType(key kernel.Key) OpKernelType {
	kt := OpKernelType{
		Place:   tensor.Place{Backend: key.Backend},
		Layout:  key.Layout,
		DType:   key.DType,
		Library: PlainLibrary,
	}
	switch key.Backend {
	case kernel.MKLDNN:
		kt.Place.Backend = kernel.CPU
		kt.Library = MKLDNNLibrary
	case kernel.CUDNN:
		kt.Place.Backend = kernel.GPU
		kt.Library = CUDNNLibrary
	}
	return kt
}

// OpKernelFunc is a kernel installed in the host.
type OpKernelFunc func(ctx *ExecutionContext) error

// OpKernelMap is the host kernel table: op name -> dispatch key -> kernel.
type OpKernelMap struct {
	mu      sync.RWMutex
	kernels map[string]map[OpKernelType]OpKernelFunc
}

// NewOpKernelMap returns an empty OpKernelMap.
func NewOpKernelMap() *OpKernelMap {
	return &OpKernelMap{kernels: make(map[string]map[OpKernelType]OpKernelFunc)}
}

// Set installs fn for the given op and dispatch key. An existing kernel is overwritten.
func (m *OpKernelMap) Set(opName string, kt OpKernelType, fn OpKernelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType, found := m.kernels[opName]
	if !found {
		byType = make(map[OpKernelType]OpKernelFunc)
		m.kernels[opName] = byType
	}
	if _, found := byType[kt]; found {
		klog.V(1).Infof("kernel for %q %s overwritten", opName, kt)
	}
	byType[kt] = fn
}

// Get returns the kernel for the given op and dispatch key.
func (m *OpKernelMap) Get(opName string, kt OpKernelType) (fn OpKernelFunc, found bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, found = m.kernels[opName][kt]
	return
}

// KernelTypes returns the dispatch keys registered for opName, sorted by their string representation.
func (m *OpKernelMap) KernelTypes(opName string) []OpKernelType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kts := make([]OpKernelType, 0, len(m.kernels[opName]))
	for kt := range m.kernels[opName] {
		kts = append(kts, kt)
	}
	slices.SortFunc(kts, func(a, b OpKernelType) int { return strings.Compare(a.String(), b.String()) })
	return kts
}

// OpNames returns the sorted names of the ops with at least one kernel.
func (m *OpKernelMap) OpNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.kernels))
	for name := range m.kernels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NumKernels returns the total number of installed kernels.
func (m *OpKernelMap) NumKernels() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int
	for _, byType := range m.kernels {
		count += len(byType)
	}
	return count
}
