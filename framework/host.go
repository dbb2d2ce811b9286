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

// Package framework implements the host side of custom kernels: the tables plugins register
// into (operators and kernels), the loading of plugin libraries, and the dispatch of kernels
// with the trampoline that isolates plugin code from the host.
package framework

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/gokernels/argmapping"
	"github.com/gomlx/gokernels/dtypes"
	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/status"
	gocache "github.com/patrickmn/go-cache"
	"k8s.io/klog/v2"
)

// UnknownOpPolicy defines what RegisterKernelWithMetaInfoMap does when it finds kernels for an
// operator the host doesn't know.
type UnknownOpPolicy int

const (
	// AbortOnUnknownOp stops the registration: the kernels of the remaining operators are dropped.
	AbortOnUnknownOp UnknownOpPolicy = iota

	// SkipUnknownOp skips the kernels of the unknown operator only.
	SkipUnknownOp
)

// String implements fmt.Stringer.
func (p UnknownOpPolicy) String() string {
	switch p {
	case AbortOnUnknownOp:
		return "AbortOnUnknownOp"
	case SkipUnknownOp:
		return "SkipUnknownOp"
	}
	return fmt.Sprintf("UnknownOpPolicy(%d)", int(p))
}

// Host holds the operator and kernel tables plugins register into, and the libraries loaded.
type Host struct {
	opInfos  *OpInfoMap
	kernels  *OpKernelMap
	devices  *DeviceContextPool
	mappings *argmapping.FnMap

	unknownOpPolicy  UnknownOpPolicy
	customOpBackends []kernel.Backend
	searchPaths      []string
	open             libraryOpener

	// libraries caches the libraries already loaded, by path. Protected by muLibraries.
	libraries   map[string]*Library
	muLibraries sync.Mutex

	// available caches the result of AvailableKernelLibraries.
	available *gocache.Cache
}

// Option configures a Host.
type Option func(h *Host)

// WithUnknownOpPolicy sets the policy for kernels of unknown operators. Default is AbortOnUnknownOp.
func WithUnknownOpPolicy(policy UnknownOpPolicy) Option {
	return func(h *Host) { h.unknownOpPolicy = policy }
}

// WithArgumentMappings sets the argument mappings consulted at dispatch. Default is argmapping.DefaultFnMap.
func WithArgumentMappings(fnMap *argmapping.FnMap) Option {
	return func(h *Host) { h.mappings = fnMap }
}

// WithCustomOpBackends sets the backends kernels of custom operators are installed for. Default is CPU only.
func WithCustomOpBackends(backends ...kernel.Backend) Option {
	return func(h *Host) { h.customOpBackends = slices.Clone(backends) }
}

// WithDeviceContext adds (or replaces) the device context of dc.Place().
func WithDeviceContext(dc *DeviceContext) Option {
	return func(h *Host) { h.devices.Set(dc) }
}

// WithOpInfos makes the given operators known to the host.
func WithOpInfos(infos ...OpInfo) Option {
	return func(h *Host) {
		for _, info := range infos {
			if err := h.opInfos.Insert(info); err != nil {
				klog.Warningf("WithOpInfos: %v", err)
			}
		}
	}
}

// WithSearchPaths sets the directories where libraries are searched. Default is given by
// the environment variable CUSTOM_KERNEL_LIBRARY_PATH, see DefaultSearchPaths.
func WithSearchPaths(paths ...string) Option {
	return func(h *Host) { h.searchPaths = slices.Clone(paths) }
}

// NewHost creates a Host with empty tables.
func NewHost(options ...Option) *Host {
	h := &Host{
		opInfos:          NewOpInfoMap(),
		kernels:          NewOpKernelMap(),
		devices:          NewDeviceContextPool(),
		mappings:         argmapping.DefaultFnMap,
		unknownOpPolicy:  AbortOnUnknownOp,
		customOpBackends: []kernel.Backend{kernel.CPU},
		searchPaths:      DefaultSearchPaths(),
		open:             openGoPlugin,
		libraries:        make(map[string]*Library),
		available:        gocache.New(availableLibrariesTTL, 2*availableLibrariesTTL),
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// OpInfoMap returns the operators known to the host.
func (h *Host) OpInfoMap() *OpInfoMap { return h.opInfos }

// OpKernelMap returns the kernel table.
func (h *Host) OpKernelMap() *OpKernelMap { return h.kernels }

// DeviceContextPool returns the device contexts of the host.
func (h *Host) DeviceContextPool() *DeviceContextPool { return h.devices }

// ArgumentMappings returns the argument mappings used at dispatch.
func (h *Host) ArgumentMappings() *argmapping.FnMap { return h.mappings }

// SearchPaths returns the directories where libraries are searched.
func (h *Host) SearchPaths() []string { return slices.Clone(h.searchPaths) }

// RegisterCustomKernel installs fn for the operator name and the dispatch key derived from key.
// An existing kernel for the same dispatch key is overwritten.
func (h *Host) RegisterCustomKernel(name string, key kernel.Key, fn kernel.Func) {
	kt := TransKernelKeyToOpKernelType(key)
	klog.V(1).Infof("registering custom kernel %q for %s", name, kt)
	h.kernels.Set(name, kt, func(ctx *ExecutionContext) error {
		return RunCustomKernelFunc(ctx, fn)
	})
}

// RegistrationReport summarizes a RegisterKernelWithMetaInfoMap call.
type RegistrationReport struct {
	// Registered is the number of kernels installed.
	Registered int

	// SkippedOps lists the operators whose kernels were not installed, in order.
	SkippedOps []string

	// Aborted is set if the registration stopped at an unknown operator.
	Aborted bool
}

// String implements fmt.Stringer.
func (r RegistrationReport) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%d kernels registered", r.Registered)
	if len(r.SkippedOps) > 0 {
		_, _ = fmt.Fprintf(&sb, ", skipped ops [%s]", strings.Join(r.SkippedOps, ", "))
	}
	if r.Aborted {
		sb.WriteString(", aborted")
	}
	return sb.String()
}

// RegisterKernelWithMetaInfoMap installs the kernels of m, visiting operators in sorted order.
//
// Kernels of operators unknown to the host are never installed: a warning is logged and, with
// the default AbortOnUnknownOp policy, the kernels of all the remaining operators are dropped too.
func (h *Host) RegisterKernelWithMetaInfoMap(m *kernel.MetaInfoMap) RegistrationReport {
	var report RegistrationReport
	opNames := m.OpNames()
	for ii, opName := range opNames {
		if !h.opInfos.Has(opName) {
			klog.Warningf("operator (%s) does not exist, its kernels cannot be registered", opName)
			if h.unknownOpPolicy == AbortOnUnknownOp {
				report.SkippedOps = append(report.SkippedOps, opNames[ii:]...)
				report.Aborted = true
				break
			}
			report.SkippedOps = append(report.SkippedOps, opName)
			continue
		}
		for _, info := range m.Get(opName) {
			if info.KernelFn() == nil {
				klog.Warningf("kernel %q %s has no kernel function, skipped", opName, info.Key())
				continue
			}
			h.RegisterCustomKernel(opName, info.Key(), info.KernelFn())
			report.Registered++
		}
	}
	klog.V(1).Infof("RegisterKernelWithMetaInfoMap: %s", report)
	return report
}

// RegisterAllCustomKernel installs the kernels registered at init time in kernel.DefaultMetaInfoMap.
func (h *Host) RegisterAllCustomKernel() RegistrationReport {
	return h.RegisterKernelWithMetaInfoMap(kernel.DefaultMetaInfoMap)
}

// RegisterOperatorWithMetaInfoMap makes the custom operators of opMap known to the host, and
// installs their kernels for each of the custom operator backends (see WithCustomOpBackends).
//
// Custom operator kernels are not specialized: they are installed with AnyLayout and an
// undefined dtype.
//
// All operators are checked before any is installed: on error the host is left unchanged.
func (h *Host) RegisterOperatorWithMetaInfoMap(opMap *kernel.OpMetaInfoMap) error {
	var infos []kernel.OpMetaInfo
	seen := make(map[string]bool)
	for _, name := range opMap.OpNames() {
		for _, info := range opMap.Get(name) {
			if info.KernelFn() == nil {
				return status.Errorf(status.InvalidArgument,
					"custom operator %q has no kernel function, use SetKernelFn to set it", info.Name())
			}
			if seen[info.Name()] || h.opInfos.Has(info.Name()) {
				return status.Errorf(status.AlreadyExists, "operator %q already registered", info.Name())
			}
			seen[info.Name()] = true
			infos = append(infos, info)
		}
	}
	for _, info := range infos {
		err := h.opInfos.Insert(OpInfo{
			Type:       info.Name(),
			Inputs:     info.Inputs(),
			Outputs:    info.Outputs(),
			Attrs:      info.Attrs(),
			InferShape: info.InferShapeFn(),
			InferDtype: info.InferDtypeFn(),
			Custom:     true,
		})
		if err != nil {
			return err
		}
		for _, backend := range h.customOpBackends {
			h.RegisterCustomKernel(info.Name(), kernel.NewKey(backend, kernel.AnyLayout, dtypes.Undefined), info.KernelFn())
		}
		klog.V(1).Infof("custom operator %q registered", info.Name())
	}
	return nil
}

// RegisterAllCustomOperator registers the custom operators built at init time in kernel.DefaultOpMetaInfoMap.
func (h *Host) RegisterAllCustomOperator() error {
	return h.RegisterOperatorWithMetaInfoMap(kernel.DefaultOpMetaInfoMap)
}

// KernelSignature returns the kernel signature opType maps to for the given invocation.
//
// Operators without an argument mapping map to a kernel with their own name and arguments.
func (h *Host) KernelSignature(opType string, ctx argmapping.Context) (argmapping.KernelSignature, error) {
	if mapper, err := h.mappings.Get(opType); err == nil {
		return mapper.MapArguments(ctx), nil
	}
	info, found := h.opInfos.Get(opType)
	if !found {
		return argmapping.KernelSignature{}, status.Errorf(status.NotFound, "operator %q not found", opType)
	}
	return argmapping.KernelSignature{
		Name:    opType,
		Inputs:  slices.Clone(info.Inputs),
		Attrs:   slices.Clone(info.Attrs),
		Outputs: slices.Clone(info.Outputs),
	}, nil
}

// FindKernel returns the kernel of opName for key.
//
// If there is no kernel for the exact dispatch key, the generic kernel of the same place and
// library (AnyLayout and undefined dtype, as used by custom operators) is returned, if there is one.
func (h *Host) FindKernel(opName string, key kernel.Key) (OpKernelFunc, error) {
	kt := TransKernelKeyToOpKernelType(key)
	if fn, found := h.kernels.Get(opName, kt); found {
		return fn, nil
	}
	generic := kt
	generic.Layout, generic.DType = kernel.AnyLayout, dtypes.Undefined
	if fn, found := h.kernels.Get(opName, generic); found {
		return fn, nil
	}
	return nil, status.Errorf(status.NotFound, "no kernel for operator %q with %s", opName, kt)
}

// Run executes the kernel of opName for key on ctx.
func (h *Host) Run(opName string, key kernel.Key, ctx *ExecutionContext) error {
	fn, err := h.FindKernel(opName, key)
	if err != nil {
		return err
	}
	if klog.V(2).Enabled() && h.mappings.Has(opName) {
		if sig, err := h.KernelSignature(opName, ctx); err == nil {
			klog.Infof("running %q %s as %s", opName, key, sig)
		}
	}
	return fn(ctx)
}

// NewExecutionContext creates an ExecutionContext for opType on the device context of the
// place of key.
func (h *Host) NewExecutionContext(opType string, key kernel.Key) *ExecutionContext {
	return NewExecutionContext(opType, h.devices.Get(TransKernelKeyToOpKernelType(key).Place))
}

// InferShape returns the output shapes of opType for the given input shapes.
//
// Operators without a shape function but with exactly one input and one output keep the input shape.
func (h *Host) InferShape(opType string, inputShapes [][]int64) ([][]int64, error) {
	info, found := h.opInfos.Get(opType)
	if !found {
		return nil, status.Errorf(status.NotFound, "operator %q not found", opType)
	}
	if info.InferShape != nil {
		return info.InferShape(inputShapes)
	}
	if len(info.Inputs) == 1 && len(info.Outputs) == 1 && len(inputShapes) == 1 {
		return [][]int64{slices.Clone(inputShapes[0])}, nil
	}
	return nil, status.Errorf(status.Unimplemented,
		"operator %q has %d inputs and %d outputs and no InferShapeFn", opType, len(info.Inputs), len(info.Outputs))
}

// InferDtype returns the output dtypes of opType for the given input dtypes, with the same
// default as InferShape.
func (h *Host) InferDtype(opType string, inputDTypes []dtypes.DType) ([]dtypes.DType, error) {
	info, found := h.opInfos.Get(opType)
	if !found {
		return nil, status.Errorf(status.NotFound, "operator %q not found", opType)
	}
	if info.InferDtype != nil {
		return info.InferDtype(inputDTypes)
	}
	if len(info.Inputs) == 1 && len(info.Outputs) == 1 && len(inputDTypes) == 1 {
		return []dtypes.DType{inputDTypes[0]}, nil
	}
	return nil, status.Errorf(status.Unimplemented,
		"operator %q has %d inputs and %d outputs and no InferDtypeFn", opType, len(info.Inputs), len(info.Outputs))
}
