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

package kernel

import (
	"slices"
	"sync"

	"github.com/gomlx/gokernels/dtypes"
	"github.com/gomlx/gokernels/status"
)

// InferShapeFunc returns the shapes of the outputs of a custom operator given the shapes of its inputs.
type InferShapeFunc func(inputShapes [][]int64) ([][]int64, error)

// InferDtypeFunc returns the dtypes of the outputs of a custom operator given the dtypes of its inputs.
type InferDtypeFunc func(inputDTypes []dtypes.DType) ([]dtypes.DType, error)

// GradSuffix is appended to the name of an operator to name its gradient operator.
const GradSuffix = "_grad"

// OpMetaInfo describes a whole custom operator: its arguments, its (only) kernel and,
// for forward operators, how to infer the shapes and dtypes of its outputs.
type OpMetaInfo struct {
	name                   string
	inputs, outputs, attrs []string
	fn                     Func
	inferShape             InferShapeFunc
	inferDtype             InferDtypeFunc
}

// Name of the operator. Gradient operators have GradSuffix appended once (or twice).
func (info OpMetaInfo) Name() string { return info.name }

// Inputs returns the names of the inputs.
func (info OpMetaInfo) Inputs() []string { return slices.Clone(info.inputs) }

// Outputs returns the names of the outputs.
func (info OpMetaInfo) Outputs() []string { return slices.Clone(info.outputs) }

// Attrs returns the names of the attributes.
func (info OpMetaInfo) Attrs() []string { return slices.Clone(info.attrs) }

// KernelFn returns the kernel of the operator, or nil if not set.
func (info OpMetaInfo) KernelFn() Func { return info.fn }

// InferShapeFn returns the shape inference function, or nil if not set.
func (info OpMetaInfo) InferShapeFn() InferShapeFunc { return info.inferShape }

// InferDtypeFn returns the dtype inference function, or nil if not set.
func (info OpMetaInfo) InferDtypeFn() InferDtypeFunc { return info.inferDtype }

// OpMetaInfoMap maps the name of a forward custom operator to its OpMetaInfo list:
// index 0 is the forward operator, 1 its gradient and 2 its second order gradient.
//
// It is safe for concurrent use.
type OpMetaInfoMap struct {
	mu      sync.RWMutex
	entries map[string][]OpMetaInfo
}

// DefaultOpMetaInfoMap is the registry for custom operators linked with the host binary.
var DefaultOpMetaInfoMap = NewOpMetaInfoMap()

// NewOpMetaInfoMap returns an empty custom operator registry.
func NewOpMetaInfoMap() *OpMetaInfoMap {
	return &OpMetaInfoMap{entries: make(map[string][]OpMetaInfo)}
}

// Get returns the list of operators registered under the forward operator name.
func (m *OpMetaInfoMap) Get(name string) []OpMetaInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries[name])
}

// OpNames returns the names of the forward operators, sorted.
func (m *OpMetaInfoMap) OpNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of forward operators registered.
func (m *OpMetaInfoMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *OpMetaInfoMap) update(name string, index int, fn func(info *OpMetaInfo)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[name]
	if index < len(list) {
		fn(&list[index])
	}
}

// OpBuilder registers one custom operator (or one of its gradients) and configures it with chained calls.
//
// Errors in the chained calls are kept, the first one is returned by Err.
type OpBuilder struct {
	m       *OpMetaInfoMap
	forward string
	index   int
	err     error
}

// NewOpBuilder registers the operator at the given index for the forward operator name:
// index 0 registers name itself, 1 registers name+"_grad" and 2 registers name+"_grad_grad".
//
// They must be registered in order: it returns a PreconditionNotMet error otherwise.
// Any index other than 0, 1 or 2 is an InvalidArgument error.
func NewOpBuilder(m *OpMetaInfoMap, name string, index int) (*OpBuilder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[name]
	if len(list) != index {
		return nil, status.Errorf(status.PreconditionNotMet,
			"the operator %s's meta info register failed: register the forward operator, its gradient "+
				"and its double gradient in this order (got index %d, expected %d)", name, index, len(list))
	}
	opName := name
	switch index {
	case 0:
	case 1:
		opName = name + GradSuffix
	case 2:
		opName = name + GradSuffix + GradSuffix
	default:
		return nil, status.Errorf(status.InvalidArgument,
			"index %d not supported when building operator %s, only 0, 1 and 2 are supported", index, name)
	}
	m.entries[name] = append(list, OpMetaInfo{name: opName})
	return &OpBuilder{m: m, forward: name, index: index}, nil
}

// MustNewOpBuilder is like NewOpBuilder, but panics on error. It's meant to be used in package initialization,
// where a registration error should abort the program.
func MustNewOpBuilder(m *OpMetaInfoMap, name string, index int) *OpBuilder {
	b, err := NewOpBuilder(m, name, index)
	if err != nil {
		panic(err)
	}
	return b
}

// BuildOp registers a forward operator in DefaultOpMetaInfoMap. It panics if it was already registered.
func BuildOp(name string) *OpBuilder { return MustNewOpBuilder(DefaultOpMetaInfoMap, name, 0) }

// BuildGradOp registers the gradient of name in DefaultOpMetaInfoMap. It panics if not called after BuildOp.
func BuildGradOp(name string) *OpBuilder { return MustNewOpBuilder(DefaultOpMetaInfoMap, name, 1) }

// BuildDoubleGradOp registers the second order gradient of name in DefaultOpMetaInfoMap.
// It panics if not called after BuildGradOp.
func BuildDoubleGradOp(name string) *OpBuilder {
	return MustNewOpBuilder(DefaultOpMetaInfoMap, name, 2)
}

// Err returns the first error of the chained calls, if any.
func (b *OpBuilder) Err() error { return b.err }

// Must panics if any of the chained calls failed.
func (b *OpBuilder) Must() *OpBuilder {
	if b.err != nil {
		panic(b.err)
	}
	return b
}

// Info returns the current state of the operator being built.
func (b *OpBuilder) Info() OpMetaInfo {
	list := b.m.Get(b.forward)
	return list[b.index]
}

func (b *OpBuilder) set(fn func(info *OpMetaInfo)) *OpBuilder {
	if b.err == nil {
		b.m.update(b.forward, b.index, fn)
	}
	return b
}

// Inputs sets the names of the operator inputs.
func (b *OpBuilder) Inputs(names ...string) *OpBuilder {
	return b.set(func(info *OpMetaInfo) { info.inputs = slices.Clone(names) })
}

// Outputs sets the names of the operator outputs.
func (b *OpBuilder) Outputs(names ...string) *OpBuilder {
	return b.set(func(info *OpMetaInfo) { info.outputs = slices.Clone(names) })
}

// Attrs sets the names of the operator attributes.
func (b *OpBuilder) Attrs(names ...string) *OpBuilder {
	return b.set(func(info *OpMetaInfo) { info.attrs = slices.Clone(names) })
}

// SetKernelFn sets the kernel of the operator.
func (b *OpBuilder) SetKernelFn(fn Func) *OpBuilder {
	return b.set(func(info *OpMetaInfo) { info.fn = fn })
}

// SetInferShapeFn sets the shape inference function. Only forward operators support it: for gradient
// operators it records an Unimplemented error, and the gradients take the shapes of the
// corresponding forward tensors.
func (b *OpBuilder) SetInferShapeFn(fn InferShapeFunc) *OpBuilder {
	if b.index != 0 && b.err == nil {
		b.err = status.Errorf(status.Unimplemented,
			"setting InferShapeFn of gradient operator %s is not supported: backward tensor X@GRAD "+
				"uses the shape of forward tensor X", b.Info().Name())
	}
	return b.set(func(info *OpMetaInfo) { info.inferShape = fn })
}

// SetInferDtypeFn sets the dtype inference function. Like SetInferShapeFn, only forward operators support it.
func (b *OpBuilder) SetInferDtypeFn(fn InferDtypeFunc) *OpBuilder {
	if b.index != 0 && b.err == nil {
		b.err = status.Errorf(status.Unimplemented,
			"setting InferDtypeFn of gradient operator %s is not supported: backward tensor X@GRAD "+
				"uses the dtype of forward tensor X", b.Info().Name())
	}
	return b.set(func(info *OpMetaInfo) { info.inferDtype = fn })
}
