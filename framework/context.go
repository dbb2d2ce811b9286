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
	"maps"
	"slices"

	"github.com/gomlx/gokernels/tensor"
)

// ExecutionContext is one invocation of an operator: its named inputs and outputs, its attributes
// and the device context it runs on.
//
// Kernels never see it directly: they get an opaque kernel.Context handle, and access it
// through package capi.
type ExecutionContext struct {
	opType        string
	inputs        map[string][]*tensor.Dense
	outputs       map[string][]*tensor.Dense
	attrs         map[string]any
	deviceContext *DeviceContext
}

// NewExecutionContext creates an empty ExecutionContext for opType running on dc.
func NewExecutionContext(opType string, dc *DeviceContext) *ExecutionContext {
	return &ExecutionContext{
		opType:        opType,
		inputs:        make(map[string][]*tensor.Dense),
		outputs:       make(map[string][]*tensor.Dense),
		attrs:         make(map[string]any),
		deviceContext: dc,
	}
}

// SetInput binds name to the given tensors.
func (ctx *ExecutionContext) SetInput(name string, tensors ...*tensor.Dense) *ExecutionContext {
	ctx.inputs[name] = tensors
	return ctx
}

// SetOutput binds name to the given tensors. Kernels write into them.
func (ctx *ExecutionContext) SetOutput(name string, tensors ...*tensor.Dense) *ExecutionContext {
	ctx.outputs[name] = tensors
	return ctx
}

// SetAttr sets an attribute.
func (ctx *ExecutionContext) SetAttr(name string, value any) *ExecutionContext {
	ctx.attrs[name] = value
	return ctx
}

// OpType returns the operator being executed.
func (ctx *ExecutionContext) OpType() string { return ctx.opType }

// DeviceContext returns the device the operator runs on.
func (ctx *ExecutionContext) DeviceContext() *DeviceContext { return ctx.deviceContext }

// Input returns the first tensor bound to the input name.
func (ctx *ExecutionContext) Input(name string) (t *tensor.Dense, found bool) {
	return first(ctx.inputs[name])
}

// Output returns the first tensor bound to the output name.
func (ctx *ExecutionContext) Output(name string) (t *tensor.Dense, found bool) {
	return first(ctx.outputs[name])
}

func first(tensors []*tensor.Dense) (*tensor.Dense, bool) {
	if len(tensors) == 0 || tensors[0] == nil {
		return nil, false
	}
	return tensors[0], true
}

// Attr returns the attribute name.
func (ctx *ExecutionContext) Attr(name string) (value any, found bool) {
	value, found = ctx.attrs[name]
	return
}

// InputNames returns the sorted names of the bound inputs.
func (ctx *ExecutionContext) InputNames() []string {
	return slices.Sorted(maps.Keys(ctx.inputs))
}

// OutputNames returns the sorted names of the bound outputs.
func (ctx *ExecutionContext) OutputNames() []string {
	return slices.Sorted(maps.Keys(ctx.outputs))
}

// HasInput implements argmapping.Context.
func (ctx *ExecutionContext) HasInput(name string) bool { return ctx.InputSize(name) > 0 }

// HasOutput implements argmapping.Context.
func (ctx *ExecutionContext) HasOutput(name string) bool { return ctx.OutputSize(name) > 0 }

// HasAttr implements argmapping.Context.
func (ctx *ExecutionContext) HasAttr(name string) bool {
	_, found := ctx.attrs[name]
	return found
}

// InputSize implements argmapping.Context.
func (ctx *ExecutionContext) InputSize(name string) int { return len(ctx.inputs[name]) }

// OutputSize implements argmapping.Context.
func (ctx *ExecutionContext) OutputSize(name string) int { return len(ctx.outputs[name]) }

// IsDenseTensorInput implements argmapping.Context. All host tensors are dense.
func (ctx *ExecutionContext) IsDenseTensorInput(name string) bool { return ctx.HasInput(name) }

// IsSelectedRowsInput implements argmapping.Context. The host has no sparse rows tensors.
func (ctx *ExecutionContext) IsSelectedRowsInput(string) bool { return false }
