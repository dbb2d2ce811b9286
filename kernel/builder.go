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

	"github.com/gomlx/gokernels/dtypes"
	"k8s.io/klog/v2"
)

// Builder registers a kernel and then fills in its details with chained calls:
//
//	var _ = kernel.NewBuilder(kernels, "relu", kernel.CPU, kernel.AnyLayout, dtypes.Float32).
//		Inputs("X").
//		Outputs("Out").
//		SetKernelFn(kernel.FuncAdapter(reluFloat32))
//
// The entry is appended to the registry when the Builder is created, so it can be used from
// package variables and init functions, before anything else is initialized.
type Builder struct {
	m  *MetaInfoMap
	id EntryID
}

// NewBuilder registers a new kernel for opName in m, and returns a Builder to configure it.
func NewBuilder(m *MetaInfoMap, opName string, backend Backend, layout DataLayout, dtype dtypes.DType) *Builder {
	id := m.Register(MetaInfoConfig{OpName: opName, Key: NewKey(backend, layout, dtype)})
	klog.V(2).Infof("kernel %q registered with key %s", opName, NewKey(backend, layout, dtype))
	return &Builder{m: m, id: id}
}

// NewBuilderFromStrings is like NewBuilder, but takes the backend, layout and dtype by name,
// e.g. ("CPU", "ANY", "float").
//
// Unknown names are not an error: they leave the corresponding field of the key undefined.
func NewBuilderFromStrings(m *MetaInfoMap, opName, backend, layout, dtype string) *Builder {
	key := ParseKey(backend, layout, dtype)
	if key.IsUndefined() {
		klog.V(1).Infof("kernel %q registered with partially undefined key %s (from %q, %q, %q)",
			opName, key, backend, layout, dtype)
	}
	return NewBuilder(m, opName, key.Backend, key.Layout, key.DType)
}

// Register creates a Builder on DefaultMetaInfoMap.
func Register(opName string, backend Backend, layout DataLayout, dtype dtypes.DType) *Builder {
	return NewBuilder(DefaultMetaInfoMap, opName, backend, layout, dtype)
}

// RegisterFromStrings creates a Builder on DefaultMetaInfoMap, parsing the names of the backend,
// layout and dtype.
func RegisterFromStrings(opName, backend, layout, dtype string) *Builder {
	return NewBuilderFromStrings(DefaultMetaInfoMap, opName, backend, layout, dtype)
}

// ID returns the id of the entry being built.
func (b *Builder) ID() EntryID {
	return b.id
}

// MetaInfo returns the current state of the entry being built.
func (b *Builder) MetaInfo() MetaInfo {
	info, _ := b.m.Entry(b.id)
	return info
}

// Inputs sets the names of the kernel inputs.
func (b *Builder) Inputs(names ...string) *Builder {
	b.m.update(b.id, func(info *MetaInfo) { info.inputs = slices.Clone(names) })
	return b
}

// Outputs sets the names of the kernel outputs.
func (b *Builder) Outputs(names ...string) *Builder {
	b.m.update(b.id, func(info *MetaInfo) { info.outputs = slices.Clone(names) })
	return b
}

// Attrs sets the names of the kernel attributes.
func (b *Builder) Attrs(names ...string) *Builder {
	b.m.update(b.id, func(info *MetaInfo) { info.attrs = slices.Clone(names) })
	return b
}

// SetKernelFn sets the kernel function.
//
// Calling it a second time replaces the previous function without error.
func (b *Builder) SetKernelFn(fn Func) *Builder {
	b.m.update(b.id, func(info *MetaInfo) {
		if info.fn != nil {
			klog.V(1).Infof("kernel %q %s: kernel function set more than once, the previous one is replaced",
				info.opName, info.key)
		}
		info.fn = fn
	})
	return b
}

// SetKernelFunc is a shortcut to SetKernelFn(FuncAdapter(fn)).
func (b *Builder) SetKernelFunc(fn func(ctx Context) error) *Builder {
	return b.SetKernelFn(FuncAdapter(fn))
}
