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
	"fmt"

	"github.com/gomlx/gokernels/dtypes"
)

// Backend is the class of device (or execution library) a kernel targets.
type Backend int32

const (
	// BackendUndefined is the sentinel for a backend not set or not recognized.
	BackendUndefined Backend = iota
	CPU
	GPU
	XPU
	NPU
	MKLDNN
	CUDNN

	numBackends
)

var backendNames = [numBackends]string{
	BackendUndefined: "UNDEFINED",
	CPU:              "CPU",
	GPU:              "GPU",
	XPU:              "XPU",
	NPU:              "NPU",
	MKLDNN:           "MKLDNN",
	CUDNN:            "CUDNN",
}

// String implements fmt.Stringer.
func (b Backend) String() string {
	if b < 0 || b >= numBackends {
		return fmt.Sprintf("Backend(%d)", int32(b))
	}
	return backendNames[b]
}

// DataLayout is the memory layout a kernel expects its tensors in.
type DataLayout int32

const (
	// LayoutUndefined is the sentinel for a layout not set or not recognized.
	LayoutUndefined DataLayout = iota

	// AnyLayout matches tensors in any layout.
	AnyLayout
	NHWC
	NCHW
	MKLDNNLayout

	numLayouts
)

var layoutNames = [numLayouts]string{
	LayoutUndefined: "UNDEFINED",
	AnyLayout:       "ANY",
	NHWC:            "NHWC",
	NCHW:            "NCHW",
	MKLDNNLayout:    "MKLDNN",
}

// String implements fmt.Stringer.
func (l DataLayout) String() string {
	if l < 0 || l >= numLayouts {
		return fmt.Sprintf("DataLayout(%d)", int32(l))
	}
	return layoutNames[l]
}

// Key identifies one kernel variant of an op: the backend, layout and dtype it handles.
//
// Key is a comparable value, and can be used directly as a map key.
type Key struct {
	Backend Backend
	Layout  DataLayout
	DType   dtypes.DType
}

// NewKey returns the Key for the given backend, layout and dtype.
func NewKey(backend Backend, layout DataLayout, dtype dtypes.DType) Key {
	return Key{Backend: backend, Layout: layout, DType: dtype}
}

// Hash folds the three fields of the key into one value: the dtype in the lowest 16 bits,
// the layout in the next 8 and the backend in the 8 bits after that.
//
// Equal keys always have equal hashes, and keys with in-range fields never collide.
func (k Key) Hash() uint64 {
	return uint64(uint16(k.DType)) | uint64(uint8(k.Layout))<<16 | uint64(uint8(k.Backend))<<24
}

// IsUndefined returns whether any of the fields is still at its undefined sentinel.
func (k Key) IsUndefined() bool {
	return k.Backend == BackendUndefined || k.Layout == LayoutUndefined || k.DType == dtypes.Undefined
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("(%s, %s, %s)", k.Backend, k.Layout, k.DType)
}
