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

// Package tensor implements the host's dense tensor: a shape, a dtype, a layout, a place and the
// storage that holds the data.
package tensor

import (
	"fmt"
	"math"
	"slices"
	"unsafe"

	"github.com/gomlx/gokernels/dtypes"
	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/status"
)

// Place is where the storage of a tensor lives.
type Place struct {
	Backend  kernel.Backend
	DeviceID int
}

// CPUPlace is the default place of tensors.
var CPUPlace = Place{Backend: kernel.CPU}

// String implements fmt.Stringer.
func (p Place) String() string {
	return fmt.Sprintf("%s:%d", p.Backend, p.DeviceID)
}

// Storage owns the bytes of a tensor.
type Storage struct {
	data []byte
}

// newStorage allocates a zeroed storage of the given number of bytes, 8-byte aligned.
func newStorage(size int) *Storage {
	if size == 0 {
		return &Storage{data: []byte{}}
	}
	words := make([]uint64, (size+7)/8)
	return &Storage{data: unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)}
}

// Len returns the size of the storage in bytes.
func (s *Storage) Len() int { return len(s.data) }

// Dense is a dense tensor. A tensor without storage is "uninitialized": it may have a shape,
// but holds no data.
type Dense struct {
	dims    []int64
	dtype   dtypes.DType
	layout  kernel.DataLayout
	place   Place
	storage *Storage
}

// CheckDims returns the number of elements of a shape with the given dimensions, or an
// InvalidArgument error if a dimension is negative or the number of elements overflows an int64.
func CheckDims(dims ...int64) (int64, error) {
	for axis, dim := range dims {
		if dim < 0 {
			return 0, status.Errorf(status.InvalidArgument, "negative dimension %d in axis %d of shape %v", dim, axis, dims)
		}
		if dim == 0 {
			return 0, nil
		}
	}
	n := int64(1)
	for _, dim := range dims {
		if n > math.MaxInt64/dim {
			return 0, status.Errorf(status.InvalidArgument, "number of elements of shape %v overflows", dims)
		}
		n *= dim
	}
	return n, nil
}

// New allocates a zero-initialized tensor on the CPU.
func New(dtype dtypes.DType, dims ...int64) (*Dense, error) {
	t := NewUninitialized(dims...)
	if _, err := t.MutableData(CPUPlace, dtype); err != nil {
		return nil, err
	}
	return t, nil
}

// NewUninitialized returns a tensor with the given shape but no storage and an undefined dtype.
// The dimensions are checked when the storage is allocated, by MutableData.
func NewUninitialized(dims ...int64) *Dense {
	return &Dense{dims: slices.Clone(dims), layout: kernel.AnyLayout, place: CPUPlace}
}

// FromFlat creates a CPU tensor with a copy of flat, with the given dimensions.
// If no dimensions are given, it creates a vector.
func FromFlat[T dtypes.Supported](flat []T, dims ...int64) (*Dense, error) {
	if len(dims) == 0 {
		dims = []int64{int64(len(flat))}
	}
	dtype := dtypes.FromGenericsType[T]()
	n, err := CheckDims(dims...)
	if err != nil {
		return nil, err
	}
	if n != int64(len(flat)) {
		return nil, status.Errorf(status.InvalidArgument,
			"FromFlat: %d values given for shape %v (%d elements)", len(flat), dims, n)
	}
	t := NewUninitialized(dims...)
	if _, err := t.MutableData(CPUPlace, dtype); err != nil {
		return nil, err
	}
	data, _ := Flat[T](t)
	copy(data, flat)
	return t, nil
}

// Flat returns the data of the tensor as a slice of T. The slice shares the tensor storage.
//
// It fails if the tensor is not initialized or if T doesn't match its dtype.
func Flat[T dtypes.Supported](t *Dense) ([]T, error) {
	if !t.IsInitialized() {
		return nil, status.Errorf(status.InvalidArgument, "tensor %s is not initialized", t)
	}
	if want := dtypes.FromGenericsType[T](); want != t.dtype || unsafe.Sizeof(*new(T)) != uintptr(t.dtype.Size()) {
		return nil, status.Errorf(status.InvalidArgument, "cannot access tensor of dtype %s as %T", t.dtype, *new(T))
	}
	n := int(t.NumElements())
	if n == 0 {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&t.storage.data[0])), n), nil
}

// Shape returns a copy of the dimensions.
func (t *Dense) Shape() []int64 { return slices.Clone(t.dims) }

// Rank returns the number of dimensions.
func (t *Dense) Rank() int { return len(t.dims) }

// DType returns the element type, or dtypes.Undefined if it was never allocated.
func (t *Dense) DType() dtypes.DType { return t.dtype }

// Layout returns the memory layout.
func (t *Dense) Layout() kernel.DataLayout { return t.layout }

// SetLayout changes the memory layout: it doesn't change the data.
func (t *Dense) SetLayout(layout kernel.DataLayout) { t.layout = layout }

// Place returns where the storage lives.
func (t *Dense) Place() Place { return t.place }

// NumElements returns the number of elements for the current shape. A scalar has 1 element.
func (t *Dense) NumElements() int64 {
	n := int64(1)
	for _, dim := range t.dims {
		n *= dim
	}
	return n
}

// IsInitialized returns whether the tensor owns a storage.
func (t *Dense) IsInitialized() bool {
	return t != nil && t.storage != nil
}

// Resize changes the dimensions. The storage is kept, and reallocated by the next
// MutableData call if it becomes too small.
//
// It returns an InvalidArgument error, and leaves the tensor unchanged, if dims is not a valid shape.
func (t *Dense) Resize(dims ...int64) error {
	if _, err := CheckDims(dims...); err != nil {
		return err
	}
	t.dims = slices.Clone(dims)
	return nil
}

// MutableData sets the place and dtype of the tensor, allocates the storage if it's missing or
// too small for the current shape, and returns its bytes.
//
// It returns an InvalidArgument error if dtype is not valid, or if the current shape is invalid
// or too large to be addressed.
func (t *Dense) MutableData(place Place, dtype dtypes.DType) ([]byte, error) {
	if !dtype.IsValid() {
		return nil, status.Errorf(status.InvalidArgument, "cannot allocate tensor %s with dtype %s", t, dtype)
	}
	n, err := CheckDims(t.dims...)
	if err != nil {
		return nil, err
	}
	elementSize := int64(dtype.Size())
	if n > math.MaxInt/elementSize {
		return nil, status.Errorf(status.InvalidArgument, "tensor of shape %v and dtype %s is too large", t.dims, dtype)
	}
	size := int(n * elementSize)
	if t.storage == nil || t.storage.Len() < size || t.place != place {
		t.storage = newStorage(size)
	}
	t.place = place
	t.dtype = dtype
	return t.storage.data[:size], nil
}

// Bytes returns the bytes of the data, or nil if the tensor is not initialized.
func (t *Dense) Bytes() []byte {
	if !t.IsInitialized() {
		return nil
	}
	size := t.dtype.SizeForDimensions(t.dims...)
	return t.storage.data[:min(size, t.storage.Len())]
}

// MoveStorageFrom transfers the storage of src to t, together with its shape, dtype, layout and place.
//
// Afterwards src no longer owns any storage (it becomes uninitialized), so the data is never shared
// between the two.
func (t *Dense) MoveStorageFrom(src *Dense) error {
	if src == t {
		return nil
	}
	if !src.IsInitialized() {
		return status.Errorf(status.InvalidArgument, "cannot move storage from uninitialized tensor %s", src)
	}
	t.storage, src.storage = src.storage, nil
	t.dims = slices.Clone(src.dims)
	t.dtype = src.dtype
	t.layout = src.layout
	t.place = src.place
	return nil
}

// String implements fmt.Stringer.
func (t *Dense) String() string {
	if t == nil {
		return "Dense(nil)"
	}
	state := "initialized"
	if t.storage == nil {
		state = "uninitialized"
	}
	return fmt.Sprintf("Dense(%s%v, %s, %s, %s)", t.dtype, t.dims, t.layout, t.place, state)
}
