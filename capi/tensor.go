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

package capi

import (
	"github.com/gomlx/gokernels/dtypes"
	"github.com/gomlx/gokernels/status"
	"github.com/gomlx/gokernels/tensor"
)

// Tensor is a reference to a tensor, as seen by kernels.
//
// Tensors returned by GetInput and AllocateOutput refer to the host tensors: writing to the Data
// of an output writes the host output. The host keeps ownership of their storage, so they can't be
// given to SetOutput.
type Tensor struct {
	dense *tensor.Dense

	// hostOwned is set for tensors that wrap a host input or output.
	hostOwned bool
}

// NewTensor returns an empty tensor, with no shape and no storage.
func NewTensor() *Tensor {
	return &Tensor{dense: tensor.NewUninitialized()}
}

// TensorFromFlat creates a tensor holding a copy of flat, with the given dimensions.
// If no dimensions are given, it creates a vector.
func TensorFromFlat[T dtypes.Supported](flat []T, dims ...int64) (*Tensor, error) {
	dense, err := tensor.FromFlat(flat, dims...)
	if err != nil {
		return nil, err
	}
	return &Tensor{dense: dense}, nil
}

// IsInitialized returns whether the tensor holds any storage.
func (t *Tensor) IsInitialized() bool {
	return t != nil && t.dense.IsInitialized()
}

// ElementCount returns the number of elements of the tensor shape.
func (t *Tensor) ElementCount() int64 { return t.dense.NumElements() }

// Shape returns a copy of the dimensions of the tensor.
func (t *Tensor) Shape() []int64 { return t.dense.Shape() }

// DType returns the element type of the tensor.
func (t *Tensor) DType() dtypes.DType { return t.dense.DType() }

// Data returns the bytes of the tensor, or nil if it holds no storage.
func (t *Tensor) Data() []byte { return t.dense.Bytes() }

// TensorData returns the data of the tensor as a slice of T, sharing its storage.
// It returns an InvalidArgument error if T doesn't match the tensor dtype.
func TensorData[T dtypes.Supported](t *Tensor) ([]T, error) {
	if t == nil {
		return nil, status.Errorf(status.InvalidArgument, "nil tensor")
	}
	return tensor.Flat[T](t.dense)
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(nil)"
	}
	return t.dense.String()
}
