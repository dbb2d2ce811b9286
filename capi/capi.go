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

// Package capi is the API kernels use to access their execution context: the kernel.Context
// handle they receive is opaque, and only valid while the kernel runs.
//
// All functions return an InvalidArgument error if the handle is invalid or expired.
package capi

import (
	"github.com/gomlx/gokernels/dtypes"
	"github.com/gomlx/gokernels/framework"
	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/status"
	"github.com/gomlx/gokernels/tensor"
	"k8s.io/klog/v2"
)

// Stream is an opaque handle to the device stream a kernel runs on.
type Stream = framework.Stream

// NumInputs returns the number of inputs bound in the context.
func NumInputs(ctx kernel.Context) (int, error) {
	execCtx, err := framework.ContextFromHandle(ctx)
	if err != nil {
		return 0, err
	}
	return len(execCtx.InputNames()), nil
}

// InputNames returns the sorted names of the inputs bound in the context.
func InputNames(ctx kernel.Context) ([]string, error) {
	execCtx, err := framework.ContextFromHandle(ctx)
	if err != nil {
		return nil, err
	}
	return execCtx.InputNames(), nil
}

// OutputNames returns the sorted names of the outputs bound in the context.
func OutputNames(ctx kernel.Context) ([]string, error) {
	execCtx, err := framework.ContextFromHandle(ctx)
	if err != nil {
		return nil, err
	}
	return execCtx.OutputNames(), nil
}

// GetInput returns the input name.
//
// It returns a NotFound error if there is no such input, and an InvalidArgument error if it
// holds no data.
func GetInput(ctx kernel.Context, name string) (*Tensor, error) {
	execCtx, err := framework.ContextFromHandle(ctx)
	if err != nil {
		return nil, err
	}
	input, found := execCtx.Input(name)
	if !found {
		return nil, status.Errorf(status.NotFound, "input %q of operator %q not found", name, execCtx.OpType())
	}
	if !input.IsInitialized() {
		return nil, status.Errorf(status.InvalidArgument, "input %q of operator %q is not initialized", name, execCtx.OpType())
	}
	return &Tensor{dense: input, hostOwned: true}, nil
}

func getOutput(ctx kernel.Context, name string) (*framework.ExecutionContext, *tensor.Dense, error) {
	execCtx, err := framework.ContextFromHandle(ctx)
	if err != nil {
		return nil, nil, err
	}
	output, found := execCtx.Output(name)
	if !found {
		return nil, nil, status.Errorf(status.NotFound, "output %q of operator %q not found", name, execCtx.OpType())
	}
	return execCtx, output, nil
}

// GetOutputShape returns the current shape of the output name, or a NotFound error.
func GetOutputShape(ctx kernel.Context, name string) ([]int64, error) {
	_, output, err := getOutput(ctx, name)
	if err != nil {
		return nil, err
	}
	return output.Shape(), nil
}

// AllocateOutput allocates the storage of the output name on the device of the context and
// returns it. If dims are given, the output is resized first.
//
// It returns an InvalidArgument error, and leaves the output unchanged, if dtype or dims are not valid.
func AllocateOutput(ctx kernel.Context, name string, dtype dtypes.DType, dims ...int64) (*Tensor, error) {
	execCtx, output, err := getOutput(ctx, name)
	if err != nil {
		return nil, err
	}
	if !dtype.IsValid() {
		return nil, status.Errorf(status.InvalidArgument, "cannot allocate output %q with dtype %s", name, dtype)
	}
	if len(dims) > 0 {
		if err := output.Resize(dims...); err != nil {
			return nil, err
		}
	}
	if _, err := output.MutableData(execCtx.DeviceContext().Place(), dtype); err != nil {
		return nil, err
	}
	return &Tensor{dense: output, hostOwned: true}, nil
}

// SetOutput moves the storage of t into the output name, with its shape and dtype. Afterwards t
// holds no storage.
//
// It returns a NotFound error if there is no such output, and an InvalidArgument error if t holds
// no storage (for instance if it was already moved) or if t refers to a host tensor, as returned
// by GetInput or by AllocateOutput for another output. Setting an output to the tensor returned
// by AllocateOutput for itself is a no-op.
func SetOutput(ctx kernel.Context, name string, t *Tensor) error {
	execCtx, output, err := getOutput(ctx, name)
	if err != nil {
		return err
	}
	if !t.IsInitialized() {
		return status.Errorf(status.InvalidArgument, "tensor set to output %q of operator %q holds no data", name, execCtx.OpType())
	}
	if t.dense == output {
		return nil
	}
	if t.hostOwned {
		return status.Errorf(status.InvalidArgument,
			"tensor set to output %q of operator %q is owned by the host, allocate a new tensor or use AllocateOutput", name, execCtx.OpType())
	}
	klog.V(2).Infof("setting output %q of %q to %s", name, execCtx.OpType(), t)
	return output.MoveStorageFrom(t.dense)
}

// GetStream returns the stream of the device the kernel runs on, or an Unimplemented error if
// the device has no stream.
func GetStream(ctx kernel.Context) (Stream, error) {
	execCtx, err := framework.ContextFromHandle(ctx)
	if err != nil {
		return framework.NoStream, err
	}
	dc := execCtx.DeviceContext()
	stream, ok := dc.Stream()
	if !ok {
		return framework.NoStream, status.Errorf(status.Unimplemented,
			"device %s of operator %q has no stream", dc.Place(), execCtx.OpType())
	}
	return stream, nil
}

// Place returns where the kernel runs.
func Place(ctx kernel.Context) (tensor.Place, error) {
	execCtx, err := framework.ContextFromHandle(ctx)
	if err != nil {
		return tensor.Place{}, err
	}
	return execCtx.DeviceContext().Place(), nil
}

// GetAttr returns the attribute name, or a NotFound error.
func GetAttr(ctx kernel.Context, name string) (any, error) {
	execCtx, err := framework.ContextFromHandle(ctx)
	if err != nil {
		return nil, err
	}
	value, found := execCtx.Attr(name)
	if !found {
		return nil, status.Errorf(status.NotFound, "attribute %q of operator %q not found", name, execCtx.OpType())
	}
	return value, nil
}

// GetAttrAs returns the attribute name converted to T. It returns an InvalidArgument error if
// the attribute has a different type.
func GetAttrAs[T any](ctx kernel.Context, name string) (T, error) {
	var zero T
	value, err := GetAttr(ctx, name)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, status.Errorf(status.InvalidArgument, "attribute %q is a %T, not a %T", name, value, zero)
	}
	return typed, nil
}
