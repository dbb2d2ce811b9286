package tensor

import (
	"math"
	"testing"

	"github.com/gomlx/gokernels/dtypes"
	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/status"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	x := must.M1(New(dtypes.Float32, 2, 3))
	require.True(t, x.IsInitialized())
	require.Equal(t, []int64{2, 3}, x.Shape())
	require.Equal(t, int64(6), x.NumElements())
	require.Len(t, x.Bytes(), 24)
	require.Equal(t, CPUPlace, x.Place())
	require.Equal(t, kernel.AnyLayout, x.Layout())
	data := must.M1(Flat[float32](x))
	require.Equal(t, make([]float32, 6), data)

	_, err := Flat[float64](x)
	require.True(t, status.Is(err, status.InvalidArgument))
}

func TestUninitialized(t *testing.T) {
	x := NewUninitialized(4)
	require.False(t, x.IsInitialized())
	require.Equal(t, dtypes.Undefined, x.DType())
	require.Nil(t, x.Bytes())
	_, err := Flat[float32](x)
	require.True(t, status.Is(err, status.InvalidArgument))

	var nilTensor *Dense
	require.False(t, nilTensor.IsInitialized())
}

func TestFromFlat(t *testing.T) {
	x := must.M1(FromFlat([]int32{1, 2, 3, 4, 5, 6}, 3, 2))
	require.Equal(t, dtypes.Int32, x.DType())
	require.Equal(t, []int64{3, 2}, x.Shape())
	require.Equal(t, []int32{1, 2, 3, 4, 5, 6}, must.M1(Flat[int32](x)))

	v := must.M1(FromFlat([]float64{1, 2}))
	require.Equal(t, []int64{2}, v.Shape())

	_, err := FromFlat([]float64{1, 2, 3}, 2, 2)
	require.True(t, status.Is(err, status.InvalidArgument))
}

func TestResizeAndMutableData(t *testing.T) {
	x := must.M1(FromFlat([]float32{1, 2}))
	require.NoError(t, x.Resize(2, 4))
	require.Len(t, must.M1(x.MutableData(CPUPlace, dtypes.Float32)), 32)
	require.Equal(t, make([]float32, 8), must.M1(Flat[float32](x)))

	// Shrinking keeps the storage.
	require.NoError(t, x.Resize(1))
	data := must.M1(x.MutableData(CPUPlace, dtypes.Float32))
	require.Len(t, data, 4)

	_, err := x.MutableData(CPUPlace, dtypes.Undefined)
	require.True(t, status.Is(err, status.InvalidArgument))
}

func TestInvalidDims(t *testing.T) {
	n, err := CheckDims(2, 0, math.MaxInt64)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
	require.Equal(t, int64(1), must.M1(CheckDims()))

	_, err = New(dtypes.Float32, -1)
	require.True(t, status.Is(err, status.InvalidArgument))
	_, err = New(dtypes.Float32, 1<<32, 1<<32)
	require.True(t, status.Is(err, status.InvalidArgument))
	_, err = New(dtypes.Float64, math.MaxInt64/2)
	require.True(t, status.Is(err, status.InvalidArgument))

	// Two negative dimensions don't make a valid shape.
	_, err = FromFlat([]float32{1, 2, 3, 4}, -2, -2)
	require.True(t, status.Is(err, status.InvalidArgument))

	x := must.M1(FromFlat([]float32{1, 2}))
	err = x.Resize(3, -1)
	require.True(t, status.Is(err, status.InvalidArgument))
	require.Equal(t, []int64{2}, x.Shape())

	// Invalid dimensions given at construction fail at allocation.
	y := NewUninitialized(-4)
	_, err = y.MutableData(CPUPlace, dtypes.Float32)
	require.True(t, status.Is(err, status.InvalidArgument))
	require.False(t, y.IsInitialized())
}

func TestMoveStorageFrom(t *testing.T) {
	src := must.M1(FromFlat([]float64{1, 2, 3}))
	src.SetLayout(kernel.NCHW)
	dst := NewUninitialized(7)
	require.NoError(t, dst.MoveStorageFrom(src))

	require.False(t, src.IsInitialized())
	require.True(t, dst.IsInitialized())
	require.Equal(t, []int64{3}, dst.Shape())
	require.Equal(t, dtypes.Float64, dst.DType())
	require.Equal(t, kernel.NCHW, dst.Layout())
	require.Equal(t, []float64{1, 2, 3}, must.M1(Flat[float64](dst)))

	// src is now empty: a second move fails.
	err := dst.MoveStorageFrom(src)
	require.True(t, status.Is(err, status.InvalidArgument))
	require.True(t, dst.IsInitialized())
}
