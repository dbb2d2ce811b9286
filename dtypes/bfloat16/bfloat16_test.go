package bfloat16

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversions(t *testing.T) {
	for _, v := range []float32{0, 1, -1, 2, 0.5, 256, -3.5} {
		require.Equal(t, v, FromFloat32(v).Float32(), "value %g should be exactly representable", v)
	}
	require.InDelta(t, 3.140625, FromFloat64(math.Pi).Float64(), 1e-6)
	require.True(t, math.IsNaN(float64(FromFloat32(float32(math.NaN())).Float32())))
	require.True(t, math.IsInf(float64(FromFloat32(float32(math.Inf(1))).Float32()), 1))
	require.Equal(t, "1.5", FromFloat32(1.5).String())
}
