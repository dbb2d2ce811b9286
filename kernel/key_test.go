package kernel

import (
	"testing"

	"github.com/gomlx/gokernels/dtypes"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func drawKey(t *rapid.T, label string) Key {
	return NewKey(
		Backend(rapid.Int32Range(0, int32(numBackends)-1).Draw(t, label+".backend")),
		DataLayout(rapid.Int32Range(0, int32(numLayouts)-1).Draw(t, label+".layout")),
		dtypes.DType(rapid.Int32Range(0, int32(dtypes.Complex128)).Draw(t, label+".dtype")),
	)
}

func TestKeyHashMatchesEquality(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k1 := drawKey(t, "k1")
		k2 := drawKey(t, "k2")
		if k1 == k2 {
			require.Equal(t, k1.Hash(), k2.Hash())
		} else {
			require.NotEqualf(t, k1.Hash(), k2.Hash(), "keys %s and %s collide", k1, k2)
		}
	})
}

func TestKeyAsMapKey(t *testing.T) {
	m := map[Key]int{}
	m[NewKey(CPU, AnyLayout, dtypes.Float32)] = 1
	m[NewKey(CPU, AnyLayout, dtypes.Float64)] = 2
	m[NewKey(CPU, AnyLayout, dtypes.Float32)] = 3
	require.Len(t, m, 2)
	require.Equal(t, 3, m[Key{Backend: CPU, Layout: AnyLayout, DType: dtypes.Float32}])
}

func TestParseKey(t *testing.T) {
	key := ParseKey("CPU", "ANY", "float")
	require.Equal(t, NewKey(CPU, AnyLayout, dtypes.Float32), key)
	require.False(t, key.IsUndefined())

	key = ParseKey("NPU", "ANY", "int64_t")
	require.Equal(t, NewKey(NPU, AnyLayout, dtypes.Int64), key)

	// Unknown names are not an error: they are left undefined.
	require.NotPanics(t, func() { key = ParseKey("TPU", "NCDHW", "float128") })
	require.Equal(t, BackendUndefined, key.Backend)
	require.Equal(t, LayoutUndefined, key.Layout)
	require.Equal(t, dtypes.Undefined, key.DType)
	require.True(t, key.IsUndefined())

	// The lookup is case-sensitive.
	require.Equal(t, BackendUndefined, ParseBackend("cpu"))
	require.Equal(t, "(UNDEFINED, UNDEFINED, Undefined)", key.String())
}

func TestParseUnknownNamesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-z]{6,12}`).Draw(t, "name")
		require.Equal(t, BackendUndefined, ParseBackend(name))
		require.Equal(t, LayoutUndefined, ParseDataLayout(name))
	})
}

func TestEnumStrings(t *testing.T) {
	require.Equal(t, "NPU", NPU.String())
	require.Equal(t, "Backend(99)", Backend(99).String())
	require.Equal(t, "NCHW", NCHW.String())
	require.Equal(t, "DataLayout(-1)", DataLayout(-1).String())
}
