package kernel

import (
	"fmt"
	"testing"

	"github.com/gomlx/gokernels/dtypes"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func noopKernel(Context) error { return nil }

func TestBuilder(t *testing.T) {
	m := NewMetaInfoMap()
	fn := FuncAdapter(noopKernel)
	b := NewBuilder(m, "relu", CPU, AnyLayout, dtypes.Float32).
		Inputs("X").
		Outputs("Out").
		Attrs("alpha").
		SetKernelFn(fn)

	require.Equal(t, EntryID{OpName: "relu", Index: 0}, b.ID())
	infos := m.Get("relu")
	require.Len(t, infos, 1)
	info := infos[0]
	require.Equal(t, "relu", info.OpName())
	require.Equal(t, NewKey(CPU, AnyLayout, dtypes.Float32), info.Key())
	require.Equal(t, []string{"X"}, info.Inputs())
	require.Equal(t, []string{"Out"}, info.Outputs())
	require.Equal(t, []string{"alpha"}, info.Attrs())
	require.NotNil(t, info.KernelFn())
	require.Equal(t, info, b.MetaInfo())

	// Accessors return copies.
	inputs := info.Inputs()
	inputs[0] = "changed"
	require.Equal(t, []string{"X"}, m.Get("relu")[0].Inputs())
}

func TestBuilderFromStrings(t *testing.T) {
	m := NewMetaInfoMap()
	NewBuilderFromStrings(m, "relu", "CPU", "ANY", "float")
	NewBuilderFromStrings(m, "relu", "MY_DEVICE", "ANY", "float")
	infos := m.Get("relu")
	require.Len(t, infos, 2)
	require.Equal(t, NewKey(CPU, AnyLayout, dtypes.Float32), infos[0].Key())
	require.Equal(t, NewKey(BackendUndefined, AnyLayout, dtypes.Float32), infos[1].Key())
}

func TestSetKernelFnTwiceOverwrites(t *testing.T) {
	m := NewMetaInfoMap()
	var called string
	b := NewBuilder(m, "relu", CPU, AnyLayout, dtypes.Float32).
		SetKernelFunc(func(Context) error { called = "first"; return nil }).
		SetKernelFunc(func(Context) error { called = "second"; return nil })
	require.NoError(t, b.MetaInfo().KernelFn().Compute(NilContext))
	require.Equal(t, "second", called)
}

// TestEntryIDStable checks that builders keep pointing to their own entry while more
// kernels are registered for the same op.
func TestEntryIDStable(t *testing.T) {
	m := NewMetaInfoMap()
	builders := make([]*Builder, 0, 100)
	for ii := range 100 {
		builders = append(builders, NewBuilder(m, "add", CPU, AnyLayout, dtypes.Float32))
		builders[ii/2].Attrs(fmt.Sprintf("attr_%d", ii/2))
	}
	for ii, b := range builders[:50] {
		require.Equal(t, []string{fmt.Sprintf("attr_%d", ii)}, b.MetaInfo().Attrs())
	}
	require.Equal(t, 100, m.NumKernels())
	require.Equal(t, 1, m.Len())
}

func TestRegistryLookupProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewMetaInfoMap()
		numOps := rapid.IntRange(1, 5).Draw(t, "numOps")
		want := make(map[EntryID]Key)
		for range rapid.IntRange(1, 20).Draw(t, "numKernels") {
			opName := fmt.Sprintf("op%d", rapid.IntRange(0, numOps-1).Draw(t, "op"))
			key := drawKey(t, "key")
			b := NewBuilder(m, opName, key.Backend, key.Layout, key.DType)
			want[b.ID()] = key
		}
		for id, key := range want {
			info, found := m.Entry(id)
			require.True(t, found)
			require.Equal(t, key, info.Key())
			require.Equal(t, id.OpName, info.OpName())
		}
		require.Equal(t, len(want), m.NumKernels())
	})
}

func TestOpNamesSorted(t *testing.T) {
	m := NewMetaInfoMap()
	for _, name := range []string{"sub", "add", "mul"} {
		m.Register(MetaInfoConfig{OpName: name, Key: NewKey(CPU, AnyLayout, dtypes.Float32)})
	}
	require.Equal(t, []string{"add", "mul", "sub"}, m.OpNames())
	_, found := m.Entry(EntryID{OpName: "add", Index: 1})
	require.False(t, found)
	require.Empty(t, m.Get("div"))
}

func TestDefaultMetaInfoMap(t *testing.T) {
	b := Register("test_default_registry_op", CPU, AnyLayout, dtypes.Int64)
	require.Equal(t, b.MetaInfo(), DefaultMetaInfoMap.Get("test_default_registry_op")[0])
	b = RegisterFromStrings("test_default_registry_op", "GPU", "NCHW", "double")
	require.Equal(t, NewKey(GPU, NCHW, dtypes.Float64), b.MetaInfo().Key())
}
