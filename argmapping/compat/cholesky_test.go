package compat

import (
	"testing"

	"github.com/gomlx/gokernels/argmapping"
	"github.com/gomlx/gokernels/status"
	"github.com/stretchr/testify/require"
)

func TestCholeskyMappings(t *testing.T) {
	m := argmapping.DefaultFnMap
	require.True(t, m.Has("cholesky"))
	require.True(t, m.Has("cholesky_grad"))

	mapper, err := m.Get("cholesky")
	require.NoError(t, err)
	sig := mapper.MapArguments(nil)
	require.Equal(t, argmapping.KernelSignature{
		Name: "cholesky", Inputs: []string{"X"}, Attrs: []string{"upper"}, Outputs: []string{"Out"},
	}, sig)

	mapper, err = m.Get("cholesky_grad")
	require.NoError(t, err)
	sig = mapper.MapArguments(nil)
	require.Equal(t, argmapping.KernelSignature{
		Name:    "cholesky_grad",
		Inputs:  []string{"Out", "Out@GRAD"},
		Attrs:   []string{"upper"},
		Outputs: []string{"X@GRAD"},
	}, sig)
}

func TestRegisterTwice(t *testing.T) {
	m := argmapping.NewFnMap()
	require.NoError(t, Register(m))
	require.True(t, status.Is(Register(m), status.AlreadyExists))
}
