package status

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorf(t *testing.T) {
	err := Errorf(NotFound, "input tensor (%s) is nil", "X")
	require.Equal(t, "NotFound: input tensor (X) is nil", err.Error())
	require.True(t, Is(err, NotFound))
	require.True(t, IsStatus(err))

	sErr, ok := FromError(err)
	require.True(t, ok)
	require.Equal(t, "input tensor (X) is nil", sErr.Message())

	// Stack trace available with %+v.
	require.Contains(t, fmt.Sprintf("%+v", err), "status_test.go")
}

func TestCodeOfWrapped(t *testing.T) {
	err := errors.WithMessage(Errorf(InvalidArgument, "bad"), "while loading")
	require.Equal(t, InvalidArgument, CodeOf(err))
	require.Equal(t, OK, CodeOf(nil))
	require.Equal(t, Fatal, CodeOf(errors.New("plain")))
	require.False(t, IsStatus(errors.New("plain")))

	require.Nil(t, Wrapf(External, nil, "nothing"))
	wrapped := Wrapf(External, errors.New("boom"), "kernel %q", "relu")
	require.Equal(t, `External: kernel "relu": boom`, wrapped.Error())
}

func TestCodeString(t *testing.T) {
	require.Equal(t, "PreconditionNotMet", PreconditionNotMet.String())
	require.Equal(t, "Code(42)", Code(42).String())
}
