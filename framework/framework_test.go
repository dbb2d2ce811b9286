package framework

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/gokernels/dtypes"
	"github.com/gomlx/gokernels/kernel"
	"github.com/gomlx/gokernels/status"
	"github.com/gomlx/gokernels/tensor"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeLibrary is a library whose symbols are given by a map.
type fakeLibrary map[string]any

func (lib fakeLibrary) Lookup(symbol string) (any, error) {
	value, found := lib[symbol]
	if !found {
		return nil, errors.Errorf("symbol %q not found", symbol)
	}
	return value, nil
}

// fakeOpener opens the libraries by their file name.
func fakeOpener(libs map[string]fakeLibrary) libraryOpener {
	return func(libPath string) (libraryHandle, error) {
		lib, found := libs[filepath.Base(libPath)]
		if !found {
			return nil, errors.Errorf("cannot open %q", libPath)
		}
		return lib, nil
	}
}

// newTestHost creates a host that knows "relu" and "scale", searching libraries in dir.
func newTestHost(dir string, libs map[string]fakeLibrary, options ...Option) *Host {
	options = append([]Option{
		WithSearchPaths(dir),
		WithOpInfos(
			OpInfo{Type: "relu", Inputs: []string{"X"}, Outputs: []string{"Out"}},
			OpInfo{Type: "scale", Inputs: []string{"X"}, Outputs: []string{"Out"}, Attrs: []string{"scale"}},
		),
	}, options...)
	h := NewHost(options...)
	h.open = fakeOpener(libs)
	return h
}

// touch creates empty files in dir.
func touch(t *testing.T, dir string, names ...string) {
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
}

// copyKernel is a kernel that copies input "X" to output "Out", counting its calls.
func copyKernel(calls *int) kernel.Func {
	return kernel.FuncAdapter(func(handle kernel.Context) error {
		*calls++
		ctx, err := ContextFromHandle(handle)
		if err != nil {
			return err
		}
		x, _ := ctx.Input("X")
		out, found := ctx.Output("Out")
		if !found {
			return status.Errorf(status.NotFound, "no output")
		}
		if err := out.Resize(x.Shape()...); err != nil {
			return err
		}
		data, err := out.MutableData(ctx.DeviceContext().Place(), x.DType())
		if err != nil {
			return err
		}
		copy(data, x.Bytes())
		return nil
	})
}

func TestTransKernelKeyToOpKernelType(t *testing.T) {
	kt := TransKernelKeyToOpKernelType(kernel.NewKey(kernel.MKLDNN, kernel.NCHW, dtypes.Float32))
	require.Equal(t, OpKernelType{
		Place: tensor.Place{Backend: kernel.CPU}, Layout: kernel.NCHW, DType: dtypes.Float32, Library: MKLDNNLibrary,
	}, kt)

	kt = TransKernelKeyToOpKernelType(kernel.NewKey(kernel.CUDNN, kernel.AnyLayout, dtypes.Float16))
	require.Equal(t, kernel.GPU, kt.Place.Backend)
	require.Equal(t, CUDNNLibrary, kt.Library)
	require.Equal(t, dtypes.Float16, kt.DType)

	kt = TransKernelKeyToOpKernelType(kernel.NewKey(kernel.NPU, kernel.NHWC, dtypes.Int64))
	require.Equal(t, OpKernelType{
		Place: tensor.Place{Backend: kernel.NPU}, Layout: kernel.NHWC, DType: dtypes.Int64, Library: PlainLibrary,
	}, kt)
}

func TestRegisterAndRun(t *testing.T) {
	h := newTestHost(t.TempDir(), nil)
	key := kernel.NewKey(kernel.CPU, kernel.AnyLayout, dtypes.Float32)
	var calls int
	h.RegisterCustomKernel("relu", key, copyKernel(&calls))

	x := must.M1(tensor.FromFlat([]float32{1, -2, 3}))
	out := tensor.NewUninitialized()
	ctx := h.NewExecutionContext("relu", key).SetInput("X", x).SetOutput("Out", out)
	require.NoError(t, h.Run("relu", key, ctx))
	require.Equal(t, 1, calls)
	require.Equal(t, []float32{1, -2, 3}, must.M1(tensor.Flat[float32](out)))

	// Different key: independent entry; missing kernel is NotFound.
	err := h.Run("relu", kernel.NewKey(kernel.GPU, kernel.AnyLayout, dtypes.Float32), ctx)
	require.True(t, status.Is(err, status.NotFound))
	var gpuCalls int
	h.RegisterCustomKernel("relu", kernel.NewKey(kernel.GPU, kernel.AnyLayout, dtypes.Float32), copyKernel(&gpuCalls))
	require.NoError(t, h.Run("relu", key, ctx))
	require.Equal(t, 2, calls)
	require.Equal(t, 0, gpuCalls)
	require.Len(t, h.OpKernelMap().KernelTypes("relu"), 2)

	// Same key: last write wins.
	var newCalls int
	h.RegisterCustomKernel("relu", key, copyKernel(&newCalls))
	require.NoError(t, h.Run("relu", key, ctx))
	require.Equal(t, 2, calls)
	require.Equal(t, 1, newCalls)
	require.Equal(t, 2, h.OpKernelMap().NumKernels())
}

func TestRegisterKernelWithMetaInfoMap(t *testing.T) {
	newRegistry := func() *kernel.MetaInfoMap {
		m := kernel.NewMetaInfoMap()
		var calls int
		kernel.NewBuilder(m, "aaa_unknown", kernel.CPU, kernel.AnyLayout, dtypes.Float32).SetKernelFn(copyKernel(&calls))
		kernel.NewBuilder(m, "relu", kernel.CPU, kernel.AnyLayout, dtypes.Float32).SetKernelFn(copyKernel(&calls))
		kernel.NewBuilder(m, "relu", kernel.CPU, kernel.AnyLayout, dtypes.Float64).SetKernelFn(copyKernel(&calls))
		kernel.NewBuilder(m, "scale", kernel.CPU, kernel.AnyLayout, dtypes.Float32)
		return m
	}

	// Default policy: the unknown op comes first in sorted order, and everything after it is dropped.
	h := newTestHost(t.TempDir(), nil)
	report := h.RegisterKernelWithMetaInfoMap(newRegistry())
	require.True(t, report.Aborted)
	require.Equal(t, 0, report.Registered)
	require.Equal(t, []string{"aaa_unknown", "relu", "scale"}, report.SkippedOps)
	require.Equal(t, 0, h.OpKernelMap().NumKernels())

	// Skipping only the unknown op; "scale" has no kernel function.
	h = newTestHost(t.TempDir(), nil, WithUnknownOpPolicy(SkipUnknownOp))
	report = h.RegisterKernelWithMetaInfoMap(newRegistry())
	require.False(t, report.Aborted)
	require.Equal(t, 2, report.Registered)
	require.Equal(t, []string{"aaa_unknown"}, report.SkippedOps)
	require.Equal(t, []string{"relu"}, h.OpKernelMap().OpNames())
	_, found := h.OpKernelMap().Get("relu", TransKernelKeyToOpKernelType(kernel.NewKey(kernel.CPU, kernel.AnyLayout, dtypes.Float64)))
	require.True(t, found)
}

func TestRegisterUnknownStrings(t *testing.T) {
	m := kernel.NewMetaInfoMap()
	var calls int
	b := kernel.NewBuilderFromStrings(m, "relu", "TPU", "weird", "quad").SetKernelFn(copyKernel(&calls))
	require.True(t, b.MetaInfo().Key().IsUndefined())

	h := newTestHost(t.TempDir(), nil)
	report := h.RegisterKernelWithMetaInfoMap(m)
	require.Equal(t, 1, report.Registered)
	_, found := h.OpKernelMap().Get("relu", TransKernelKeyToOpKernelType(kernel.Key{}))
	require.True(t, found)
}

// TestRegisterAllCustomKernel registers into the process-wide kernel.DefaultMetaInfoMap. It uses an
// operator name no other test knows, and a skipping host, so other entries there don't matter.
func TestRegisterAllCustomKernel(t *testing.T) {
	const opName = "framework_test_all_custom_kernel"
	var calls int
	kernel.Register(opName, kernel.CPU, kernel.AnyLayout, dtypes.Int32).SetKernelFn(copyKernel(&calls))
	h := newTestHost(t.TempDir(), nil,
		WithUnknownOpPolicy(SkipUnknownOp),
		WithOpInfos(OpInfo{Type: opName, Inputs: []string{"X"}, Outputs: []string{"Out"}}))
	report := h.RegisterAllCustomKernel()
	require.GreaterOrEqual(t, report.Registered, 1)
	_, found := h.OpKernelMap().Get(opName, TransKernelKeyToOpKernelType(kernel.NewKey(kernel.CPU, kernel.AnyLayout, dtypes.Int32)))
	require.True(t, found)
}

func TestRunCustomKernelFunc(t *testing.T) {
	ctx := NewExecutionContext("relu", NewDeviceContext(tensor.CPUPlace, NoStream))
	var captured kernel.Context
	run := func(fn func() error) error {
		return RunCustomKernelFunc(ctx, kernel.FuncAdapter(func(handle kernel.Context) error {
			captured = handle
			got, err := ContextFromHandle(handle)
			require.NoError(t, err)
			require.Same(t, ctx, got)
			return fn()
		}))
	}

	require.NoError(t, run(func() error { return nil }))

	// The handle expires with the call.
	_, err := ContextFromHandle(captured)
	require.True(t, status.Is(err, status.InvalidArgument))
	_, err = ContextFromHandle(kernel.NilContext)
	require.True(t, status.Is(err, status.InvalidArgument))

	err = run(func() error { return status.Errorf(status.PreconditionNotMet, "not ready") })
	require.True(t, status.Is(err, status.PreconditionNotMet))
	require.Contains(t, err.Error(), "not ready")

	err = run(func() error { return errors.New("boom") })
	require.True(t, status.Is(err, status.External))
	require.Contains(t, err.Error(), "boom")

	err = run(func() error { panic(errors.New("kaboom")) })
	require.True(t, status.Is(err, status.External))
	require.Contains(t, err.Error(), "kaboom")

	err = run(func() error { panic(status.Errorf(status.NotFound, "gone")) })
	require.True(t, status.Is(err, status.NotFound))

	err = run(func() error { panic("something odd") })
	require.True(t, status.Is(err, status.Fatal))
	require.Contains(t, err.Error(), UnknownExceptionMessage)

	err = RunCustomKernelFunc(ctx, nil)
	require.True(t, status.Is(err, status.PreconditionNotMet))
}

func TestExecutionContextArgumentMapping(t *testing.T) {
	h := newTestHost(t.TempDir(), nil)
	x := must.M1(tensor.FromFlat([]float32{1}))
	ctx := h.NewExecutionContext("scale", kernel.NewKey(kernel.CPU, kernel.AnyLayout, dtypes.Float32)).
		SetInput("X", x).
		SetInput("Empty").
		SetOutput("Out", tensor.NewUninitialized()).
		SetAttr("scale", float32(2))
	require.True(t, ctx.HasInput("X"))
	require.False(t, ctx.HasInput("Empty"))
	require.Equal(t, 0, ctx.InputSize("Empty"))
	require.True(t, ctx.HasOutput("Out"))
	require.Equal(t, 1, ctx.OutputSize("Out"))
	require.True(t, ctx.HasAttr("scale"))
	require.True(t, ctx.IsDenseTensorInput("X"))
	require.False(t, ctx.IsSelectedRowsInput("X"))
	require.Equal(t, []string{"Empty", "X"}, ctx.InputNames())

	// No mapping registered for "scale": its own arguments.
	sig := must.M1(h.KernelSignature("scale", ctx))
	require.Equal(t, "scale", sig.Name)
	require.Equal(t, []string{"X"}, sig.Inputs)
	require.Equal(t, []string{"scale"}, sig.Attrs)

	_, err := h.KernelSignature("unknown", ctx)
	require.True(t, status.Is(err, status.NotFound))
}

func TestDeviceContextPool(t *testing.T) {
	gpu := tensor.Place{Backend: kernel.GPU, DeviceID: 1}
	h := NewHost(WithDeviceContext(NewDeviceContext(gpu, Stream(7))))
	stream, ok := h.DeviceContextPool().Get(gpu).Stream()
	require.True(t, ok)
	require.Equal(t, Stream(7), stream)
	_, ok = h.DeviceContextPool().CPU().Stream()
	require.False(t, ok)
	require.Equal(t, tensor.Place{Backend: kernel.NPU}, h.DeviceContextPool().Get(tensor.Place{Backend: kernel.NPU}).Place())
}

func mustTensor(t *testing.T, flat []float32) *tensor.Dense {
	x, err := tensor.FromFlat(flat)
	require.NoError(t, err)
	return x
}

func emptyTensor() *tensor.Dense { return tensor.NewUninitialized() }
