package script

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encoderfile/encoderfile/internal/tensor"
)

func TestSandboxHidesOSIoDebugPackage(t *testing.T) {
	sb, err := New(`
		result_os = os
		result_io = io
		result_debug = debug
	`)
	require.NoError(t, err)
	defer sb.Close()

	require.Equal(t, "nil", sb.L.GetGlobal("result_os").Type().String())
	require.Equal(t, "nil", sb.L.GetGlobal("result_io").Type().String())
	require.Equal(t, "nil", sb.L.GetGlobal("result_debug").Type().String())
}

func TestSandboxRequireFails(t *testing.T) {
	_, err := New(`require("os")`)
	require.Error(t, err)
}

func TestSandboxTensorConstructorFromNestedTable(t *testing.T) {
	sb, err := New(`
		function Postprocess(t)
			return Tensor({{-5, 20}}):clamp(0, 10)
		end
	`)
	require.NoError(t, err)
	defer sb.Close()

	out, err := sb.Call("Postprocess", tensor.New([]int{1}, []float32{0}))
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, out.Shape())
	require.Equal(t, []float32{0, 10}, out.Data())
}

func TestSandboxChainedMethodsPreserveMetatable(t *testing.T) {
	sb, err := New(`
		function Postprocess(t)
			return t:softmax(2):clamp(0, 1)
		end
	`)
	require.NoError(t, err)
	defer sb.Close()

	in := tensor.New([]int{1, 3}, []float32{1, 2, 3})
	out, err := sb.Call("Postprocess", in)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, out.Shape())
	var sum float32
	for _, v := range out.Data() {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-5)
}

func TestSandboxCallWithMaskPassesBothArguments(t *testing.T) {
	sb, err := New(`
		function Postprocess(t, mask)
			return t:mean_pool(mask)
		end
	`)
	require.NoError(t, err)
	defer sb.Close()

	values := tensor.New([]int{1, 2, 3}, []float32{1, 2, 3, 100, 100, 100})
	mask := tensor.New([]int{1, 2}, []float32{1, 0})
	out, err := sb.CallWithMask("Postprocess", values, mask)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, out.Data())
}

func TestSandboxMissingFunctionErrors(t *testing.T) {
	sb, err := New(``)
	require.NoError(t, err)
	defer sb.Close()

	_, err = sb.Call("Postprocess", tensor.New([]int{1}, []float32{1}))
	require.Error(t, err)
}

func TestSandboxEmptyScriptHasNoPostprocess(t *testing.T) {
	sb, err := New(``)
	require.NoError(t, err)
	defer sb.Close()
	require.False(t, sb.HasFunction("Postprocess"))
}

func TestSandboxDetectsPostprocessFunction(t *testing.T) {
	sb, err := New(`function Postprocess(t) return t end`)
	require.NoError(t, err)
	defer sb.Close()
	require.True(t, sb.HasFunction("Postprocess"))
}
