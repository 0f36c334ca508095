package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/encoderfile/encoderfile/internal/tensor"
)

const tensorTypeName = "encoderfile.Tensor"

// registerTensorType installs the Tensor userdata metatable (method table,
// arithmetic metamethods, tostring) into L's registry. Every Tensor value
// that crosses into Lua — whether built by the host before a Postprocess
// call or returned by a chained method — shares this one metatable, which is
// what lets a script do `t:softmax(2):clamp(0,1)`.
func registerTensorType(L *lua.LState) {
	mt := L.NewTypeMetatable(tensorTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), tensorMethods))
	L.SetField(mt, "__add", L.NewFunction(tensorArith(func(a, b *tensor.Tensor) (*tensor.Tensor, error) { return a.Add(b) }, (*tensor.Tensor).AddScalar)))
	L.SetField(mt, "__sub", L.NewFunction(tensorArith(func(a, b *tensor.Tensor) (*tensor.Tensor, error) { return a.Sub(b) }, (*tensor.Tensor).SubScalar)))
	L.SetField(mt, "__mul", L.NewFunction(tensorArith(func(a, b *tensor.Tensor) (*tensor.Tensor, error) { return a.Mul(b) }, (*tensor.Tensor).MulScalar)))
	L.SetField(mt, "__div", L.NewFunction(tensorArith(func(a, b *tensor.Tensor) (*tensor.Tensor, error) { return a.Div(b) }, (*tensor.Tensor).DivScalar)))
	L.SetField(mt, "__tostring", L.NewFunction(tensorToString))
	L.SetField(mt, "__eq", L.NewFunction(tensorEq))
}

func newTensorUserData(L *lua.LState, t *tensor.Tensor) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = t
	ud.Metatable = L.GetTypeMetatable(tensorTypeName)
	return ud
}

func checkTensorValue(v lua.LValue) (*tensor.Tensor, bool) {
	ud, ok := v.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	t, ok := ud.Value.(*tensor.Tensor)
	return t, ok
}

// checkTensor fetches the Tensor receiver at Lua stack position idx,
// panicking a Lua-protected error (via L.ArgError) if it isn't one.
func checkTensor(L *lua.LState, idx int) *tensor.Tensor {
	ud := L.CheckUserData(idx)
	t, ok := ud.Value.(*tensor.Tensor)
	if !ok {
		L.ArgError(idx, "Tensor expected")
	}
	return t
}

// luaNewTensor implements the global Tensor(...) constructor: it accepts
// either a nested numeric table (shape is inferred from nesting depth and
// row lengths, failing on ragged rows) or an existing Tensor userdata, which
// it clones — never aliases — so script-level value semantics hold even
// though the host's *tensor.Tensor has reference semantics underneath.
func luaNewTensor(L *lua.LState) int {
	arg := L.CheckAny(1)
	if t, ok := checkTensorValue(arg); ok {
		L.Push(newTensorUserData(L, t.Clone()))
		return 1
	}
	tbl, ok := arg.(*lua.LTable)
	if !ok {
		L.ArgError(1, "Tensor() expects a table or an existing Tensor")
		return 0
	}
	shape, data, err := parseTensorTable(tbl)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(newTensorUserData(L, tensor.New(shape, data)))
	return 1
}

func parseTensorTable(v lua.LValue) ([]int, []float32, error) {
	if n, ok := v.(lua.LNumber); ok {
		return nil, []float32{float32(n)}, nil
	}
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, nil, fmt.Errorf("tensor: expected number or table, got %s", v.Type().String())
	}
	n := tbl.Len()
	var shape []int
	var data []float32
	for i := 1; i <= n; i++ {
		subShape, subData, err := parseTensorTable(tbl.RawGetInt(i))
		if err != nil {
			return nil, nil, err
		}
		if i == 1 {
			shape = subShape
		} else if !intSliceEqual(shape, subShape) {
			return nil, nil, fmt.Errorf("tensor: ragged nested table at row %d", i)
		}
		data = append(data, subData...)
	}
	return append([]int{n}, shape...), data, nil
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toNestedTable(L *lua.LState, t *tensor.Tensor) *lua.LTable {
	return buildNested(L, t.Shape(), t.Data())
}

func buildNested(L *lua.LState, shape []int, data []float32) *lua.LTable {
	tbl := L.NewTable()
	if len(shape) == 0 {
		return tbl
	}
	if len(shape) == 1 {
		for i, v := range data {
			tbl.RawSetInt(i+1, lua.LNumber(v))
		}
		return tbl
	}
	stride := len(data) / shape[0]
	for i := 0; i < shape[0]; i++ {
		tbl.RawSetInt(i+1, buildNested(L, shape[1:], data[i*stride:(i+1)*stride]))
	}
	return tbl
}

func tensorArith(tt func(a, b *tensor.Tensor) (*tensor.Tensor, error), ts func(a *tensor.Tensor, s float32) *tensor.Tensor) lua.LGFunction {
	return func(L *lua.LState) int {
		av := L.Get(1)
		bv := L.Get(2)
		at, aIsTensor := checkTensorValue(av)
		bt, bIsTensor := checkTensorValue(bv)
		switch {
		case aIsTensor && bIsTensor:
			out, err := tt(at, bt)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(newTensorUserData(L, out))
			return 1
		case aIsTensor:
			n, ok := bv.(lua.LNumber)
			if !ok {
				L.RaiseError("tensor arithmetic: expected number, got %s", bv.Type().String())
				return 0
			}
			L.Push(newTensorUserData(L, ts(at, float32(n))))
			return 1
		case bIsTensor:
			n, ok := av.(lua.LNumber)
			if !ok {
				L.RaiseError("tensor arithmetic: expected number, got %s", av.Type().String())
				return 0
			}
			L.Push(newTensorUserData(L, ts(bt, float32(n))))
			return 1
		default:
			L.RaiseError("tensor arithmetic: no Tensor operand")
			return 0
		}
	}
}

func tensorToString(L *lua.LState) int {
	t := checkTensor(L, 1)
	L.Push(lua.LString(fmt.Sprintf("Tensor(shape=%v)", t.Shape())))
	return 1
}

func tensorEq(L *lua.LState) int {
	a := checkTensor(L, 1)
	b := checkTensor(L, 2)
	L.Push(lua.LBool(a.Equal(b)))
	return 1
}

func optFloat(L *lua.LState, idx int) *float32 {
	v := L.Get(idx)
	if v == lua.LNil {
		return nil
	}
	n, ok := v.(lua.LNumber)
	if !ok {
		L.ArgError(idx, "expected number or nil")
		return nil
	}
	f := float32(n)
	return &f
}

// tensorMethods is the Tensor:method(...) table installed as __index. Each
// wraps a package tensor operation, converting Go errors into Lua-raised
// errors so a script's pcall (or the sandbox's protected call) sees them.
var tensorMethods = map[string]lua.LGFunction{
	"shape": func(L *lua.LState) int {
		t := checkTensor(L, 1)
		tbl := L.NewTable()
		for i, d := range t.Shape() {
			tbl.RawSetInt(i+1, lua.LNumber(d))
		}
		L.Push(tbl)
		return 1
	},
	"ndim": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkTensor(L, 1).Ndim()))
		return 1
	},
	"len": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkTensor(L, 1).Len()))
		return 1
	},
	"to_table": func(L *lua.LState) int {
		L.Push(toNestedTable(L, checkTensor(L, 1)))
		return 1
	},
	"sum": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkTensor(L, 1).Sum()))
		return 1
	},
	"mean": func(L *lua.LState) int {
		m, ok := checkTensor(L, 1).Mean()
		if !ok {
			L.RaiseError("mean: empty tensor")
			return 0
		}
		L.Push(lua.LNumber(m))
		return 1
	},
	"std": func(L *lua.LState) int {
		ddof := float32(0)
		if L.GetTop() >= 2 {
			ddof = float32(L.CheckNumber(2))
		}
		L.Push(lua.LNumber(checkTensor(L, 1).Std(ddof)))
		return 1
	},
	"min": func(L *lua.LState) int {
		v, err := checkTensor(L, 1).Min()
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(lua.LNumber(v))
		return 1
	},
	"max": func(L *lua.LState) int {
		v, err := checkTensor(L, 1).Max()
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(lua.LNumber(v))
		return 1
	},
	"exp": func(L *lua.LState) int {
		L.Push(newTensorUserData(L, checkTensor(L, 1).Exp()))
		return 1
	},
	"clamp": func(L *lua.LState) int {
		t := checkTensor(L, 1)
		lo := optFloat(L, 2)
		hi := optFloat(L, 3)
		L.Push(newTensorUserData(L, t.Clamp(lo, hi)))
		return 1
	},
	"transpose": func(L *lua.LState) int {
		L.Push(newTensorUserData(L, checkTensor(L, 1).Transpose()))
		return 1
	},
	"softmax": func(L *lua.LState) int {
		t := checkTensor(L, 1)
		axis := int(L.CheckNumber(2))
		out, err := t.Softmax(axis)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(newTensorUserData(L, out))
		return 1
	},
	"layer_norm": func(L *lua.LState) int {
		t := checkTensor(L, 1)
		axis := int(L.CheckNumber(2))
		eps := float32(1e-5)
		if L.GetTop() >= 3 {
			eps = float32(L.CheckNumber(3))
		}
		out, err := t.LayerNorm(axis, eps)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(newTensorUserData(L, out))
		return 1
	},
	"lp_normalize": func(L *lua.LState) int {
		t := checkTensor(L, 1)
		p := float32(L.CheckNumber(2))
		axis := int(L.CheckNumber(3))
		out, err := t.LPNormalize(p, axis)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(newTensorUserData(L, out))
		return 1
	},
	"mean_pool": func(L *lua.LState) int {
		t := checkTensor(L, 1)
		mask := checkTensor(L, 2)
		out, err := t.MeanPool(mask)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(newTensorUserData(L, out))
		return 1
	},
	"sum_axis": func(L *lua.LState) int {
		t := checkTensor(L, 1)
		axis := int(L.CheckNumber(2))
		out, err := t.SumAxis(axis)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(newTensorUserData(L, out))
		return 1
	},
	"truncate_axis": func(L *lua.LState) int {
		t := checkTensor(L, 1)
		axis := int(L.CheckNumber(2))
		length := int(L.CheckNumber(3))
		out, err := t.TruncateAxis(axis, length)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(newTensorUserData(L, out))
		return 1
	},
	"map_axis": func(L *lua.LState) int {
		t := checkTensor(L, 1)
		axis := int(L.CheckNumber(2))
		fn := L.CheckFunction(3)
		out, err := t.MapAxis(axis, func(slice *tensor.Tensor) (*tensor.Tensor, error) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, newTensorUserData(L, slice)); err != nil {
				return nil, err
			}
			ret := L.Get(-1)
			L.Pop(1)
			rt, ok := checkTensorValue(ret)
			if !ok {
				return nil, fmt.Errorf("map_axis: callback must return a Tensor")
			}
			return rt, nil
		})
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(newTensorUserData(L, out))
		return 1
	},
	"fold_axis": func(L *lua.LState) int {
		t := checkTensor(L, 1)
		axis := int(L.CheckNumber(2))
		init := float32(L.CheckNumber(3))
		fn := L.CheckFunction(4)
		out, err := t.FoldAxis(axis, init, func(acc float32, slice *tensor.Tensor) (float32, error) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LNumber(acc), newTensorUserData(L, slice)); err != nil {
				return 0, err
			}
			ret := L.Get(-1)
			L.Pop(1)
			n, ok := ret.(lua.LNumber)
			if !ok {
				return 0, fmt.Errorf("fold_axis: callback must return a number")
			}
			return float32(n), nil
		})
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(newTensorUserData(L, out))
		return 1
	},
}
