// Package script runs a user-supplied postprocessing script inside a
// restricted gopher-lua runtime: only the base functions and the table,
// string, and math standard libraries are loaded, a single global Tensor()
// constructor is exposed, and
// the os/io/debug/package libraries are never registered — so their globals
// evaluate to nil and require() fails outright.
package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/encoderfile/encoderfile/internal/tensor"
)

// Sandbox owns one gopher-lua state for the lifetime of the process: created
// once at startup, owned by the transform engine, discarded at shutdown.
// gopher-lua state is not intrinsically thread-safe, so callers that need
// concurrent Postprocess invocations must serialize access — see
// internal/transform, which holds a mutex around Sandbox.Call.
type Sandbox struct {
	L *lua.LState
}

// New loads src into a freshly restricted Lua state. An empty src is valid
// and simply leaves no globals defined beyond the builtins.
func New(src string) (*Sandbox, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range []lua.LGFunction{
		lua.OpenBase,
		lua.OpenTable,
		lua.OpenString,
		lua.OpenMath,
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(open), NRet: 0, Protect: true}); err != nil {
			L.Close()
			return nil, fmt.Errorf("script: open stdlib: %w", err)
		}
	}

	registerTensorType(L)
	L.SetGlobal("Tensor", L.NewFunction(luaNewTensor))

	if src != "" {
		if err := L.DoString(src); err != nil {
			L.Close()
			return nil, fmt.Errorf("script: load: %w", err)
		}
	}

	return &Sandbox{L: L}, nil
}

// Close releases the Lua state.
func (s *Sandbox) Close() {
	s.L.Close()
}

// HasFunction reports whether the script defined a global function named
// name (e.g. "Postprocess").
func (s *Sandbox) HasFunction(name string) bool {
	v := s.L.GetGlobal(name)
	_, ok := v.(*lua.LFunction)
	return ok
}

// Call invokes the global function named name with a single Tensor argument
// and expects exactly one Tensor return value. It is the shape every
// Postprocess signature uses (sentence-embedding additionally passes a
// mask — see CallWithMask).
func (s *Sandbox) Call(name string, arg *tensor.Tensor) (*tensor.Tensor, error) {
	return s.call(name, arg, nil)
}

// CallWithMask invokes name with two Tensor arguments (value, mask).
func (s *Sandbox) CallWithMask(name string, arg, mask *tensor.Tensor) (*tensor.Tensor, error) {
	return s.call(name, arg, mask)
}

func (s *Sandbox) call(name string, arg, mask *tensor.Tensor) (*tensor.Tensor, error) {
	fn := s.L.GetGlobal(name)
	lfn, ok := fn.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("script: global %q is not a function", name)
	}

	args := []lua.LValue{newTensorUserData(s.L, arg)}
	if mask != nil {
		args = append(args, newTensorUserData(s.L, mask))
	}

	if err := s.L.CallByParam(lua.P{Fn: lfn, NRet: 1, Protect: true}, args...); err != nil {
		return nil, &Error{Message: err.Error()}
	}

	ret := s.L.Get(-1)
	s.L.Pop(1)

	t, ok := checkTensorValue(ret)
	if !ok {
		return nil, &Error{Message: fmt.Sprintf("%s must return a Tensor, got %s", name, ret.Type().String())}
	}
	return t, nil
}

// Error wraps a script runtime failure. Its message is the sandbox's own
// diagnostic and must reach the caller verbatim: never replace it with a
// generic "internal error".
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }
