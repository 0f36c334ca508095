package inference

import (
	"errors"
	"fmt"

	"github.com/encoderfile/encoderfile/internal/script"
	"github.com/encoderfile/encoderfile/internal/transform"
)

// InputError reports an empty batch or an empty string within a batch.
// Transports surface this as 422 / invalid-argument.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return fmt.Sprintf("input error: %s", e.Reason) }

// InternalError reports a tensor shape mismatch, model I/O failure, or any
// other invariant break that is never the caller's fault. Transports
// surface this as 500 / internal.
type InternalError struct {
	Reason string
	Cause  error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Reason)
}

func (e *InternalError) Unwrap() error { return e.Cause }

// ConfigError reports contradictory startup configuration. Transports
// surface this as 500 / internal; the CLI surfaces it as a non-zero exit.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config error: %s", e.Reason) }

// LuaError reports a script runtime failure, or a Postprocess that returned
// the wrong type. The message must reach the caller verbatim — it is the
// primary diagnostic surface for transform authors.
type LuaError struct {
	Message string
}

func (e *LuaError) Error() string { return fmt.Sprintf("script error: %s", e.Message) }

// wrapPostprocessError classifies a transform failure: a script.Error
// (runtime failure, or a non-tensor return already caught in the sandbox)
// becomes LuaError; a shape contract violation becomes InternalError.
func wrapPostprocessError(err error) error {
	if err == nil {
		return nil
	}
	var scriptErr *script.Error
	if errors.As(err, &scriptErr) {
		return &LuaError{Message: scriptErr.Message}
	}
	var shapeErr *transform.ShapeError
	if errors.As(err, &shapeErr) {
		return &InternalError{Reason: "postprocessing produced an invalid shape", Cause: shapeErr}
	}
	return &InternalError{Reason: "postprocessing failed", Cause: err}
}
