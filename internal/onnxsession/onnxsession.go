// Package onnxsession wraps github.com/yalue/onnxruntime_go into a locked
// session: one ONNX Runtime session per process, guarded by an exclusive
// lock because ORT sessions are not safe for concurrent Run calls from
// multiple goroutines with independent input/output buffers.
package onnxsession

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Session owns one DynamicAdvancedSession built from an in-memory ONNX
// model, plus the mutex the inference pipeline must hold across the entire
// run: callers must acquire the session's exclusive lock for its duration.
type Session struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	inputs  map[string]bool
}

// Options configures session construction.
type Options struct {
	// SharedLibraryPath points at onnxruntime's shared library; empty uses
	// the platform default search path.
	SharedLibraryPath string
	// NumThreads caps intra-op parallelism; 0 picks min(4, NumCPU).
	NumThreads int
}

// New initializes the ORT environment (a process-wide no-op past the first
// call) and opens a session over modelBytes with the given input/output
// tensor names.
func New(modelBytes []byte, inputNames, outputNames []string, opts Options) (*Session, error) {
	if opts.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(opts.SharedLibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("onnxsession: initialize environment: %w", err)
	}

	numThreads := opts.NumThreads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
		if numThreads > 4 {
			numThreads = 4
		}
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnxsession: session options: %w", err)
	}
	defer sessOpts.Destroy()

	if err := sessOpts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, fmt.Errorf("onnxsession: set intra-op threads: %w", err)
	}
	if err := sessOpts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("onnxsession: set inter-op threads: %w", err)
	}

	sess, err := ort.NewDynamicAdvancedSessionWithONNXData(modelBytes, inputNames, outputNames, sessOpts)
	if err != nil {
		return nil, fmt.Errorf("onnxsession: create session: %w", err)
	}

	declared := make(map[string]bool, len(inputNames))
	for _, n := range inputNames {
		declared[n] = true
	}

	return &Session{session: sess, inputs: declared}, nil
}

// HasInput reports whether the session declares an input tensor with the
// given name — used to decide whether token_type_ids should be passed.
func (s *Session) HasInput(name string) bool {
	return s.inputs[name]
}

// Close destroys the underlying ORT session.
func (s *Session) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
}

// Run acquires the session's exclusive lock, executes one forward pass over
// inputs, and returns the raw output values. Callers own destroying the
// returned values.
func (s *Session) Run(inputs, outputs []ort.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.Run(inputs, outputs); err != nil {
		return fmt.Errorf("onnxsession: run: %w", err)
	}
	return nil
}
