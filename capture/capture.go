// Package capture collects the streamed output of a delegate call into memory.
//
// The delegate writes to an explicit sink instead of the process standard
// output, so concurrent or repeated calls never share capture state.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var ErrClosed = errors.New("capture: recorder is closed")

// Delegate produces a streamed answer for query by writing chunks to out.
type Delegate interface {
	Respond(ctx context.Context, query string, out io.Writer) error
}

// DelegateFunc adapts a plain function to Delegate.
type DelegateFunc func(ctx context.Context, query string, out io.Writer) error

func (f DelegateFunc) Respond(ctx context.Context, query string, out io.Writer) error {
	return f(ctx, query, out)
}

// Recorder is an in-memory sink that only accepts writes while a delegate
// call is running.
type Recorder struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	open bool
}

func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return 0, ErrClosed
	}
	return r.buf.Write(p)
}

// Capturing reports whether the recorder is currently accepting output.
func (r *Recorder) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// String returns everything captured so far.
func (r *Recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

// Run opens the recorder, calls the delegate and closes the recorder again on
// every path, including a panic inside the delegate. The captured output is
// returned even when the delegate fails.
func (r *Recorder) Run(ctx context.Context, d Delegate, query string) (out string, err error) {
	r.mu.Lock()
	r.buf.Reset()
	r.open = true
	r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("delegate panicked: %v", p)
		}
		r.mu.Lock()
		r.open = false
		out = r.buf.String()
		r.mu.Unlock()
	}()

	return "", d.Respond(ctx, query, r)
}

// Run captures the output of a single delegate call.
func Run(ctx context.Context, d Delegate, query string) (string, error) {
	return new(Recorder).Run(ctx, d, query)
}

var _ io.Writer = (*Recorder)(nil)
