package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/arloliu/go-saxs/message"
)

// ErrHandlerPanic wraps a value recovered from a panicking OnSample.
var ErrHandlerPanic = errors.New("sample handler panicked")

// Handler receives the pairs of a stream pushed by Run.
type Handler interface {
	// OnSample is invoked for every (Sample, FlowMetadata) pair, in stream order.
	// A returned error is passed to OnError and the stream continues.
	OnSample(ctx context.Context, sample *message.Sample, meta *message.FlowMetadata) error
	// OnError receives handler failures and the error that ended the stream.
	OnError(err error)
	// OnComplete is invoked exactly once when the stream ends normally.
	OnComplete()
}

// Stopper is implemented by handlers that decide by themselves when they have seen
// enough. Done is checked after every dispatched pair.
type Stopper interface {
	Done() bool
}

type runOptions struct {
	limit int
}

// RunOption configures Run.
type RunOption func(*runOptions)

// WithSampleLimit stops the run after n pairs have been dispatched. Zero means no limit.
func WithSampleLimit(n int) RunOption {
	return func(o *runOptions) { o.limit = max(n, 0) }
}

type runStateKey struct{}

type runState struct {
	stop atomic.Bool
}

// Stop requests the Run owning ctx to end after the current pair. It is meant to be
// called from OnSample with the context it received, and reports whether ctx belongs
// to a Run. An early stop counts as normal completion.
func Stop(ctx context.Context) bool {
	rs, ok := ctx.Value(runStateKey{}).(*runState)
	if !ok {
		return false
	}
	rs.stop.Store(true)

	return true
}

// Run pushes every pair of the stream to h, starting the consumer first when needed.
//
// Errors returned by OnSample, and panics inside it, are passed to OnError and the run
// continues. The run ends normally at the end of the stream, when Stop is called with
// the handler's context, when a Stopper handler reports Done, or when the sample limit
// is reached; OnComplete is then invoked once and Run returns nil. A stream error, a
// start failure or the cancellation of ctx is passed to OnError and returned. The
// producer is always stopped before Run returns.
func (c *Consumer) Run(ctx context.Context, h Handler, opts ...RunOption) error {
	o := &runOptions{}
	for _, opt := range opts {
		opt(o)
	}

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()

	if !started {
		if err := c.Start(ctx); err != nil {
			h.OnError(err)
			return err
		}
	}
	defer func() { _ = c.Close() }()

	rs := &runState{}
	runCtx := context.WithValue(ctx, runStateKey{}, rs)
	stopper, _ := h.(Stopper)

	dispatched := 0
	err := c.iterate(ctx, func(msg *message.Message) bool {
		s, f, ok := samplePair(msg)
		if !ok {
			return true
		}

		if err := dispatch(runCtx, h, s, f); err != nil {
			c.logger.Debug("sample handler failed", "method", "Run", "sample_id", s.ID(), "error", err)
			h.OnError(err)
		}
		dispatched++

		switch {
		case rs.stop.Load():
			c.logger.Debug("run stopped by handler", "method", "Run", "dispatched", dispatched)
			return false
		case stopper != nil && stopper.Done():
			c.logger.Debug("handler done", "method", "Run", "dispatched", dispatched)
			return false
		case o.limit > 0 && dispatched >= o.limit:
			c.logger.Debug("sample limit reached", "method", "Run", "limit", o.limit)
			return false
		}

		return true
	})

	if err != nil {
		h.OnError(err)
		return err
	}

	h.OnComplete()

	return nil
}

func dispatch(ctx context.Context, h Handler, s *message.Sample, f *message.FlowMetadata) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	return h.OnSample(ctx, s, f)
}
