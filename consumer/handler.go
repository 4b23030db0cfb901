package consumer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/arloliu/go-saxs/message"
)

// HandlerFunc adapts a function to a Handler that ignores errors and completion.
type HandlerFunc func(ctx context.Context, sample *message.Sample, meta *message.FlowMetadata) error

func (f HandlerFunc) OnSample(ctx context.Context, s *message.Sample, m *message.FlowMetadata) error {
	return f(ctx, s, m)
}

func (HandlerFunc) OnError(error) {}

func (HandlerFunc) OnComplete() {}

// CallbackHandler is a Handler built from optional callbacks.
type CallbackHandler struct {
	SampleFunc   HandlerFunc
	ErrorFunc    func(err error)
	CompleteFunc func()
}

func (h *CallbackHandler) OnSample(ctx context.Context, s *message.Sample, m *message.FlowMetadata) error {
	if h.SampleFunc == nil {
		return nil
	}

	return h.SampleFunc(ctx, s, m)
}

func (h *CallbackHandler) OnError(err error) {
	if h.ErrorFunc != nil {
		h.ErrorFunc(err)
	}
}

func (h *CallbackHandler) OnComplete() {
	if h.CompleteFunc != nil {
		h.CompleteFunc()
	}
}

// Pair is one (Sample, FlowMetadata) pair of a stream.
type Pair struct {
	Sample       *message.Sample
	FlowMetadata *message.FlowMetadata
}

// CollectHandler keeps the pairs it receives, up to a maximum, and the errors reported.
type CollectHandler struct {
	mu        sync.Mutex
	max       int
	pairs     []Pair
	errs      []error
	completed bool
}

// NewCollectHandler returns a handler collecting at most limit pairs; zero means no limit.
// Reaching the limit ends the run.
func NewCollectHandler(limit int) *CollectHandler {
	return &CollectHandler{max: limit}
}

func (h *CollectHandler) OnSample(_ context.Context, s *message.Sample, m *message.FlowMetadata) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pairs = append(h.pairs, Pair{Sample: s, FlowMetadata: m})

	return nil
}

func (h *CollectHandler) OnError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.errs = append(h.errs, err)
}

func (h *CollectHandler) OnComplete() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.completed = true
}

// Done reports whether the maximum number of pairs was collected.
func (h *CollectHandler) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.max > 0 && len(h.pairs) >= h.max
}

// Pairs returns the collected pairs.
func (h *CollectHandler) Pairs() []Pair {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]Pair(nil), h.pairs...)
}

// Errors returns the errors reported to the handler.
func (h *CollectHandler) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]error(nil), h.errs...)
}

// Completed reports whether OnComplete was invoked.
func (h *CollectHandler) Completed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.completed
}

// PrintHandler writes one line per pair to a writer, up to a maximum, followed by a
// summary line on completion.
type PrintHandler struct {
	w      io.Writer
	max    int
	count  int
	errors int
}

// NewPrintHandler returns a handler printing at most limit pairs to w; zero means no limit.
func NewPrintHandler(w io.Writer, limit int) *PrintHandler {
	return &PrintHandler{w: w, max: limit}
}

func (h *PrintHandler) OnSample(_ context.Context, s *message.Sample, m *message.FlowMetadata) error {
	h.count++
	_, err := fmt.Fprintf(h.w, "sample %d: id=%s points=%d uncertainty=%t processed_peaks=%d unprocessed_peaks=%d current=%d\n",
		h.count, s.ID(), s.Len(), s.HasUncertainty(),
		len(m.ProcessedPeaks()), len(m.UnprocessedPeaks()), len(m.Current()))

	return err
}

func (h *PrintHandler) OnError(err error) {
	h.errors++
	fmt.Fprintf(h.w, "error: %v\n", err)
}

func (h *PrintHandler) OnComplete() {
	fmt.Fprintf(h.w, "done: %d samples, %d errors\n", h.count, h.errors)
}

// Done reports whether the maximum number of pairs was printed.
func (h *PrintHandler) Done() bool {
	return h.max > 0 && h.count >= h.max
}

// Count returns the number of pairs printed.
func (h *PrintHandler) Count() int { return h.count }
