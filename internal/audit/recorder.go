package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kyc-backend/internal/shared/metrics"
)

// AsyncRecorder stamps events and hands them to a Sink. With a positive
// buffer, writes happen on a background goroutine and a full buffer drops
// the event; with buffer <= 0 writes are synchronous.
type AsyncRecorder struct {
	sink      Sink
	logger    *slog.Logger
	requestID func(context.Context) string
	now       func() time.Time
	timeout   time.Duration

	ch     chan Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// Option configures an AsyncRecorder.
type Option func(*AsyncRecorder)

// WithRequestID extracts the request id from the caller's context.
func WithRequestID(fn func(context.Context) string) Option {
	return func(r *AsyncRecorder) { r.requestID = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *AsyncRecorder) { r.now = now }
}

// WithLogger sets the logger used for sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *AsyncRecorder) { r.logger = l }
}

func NewRecorder(sink Sink, buffer int, opts ...Option) *AsyncRecorder {
	r := &AsyncRecorder{
		sink:    sink,
		logger:  slog.Default(),
		now:     time.Now,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if buffer > 0 {
		r.ch = make(chan Event, buffer)
		r.wg.Add(1)
		go r.loop()
	}
	return r
}

func (r *AsyncRecorder) Record(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now().UTC()
	}
	if e.RequestID == "" && r.requestID != nil && ctx != nil {
		e.RequestID = r.requestID(ctx)
	}

	if r.ch == nil {
		r.write(context.WithoutCancel(ctx), e)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.fail(e, "closed", nil)
		return
	}
	select {
	case r.ch <- e:
	default:
		r.fail(e, "buffer_full", nil)
	}
}

// Close stops accepting events and drains the buffer, or gives up when ctx ends.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	if r.ch == nil {
		return nil
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *AsyncRecorder) loop() {
	defer r.wg.Done()
	for e := range r.ch {
		r.write(context.Background(), e)
	}
}

func (r *AsyncRecorder) write(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.sink.Write(ctx, e); err != nil {
		r.fail(e, "sink_error", err)
	}
}

func (r *AsyncRecorder) fail(e Event, reason string, err error) {
	metrics.AuditFailuresTotal.WithLabelValues(reason).Inc()
	r.logger.Error("audit event dropped",
		"reason", reason,
		"action", e.Action,
		"target_type", e.TargetType,
		"target_id", e.TargetID,
		"error", err,
	)
}
