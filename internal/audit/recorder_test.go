package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyc-backend/internal/shared/metrics"
)

type failingSink struct{}

func (failingSink) Write(context.Context, Event) error { return errors.New("sink down") }

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Write(_ context.Context, e Event) error {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
	return nil
}

type ctxKey struct{}

func TestSyncRecorderStampsEvents(t *testing.T) {
	sink := NewMemorySink()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRecorder(sink, 0,
		WithClock(func() time.Time { return fixed }),
		WithRequestID(func(ctx context.Context) string { v, _ := ctx.Value(ctxKey{}).(string); return v }),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	rec.Record(ctx, Event{ActorID: "owner-1", Action: ActionDocumentUploaded, TargetType: "document", TargetID: "doc-1"})

	events := sink.Events()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, fixed, events[0].OccurredAt)
	assert.Equal(t, "req-1", events[0].RequestID)
}

func TestRecordSurvivesCancelledContext(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder(sink, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, Event{Action: ActionDisclosureRevoked})

	assert.Equal(t, []string{ActionDisclosureRevoked}, sink.Actions())
}

func TestSinkFailureIsSwallowed(t *testing.T) {
	before := testutil.ToFloat64(metrics.AuditFailuresTotal.WithLabelValues("sink_error"))
	rec := NewRecorder(failingSink{}, 0)

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), Event{Action: ActionAccessDenied})
	})
	after := testutil.ToFloat64(metrics.AuditFailuresTotal.WithLabelValues("sink_error"))
	assert.Equal(t, before+1, after)
}

func TestAsyncRecorderDrainsOnClose(t *testing.T) {
	sink := NewMemorySink()
	rec := NewRecorder(sink, 16)

	for i := 0; i < 10; i++ {
		rec.Record(context.Background(), Event{Action: ActionAccessAllowed})
	}
	require.NoError(t, rec.Close(context.Background()))
	assert.Len(t, sink.Events(), 10)

	rec.Record(context.Background(), Event{Action: ActionAccessAllowed})
	assert.Len(t, sink.Events(), 10)
}

func TestAsyncRecorderDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	rec := NewRecorder(sink, 1)
	before := testutil.ToFloat64(metrics.AuditFailuresTotal.WithLabelValues("buffer_full"))

	// One event is held by the writer, one sits in the buffer, the rest are dropped.
	for i := 0; i < 5; i++ {
		rec.Record(context.Background(), Event{Action: ActionAccessAllowed})
	}
	close(sink.release)
	require.NoError(t, rec.Close(context.Background()))

	dropped := testutil.ToFloat64(metrics.AuditFailuresTotal.WithLabelValues("buffer_full")) - before
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 5, len(sink.got)+int(dropped))
	assert.GreaterOrEqual(t, dropped, float64(3))
}

func TestMemorySinkListNewestFirst(t *testing.T) {
	sink := NewMemorySink()
	for _, a := range []string{"a", "b", "c"} {
		require.NoError(t, sink.Write(context.Background(), Event{Action: a}))
	}

	got, err := sink.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Action)
	assert.Equal(t, "b", got[1].Action)
}
