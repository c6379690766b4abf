package movie

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimburion/movies/pkg/eventbus"
	"github.com/nimburion/movies/pkg/observability/metrics"
	"github.com/nimburion/movies/pkg/testutil"
)

// memoryBus is an in-process eventbus.Producer and eventbus.Consumer.
type memoryBus struct {
	mu           sync.Mutex
	published    []*eventbus.Message
	handlers     map[string]eventbus.MessageHandler
	unsubscribed []string
	subscribeErr error
	publishErr   error
}

func newMemoryBus() *memoryBus {
	return &memoryBus{handlers: make(map[string]eventbus.MessageHandler)}
}

func (b *memoryBus) Publish(_ context.Context, _ string, msg *eventbus.Message) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, msg)
	return nil
}

func (b *memoryBus) Subscribe(_ context.Context, topic string, handler eventbus.MessageHandler) error {
	if b.subscribeErr != nil {
		return b.subscribeErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *memoryBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
	b.unsubscribed = append(b.unsubscribed, topic)
	return nil
}

func (b *memoryBus) Close() error { return nil }

func (b *memoryBus) handler(topic string) eventbus.MessageHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handlers[topic]
}

func TestIngestor_HandleCreatesMovie(t *testing.T) {
	svc, _ := newTestService(t)
	ing := NewIngestor(svc, &testutil.MockLogger{}).WithSystem("kafka")

	err := ing.Handle(context.Background(), &eventbus.Message{
		ID:    "m-1",
		Value: []byte(`{"title":"Inception","releaseYear":"2010"}`),
	})
	require.NoError(t, err)

	movies, err := svc.Search(context.Background(), url.Values{"releaseYear": {"2010"}})
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Inception", movies[0].Title)
}

func TestIngestor_HandleRejects(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", `title=Heat`},
		{"null", `null`},
		{"array", `[{"title":"Heat"}]`},
		{"missing title", `{"genre":"Crime"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			log := &testutil.MockLogger{}
			ing := NewIngestor(svc, log)

			err := ing.Handle(context.Background(), &eventbus.Message{ID: "bad", Value: []byte(tt.value)})
			require.Error(t, err)
			assert.True(t, eventbus.IsPermanent(err), "bad payloads must not be redelivered")

			entry, ok := log.Find("movie ingestion failed")
			require.True(t, ok)
			assert.Equal(t, "warn", entry.Level)
			assert.Equal(t, "bad", entry.Fields["message_id"])
			assert.Equal(t, true, entry.Fields["permanent"])

			page, err := svc.List(context.Background(), url.Values{})
			require.NoError(t, err)
			assert.Zero(t, page.Total)
		})
	}
}

func TestIngestor_HandleWrapsValidationError(t *testing.T) {
	svc, _ := newTestService(t)
	err := NewIngestor(svc, &testutil.MockLogger{}).Handle(context.Background(),
		&eventbus.Message{Value: []byte(`{"title":"X","rating":"high"}`)})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, FieldRating)
}

func TestIngestor_HandleStoreFailureIsRetried(t *testing.T) {
	// Given a store that is unavailable
	svc, err := NewService(brokenRepository{err: errors.New("connection refused")}, DefaultQueryPolicy(), &testutil.MockLogger{})
	require.NoError(t, err)
	reg := metrics.NewRegistry("movies")
	ing := NewIngestor(svc, &testutil.MockLogger{}).WithMetrics(reg)

	// When a valid movie arrives
	err = ing.Handle(context.Background(), &eventbus.Message{Value: []byte(`{"title":"Heat"}`)})

	// Then the failure is left for redelivery
	require.Error(t, err)
	assert.False(t, eventbus.IsPermanent(err))
	expected := `
# HELP movies_ingest_messages_total Queue messages processed by the ingestion worker
# TYPE movies_ingest_messages_total counter
movies_ingest_messages_total{outcome="retried"} 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(expected), "movies_ingest_messages_total"))
}

func TestIngestor_RecordsOutcomes(t *testing.T) {
	svc, _ := newTestService(t)
	reg := metrics.NewRegistry("movies")
	ing := NewIngestor(svc, &testutil.MockLogger{}).WithMetrics(reg)

	require.NoError(t, ing.Handle(context.Background(), &eventbus.Message{Value: []byte(`{"title":"Heat"}`)}))
	require.Error(t, ing.Handle(context.Background(), &eventbus.Message{Value: []byte(`{}`)}))

	count, err := promtestutil.GatherAndCount(reg.Gatherer(), "movies_ingest_messages_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIngestor_Run(t *testing.T) {
	svc, _ := newTestService(t)
	bus := newMemoryBus()
	ing := NewIngestor(svc, &testutil.MockLogger{}).WithSystem("kafka")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx, bus, "movies") }()

	require.Eventually(t, func() bool { return bus.handler("movies") != nil }, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.handler("movies")(context.Background(), &eventbus.Message{Value: []byte(`{"title":"Heat"}`)}))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, []string{"movies"}, bus.unsubscribed)

	page, err := svc.List(context.Background(), url.Values{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestIngestor_RunSubscribeError(t *testing.T) {
	svc, _ := newTestService(t)
	bus := newMemoryBus()
	bus.subscribeErr = errors.New("broker down")

	err := NewIngestor(svc, &testutil.MockLogger{}).Run(context.Background(), bus, "movies")
	assert.ErrorIs(t, err, bus.subscribeErr)
}

func TestEnqueue(t *testing.T) {
	bus := newMemoryBus()

	payload := map[string]any{"title": "Heat", "rating": float64(8)}
	require.NoError(t, Enqueue(context.Background(), bus, "movies", payload))
	require.Len(t, bus.published, 1)

	msg := bus.published[0]
	assert.Equal(t, "Heat", msg.Key)
	assert.Equal(t, eventbus.ContentTypeJSON, msg.ContentType)
	assert.False(t, msg.Timestamp.IsZero())

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, payload, got)
}

func TestEnqueue_RejectsInvalidPayload(t *testing.T) {
	bus := newMemoryBus()

	err := Enqueue(context.Background(), bus, "movies", map[string]any{"genre": "Crime"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, bus.published)

	bus.publishErr = errors.New("queue full")
	err = Enqueue(context.Background(), bus, "movies", map[string]any{"title": "Heat"})
	assert.ErrorIs(t, err, bus.publishErr)
}
