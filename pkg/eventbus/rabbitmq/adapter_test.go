package rabbitmq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nimburion/movies/pkg/eventbus"
	"github.com/nimburion/movies/pkg/testutil"
)

func TestNewAdapter_Validation(t *testing.T) {
	if _, err := NewAdapter(Config{}, &testutil.MockLogger{}); err == nil {
		t.Fatal("expected validation error for empty URL")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{URL: "amqp://localhost"}.withDefaults()
	if cfg.Exchange != "movies" || cfg.ExchangeType != "topic" {
		t.Errorf("unexpected exchange defaults: %+v", cfg)
	}
	if cfg.QueueName != "movies.ingest" || cfg.RoutingKey != "movies.create" {
		t.Errorf("unexpected queue defaults: %+v", cfg)
	}
	if cfg.OperationTimeout == 0 || cfg.RequeueDelay == 0 {
		t.Error("expected operation timeout and requeue delay defaults")
	}
}

func TestClosedAdapterOperations(t *testing.T) {
	a := &Adapter{closed: true, subs: map[string]*subscription{}}
	msg := &eventbus.Message{ID: "1", Value: []byte("v")}

	if err := a.Publish(context.Background(), "topic", msg); err == nil {
		t.Fatal("publish must fail when closed")
	}
	if err := a.Subscribe(context.Background(), "topic", func(context.Context, *eventbus.Message) error { return nil }); err == nil {
		t.Fatal("subscribe must fail when closed")
	}
	if err := a.HealthCheck(context.Background()); err == nil {
		t.Fatal("healthcheck must fail when closed")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close on closed adapter: %v", err)
	}
}

func TestUnsubscribe_NotSubscribed(t *testing.T) {
	a := &Adapter{subs: map[string]*subscription{}, config: Config{}.withDefaults()}
	if err := a.Unsubscribe(""); err == nil {
		t.Fatal("expected error for missing subscription")
	}
}

func TestResolveRoutingKey(t *testing.T) {
	a := &Adapter{config: Config{}.withDefaults()}
	if got := a.resolveRoutingKey(""); got != "movies.create" {
		t.Errorf("got %q", got)
	}
	if got := a.resolveRoutingKey("movies.import"); got != "movies.import" {
		t.Errorf("got %q", got)
	}
}

func TestProperty_HeadersRoundTrip(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 20
	properties := gopter.NewProperties(params)

	properties.Property("string headers survive amqp tables", prop.ForAll(
		func(k, v string) bool {
			if k == "" {
				k = "k"
			}
			out := fromAMQPHeaders(toAMQPHeaders(map[string]string{k: v}))
			return out[k] == v
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// recordingAcknowledger records how each delivery tag was settled.
type recordingAcknowledger struct {
	settled map[uint64]string
}

func (r *recordingAcknowledger) Ack(tag uint64, _ bool) error {
	r.settled[tag] = "ack"
	return nil
}

func (r *recordingAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	if requeue {
		r.settled[tag] = "requeue"
	} else {
		r.settled[tag] = "reject"
	}
	return nil
}

func (r *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

func TestConsumeLoop_SettlesByHandlerOutcome(t *testing.T) {
	// Given deliveries whose handler succeeds, fails temporarily and fails permanently
	ack := &recordingAcknowledger{settled: map[uint64]string{}}
	outcomes := map[string]error{
		"ok":        nil,
		"transient": errors.New("store unavailable"),
		"poison":    eventbus.Permanent(errors.New("bad payload")),
	}
	deliveries := make(chan amqp.Delivery, len(outcomes))
	tags := map[string]uint64{"ok": 1, "transient": 2, "poison": 3}
	for id, tag := range tags {
		deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, MessageId: id}
	}
	close(deliveries)

	a := &Adapter{logger: &testutil.MockLogger{}, config: Config{RequeueDelay: time.Millisecond}}
	handler := func(_ context.Context, msg *eventbus.Message) error { return outcomes[msg.ID] }

	// When the loop drains the channel
	a.consumeLoop(context.Background(), deliveries, handler)

	// Then only temporary failures go back on the queue
	want := map[uint64]string{1: "ack", 2: "requeue", 3: "reject"}
	for tag, outcome := range want {
		if ack.settled[tag] != outcome {
			t.Errorf("delivery %d settled as %q, want %q", tag, ack.settled[tag], outcome)
		}
	}
}
