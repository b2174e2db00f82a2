package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/config"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
	"github.com/mohammed-shakir/gdelt-event-gateway/internal/invalidation"
)

type call struct {
	layer  string
	bounds model.Bounds
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, layer string, b model.Bounds) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.calls = append(f.calls, call{layer: layer, bounds: b})
	return 1, nil
}

func (f *fakeInvalidator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newRunner(inv Invalidator) *Runner {
	cfg := InvalidationConfig{Enabled: true, Driver: DriverKafka}
	return New(cfg, inv, Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Register: prometheus.NewRegistry(),
	})
}

func message(t *testing.T, ev invalidation.Event) *sarama.ConsumerMessage {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "gdelt-ingest", Timestamp: time.Now().UTC(), Value: b}
}

func pointEvent(version uint64) invalidation.Event {
	return invalidation.Event{
		Version: version, Op: "update", Layer: "gdelt_Ukraine:gdelt", ID: "493", TS: time.Now().UTC(),
		Point: &invalidation.Point{Lat: 50.4, Lon: 30.5},
	}
}

func TestHandleMessage_AppliesAndDedupes(t *testing.T) {
	inv := &fakeInvalidator{}
	r := newRunner(inv)
	ctx := context.Background()

	for _, v := range []uint64{2, 2, 1, 3} {
		if err := r.handleMessage(ctx, message(t, pointEvent(v))); err != nil {
			t.Fatalf("handleMessage(v%d): %v", v, err)
		}
	}
	// v2 applied, duplicate v2 and late v1 skipped, v3 applied
	if got := inv.count(); got != 2 {
		t.Fatalf("invalidations=%d want 2", got)
	}
	c := inv.calls[0]
	if c.layer != "gdelt_Ukraine:gdelt" || c.bounds.Top != 50.4 || c.bounds.Left != 30.5 {
		t.Fatalf("unexpected call %+v", c)
	}
}

func TestHandleMessage_OtherRowsAreIndependent(t *testing.T) {
	inv := &fakeInvalidator{}
	r := newRunner(inv)
	a, b := pointEvent(5), pointEvent(1)
	b.ID = "other"
	for _, ev := range []invalidation.Event{a, b} {
		if err := r.handleMessage(context.Background(), message(t, ev)); err != nil {
			t.Fatalf("handleMessage: %v", err)
		}
	}
	if inv.count() != 2 {
		t.Fatalf("invalidations=%d want 2", inv.count())
	}
}

func TestHandleMessage_SkipsMalformed(t *testing.T) {
	inv := &fakeInvalidator{}
	r := newRunner(inv)
	bad := pointEvent(1)
	bad.Op = "merge"
	for _, msg := range []*sarama.ConsumerMessage{
		{Value: []byte(`{not json`)},
		message(t, bad),
	} {
		if err := r.handleMessage(context.Background(), msg); err != nil {
			t.Fatalf("malformed events must be skipped, got %v", err)
		}
	}
	if inv.count() != 0 {
		t.Fatal("malformed events must not invalidate")
	}
}

func TestHandleMessage_FailureIsRetried(t *testing.T) {
	inv := &fakeInvalidator{err: errors.New("redis down")}
	r := newRunner(inv)
	msg := message(t, pointEvent(1))
	if err := r.handleMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error when the cache delete fails")
	}
	inv.err = nil
	if err := r.handleMessage(context.Background(), msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if inv.count() != 1 {
		t.Fatal("redelivered event must apply once the cache recovers")
	}
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	claims map[string][]int32
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return s.claims }
func (s *fakeSession) Context() context.Context   { return context.Background() }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func TestGroupHandler_ReadinessAndMarking(t *testing.T) {
	inv := &fakeInvalidator{}
	r := newRunner(inv)
	if ready, _ := r.Readiness(); ready {
		t.Fatal("not ready before assignment")
	}

	h := r.handler()
	sess := &fakeSession{claims: map[string][]int32{"gdelt-ingest": {0, 2}}}
	if err := h.Setup(sess); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ready, parts := r.Readiness()
	if !ready || len(parts) != 2 {
		t.Fatalf("ready=%v partitions=%v", ready, parts)
	}

	ch := make(chan *sarama.ConsumerMessage, 2)
	m1 := message(t, pointEvent(1))
	m1.Offset = 7
	m2 := &sarama.ConsumerMessage{Offset: 8, Value: []byte(`garbage`)}
	ch <- m1
	ch <- m2
	close(ch)
	if err := h.ConsumeClaim(sess, fakeClaim{ch: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(sess.marked) != 2 || sess.marked[1] != 8 {
		t.Fatalf("marked=%v want [7 8]", sess.marked)
	}

	if err := h.Cleanup(sess); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if ready, _ := r.Readiness(); ready {
		t.Fatal("not ready after revocation")
	}
}

func TestStart_DisabledIsNoop(t *testing.T) {
	r := New(FromConfig(config.InvalidationCfg{Driver: "none"}), nil, Options{})
	if r.Enabled() {
		t.Fatal("driver none must be disabled")
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Stop()
}

func TestFromConfig(t *testing.T) {
	c := FromConfig(config.InvalidationCfg{
		Enabled: true, Driver: " Kafka ", Brokers: "k1:9092, k2:9092,", Topic: "t", GroupID: "g",
	})
	if c.Driver != DriverKafka || len(c.Brokers) != 2 || c.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected config %+v", c)
	}
}
