package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
)

func TestWorkerForIsStableAndInRange(t *testing.T) {
	for _, workers := range []int{1, 3, 8} {
		for i := 0; i < 50; i++ {
			key := []byte(fmt.Sprintf("eq-%d", i))
			w := workerFor(key, workers)
			if w < 0 || w >= workers {
				t.Fatalf("workerFor(%s, %d) = %d out of range", key, workers, w)
			}
			if again := workerFor(key, workers); again != w {
				t.Fatalf("workerFor not stable: %d then %d", w, again)
			}
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(catalog.EventOrderReserved, "api", "eq-1", catalog.StockView{EquipmentID: "eq-1", Stock: 4})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if env.EventID == "" || env.EventVersion != 1 || env.CorrelationID != "eq-1" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	got, err := UnmarshalEnvelope(MustMarshal(env))
	if err != nil {
		t.Fatalf("UnmarshalEnvelope: %v", err)
	}
	view, err := UnwrapPayload[catalog.StockView](got.Payload)
	if err != nil {
		t.Fatalf("UnwrapPayload: %v", err)
	}
	if view.EquipmentID != "eq-1" || view.Stock != 4 {
		t.Errorf("unexpected payload %+v", view)
	}
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, catalog.TopicEquipmentEvents, 1, nil)
	p.Close()
	p.Close()
	p.Publish([]byte("k"), []byte("v"))
	if len(p.inbox) != 0 {
		t.Errorf("expected nothing queued after close, got %d", len(p.inbox))
	}
}

type commitLog struct {
	mu      sync.Mutex
	offsets []int64
}

func (l *commitLog) commit(_ context.Context, msgs ...kafka.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range msgs {
		l.offsets = append(l.offsets, m.Offset)
	}
	return nil
}

func (l *commitLog) committed() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.offsets...)
}

func newTestConsumer(commits *commitLog) *Consumer {
	return &Consumer{
		workers:    1,
		log:        zap.NewNop(),
		commit:     commits.commit,
		backoff:    time.Millisecond,
		maxBackoff: 4 * time.Millisecond,
	}
}

func TestHandleRetriesUntilSuccessThenCommits(t *testing.T) {
	commits := &commitLog{}
	c := newTestConsumer(commits)

	calls := 0
	h := func(ctx context.Context, m kafka.Message) error {
		calls++
		if calls < 4 {
			if got := commits.committed(); len(got) != 0 {
				t.Errorf("committed %v before the handler succeeded", got)
			}
			return errors.New("redis unavailable")
		}
		return nil
	}

	c.handle(context.Background(), 0, h, kafka.Message{Offset: 42})
	if calls != 4 {
		t.Errorf("handler calls = %d, want 4", calls)
	}
	if got := commits.committed(); len(got) != 1 || got[0] != 42 {
		t.Errorf("committed = %v, want [42]", got)
	}
}

func TestHandleStopsWithoutCommitOnShutdown(t *testing.T) {
	commits := &commitLog{}
	c := newTestConsumer(commits)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	h := func(ctx context.Context, m kafka.Message) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return errors.New("redis unavailable")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.handle(ctx, 0, h, kafka.Message{Offset: 7})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handle kept retrying after shutdown")
	}
	if got := commits.committed(); len(got) != 0 {
		t.Errorf("committed %v for a message that never succeeded", got)
	}
}
