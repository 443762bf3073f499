package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ledger/internal/domain"
	"ledger/internal/repository/ledger_repo/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type producedMessage struct {
	key, topic string
	value      []byte
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []producedMessage
	failKeys map[string]bool
}

func (p *fakeProducer) Produce(_ context.Context, key, topic string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failKeys[key] {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, producedMessage{key: key, topic: topic, value: value})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func enqueue(t *testing.T, store *memory.Store, msgs ...domain.OutboxMessage) {
	t.Helper()
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	for i := range msgs {
		require.NoError(t, store.EnqueueOutbox(ctx, uow, &msgs[i]))
	}
	require.NoError(t, uow.Commit())
}

func message(id, aggregate string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:          id,
		AggregateID: aggregate,
		MessageType: "ledger.deposit",
		Payload:     []byte(`{"transaction_id":1}`),
		Status:      domain.OutboxStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestProcessOnceRelaysAndMarksSent(t *testing.T) {
	store := memory.NewStore()
	producer := &fakeProducer{}
	enqueue(t, store, message("m1", "1000"), message("m2", "2000"))

	p := NewProcessor(store, producer, "ledger.transaction.committed", time.Hour, time.Second, 10, zaptest.NewLogger(t))
	sent := p.ProcessOnce(context.Background())

	assert.Equal(t, 2, sent)
	require.Equal(t, 2, producer.count())
	assert.Equal(t, "1000", producer.messages[0].key)
	assert.Equal(t, "ledger.transaction.committed", producer.messages[0].topic)
	assert.JSONEq(t, `{"transaction_id":1}`, string(producer.messages[0].value))

	pending, err := store.PendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Zero(t, p.ProcessOnce(context.Background()), "nothing left to relay")
}

func TestProcessOnceKeepsFailedMessagesPending(t *testing.T) {
	store := memory.NewStore()
	producer := &fakeProducer{failKeys: map[string]bool{"2000": true}}
	enqueue(t, store, message("m1", "1000"), message("m2", "2000"), message("m3", "3000"))

	p := NewProcessor(store, producer, "events", time.Hour, time.Second, 10, zaptest.NewLogger(t))
	assert.Equal(t, 2, p.ProcessOnce(context.Background()))

	pending, err := store.PendingOutbox(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "m2", pending[0].ID)

	producer.mu.Lock()
	producer.failKeys = nil
	producer.mu.Unlock()
	assert.Equal(t, 1, p.ProcessOnce(context.Background()))
}

func TestProcessOnceHonoursBatchSize(t *testing.T) {
	store := memory.NewStore()
	producer := &fakeProducer{}
	enqueue(t, store, message("m1", "1"), message("m2", "2"), message("m3", "3"))

	p := NewProcessor(store, producer, "events", time.Hour, time.Second, 2, zaptest.NewLogger(t))
	assert.Equal(t, 2, p.ProcessOnce(context.Background()))
	assert.Equal(t, 1, p.ProcessOnce(context.Background()))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := memory.NewStore()
	producer := &fakeProducer{}
	enqueue(t, store, message("m1", "1000"))

	p := NewProcessor(store, producer, "events", 10*time.Millisecond, time.Second, 10, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	require.Eventually(t, func() bool { return producer.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop after cancel")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := NewProcessor(memory.NewStore(), &fakeProducer{}, "events", 10*time.Millisecond, time.Second, 0, zaptest.NewLogger(t))
	go p.Run(context.Background())

	p.Stop()
	p.Stop()

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}
}
