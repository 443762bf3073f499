package kafka_infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestEnsureTopicsRequiresBroker(t *testing.T) {
	err := EnsureTopics(context.Background(), nil, []string{"ledger.transaction.committed"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestProducerCloseWithoutWrites(t *testing.T) {
	producer := NewProducer([]string{"localhost:9092"}, zaptest.NewLogger(t))
	assert.NoError(t, producer.Close())
}
