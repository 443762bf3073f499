package outbox

import (
	"context"
	"sync"
	"time"

	"ledger/internal/domain"
	kafkaInfra "ledger/internal/infrastructure/kafka"
	"ledger/internal/repository/ledger_repo"

	"go.uber.org/zap"
)

const defaultBatchSize = 10

// Processor relays pending ledger events to Kafka. A message is marked SENT only after a
// successful produce; failures stay PENDING and are retried on the next poll.
type Processor struct {
	outboxRepo    ledger_repo.OutboxRepository
	kafkaProducer kafkaInfra.Producer
	topic         string
	pollInterval  time.Duration
	pollTimeout   time.Duration
	batchSize     int
	logger        *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
	stop     chan struct{}
}

func NewProcessor(
	outboxRepo ledger_repo.OutboxRepository,
	kafkaProducer kafkaInfra.Producer,
	topic string,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	batchSize int,
	logger *zap.Logger,
) *Processor {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Processor{
		outboxRepo:    outboxRepo,
		kafkaProducer: kafkaProducer,
		topic:         topic,
		pollInterval:  pollInterval,
		pollTimeout:   pollTimeout,
		batchSize:     batchSize,
		logger:        logger,
		done:          make(chan struct{}),
		stop:          make(chan struct{}),
	}
}

// Run polls until ctx is cancelled or Stop is called.
func (p *Processor) Run(ctx context.Context) {
	defer close(p.done)

	p.logger.Info("Starting outbox processor...", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped.", zap.Error(ctx.Err()))
			return
		case <-p.stop:
			p.logger.Info("Outbox processor stopped.")
			return
		case <-ticker.C:
			p.ProcessOnce(ctx)
		}
	}
}

func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Signaling outbox processor to stop...")
		close(p.stop)
	})
}

// Done is closed once Run has returned.
func (p *Processor) Done() <-chan struct{} {
	return p.done
}

// ProcessOnce relays one batch and reports how many messages were marked SENT.
func (p *Processor) ProcessOnce(ctx context.Context) int {
	p.logger.Debug("Polling for outbox messages...")

	queryCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	messages, err := p.outboxRepo.PendingOutbox(queryCtx, p.batchSize)
	cancel()
	if err != nil {
		p.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return 0
	}
	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return 0
	}

	p.logger.Info("Found pending outbox messages", zap.Int("count", len(messages)))

	sent := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			return sent
		}

		if err := p.kafkaProducer.Produce(ctx, msg.AggregateID, p.topic, msg.Payload); err != nil {
			p.logger.Error("Failed to send message to Kafka",
				zap.String("message_id", msg.ID),
				zap.String("message_type", msg.MessageType),
				zap.String("topic", p.topic),
				zap.Error(err))
			continue
		}

		if err := p.outboxRepo.MarkOutbox(ctx, msg.ID, domain.OutboxStatusSent); err != nil {
			p.logger.Error("Failed to update outbox message status to SENT",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}

		sent++
		p.logger.Info("Outbox message processed and status updated",
			zap.String("message_id", msg.ID),
			zap.String("message_type", msg.MessageType))
	}
	return sent
}
