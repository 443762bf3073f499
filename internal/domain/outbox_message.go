package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
	OutboxStatusFailed  OutboxMessageStatus = "FAILED"
)

// OutboxMessage is a ledger event waiting to be relayed to Kafka. It is written in the
// same unit of work as the mutation it describes.
type OutboxMessage struct {
	ID          string
	AggregateID string
	MessageType string
	Payload     []byte
	Status      OutboxMessageStatus
	CreatedAt   time.Time
	SentAt      *time.Time
}
