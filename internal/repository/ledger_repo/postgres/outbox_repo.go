package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ledger/internal/domain"
)

func (r *ledgerRepository) EnqueueOutbox(ctx context.Context, uow domain.UnitOfWork, msg *domain.OutboxMessage) error {
	tx, err := r.tx(uow)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO outbox_messages (id, aggregate_id, message_type, payload, status, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var sentAt sql.NullTime
	if msg.SentAt != nil {
		sentAt = sql.NullTime{Time: *msg.SentAt, Valid: true}
	}

	_, err = tx.ExecContext(ctx, query,
		msg.ID,
		msg.AggregateID,
		msg.MessageType,
		string(msg.Payload),
		msg.Status,
		msg.CreatedAt,
		sentAt,
	)
	if err != nil {
		return translateError("create outbox message", err)
	}
	return nil
}

func (r *ledgerRepository) PendingOutbox(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	query := `
		SELECT id, aggregate_id, message_type, payload, status, created_at, sent_at
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, domain.OutboxStatusPending, limit)
	if err != nil {
		return nil, translateError("get pending outbox messages", err)
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		msg := domain.OutboxMessage{}
		var sentAt sql.NullTime
		err := rows.Scan(
			&msg.ID,
			&msg.AggregateID,
			&msg.MessageType,
			&msg.Payload,
			&msg.Status,
			&msg.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, translateError("scan outbox message", err)
		}
		if sentAt.Valid {
			msg.SentAt = &sentAt.Time
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, translateError("iterate outbox messages", err)
	}

	return messages, nil
}

func (r *ledgerRepository) MarkOutbox(ctx context.Context, id string, status domain.OutboxMessageStatus) error {
	query := `
		UPDATE outbox_messages
		SET status = $1, sent_at = $2
		WHERE id = $3
	`
	var sentAt sql.NullTime
	if status == domain.OutboxStatusSent {
		sentAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, status, sentAt, id)
	if err != nil {
		return translateError("update outbox message "+id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return translateError("rows affected for outbox message "+id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: no outbox message with id %s", domain.ErrStorage, id)
	}
	return nil
}
