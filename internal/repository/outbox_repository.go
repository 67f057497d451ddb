package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"public-eye-service/internal/apperror"

	"github.com/google/uuid"
)

const (
	OutboxPending   = "pending"
	OutboxPublished = "published"
	OutboxFailed    = "failed"

	maxOutboxRetries = 5
)

type OutboxMessage struct {
	ID          uuid.UUID       `json:"id"`
	RoutingKey  string          `json:"routing_key"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	RetryCount  int             `json:"retry_count"`
	LastError   *string         `json:"last_error,omitempty"`
	Status      string          `json:"status"`
}

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue writes an event inside tx so it commits or rolls back together
// with the state change it describes.
func (r *OutboxRepository) Enqueue(ctx context.Context, tx *sql.Tx, routingKey string, payload any, now time.Time) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO outbox_messages (id, routing_key, payload, status, created_at)
		VALUES ($1, $2, $3, 'pending', $4)
	`
	_, err = tx.ExecContext(ctx, query, uuid.New(), routingKey, string(payloadBytes), now)
	return apperror.Storage("enqueue "+routingKey, err)
}

// PendingMessages returns up to limit unpublished messages, oldest first.
// Delivery is at-least-once; consumers deduplicate on the message id.
func (r *OutboxRepository) PendingMessages(ctx context.Context, limit int) ([]OutboxMessage, error) {
	query := `
		SELECT id, routing_key, payload, created_at, retry_count, last_error, status
		FROM outbox_messages
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		var payload []byte
		var lastError sql.NullString
		err := rows.Scan(
			&m.ID,
			&m.RoutingKey,
			&payload,
			&m.CreatedAt,
			&m.RetryCount,
			&lastError,
			&m.Status,
		)
		if err != nil {
			return nil, err
		}
		m.Payload = json.RawMessage(payload)
		if lastError.Valid {
			m.LastError = &lastError.String
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (r *OutboxRepository) MarkAsPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE outbox_messages
		SET status = 'published', published_at = $2
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

// MarkAsFailed records a publish failure. After maxOutboxRetries failures
// the message stops being retried.
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE outbox_messages
		SET retry_count = retry_count + 1, last_error = $2,
		    status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, errMsg, maxOutboxRetries)
	return err
}

func (r *OutboxRepository) DeletePublished(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_messages
		WHERE status = 'published' AND published_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *OutboxRepository) GetStats(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*) as count
		FROM outbox_messages
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}

	return stats, rows.Err()
}
