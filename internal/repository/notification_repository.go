package repository

import (
	"context"
	"database/sql"
	"time"

	"public-eye-service/internal/apperror"
	"public-eye-service/internal/model"
)

const notificationPageSize = 50

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Record stores the notifications produced by one message and marks the
// message processed, atomically. It returns false without writing anything
// if messageID was already processed.
func (r *NotificationRepository) Record(ctx context.Context, messageID string, notifications []model.Notification, now time.Time) (bool, error) {
	recorded := false
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `INSERT INTO processed_messages (message_id, processed_at) VALUES ($1, $2) ON CONFLICT (message_id) DO NOTHING`
		result, err := tx.ExecContext(ctx, query, messageID, now)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		for _, notification := range notifications {
			query := `
				INSERT INTO notifications (id, citizen_id, complaint_id, title, message, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`
			_, err := tx.ExecContext(ctx, query,
				notification.ID,
				notification.CitizenID,
				nullString(notification.ComplaintID),
				notification.Title,
				notification.Message,
				notification.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, apperror.Storage("record notifications", err)
	}
	return recorded, nil
}

func (r *NotificationRepository) IsMessageProcessed(ctx context.Context, messageID string) (bool, error) {
	query := `SELECT 1 FROM processed_messages WHERE message_id = $1`
	var exists int
	err := r.db.QueryRowContext(ctx, query, messageID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByCitizenID returns the citizen's most recent notifications, newest first.
func (r *NotificationRepository) GetByCitizenID(ctx context.Context, citizenID string) ([]model.Notification, error) {
	query := `
		SELECT id, citizen_id, complaint_id, title, message, created_at
		FROM notifications
		WHERE citizen_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, citizenID, notificationPageSize)
	if err != nil {
		return nil, apperror.Storage("list notifications", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var complaintID sql.NullString
		err := rows.Scan(
			&n.ID,
			&n.CitizenID,
			&complaintID,
			&n.Title,
			&n.Message,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, apperror.Storage("scan notification", err)
		}
		if complaintID.Valid {
			n.ComplaintID = &complaintID.String
		}
		notifications = append(notifications, n)
	}

	return notifications, apperror.Storage("list notifications", rows.Err())
}
