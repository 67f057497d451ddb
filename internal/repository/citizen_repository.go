package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"public-eye-service/internal/apperror"
	"public-eye-service/internal/model"
)

// CitizenRepository is the reward ledger: it owns citizen point balances.
// Every balance change is a single conditional UPDATE, so concurrent credits
// and claims on the same citizen never lose updates and never go negative.
type CitizenRepository struct {
	db     *sql.DB
	outbox *OutboxRepository
}

func NewCitizenRepository(db *sql.DB, outbox *OutboxRepository) *CitizenRepository {
	return &CitizenRepository{db: db, outbox: outbox}
}

// FindOrCreate ensures a citizen row exists for externalID. An email is
// recorded only if none was stored before.
func (r *CitizenRepository) FindOrCreate(ctx context.Context, tx *sql.Tx, externalID string, email *string, now time.Time) error {
	query := `
		INSERT INTO citizens (external_id, email, points, created_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (external_id) DO UPDATE SET email = COALESCE(citizens.email, excluded.email)
	`
	_, err := tx.ExecContext(ctx, query, externalID, nullString(email), now)
	return apperror.Storage("upsert citizen", err)
}

// Credit adds amount to the citizen's balance inside tx and returns the new
// balance. Idempotency is the caller's responsibility.
func (r *CitizenRepository) Credit(ctx context.Context, tx *sql.Tx, externalID string, amount int) (int, error) {
	query := `UPDATE citizens SET points = points + $1 WHERE external_id = $2 RETURNING points`

	var balance int
	err := tx.QueryRowContext(ctx, query, amount, externalID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("citizen %s not found", externalID)
		}
		return 0, apperror.Storage("credit points", err)
	}
	return balance, nil
}

// Claim debits amount if the balance covers it and returns the remaining
// balance. The debit and its reward.claimed event commit together.
func (r *CitizenRepository) Claim(ctx context.Context, externalID string, amount int, now time.Time) (int, error) {
	var balance int
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			UPDATE citizens SET points = points - $1
			WHERE external_id = $2 AND points >= $1
			RETURNING points
		`
		err := tx.QueryRowContext(ctx, query, amount, externalID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return r.claimFailure(ctx, tx, externalID, amount)
		}
		if err != nil {
			return apperror.Storage("debit points", err)
		}

		return r.outbox.Enqueue(ctx, tx, model.RoutingKeyRewardClaimed, model.RewardClaimedEvent{
			CitizenID: externalID,
			Points:    amount,
			Balance:   balance,
			Timestamp: now.Unix(),
		}, now)
	})
	if err != nil {
		return 0, apperror.Storage("claim", err)
	}
	return balance, nil
}

// claimFailure explains why the conditional debit matched no row.
func (r *CitizenRepository) claimFailure(ctx context.Context, tx *sql.Tx, externalID string, amount int) error {
	var points int
	err := tx.QueryRowContext(ctx, `SELECT points FROM citizens WHERE external_id = $1`, externalID).Scan(&points)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("citizen %s not found", externalID)
	}
	if err != nil {
		return apperror.Storage("read balance", err)
	}
	return apperror.InsufficientBalance("not enough points: have %d, need %d", points, amount)
}

// Balance returns the citizen's points, or 0 for an unknown citizen.
func (r *CitizenRepository) Balance(ctx context.Context, externalID string) (int, error) {
	var points int
	err := r.db.QueryRowContext(ctx, `SELECT points FROM citizens WHERE external_id = $1`, externalID).Scan(&points)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, apperror.Storage("read balance", err)
	}
	return points, nil
}

func (r *CitizenRepository) FindByExternalID(ctx context.Context, externalID string) (*model.Citizen, error) {
	query := `SELECT id, external_id, email, points, created_at FROM citizens WHERE external_id = $1`

	c := &model.Citizen{}
	var email sql.NullString
	err := r.db.QueryRowContext(ctx, query, externalID).Scan(&c.ID, &c.ExternalID, &email, &c.Points, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("citizen %s not found", externalID)
		}
		return nil, apperror.Storage("find citizen", err)
	}
	if email.Valid {
		c.Email = &email.String
	}
	return c, nil
}
