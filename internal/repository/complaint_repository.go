package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"public-eye-service/internal/apperror"
	"public-eye-service/internal/model"
)

const complaintColumns = `
	seq, complaint_id, title, description, type, zone, department,
	location_address, location_lat, location_lng, location_timestamp,
	status, priority, estimated_resolution,
	feedback_rating, feedback_comment, feedback_submitted_at,
	reward_given, owner_id, created_at, updated_at
`

// ComplaintRepository persists complaints and their progress history and
// owns every state transition. Each mutation runs in one transaction
// together with its ledger credit and outbox events.
type ComplaintRepository struct {
	db        *sql.DB
	sequences *SequenceRepository
	citizens  *CitizenRepository
	outbox    *OutboxRepository
}

func NewComplaintRepository(db *sql.DB, sequences *SequenceRepository, citizens *CitizenRepository, outbox *OutboxRepository) *ComplaintRepository {
	return &ComplaintRepository{
		db:        db,
		sequences: sequences,
		citizens:  citizens,
		outbox:    outbox,
	}
}

// StatusChange describes a committed status transition.
type StatusChange struct {
	Status         model.ComplaintStatus
	OwnerID        *string
	RewardGranted  bool
	PointsCredited int
	OwnerBalance   int
}

// Create assigns c its identifier and stores it with its first progress
// entry. c.Status, c.CreatedAt and the derived fields must already be set.
// When c.OwnerID is set the owning citizen is created if missing.
func (r *ComplaintRepository) Create(ctx context.Context, c *model.Complaint, ownerEmail *string) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if c.OwnerID != nil {
			if err := r.citizens.FindOrCreate(ctx, tx, *c.OwnerID, ownerEmail, c.CreatedAt); err != nil {
				return err
			}
		}

		id, seq, err := r.sequences.NextTx(ctx, tx)
		if err != nil {
			return err
		}
		c.ID = id
		c.Seq = seq

		var addr, ts sql.NullString
		var lat, lng sql.NullFloat64
		if c.Location != nil {
			addr = sql.NullString{String: c.Location.Address, Valid: c.Location.Address != ""}
			ts = sql.NullString{String: c.Location.Timestamp, Valid: c.Location.Timestamp != ""}
			if c.Location.Latitude != nil {
				lat = sql.NullFloat64{Float64: *c.Location.Latitude, Valid: true}
			}
			if c.Location.Longitude != nil {
				lng = sql.NullFloat64{Float64: *c.Location.Longitude, Valid: true}
			}
		}

		query := `
			INSERT INTO complaints (seq, complaint_id, title, description, type, zone, department,
				location_address, location_lat, location_lng, location_timestamp,
				status, priority, estimated_resolution, reward_given, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`
		_, err = tx.ExecContext(ctx, query,
			c.Seq,
			c.ID,
			c.Title,
			c.Description,
			c.Type,
			c.Zone,
			c.Department,
			addr,
			lat,
			lng,
			ts,
			c.Status,
			c.Priority,
			c.EstimatedResolution,
			false,
			nullString(c.OwnerID),
			c.CreatedAt,
			c.UpdatedAt,
		)
		if err != nil {
			return apperror.Storage("insert complaint", err)
		}

		if err := appendProgress(ctx, tx, c.ID, c.Status, c.CreatedAt); err != nil {
			return err
		}
		c.ProgressHistory = []model.ProgressEntry{{Status: c.Status, Timestamp: c.CreatedAt}}

		event := model.ComplaintCreatedEvent{
			ComplaintID: c.ID,
			Title:       c.Title,
			Type:        c.Type,
			Priority:    c.Priority,
			Zone:        c.Zone,
			Timestamp:   c.CreatedAt.Unix(),
		}
		if c.OwnerID != nil {
			event.OwnerID = *c.OwnerID
		}
		return r.outbox.Enqueue(ctx, tx, model.RoutingKeyComplaintCreated, event, c.CreatedAt)
	})
	return apperror.Storage("create complaint", err)
}

// SetStatus records a transition to status at the given time. Any status may
// follow any other; every call appends one progress entry. The first arrival
// at Resolved flips reward_given and credits the owner with reward points
// in the same transaction; later arrivals credit nothing.
func (r *ComplaintRepository) SetStatus(ctx context.Context, id string, status model.ComplaintStatus, at time.Time, reward int) (*StatusChange, error) {
	change := &StatusChange{Status: status}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var title string
		var owner sql.NullString
		query := `UPDATE complaints SET status = $1, updated_at = $2 WHERE complaint_id = $3 RETURNING title, owner_id`
		err := tx.QueryRowContext(ctx, query, status, at, id).Scan(&title, &owner)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("complaint %s not found", id)
		}
		if err != nil {
			return apperror.Storage("update status", err)
		}
		if owner.Valid {
			change.OwnerID = &owner.String
		}

		if err := appendProgress(ctx, tx, id, status, at); err != nil {
			return err
		}

		if status == model.StatusResolved {
			if err := r.grantReward(ctx, tx, id, reward, at, change); err != nil {
				return err
			}
		}

		event := model.StatusUpdatedEvent{
			ComplaintID: id,
			Title:       title,
			NewStatus:   status,
			Timestamp:   at.Unix(),
		}
		if change.OwnerID != nil {
			event.OwnerID = *change.OwnerID
		}
		return r.outbox.Enqueue(ctx, tx, model.RoutingKeyStatusUpdated, event, at)
	})
	if err != nil {
		return nil, apperror.Storage("set status", err)
	}
	return change, nil
}

// grantReward flips reward_given with a compare-and-set; only the
// transaction that flips it credits the owner.
func (r *ComplaintRepository) grantReward(ctx context.Context, tx *sql.Tx, id string, reward int, at time.Time, change *StatusChange) error {
	query := `UPDATE complaints SET reward_given = TRUE WHERE complaint_id = $1 AND reward_given = FALSE`
	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return apperror.Storage("flag reward", err)
	}
	flipped, err := result.RowsAffected()
	if err != nil {
		return apperror.Storage("flag reward", err)
	}
	if flipped == 0 {
		return nil
	}

	change.RewardGranted = true
	if change.OwnerID == nil {
		return nil
	}

	balance, err := r.citizens.Credit(ctx, tx, *change.OwnerID, reward)
	if err != nil {
		return err
	}
	change.PointsCredited = reward
	change.OwnerBalance = balance

	return r.outbox.Enqueue(ctx, tx, model.RoutingKeyRewardCredited, model.RewardCreditedEvent{
		ComplaintID: id,
		CitizenID:   *change.OwnerID,
		Points:      reward,
		Balance:     balance,
		Timestamp:   at.Unix(),
	}, at)
}

// AttachFeedback stores fb if the complaint is Resolved and has no feedback
// yet. The guard and the write are one conditional UPDATE.
func (r *ComplaintRepository) AttachFeedback(ctx context.Context, id string, fb model.Feedback) error {
	query := `
		UPDATE complaints
		SET feedback_rating = $1, feedback_comment = $2, feedback_submitted_at = $3, updated_at = $3
		WHERE complaint_id = $4 AND status = $5 AND feedback_submitted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, fb.Rating, fb.Comment, fb.SubmittedAt, id, model.StatusResolved)
	if err != nil {
		return apperror.Storage("attach feedback", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperror.Storage("attach feedback", err)
	}
	if n == 1 {
		return nil
	}

	var status model.ComplaintStatus
	var submittedAt sql.NullTime
	err = r.db.QueryRowContext(ctx,
		`SELECT status, feedback_submitted_at FROM complaints WHERE complaint_id = $1`, id,
	).Scan(&status, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("complaint %s not found", id)
	}
	if err != nil {
		return apperror.Storage("attach feedback", err)
	}
	if submittedAt.Valid {
		return apperror.AlreadyExists("feedback already submitted for complaint %s", id)
	}
	return apperror.InvalidState("complaint %s is %s; feedback is accepted only once it is %s", id, status, model.StatusResolved)
}

func (r *ComplaintRepository) FindByID(ctx context.Context, id string) (*model.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE complaint_id = $1`

	c, err := scanComplaint(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("complaint %s not found", id)
		}
		return nil, apperror.Storage("find complaint", err)
	}

	histories, err := r.progressFor(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	c.ProgressHistory = histories[c.ID]

	return c, nil
}

// List returns complaints newest first, optionally filtered by status and a
// case-insensitive search over id and title.
func (r *ComplaintRepository) List(ctx context.Context, filter model.ComplaintFilter) ([]model.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE 1 = 1`
	args := []any{}
	argIndex := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Search != "" {
		query += fmt.Sprintf(" AND (LOWER(complaint_id) LIKE LOWER($%d) OR LOWER(title) LIKE LOWER($%d))", argIndex, argIndex)
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	query += " ORDER BY seq DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Storage("list complaints", err)
	}
	defer rows.Close()

	complaints := []model.Complaint{}
	ids := []string{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, apperror.Storage("scan complaint", err)
		}
		complaints = append(complaints, *c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("list complaints", err)
	}
	rows.Close()

	histories, err := r.progressFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range complaints {
		complaints[i].ProgressHistory = histories[complaints[i].ID]
	}

	return complaints, nil
}

// StatusCounts tallies complaints per status.
func (r *ComplaintRepository) StatusCounts(ctx context.Context) (*model.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM complaints GROUP BY status`)
	if err != nil {
		return nil, apperror.Storage("count complaints", err)
	}
	defer rows.Close()

	counts := &model.StatusCounts{}
	for rows.Next() {
		var status model.ComplaintStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, apperror.Storage("count complaints", err)
		}
		switch status {
		case model.StatusPending:
			counts.Pending = n
		case model.StatusInProgress:
			counts.InProgress = n
		case model.StatusResolved:
			counts.Resolved = n
		}
		counts.Total += n
	}

	return counts, apperror.Storage("count complaints", rows.Err())
}

func appendProgress(ctx context.Context, tx *sql.Tx, id string, status model.ComplaintStatus, at time.Time) error {
	query := `INSERT INTO progress_entries (complaint_id, status, created_at) VALUES ($1, $2, $3)`
	_, err := tx.ExecContext(ctx, query, id, status, at)
	return apperror.Storage("append progress", err)
}

// progressFor loads the ordered progress history of each complaint in ids.
func (r *ComplaintRepository) progressFor(ctx context.Context, ids []string) (map[string][]model.ProgressEntry, error) {
	histories := make(map[string][]model.ProgressEntry, len(ids))
	if len(ids) == 0 {
		return histories, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `
		SELECT complaint_id, status, created_at
		FROM progress_entries
		WHERE complaint_id IN (` + placeholders(1, len(ids)) + `)
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Storage("load progress", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var entry model.ProgressEntry
		if err := rows.Scan(&id, &entry.Status, &entry.Timestamp); err != nil {
			return nil, apperror.Storage("scan progress", err)
		}
		histories[id] = append(histories[id], entry)
	}

	return histories, apperror.Storage("load progress", rows.Err())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row rowScanner) (*model.Complaint, error) {
	c := &model.Complaint{}
	var addr, ts, comment, owner sql.NullString
	var lat, lng sql.NullFloat64
	var rating sql.NullInt64
	var submittedAt sql.NullTime

	err := row.Scan(
		&c.Seq,
		&c.ID,
		&c.Title,
		&c.Description,
		&c.Type,
		&c.Zone,
		&c.Department,
		&addr,
		&lat,
		&lng,
		&ts,
		&c.Status,
		&c.Priority,
		&c.EstimatedResolution,
		&rating,
		&comment,
		&submittedAt,
		&c.RewardGiven,
		&owner,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if addr.Valid || lat.Valid || lng.Valid || ts.Valid {
		c.Location = &model.Location{Address: addr.String, Timestamp: ts.String}
		if lat.Valid {
			c.Location.Latitude = &lat.Float64
		}
		if lng.Valid {
			c.Location.Longitude = &lng.Float64
		}
	}
	if submittedAt.Valid {
		c.Feedback = &model.Feedback{
			Rating:      int(rating.Int64),
			Comment:     comment.String,
			SubmittedAt: submittedAt.Time,
		}
	}
	if owner.Valid {
		c.OwnerID = &owner.String
	}

	return c, nil
}
