package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"public-eye-service/internal/apperror"
)

const complaintSequence = "complaint"

// SequenceRepository issues complaint identifiers from a counter row that is
// incremented and read in one statement. Concurrent callers are serialized
// by the row lock, so no two receive the same value.
type SequenceRepository struct {
	db     *sql.DB
	prefix string
}

func NewSequenceRepository(db *sql.DB, prefix string) *SequenceRepository {
	return &SequenceRepository{db: db, prefix: prefix}
}

// Next allocates the next identifier in its own statement.
func (r *SequenceRepository) Next(ctx context.Context) (string, int64, error) {
	return r.next(ctx, r.db)
}

// NextTx allocates the next identifier inside tx; if tx rolls back the
// value is released with it.
func (r *SequenceRepository) NextTx(ctx context.Context, tx *sql.Tx) (string, int64, error) {
	return r.next(ctx, tx)
}

func (r *SequenceRepository) next(ctx context.Context, q querier) (string, int64, error) {
	query := `UPDATE sequences SET value = value + 1 WHERE name = $1 RETURNING value`

	var n int64
	err := q.QueryRowContext(ctx, query, complaintSequence).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", 0, apperror.Storage("allocate id", errors.New("complaint sequence not initialized"))
		}
		return "", 0, apperror.Storage("allocate id", err)
	}

	return FormatID(r.prefix, n), n, nil
}

// FormatID renders n as PREFIX-NNNNNN. Values past 999999 widen rather
// than wrap.
func FormatID(prefix string, n int64) string {
	return fmt.Sprintf("%s-%06d", prefix, n)
}

// ParseID returns the counter value encoded in id.
func ParseID(prefix, id string) (int64, bool) {
	digits, ok := strings.CutPrefix(id, prefix+"-")
	if !ok || len(digits) < 6 {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
