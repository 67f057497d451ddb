package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"public-eye-service/config"
	"public-eye-service/internal/database"
	"public-eye-service/internal/model"
	"public-eye-service/internal/priority"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPrefix = "CVC"

type testStore struct {
	db            *sql.DB
	outbox        *OutboxRepository
	sequences     *SequenceRepository
	citizens      *CitizenRepository
	complaints    *ComplaintRepository
	notifications *NotificationRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "store.db"),
	}
	db, err := database.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, cfg.Driver))

	outbox := NewOutboxRepository(db)
	sequences := NewSequenceRepository(db, testPrefix)
	citizens := NewCitizenRepository(db, outbox)
	return &testStore{
		db:            db,
		outbox:        outbox,
		sequences:     sequences,
		citizens:      citizens,
		complaints:    NewComplaintRepository(db, sequences, citizens, outbox),
		notifications: NewNotificationRepository(db),
	}
}

func newComplaint(complaintType string, owner *string) *model.Complaint {
	now := time.Now().UTC()
	p, eta := priority.Classify(complaintType, now)
	return &model.Complaint{
		Title:               "Broken road near market",
		Description:         "Large hole in the middle lane",
		Type:                complaintType,
		Zone:                model.DefaultZone,
		Department:          model.DefaultDepartment,
		Status:              model.StatusPending,
		Priority:            p,
		EstimatedResolution: eta,
		OwnerID:             owner,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// seedCitizen creates a citizen holding points.
func (s *testStore) seedCitizen(t *testing.T, externalID string, points int) {
	t.Helper()
	ctx := context.Background()
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.citizens.FindOrCreate(ctx, tx, externalID, nil, time.Now().UTC()); err != nil {
			return err
		}
		if points == 0 {
			return nil
		}
		_, err := s.citizens.Credit(ctx, tx, externalID, points)
		return err
	})
	require.NoError(t, err)
}

func (s *testStore) outboxKeys(t *testing.T) []string {
	t.Helper()
	msgs, err := s.outbox.PendingMessages(context.Background(), 1000)
	require.NoError(t, err)
	keys := make([]string, 0, len(msgs))
	for _, m := range msgs {
		keys = append(keys, m.RoutingKey)
	}
	return keys
}

func ptr[T any](v T) *T {
	return &v
}
