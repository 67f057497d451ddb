package repository

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestFormatID(t *testing.T) {
	assert.Equal(t, "CVC-000001", FormatID("CVC", 1))
	assert.Equal(t, "CVC-000042", FormatID("CVC", 42))
	assert.Equal(t, "CVC-999999", FormatID("CVC", 999999))
	assert.Equal(t, "CVC-1000000", FormatID("CVC", 1000000))
}

func TestParseID(t *testing.T) {
	n, ok := ParseID("CVC", "CVC-000042")
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	n, ok = ParseID("CVC", "CVC-1000000")
	require.True(t, ok)
	assert.Equal(t, int64(1000000), n)

	for _, bad := range []string{"", "CVC-42", "PE-000042", "CVC-00004x", "CVC000042"} {
		_, ok := ParseID("CVC", bad)
		assert.False(t, ok, bad)
	}
}

func TestSequenceRepository_NextIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id, n, err := s.sequences.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, n)
		assert.Equal(t, FormatID(testPrefix, want), id)
	}
}

func TestSequenceRepository_ConcurrentNextIsUnique(t *testing.T) {
	s := newTestStore(t)
	const callers = 40

	var mu sync.Mutex
	var got []int64

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, n, err := s.sequences.Next(ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			got = append(got, n)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Len(t, got, callers)
	for i, n := range got {
		assert.Equal(t, int64(i+1), n)
	}
}

func TestSequenceRepository_RolledBackAllocationIsReleased(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, n, err := s.sequences.NextTx(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, tx.Rollback())

	_, n, err = s.sequences.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSequenceRepository_MissingCounterIsStorageFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sequences`)
	require.NoError(t, err)

	_, _, err = s.sequences.Next(ctx)
	assert.ErrorContains(t, err, "sequence not initialized")
}
