package vertretung

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryRecordAndRecent(t *testing.T) {
	history, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer history.Close()

	ctx := context.Background()
	require.NoError(t, history.Record(ctx, "fp-1", "erste Nachricht"))
	require.NoError(t, history.Record(ctx, "fp-2", "zweite Nachricht"))

	entries, err := history.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "fp-2", entries[0].Fingerprint)
	require.Equal(t, "zweite Nachricht", entries[0].Message)
	require.NotZero(t, entries[0].NotifiedAt)
	require.Equal(t, "fp-1", entries[1].Fingerprint)
}

func TestHistoryRecentHonorsLimit(t *testing.T) {
	history, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer history.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, history.Record(ctx, "fp", "msg"))
	}

	entries, err := history.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
