package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(id, suite, result string) Entry {
	return Entry{
		SequenceID: id,
		Mode:       "regular",
		Suite:      suite,
		Result:     result,
		NumRuns:    2,
		NumPassing: 1,
		NumFailing: 1,
		StartedAt:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Duration:   1500 * time.Millisecond,
		ReportJSON: `{"id":"` + id + `"}`,
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, entry("seq-1", "main", "success")))
	require.NoError(t, s.Append(ctx, entry("seq-2", "main", "test_failures")))

	entries, err := s.Recent(ctx, "main", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "seq-2", entries[0].SequenceID)
	assert.Equal(t, "seq-1", entries[1].SequenceID)
	assert.Equal(t, "test_failures", entries[0].Result)
	assert.Equal(t, 1500*time.Millisecond, entries[0].Duration)
	assert.Equal(t, 2026, entries[0].StartedAt.Year())
}

func TestAppend_DuplicateIgnored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, entry("seq-1", "main", "success")))
	require.NoError(t, s.Append(ctx, entry("seq-1", "main", "failure")))

	entries, err := s.Recent(ctx, "main", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "success", entries[0].Result)
}

func TestRecent_SuiteFilterAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, entry("seq-1", "main", "success")))
	require.NoError(t, s.Append(ctx, entry("seq-2", "periodic", "success")))
	require.NoError(t, s.Append(ctx, entry("seq-3", "main", "success")))

	entries, err := s.Recent(ctx, "main", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "seq-3", entries[0].SequenceID)

	all, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOpen_Reopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, entry("seq-1", "main", "success")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Recent(ctx, "main", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
