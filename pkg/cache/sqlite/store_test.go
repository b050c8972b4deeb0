package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")
	s, err := New(dbPath, 0.00001, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestNewIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache_test.db")

	s1, err := New(dbPath, 0.00001, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s1.PutAnalysis(context.Background(), "fp", "excerpt", "gpt-4o", []byte(`{}`), 10, time.Hour))
	require.NoError(t, s1.Close())

	// Reopening must not lose data.
	s2, err := New(dbPath, 0.00001, zap.NewNop())
	require.NoError(t, err)
	defer s2.Close()

	entry, err := s2.GetAnalysis(context.Background(), "fp", "gpt-4o")
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestAnalysisRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"score":87,"summary":"good value"}`)
	require.NoError(t, s.PutAnalysis(ctx, "abc123", "3 bed house in", "gpt-4o", payload, 250, time.Hour))

	entry, err := s.GetAnalysis(ctx, "abc123", "gpt-4o")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, payload, entry.Payload)
	assert.Equal(t, "gpt-4o", entry.Model)
	assert.Equal(t, 250, entry.TokenCount)
	assert.Equal(t, "3 bed house in", entry.RequestExcerpt)
	assert.True(t, entry.ExpiresAt.After(entry.CreatedAt))

	// Same fingerprint under a different model is a miss.
	entry, err = s.GetAnalysis(ctx, "abc123", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestAnalysisOverwriteResetsExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutAnalysis(ctx, "fp", "x", "gpt-4o", []byte(`"old"`), 10, time.Minute))
	first, err := s.GetAnalysis(ctx, "fp", "gpt-4o")
	require.NoError(t, err)
	require.NotNil(t, first)

	require.NoError(t, s.PutAnalysis(ctx, "fp", "x", "gpt-4o", []byte(`"new"`), 20, time.Hour))
	second, err := s.GetAnalysis(ctx, "fp", "gpt-4o")
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, []byte(`"new"`), second.Payload)
	assert.Equal(t, 20, second.TokenCount)
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt))
	assert.Equal(t, 1, countRows(t, s, "gpt_analysis_cache"))
}

func TestExpiredAnalysisDeletedOnGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutAnalysis(ctx, "fp", "x", "gpt-4o", []byte(`{}`), 10, time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	entry, err := s.GetAnalysis(ctx, "fp", "gpt-4o")
	require.NoError(t, err)
	assert.Nil(t, entry)

	// The expired row is gone immediately after the get.
	assert.Equal(t, 0, countRows(t, s, "gpt_analysis_cache"))
}

func TestPropertyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"price":450000,"beds":3}`)
	require.NoError(t, s.PutProperty(ctx, "prop-42", payload, "https://example.com/prop-42", time.Hour))

	entry, err := s.GetProperty(ctx, "prop-42")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, payload, entry.Payload)
	assert.Equal(t, "https://example.com/prop-42", entry.SourceURL)
}

func TestGetPropertyUpdatesLastAccessed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutProperty(ctx, "prop-1", []byte(`{}`), "https://example.com", time.Hour))

	first, err := s.GetProperty(ctx, "prop-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	time.Sleep(5 * time.Millisecond)

	second, err := s.GetProperty(ctx, "prop-1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.True(t, second.LastAccessed.After(first.CreatedAt))
}

func TestExpiredPropertyDeletedOnGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutProperty(ctx, "prop-1", []byte(`{}`), "https://example.com", time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	entry, err := s.GetProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, 0, countRows(t, s, "property_data_cache"))
}

func TestPutPropertiesBulk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	items := map[string]any{
		"p1": map[string]any{"price": 100000},
		"p2": map[string]any{"price": 200000},
		"p3": map[string]any{"price": 300000},
	}
	stored, total := s.PutPropertiesBulk(ctx, items, "https://example.com/list", time.Hour)
	assert.Equal(t, 3, stored)
	assert.Equal(t, 3, total)

	for id := range items {
		entry, err := s.GetProperty(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, entry, "property %s should be retrievable", id)
	}
}

func TestPutPropertiesBulkSkipsUnserializable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	items := map[string]any{
		"good-1": map[string]any{"price": 1},
		"good-2": map[string]any{"price": 2},
		"bad":    make(chan int),
	}
	stored, total := s.PutPropertiesBulk(ctx, items, "https://example.com", time.Hour)
	assert.Equal(t, 2, stored)
	assert.Equal(t, 3, total)

	// The failing item did not abort the batch.
	entry, err := s.GetProperty(ctx, "good-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	entry, err = s.GetProperty(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSweepExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutAnalysis(ctx, "dead", "x", "gpt-4o", []byte(`{}`), 1, time.Millisecond))
	require.NoError(t, s.PutAnalysis(ctx, "live", "x", "gpt-4o", []byte(`{}`), 1, time.Hour))
	require.NoError(t, s.PutProperty(ctx, "dead", []byte(`{}`), "u", time.Millisecond))
	require.NoError(t, s.PutProperty(ctx, "live", []byte(`{}`), "u", time.Hour))
	time.Sleep(10 * time.Millisecond)

	removed, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	entry, err := s.GetAnalysis(ctx, "live", "gpt-4o")
	require.NoError(t, err)
	assert.NotNil(t, entry)
	prop, err := s.GetProperty(ctx, "live")
	require.NoError(t, err)
	assert.NotNil(t, prop)
}

func TestClearAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutAnalysis(ctx, "a", "x", "gpt-4o", []byte(`{}`), 1, time.Hour))
	require.NoError(t, s.PutProperty(ctx, "p", []byte(`{}`), "u", time.Hour))
	require.NoError(t, s.RecordEvent(ctx, true, false, 0))

	removed, err := s.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, 0, countRows(t, s, "gpt_analysis_cache"))
	assert.Equal(t, 0, countRows(t, s, "property_data_cache"))

	// Statistics survive a clear.
	assert.Equal(t, 1, countRows(t, s, "cache_stats"))
}

func TestUnknownKeysAreAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.GetAnalysis(ctx, "no-such-hash", "gpt-4o")
	require.NoError(t, err)
	assert.Nil(t, entry)

	prop, err := s.GetProperty(ctx, "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, prop)

	// Lookups must not create rows.
	assert.Equal(t, 0, countRows(t, s, "gpt_analysis_cache"))
	assert.Equal(t, 0, countRows(t, s, "property_data_cache"))
}
