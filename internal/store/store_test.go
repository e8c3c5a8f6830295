package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit", "calls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	err := s.RecordCall(ctx, Call{
		Tool:       "time/now",
		Transport:  "http",
		Arguments:  `{}`,
		Result:     "2024-05-01T12:34:56.789012",
		Status:     "success",
		DurationMs: 123,
	})
	require.NoError(t, err)

	records, err := s.RecentCalls(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "time/now", rec.Tool)
	assert.Equal(t, "http", rec.Transport)
	assert.Equal(t, "2024-05-01T12:34:56.789012", rec.Result)
	assert.Equal(t, "success", rec.Status)
	assert.EqualValues(t, 123, rec.DurationMs)
	assert.WithinDuration(t, time.Now(), rec.CreatedAt, time.Minute)
}

func TestRecentCallsOrderAndLimit(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordCall(ctx, Call{
			Tool:      "time/now",
			Transport: "rest",
			Status:    "success",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.RecordCall(ctx, Call{
		Tool:      "other",
		Transport: "stdio",
		Status:    "error",
		Error:     "boom",
		CreatedAt: base.Add(time.Hour),
	}))

	records, err := s.RecentCalls(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "other", records[0].Tool)
	assert.Equal(t, "boom", records[0].Error)
	assert.True(t, records[1].CreatedAt.After(records[2].CreatedAt))

	counts, err := s.CountByTool(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"time/now": 5, "other": 1}, counts)
}

func TestRecordCallKeepsGivenID(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.RecordCall(ctx, Call{ID: "fixed", Tool: "time/now", Transport: "http", Status: "success"}))
	assert.Error(t, s.RecordCall(ctx, Call{ID: "fixed", Tool: "time/now", Transport: "http", Status: "success"}))
}

func TestCloseNil(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}
