package access

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/turn-memory/internal/model"
	"github.com/rcliao/turn-memory/internal/store"
)

func TestRecordIsCountedPerCall(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "access.db"))
	require.NoError(t, err)
	defer s.Close()

	m, err := s.Write(ctx, store.WriteParams{
		UserID: "u1", Type: model.TypeHabit, Key: "run", Value: "mornings",
		Confidence: 0.8, Importance: 0.4,
	})
	require.NoError(t, err)

	tr := NewTracker(s, nil)
	for _, turn := range []int{2, 7, 4} {
		ok, err := tr.Record(ctx, m.ID, "u1", turn)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := tr.Record(ctx, m.ID, "intruder", 9)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Get(ctx, m.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.AccessCount)
	require.NotNil(t, got.LastAccessedTurn)
	assert.Equal(t, 4, *got.LastAccessedTurn)
}

type flakyRecorder struct {
	calls []string
}

func (f *flakyRecorder) RecordAccess(ctx context.Context, id, userID string, turn int) (bool, error) {
	f.calls = append(f.calls, id)
	switch id {
	case "broken":
		return false, errors.New("disk full")
	case "missing":
		return false, nil
	}
	return true, nil
}

func TestTouchSkipsFailures(t *testing.T) {
	rec := &flakyRecorder{}
	tr := NewTracker(rec, nil)

	n := tr.Touch(context.Background(), "u1", 3, []model.Memory{{ID: "a"}, {ID: "broken"}, {ID: "missing"}, {ID: "b"}})
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "broken", "missing", "b"}, rec.calls)
}
