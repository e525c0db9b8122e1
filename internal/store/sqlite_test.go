package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rcliao/turn-memory/internal/model"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), opts...)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newClockedStore(t *testing.T) (*SQLiteStore, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	return newTestStore(t, WithClock(clock.Now)), clock
}

func fact(user, key, value string) WriteParams {
	return WriteParams{
		UserID: user, Type: model.TypeFact, Key: key, Value: value,
		Confidence: 0.9, Importance: 0.5, SourceTurn: 1,
	}
}

func TestWriteAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newClockedStore(t)

	p := fact("u1", "workplace", "Acme")
	p.Context = "said on day one"
	p.ConversationID = "c1"
	mem, err := s.Write(ctx, p)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if mem.ID == "" {
		t.Error("expected non-empty ID")
	}
	if !mem.IsActive {
		t.Error("expected new memory to be active")
	}

	got, err := s.Get(ctx, mem.ID, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected memory, got nil")
	}
	if got.Value != "Acme" || got.Context != "said on day one" || got.SourceConversationID != "c1" {
		t.Errorf("unexpected memory: %+v", got)
	}
	if !got.CreatedAt.Equal(mem.CreatedAt) {
		t.Errorf("created_at round trip: %v != %v", got.CreatedAt, mem.CreatedAt)
	}
	if got.LastAccessedTurn != nil {
		t.Errorf("expected nil last_accessed_turn, got %d", *got.LastAccessedTurn)
	}
}

func TestGetScopedToOwner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Write(ctx, fact("u1", "name", "Alice"))

	got, err := s.Get(ctx, mem.ID, "u2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil for a memory owned by another user")
	}

	missing, _ := s.Get(ctx, "01HXXXXXXXXXXXXXXXXXXXXXXX", "u1")
	if missing != nil {
		t.Error("expected nil for an unknown id")
	}
}

func TestWriteRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bad := []WriteParams{
		{UserID: "u1", Type: "feeling", Key: "k", Value: "v"},
		{UserID: "u1", Type: model.TypeFact, Key: " ", Value: "v"},
		{UserID: "u1", Type: model.TypeFact, Key: "k", Value: ""},
		{UserID: "u1", Type: model.TypeFact, Key: "k", Value: "v", Confidence: 1.2},
		{UserID: "u1", Type: model.TypeFact, Key: "k", Value: "v", Importance: -0.5},
		{UserID: "", Type: model.TypeFact, Key: "k", Value: "v"},
	}
	for i, p := range bad {
		if _, err := s.Write(ctx, p); !errors.Is(err, ErrInvalid) {
			t.Errorf("case %d: expected ErrInvalid, got %v", i, err)
		}
	}
}

func TestConflictResolution(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore(t)

	first, _ := s.Write(ctx, fact("u1", "workplace", "Acme"))
	clock.Advance(time.Hour)
	second, err := s.Write(ctx, fact("u1", "workplace", "Globex"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	active, _ := s.ListActive(ctx, ListParams{UserID: "u1"})
	if len(active) != 1 {
		t.Fatalf("expected 1 active, got %d", len(active))
	}
	if active[0].ID != second.ID || active[0].Value != "Globex" {
		t.Errorf("expected Globex to be active, got %+v", active[0])
	}

	old, _ := s.Get(ctx, first.ID, "u1")
	if old.IsActive {
		t.Error("expected superseded memory to be inactive")
	}
	if !old.UpdatedAt.After(old.CreatedAt) {
		t.Error("expected updated_at to advance on deactivation")
	}
	if old.Value != "Acme" {
		t.Errorf("superseded value changed: %q", old.Value)
	}

	hist, _ := s.History(ctx, "u1", model.TypeFact, "workplace")
	if len(hist) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(hist))
	}
	if hist[0].ID != second.ID || hist[1].ID != first.ID {
		t.Error("expected history newest first")
	}
}

func TestSameKeyDifferentTypeOrUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Write(ctx, fact("u1", "coffee", "black"))
	pref := fact("u1", "coffee", "oat latte")
	pref.Type = model.TypePreference
	s.Write(ctx, pref)
	s.Write(ctx, fact("u2", "coffee", "none"))

	u1, _ := s.ListActive(ctx, ListParams{UserID: "u1"})
	if len(u1) != 2 {
		t.Errorf("expected 2 active for u1, got %d", len(u1))
	}
	u2, _ := s.ListActive(ctx, ListParams{UserID: "u2"})
	if len(u2) != 1 {
		t.Errorf("expected 1 active for u2, got %d", len(u2))
	}
}

func TestConcurrentSameKeyWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := fact("u1", "mood", "calm")
			p.SourceTurn = i + 1
			if _, err := s.Write(ctx, p); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent write: %v", err)
	}

	active, _ := s.ListActive(ctx, ListParams{UserID: "u1"})
	if len(active) != 1 {
		t.Fatalf("expected exactly 1 active, got %d", len(active))
	}
	hist, _ := s.History(ctx, "u1", model.TypeFact, "mood")
	if len(hist) != 20 {
		t.Errorf("expected 20 records in history, got %d", len(hist))
	}
}

func TestListActiveFilters(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore(t)

	s.Write(ctx, fact("u1", "old", "x"))
	clock.Advance(48 * time.Hour)

	pref := fact("u1", "color", "blue")
	pref.Type = model.TypePreference
	pref.Importance = 0.95
	s.Write(ctx, pref)
	clock.Advance(time.Hour)
	s.Write(ctx, fact("u1", "recent", "y"))

	all, _ := s.ListActive(ctx, ListParams{UserID: "u1"})
	if len(all) != 3 {
		t.Fatalf("expected 3, got %d", len(all))
	}
	if all[0].Key != "recent" {
		t.Errorf("expected newest first, got %q", all[0].Key)
	}

	window, _ := s.ListActive(ctx, ListParams{UserID: "u1", HoursAgo: 24})
	if len(window) != 2 {
		t.Errorf("expected 2 within 24h, got %d", len(window))
	}

	prefs, _ := s.ListActive(ctx, ListParams{UserID: "u1", Types: []model.MemoryType{model.TypePreference}})
	if len(prefs) != 1 || prefs[0].Key != "color" {
		t.Errorf("expected only the preference, got %+v", prefs)
	}

	byImportance, _ := s.ListActive(ctx, ListParams{UserID: "u1", OrderBy: OrderImportance, Limit: 1})
	if len(byImportance) != 1 || byImportance[0].Key != "color" {
		t.Errorf("expected color first by importance, got %+v", byImportance)
	}
}

func TestExpiredExcludedFromReads(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore(t)

	p := fact("u1", "mood", "tired")
	p.Type = model.TypeTemporaryState
	exp := clock.Now().Add(2 * time.Hour)
	p.ExpiresAt = &exp
	mem, _ := s.Write(ctx, p)

	list, _ := s.ListActive(ctx, ListParams{UserID: "u1"})
	if len(list) != 1 {
		t.Fatalf("expected 1 before expiry, got %d", len(list))
	}

	clock.Advance(3 * time.Hour)
	list, _ = s.ListActive(ctx, ListParams{UserID: "u1"})
	if len(list) != 0 {
		t.Errorf("expected expired memory to be hidden, got %d", len(list))
	}

	got, _ := s.Get(ctx, mem.ID, "u1")
	if got == nil || !got.IsActive || got.ExpiresAt == nil {
		t.Error("expected expired memory to remain stored and active")
	}
}

func TestUpdateAllowList(t *testing.T) {
	ctx := context.Background()
	s, clock := newClockedStore(t)

	mem, _ := s.Write(ctx, fact("u1", "city", "Paris"))
	clock.Advance(time.Minute)

	got, err := s.Update(ctx, mem.ID, "u1", Updates{
		"value":            "Lyon",
		"importance_score": 0.9,
		"confidence":       7.0,
		"key":              "hijacked",
		"user_id":          "u2",
		"memory_type":      "goal",
		"created_at":       "2000-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Value != "Lyon" || got.Importance != 0.9 {
		t.Errorf("allowed fields not applied: %+v", got)
	}
	if got.Confidence != 0.9 {
		t.Errorf("out of range confidence should be ignored, got %v", got.Confidence)
	}
	if got.Key != "city" || got.UserID != "u1" || got.Type != model.TypeFact {
		t.Errorf("immutable fields changed: %+v", got)
	}
	if !got.CreatedAt.Equal(mem.CreatedAt) {
		t.Error("created_at changed")
	}
	if !got.UpdatedAt.After(mem.UpdatedAt) {
		t.Error("expected updated_at to advance")
	}
}

func TestUpdateCannotReactivate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Write(ctx, fact("u1", "city", "Paris"))
	got, _ := s.Update(ctx, mem.ID, "u1", Updates{"is_active": false})
	if got.IsActive {
		t.Fatal("expected is_active=false to apply")
	}

	got, _ = s.Update(ctx, mem.ID, "u1", Updates{"is_active": true})
	if got.IsActive {
		t.Error("deactivation must be terminal")
	}
}

func TestUpdateNotOwned(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Write(ctx, fact("u1", "city", "Paris"))
	got, err := s.Update(ctx, mem.ID, "u2", Updates{"value": "Rome"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got != nil {
		t.Error("expected nil for a memory owned by another user")
	}
	orig, _ := s.Get(ctx, mem.ID, "u1")
	if orig.Value != "Paris" {
		t.Errorf("value changed by non-owner: %q", orig.Value)
	}
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Write(ctx, fact("u1", "city", "Paris"))

	if ok, _ := s.Deactivate(ctx, mem.ID, "u2"); ok {
		t.Error("expected non-owner deactivate to fail")
	}
	if ok, _ := s.Deactivate(ctx, mem.ID, "u1"); !ok {
		t.Error("expected owner deactivate to succeed")
	}
	list, _ := s.ListActive(ctx, ListParams{UserID: "u1"})
	if len(list) != 0 {
		t.Errorf("expected no active memories, got %d", len(list))
	}
}

func TestDeactivateByConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, k := range []string{"a", "b"} {
		p := fact("u1", k, "x")
		p.ConversationID = "c1"
		s.Write(ctx, p)
	}
	other := fact("u1", "c", "x")
	other.ConversationID = "c2"
	s.Write(ctx, other)

	n, err := s.DeactivateByConversation(ctx, "c1", "u2")
	if err != nil || n != 0 {
		t.Errorf("expected 0 for non-owner, got %d (%v)", n, err)
	}
	n, _ = s.DeactivateByConversation(ctx, "c1", "u1")
	if n != 2 {
		t.Errorf("expected 2 deactivated, got %d", n)
	}
	list, _ := s.ListActive(ctx, ListParams{UserID: "u1"})
	if len(list) != 1 || list[0].Key != "c" {
		t.Errorf("expected only c2's memory to remain, got %+v", list)
	}
}

func TestRecordAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Write(ctx, fact("u1", "city", "Paris"))
	for turn := 3; turn <= 5; turn++ {
		if ok, _ := s.RecordAccess(ctx, mem.ID, "u1", turn); !ok {
			t.Fatalf("record access turn %d failed", turn)
		}
	}
	if ok, _ := s.RecordAccess(ctx, mem.ID, "u2", 9); ok {
		t.Error("expected non-owner access to be rejected")
	}

	got, _ := s.Get(ctx, mem.ID, "u1")
	if got.AccessCount != 3 {
		t.Errorf("expected access_count 3, got %d", got.AccessCount)
	}
	if got.LastAccessedTurn == nil || *got.LastAccessedTurn != 5 {
		t.Errorf("expected last_accessed_turn 5, got %v", got.LastAccessedTurn)
	}
}

func TestRecordAccessWithoutTurn(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem, _ := s.Write(ctx, fact("u1", "city", "Paris"))
	if ok, _ := s.RecordAccess(ctx, mem.ID, "u1", 0); !ok {
		t.Fatal("record access failed")
	}
	got, _ := s.Get(ctx, mem.ID, "u1")
	if got.AccessCount != 1 {
		t.Errorf("expected access_count 1, got %d", got.AccessCount)
	}
	if got.LastAccessedTurn != nil {
		t.Errorf("expected no last_accessed_turn, got %d", *got.LastAccessedTurn)
	}

	s.RecordAccess(ctx, mem.ID, "u1", 4)
	s.RecordAccess(ctx, mem.ID, "u1", 0)
	got, _ = s.Get(ctx, mem.ID, "u1")
	if got.AccessCount != 3 {
		t.Errorf("expected access_count 3, got %d", got.AccessCount)
	}
	if got.LastAccessedTurn == nil || *got.LastAccessedTurn != 4 {
		t.Errorf("expected last_accessed_turn to stay 4, got %v", got.LastAccessedTurn)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Write(ctx, fact("u1", "a", "x"))
	high := fact("u1", "b", "y")
	high.Importance = 0.8
	s.Write(ctx, high)
	pref := fact("u1", "c", "z")
	pref.Type = model.TypePreference
	s.Write(ctx, pref)
	s.Write(ctx, fact("u1", "a", "x2"))
	s.Write(ctx, fact("u2", "a", "other"))

	st, err := s.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalActive != 3 {
		t.Errorf("expected 3 active, got %d", st.TotalActive)
	}
	if st.ByType["fact"] != 2 || st.ByType["preference"] != 1 {
		t.Errorf("unexpected by_type: %v", st.ByType)
	}
	if st.HighImportance != 1 {
		t.Errorf("expected 1 high importance, got %d", st.HighImportance)
	}
	if st.DBPath != s.Path() {
		t.Errorf("expected db path %q, got %q", s.Path(), st.DBPath)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}
