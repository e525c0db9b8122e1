package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/turn-memory/internal/keylock"
	"github.com/rcliao/turn-memory/internal/model"
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const memoryColumns = `id, user_id, memory_type, key, value, context, confidence, importance_score,
	source_conversation_id, source_turn, is_active, access_count, last_accessed_turn,
	expires_at, created_at, updated_at`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	opts options
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: dbPath, opts: buildOptions(opts)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id                     TEXT PRIMARY KEY,
		user_id                TEXT NOT NULL,
		memory_type            TEXT NOT NULL,
		key                    TEXT NOT NULL,
		value                  TEXT NOT NULL,
		context                TEXT,
		confidence             REAL NOT NULL,
		importance_score       REAL NOT NULL,
		source_conversation_id TEXT,
		source_turn            INTEGER NOT NULL DEFAULT 0,
		is_active              INTEGER NOT NULL DEFAULT 1,
		access_count           INTEGER NOT NULL DEFAULT 0,
		last_accessed_turn     INTEGER,
		expires_at             TEXT,
		created_at             TEXT NOT NULL,
		updated_at             TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_identity ON memories(user_id, memory_type, key, is_active);
	CREATE INDEX IF NOT EXISTS idx_memories_user_created ON memories(user_id, is_active, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_conversation ON memories(user_id, source_conversation_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Write(ctx context.Context, p WriteParams) (*model.Memory, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	unlock, err := s.opts.locker.Lock(ctx, keylock.Key(p.UserID, string(p.Type), p.Key))
	if err != nil {
		return nil, fmt.Errorf("lock %s/%s: %w", p.Type, p.Key, err)
	}
	defer unlock()

	now := s.opts.now().UTC()

	// Deactivation commits on its own; a failed insert leaves the key empty.
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET is_active = 0, updated_at = ?
		 WHERE user_id = ? AND memory_type = ? AND key = ? AND is_active = 1`,
		formatTime(now), p.UserID, string(p.Type), p.Key)
	if err != nil {
		return nil, fmt.Errorf("deactivate previous: %w", err)
	}
	superseded, _ := res.RowsAffected()

	m := newMemory(p, now)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, NULL, ?, ?, ?)`,
		m.ID, m.UserID, string(m.Type), m.Key, m.Value, nullString(m.Context),
		m.Confidence, m.Importance, nullString(m.SourceConversationID), m.SourceTurn,
		nullTime(m.ExpiresAt), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	s.opts.logger.Debug("memory written",
		"user", p.UserID, "type", p.Type, "key", p.Key, "id", m.ID, "superseded", superseded)
	return m, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id, userID string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ? AND user_id = ?`, id, userID)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &m, nil
}

func (s *SQLiteStore) ListActive(ctx context.Context, p ListParams) ([]model.Memory, error) {
	now := s.opts.now().UTC()
	where := []string{"user_id = ?", "is_active = 1", "(expires_at IS NULL OR expires_at > ?)"}
	args := []any{p.UserID, formatTime(now)}

	if len(p.Types) > 0 {
		marks := make([]string, len(p.Types))
		for i, t := range p.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "memory_type IN ("+strings.Join(marks, ", ")+")")
	}
	if p.HoursAgo > 0 {
		since := now.Add(-time.Duration(p.HoursAgo * float64(time.Hour)))
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(since))
	}

	order := "created_at DESC, id DESC"
	if p.OrderBy == OrderImportance {
		order = "importance_score DESC, created_at DESC, id DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM memories WHERE %s ORDER BY %s`,
		memoryColumns, strings.Join(where, " AND "), order)
	if p.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, p.Limit)
	}
	return s.query(ctx, query, args...)
}

func (s *SQLiteStore) History(ctx context.Context, userID string, t model.MemoryType, key string) ([]model.Memory, error) {
	return s.query(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE user_id = ? AND memory_type = ? AND key = ?
		 ORDER BY created_at DESC, id DESC`,
		userID, string(t), key)
}

func (s *SQLiteStore) Update(ctx context.Context, id, userID string, u Updates) (*model.Memory, error) {
	fields := parseUpdates(u, s.opts.logger)
	if len(fields) == 0 {
		return s.Get(ctx, id, userID)
	}

	sets := []string{"updated_at = ?"}
	args := []any{formatTime(s.opts.now().UTC())}
	for _, f := range fields {
		sets = append(sets, f.column+" = ?")
		args = append(args, sqliteValue(f.value))
	}
	args = append(args, id, userID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(ctx, id, userID)
}

func (s *SQLiteStore) Deactivate(ctx context.Context, id, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET is_active = 0, updated_at = ? WHERE id = ? AND user_id = ? AND is_active = 1`,
		formatTime(s.opts.now().UTC()), id, userID)
	if err != nil {
		return false, fmt.Errorf("deactivate memory: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) DeactivateByConversation(ctx context.Context, conversationID, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET is_active = 0, updated_at = ?
		 WHERE source_conversation_id = ? AND user_id = ? AND is_active = 1`,
		formatTime(s.opts.now().UTC()), conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("deactivate conversation: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) RecordAccess(ctx context.Context, id, userID string, turn int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1,
		 last_accessed_turn = CASE WHEN ? > 0 THEN ? ELSE last_accessed_turn END, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		turn, turn, formatTime(s.opts.now().UTC()), id, userID)
	if err != nil {
		return false, fmt.Errorf("record access: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) Stats(ctx context.Context, userID string) (*Stats, error) {
	st := &Stats{UserID: userID, ByType: map[string]int{}, DBPath: s.path}
	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_type, COUNT(*), SUM(CASE WHEN importance_score >= ? THEN 1 ELSE 0 END)
		 FROM memories WHERE user_id = ? AND is_active = 1
		 GROUP BY memory_type`, model.HighImportance, userID)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count, high int
		if err := rows.Scan(&typ, &count, &high); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.ByType[typ] = count
		st.TotalActive += count
		st.HighImportance += high
	}
	return st, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var typ, createdAt, updatedAt string
	var note, conversation, expiresAt sql.NullString
	var lastTurn sql.NullInt64

	err := row.Scan(
		&m.ID, &m.UserID, &typ, &m.Key, &m.Value, &note, &m.Confidence, &m.Importance,
		&conversation, &m.SourceTurn, &m.IsActive, &m.AccessCount, &lastTurn,
		&expiresAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return m, err
	}

	m.Type = model.MemoryType(typ)
	m.Context = note.String
	m.SourceConversationID = conversation.String
	m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	m.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	if lastTurn.Valid {
		turn := int(lastTurn.Int64)
		m.LastAccessedTurn = &turn
	}
	if expiresAt.Valid {
		t, _ := time.Parse(timeLayout, expiresAt.String)
		m.ExpiresAt = &t
	}
	return m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func sqliteValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return formatTime(x)
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return v
}
