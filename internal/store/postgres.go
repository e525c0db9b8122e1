package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcliao/turn-memory/internal/keylock"
	"github.com/rcliao/turn-memory/internal/model"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS memories (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL,
	memory_type            TEXT NOT NULL,
	key                    TEXT NOT NULL,
	value                  TEXT NOT NULL,
	context                TEXT,
	confidence             DOUBLE PRECISION NOT NULL,
	importance_score       DOUBLE PRECISION NOT NULL,
	source_conversation_id TEXT,
	source_turn            INTEGER NOT NULL DEFAULT 0,
	is_active              BOOLEAN NOT NULL DEFAULT TRUE,
	access_count           INTEGER NOT NULL DEFAULT 0,
	last_accessed_turn     INTEGER,
	expires_at             TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_identity ON memories(user_id, memory_type, key, is_active);
CREATE INDEX IF NOT EXISTS idx_memories_user_created ON memories(user_id, is_active, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_memories_conversation ON memories(user_id, source_conversation_id);
`

// PostgresStore implements Store on a pgx connection pool. Processes
// sharing one database should share a keylock.Redis locker as well.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

// NewPostgresStore connects to databaseURL and creates the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{pool: pool, opts: buildOptions(opts)}, nil
}

func (s *PostgresStore) Write(ctx context.Context, p WriteParams) (*model.Memory, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	unlock, err := s.opts.locker.Lock(ctx, keylock.Key(p.UserID, string(p.Type), p.Key))
	if err != nil {
		return nil, fmt.Errorf("lock %s/%s: %w", p.Type, p.Key, err)
	}
	defer unlock()

	now := s.opts.now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE memories SET is_active = FALSE, updated_at = $1
		 WHERE user_id = $2 AND memory_type = $3 AND key = $4 AND is_active`,
		now, p.UserID, string(p.Type), p.Key)
	if err != nil {
		return nil, fmt.Errorf("deactivate previous: %w", err)
	}

	m := newMemory(p, now)
	_, err = s.pool.Exec(ctx,
		`INSERT INTO memories (`+memoryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, 0, NULL, $11, $12, $13)`,
		m.ID, m.UserID, string(m.Type), m.Key, m.Value, nullString(m.Context),
		m.Confidence, m.Importance, nullString(m.SourceConversationID), m.SourceTurn,
		m.ExpiresAt, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	s.opts.logger.Debug("memory written",
		"user", p.UserID, "type", p.Type, "key", p.Key, "id", m.ID, "superseded", tag.RowsAffected())
	return m, nil
}

func (s *PostgresStore) Get(ctx context.Context, id, userID string) (*model.Memory, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = $1 AND user_id = $2`, id, userID)
	m, err := scanPgMemory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) ListActive(ctx context.Context, p ListParams) ([]model.Memory, error) {
	now := s.opts.now().UTC()
	where := []string{"user_id = $1", "is_active", "(expires_at IS NULL OR expires_at > $2)"}
	args := []any{p.UserID, now}

	if len(p.Types) > 0 {
		types := make([]string, len(p.Types))
		for i, t := range p.Types {
			types[i] = string(t)
		}
		args = append(args, types)
		where = append(where, fmt.Sprintf("memory_type = ANY($%d)", len(args)))
	}
	if p.HoursAgo > 0 {
		args = append(args, now.Add(-time.Duration(p.HoursAgo*float64(time.Hour))))
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	order := "created_at DESC, id DESC"
	if p.OrderBy == OrderImportance {
		order = "importance_score DESC, created_at DESC, id DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM memories WHERE %s ORDER BY %s`,
		memoryColumns, strings.Join(where, " AND "), order)
	if p.Limit > 0 {
		args = append(args, p.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return s.query(ctx, query, args...)
}

func (s *PostgresStore) History(ctx context.Context, userID string, t model.MemoryType, key string) ([]model.Memory, error) {
	return s.query(ctx,
		`SELECT `+memoryColumns+` FROM memories
		 WHERE user_id = $1 AND memory_type = $2 AND key = $3
		 ORDER BY created_at DESC, id DESC`,
		userID, string(t), key)
}

func (s *PostgresStore) Update(ctx context.Context, id, userID string, u Updates) (*model.Memory, error) {
	fields := parseUpdates(u, s.opts.logger)
	if len(fields) == 0 {
		return s.Get(ctx, id, userID)
	}

	args := []any{s.opts.now().UTC()}
	sets := []string{"updated_at = $1"}
	for _, f := range fields {
		args = append(args, f.value)
		sets = append(sets, fmt.Sprintf("%s = $%d", f.column, len(args)))
	}
	args = append(args, id, userID)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE memories SET %s WHERE id = $%d AND user_id = $%d`,
			strings.Join(sets, ", "), len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, fmt.Errorf("update memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return s.Get(ctx, id, userID)
}

func (s *PostgresStore) Deactivate(ctx context.Context, id, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories SET is_active = FALSE, updated_at = $1 WHERE id = $2 AND user_id = $3 AND is_active`,
		s.opts.now().UTC(), id, userID)
	if err != nil {
		return false, fmt.Errorf("deactivate memory: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeactivateByConversation(ctx context.Context, conversationID, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories SET is_active = FALSE, updated_at = $1
		 WHERE source_conversation_id = $2 AND user_id = $3 AND is_active`,
		s.opts.now().UTC(), conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("deactivate conversation: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) RecordAccess(ctx context.Context, id, userID string, turn int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories SET access_count = access_count + 1,
		 last_accessed_turn = CASE WHEN $1::int > 0 THEN $1::int ELSE last_accessed_turn END, updated_at = $2
		 WHERE id = $3 AND user_id = $4`,
		turn, s.opts.now().UTC(), id, userID)
	if err != nil {
		return false, fmt.Errorf("record access: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Stats(ctx context.Context, userID string) (*Stats, error) {
	st := &Stats{UserID: userID, ByType: map[string]int{}}

	rows, err := s.pool.Query(ctx,
		`SELECT memory_type, COUNT(*), COUNT(*) FILTER (WHERE importance_score >= $1)
		 FROM memories WHERE user_id = $2 AND is_active
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]model.Memory, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanPgMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func scanPgMemory(row pgx.Row) (model.Memory, error) {
	var m model.Memory
	var typ string
	var note, conversation *string

	err := row.Scan(
		&m.ID, &m.UserID, &typ, &m.Key, &m.Value, &note, &m.Confidence, &m.Importance,
		&conversation, &m.SourceTurn, &m.IsActive, &m.AccessCount, &m.LastAccessedTurn,
		&m.ExpiresAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return m, err
	}

	m.Type = model.MemoryType(typ)
	if note != nil {
		m.Context = *note
	}
	if conversation != nil {
		m.SourceConversationID = *conversation
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}
