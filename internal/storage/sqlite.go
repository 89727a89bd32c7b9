package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shynlabs/shyn/internal/types"
)

// sqliteMigrations creates the schema. The layout mirrors the postgres
// models minus the vector column, which SQLite cannot serve.
var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		mood TEXT NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		attachment_name TEXT NOT NULL DEFAULT '',
		attachment_type TEXT NOT NULL DEFAULT '',
		attachment_url TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_thread
		ON chat_messages (user_id, mood, created_at)`,
	`CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		topic TEXT NOT NULL,
		detail TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS affection_levels (
		user_id INTEGER NOT NULL,
		mood TEXT NOT NULL,
		level REAL NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, mood)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		last_active TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT ''
	)`,
}

func openSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "shyn.db"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	for _, stmt := range sqliteMigrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}

	users := &sqliteUserRepo{db: db}
	if err := users.seed(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		History:   &sqliteHistoryRepo{db: db},
		Memories:  &sqliteMemoryRepo{db: db},
		Affection: &sqliteAffectionRepo{db: db},
		Users:     users,
		closeFunc: db.Close,
	}, nil
}

type sqliteHistoryRepo struct {
	db *sql.DB
}

func (r *sqliteHistoryRepo) Messages(ctx context.Context, userID int, mood types.Mood) ([]types.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender, text, attachment_name, attachment_type, attachment_url, created_at
		FROM chat_messages
		WHERE user_id = ? AND mood = ?
		ORDER BY created_at ASC, id ASC`, userID, string(mood))
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var results []types.ChatMessage
	for rows.Next() {
		var sender, text, attName, attType, attURL, createdAt string
		if err := rows.Scan(&sender, &text, &attName, &attType, &attURL, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg := types.ChatMessage{
			Sender:    types.Sender(sender),
			Text:      text,
			Mood:      mood,
			CreatedAt: parseTime(createdAt),
		}
		if attURL != "" {
			msg.Attachment = &types.Attachment{Name: attName, Type: attType, URL: attURL}
		}
		results = append(results, msg)
	}
	return results, rows.Err()
}

func (r *sqliteHistoryRepo) AppendMessage(ctx context.Context, userID int, msg types.ChatMessage) error {
	var attName, attType, attURL string
	if msg.Attachment != nil {
		attName = msg.Attachment.Name
		attType = msg.Attachment.Type
		attURL = msg.Attachment.URL
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_messages (user_id, mood, sender, text, attachment_name, attachment_type, attachment_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, string(msg.Mood), string(msg.Sender), msg.Text,
		attName, attType, attURL, formatTime(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

type sqliteMemoryRepo struct {
	db *sql.DB
}

func (r *sqliteMemoryRepo) ForUser(ctx context.Context, userID int) ([]types.Memory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, topic, detail, created_at
		FROM memories
		WHERE user_id = ?
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var results []types.Memory
	for rows.Next() {
		var id, topic, detail, createdAt string
		if err := rows.Scan(&id, &topic, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		results = append(results, types.Memory{
			ID:        id,
			Topic:     topic,
			Detail:    detail,
			Timestamp: parseTime(createdAt),
		})
	}
	return results, rows.Err()
}

func (r *sqliteMemoryRepo) Insert(ctx context.Context, userID int, mem types.Memory, _ []float32) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO memories (id, user_id, topic, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		mem.ID, userID, mem.Topic, mem.Detail, formatTime(mem.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (r *sqliteMemoryRepo) SearchSimilar(ctx context.Context, userID int, embedding []float32, topK int) ([]types.Memory, error) {
	return nil, ErrUnsupported
}

type sqliteAffectionRepo struct {
	db *sql.DB
}

func (r *sqliteAffectionRepo) Get(ctx context.Context, userID int, mood types.Mood) (float64, error) {
	var level float64
	err := r.db.QueryRowContext(ctx, `
		SELECT level FROM affection_levels WHERE user_id = ? AND mood = ?`,
		userID, string(mood)).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return types.AffectionFloor, nil
	}
	if err != nil {
		return types.AffectionFloor, fmt.Errorf("failed to query affection: %w", err)
	}
	return level, nil
}

func (r *sqliteAffectionRepo) Set(ctx context.Context, userID int, mood types.Mood, level float64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO affection_levels (user_id, mood, level, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, mood) DO UPDATE SET
			level = excluded.level,
			updated_at = excluded.updated_at`,
		userID, string(mood), level, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to persist affection: %w", err)
	}
	return nil
}

type sqliteUserRepo struct {
	db *sql.DB
}

func (r *sqliteUserRepo) seed(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, u := range seedUsers {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO users (id, name, email, role, avatar_url, last_active, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Name, u.Email, u.Role, u.AvatarURL, u.LastActive, u.Status)
		if err != nil {
			return fmt.Errorf("failed to seed users: %w", err)
		}
	}
	return nil
}

func (r *sqliteUserRepo) Me(ctx context.Context) (types.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, avatar_url, last_active, status
		FROM users ORDER BY id ASC LIMIT 1`)
	return scanUser(row)
}

func (r *sqliteUserRepo) List(ctx context.Context) ([]types.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, role, avatar_url, last_active, status
		FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var results []types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.AvatarURL, &u.LastActive, &u.Status); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

func (r *sqliteUserRepo) AdminStats(ctx context.Context) (types.AdminStats, error) {
	users, err := r.List(ctx)
	if err != nil {
		return types.AdminStats{}, err
	}
	return statsFrom(users), nil
}

func (r *sqliteUserRepo) ActivitySeries(ctx context.Context, days int) ([]types.ActivityPoint, error) {
	since := time.Now().AddDate(0, 0, -days+1).Truncate(24 * time.Hour)
	rows, err := r.db.QueryContext(ctx, `
		SELECT substr(created_at, 1, 10) AS day, COUNT(DISTINCT user_id)
		FROM chat_messages
		WHERE created_at >= ?
		GROUP BY day
		ORDER BY day ASC`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query activity series: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]int)
	for rows.Next() {
		var day string
		var users int
		if err := rows.Scan(&day, &users); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		if parsed, err := time.Parse("2006-01-02", day); err == nil {
			byDay[parsed.Format("Jan 2")] = users
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fillActivitySeries(byDay, days), nil
}

func scanUser(row *sql.Row) (types.User, error) {
	var u types.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.AvatarURL, &u.LastActive, &u.Status); err != nil {
		return types.User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
