// Package storage provides typed repositories over a swappable backing
// store: PostgreSQL for deployments, a single-file SQLite database for
// local use.
package storage

import (
	"context"
	"errors"

	"github.com/shynlabs/shyn/internal/types"
)

// ErrUnsupported is returned by operations the active backend cannot
// serve (similarity search on SQLite).
var ErrUnsupported = errors.New("storage: operation not supported by this backend")

// HistoryRepo persists chat transcripts keyed per (user, mood).
type HistoryRepo interface {
	Messages(ctx context.Context, userID int, mood types.Mood) ([]types.ChatMessage, error)
	AppendMessage(ctx context.Context, userID int, msg types.ChatMessage) error
}

// MemoryRepo persists extracted memories keyed per user. Insertion is
// append-only; the service layer owns deduplication.
type MemoryRepo interface {
	ForUser(ctx context.Context, userID int) ([]types.Memory, error)
	Insert(ctx context.Context, userID int, mem types.Memory, embedding []float32) error
	SearchSimilar(ctx context.Context, userID int, embedding []float32, topK int) ([]types.Memory, error)
}

// AffectionRepo persists the relationship score per (user, mood).
type AffectionRepo interface {
	// Get returns the stored level, or the floor when no record exists.
	Get(ctx context.Context, userID int, mood types.Mood) (float64, error)
	Set(ctx context.Context, userID int, mood types.Mood, level float64) error
}

// UserRepo serves account data, read-only from the core's point of view.
type UserRepo interface {
	Me(ctx context.Context) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	AdminStats(ctx context.Context) (types.AdminStats, error)
	ActivitySeries(ctx context.Context, days int) ([]types.ActivityPoint, error)
}

// Store bundles the repositories behind one backend.
type Store struct {
	History   HistoryRepo
	Memories  MemoryRepo
	Affection AffectionRepo
	Users     UserRepo

	closeFunc func() error
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.closeFunc == nil {
		return nil
	}
	return s.closeFunc()
}

// Open selects the backend: PostgreSQL when databaseURL is set, otherwise
// SQLite at sqlitePath.
func Open(ctx context.Context, databaseURL, sqlitePath string) (*Store, error) {
	if databaseURL != "" {
		return openPostgres(ctx, databaseURL)
	}
	return openSQLite(ctx, sqlitePath)
}

// seedUsers is the account fixture applied when the users table is empty.
var seedUsers = []types.User{
	{ID: 1, Name: "Demo User", Email: "user@example.com", Role: "admin", LastActive: "Online", Status: "active"},
	{ID: 2, Name: "Jane Doe", Email: "jane@example.com", Role: "user", LastActive: "2 hours ago", Status: "away"},
	{ID: 3, Name: "John Smith", Email: "john@example.com", Role: "user", LastActive: "5 days ago", Status: "inactive"},
	{ID: 4, Name: "Emily White", Email: "emily@example.com", Role: "user", LastActive: "10 minutes ago", Status: "active"},
}

func statsFrom(users []types.User) types.AdminStats {
	stats := types.AdminStats{Total: len(users)}
	for _, u := range users {
		if u.Status == "active" {
			stats.Active++
		}
		if u.Role == "admin" {
			stats.Admins++
		}
	}
	return stats
}
