// Package memory manages long-term facts extracted from conversation:
// deduplicated append-only storage, recency retrieval, and the detached
// post-turn extraction pipeline.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shynlabs/shyn/internal/storage"
	"github.com/shynlabs/shyn/internal/types"
)

// Service wraps the memory repository with the dedup and recency rules.
type Service struct {
	repo     storage.MemoryRepo
	embedder Embedder // nil when embeddings are not configured
	nowFunc  func() time.Time
	newID    func() string
}

// NewService returns a memory service. embedder may be nil.
func NewService(repo storage.MemoryRepo, embedder Embedder) *Service {
	return &Service{
		repo:     repo,
		embedder: embedder,
		nowFunc:  time.Now,
		newID:    uuid.NewString,
	}
}

// All returns every memory for the user, oldest first. Read errors are
// swallowed into an empty slice; memory retrieval never fails a session.
func (s *Service) All(ctx context.Context, userID int) []types.Memory {
	memories, err := s.repo.ForUser(ctx, userID)
	if err != nil {
		slog.Error("failed to load memories", "user_id", userID, "error", err.Error())
		return nil
	}
	return memories
}

// Recent returns the limit most recent memories by timestamp.
func (s *Service) Recent(ctx context.Context, userID int, limit int) []types.Memory {
	if limit <= 0 {
		limit = types.RecentMemoryMax
	}
	memories := s.All(ctx, userID)
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Timestamp.After(memories[j].Timestamp)
	})
	if len(memories) > limit {
		memories = memories[:limit]
	}
	return memories
}

// Append stores each candidate unless an existing memory for the user has
// a case-insensitively equal detail. Persistence failures are logged and
// never surfaced; the conversation must not notice.
func (s *Service) Append(ctx context.Context, userID int, candidates []types.MemoryCandidate) {
	if len(candidates) == 0 {
		return
	}

	existing := s.All(ctx, userID)
	seen := make(map[string]struct{}, len(existing))
	for _, mem := range existing {
		seen[strings.ToLower(mem.Detail)] = struct{}{}
	}

	for _, candidate := range candidates {
		key := strings.ToLower(candidate.Detail)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		mem := types.Memory{
			ID:        s.newID(),
			Topic:     candidate.Topic,
			Detail:    candidate.Detail,
			Timestamp: s.nowFunc(),
		}

		var embedding []float32
		if s.embedder != nil {
			vec, err := s.embedder.EmbedDocument(ctx, candidate.Detail)
			if err != nil {
				slog.Warn("failed to embed memory, storing without vector",
					"user_id", userID, "error", err.Error())
			} else {
				embedding = vec
			}
		}

		if err := s.repo.Insert(ctx, userID, mem, embedding); err != nil {
			slog.Error("failed to persist memory", "user_id", userID, "error", err.Error())
		}
	}
}

// Search returns memories semantically similar to query. Requires an
// embedder and a vector-capable backend.
func (s *Service) Search(ctx context.Context, userID int, query string, topK int) ([]types.Memory, error) {
	if s.embedder == nil {
		return nil, storage.ErrUnsupported
	}
	if topK <= 0 {
		topK = types.RecentMemoryMax
	}
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.repo.SearchSimilar(ctx, userID, vec, topK)
}
