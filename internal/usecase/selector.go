package usecase

import (
	"context"
	"log/slog"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// Selector asks the generation service for the most relevant candidates.
type Selector struct {
	generator ports.Generator
	logger    *slog.Logger
}

// NewSelector builds a selector over the generation capability.
func NewSelector(generator ports.Generator, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{generator: generator, logger: logger.With("component", "selector")}
}

// Select returns at most limit candidates in their original order. Any
// service or parse error yields the first limit candidates instead; the
// second return value reports that fallback.
func (s *Selector) Select(ctx context.Context, candidates []domain.Candidate, topics []string, limit int) ([]domain.Candidate, bool) {
	if len(candidates) == 0 || limit <= 0 {
		return nil, false
	}

	ids, err := s.generator.SelectRelevant(ctx, candidates, topics, limit)
	if err != nil {
		s.logger.Warn("selection failed, keeping feed order", "candidates", len(candidates), "limit", limit, "error", err)
		return prefix(candidates, limit), true
	}

	chosen := make(map[string]bool, len(ids))
	for _, id := range ids {
		chosen[id] = true
	}

	selected := make([]domain.Candidate, 0, limit)
	for _, cand := range candidates {
		if !chosen[cand.ID] {
			continue
		}
		selected = append(selected, cand)
		if len(selected) == limit {
			break
		}
	}
	return selected, false
}

func prefix(candidates []domain.Candidate, limit int) []domain.Candidate {
	if len(candidates) <= limit {
		return append([]domain.Candidate(nil), candidates...)
	}
	return append([]domain.Candidate(nil), candidates[:limit]...)
}
