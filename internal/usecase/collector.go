package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// Collector turns a user's active feeds into fresh candidates.
type Collector struct {
	fetcher ports.FeedFetcher
	history ports.HistoryStore
	logger  *slog.Logger
	newID   func() string
}

// NewCollector wires the feed fetcher and the history lookup.
func NewCollector(fetcher ports.FeedFetcher, history ports.HistoryStore, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		fetcher: fetcher,
		history: history,
		logger:  logger.With("component", "collector"),
		newID:   uuid.NewString,
	}
}

// Collect reads up to limit entries per active source, in registry order,
// and drops every URL already delivered to the user. A failing source is
// skipped; a failing history lookup fails the collection.
func (c *Collector) Collect(ctx context.Context, user domain.User, limit int) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	for _, source := range user.ActiveSources() {
		items, err := c.fetcher.Fetch(ctx, source.URL, limit)
		if err != nil {
			c.logger.Warn("skip source", "user", user.Name, "source", source.Name, "url", source.URL, "error", err)
			continue
		}
		for _, item := range items {
			link := strings.TrimSpace(item.Link)
			if link == "" {
				continue
			}
			candidates = append(candidates, domain.Candidate{
				ID:          c.newID(),
				Title:       item.Title,
				URL:         link,
				Source:      source.Name,
				Published:   item.Published,
				PublishedAt: item.PublishedAt,
			})
		}
	}

	if len(candidates) == 0 || c.history == nil {
		return candidates, nil
	}

	urls := make([]string, len(candidates))
	for i, cand := range candidates {
		urls[i] = cand.URL
	}
	delivered, err := c.history.Delivered(ctx, user.ID, urls)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	fresh := candidates[:0]
	for _, cand := range candidates {
		if delivered[cand.URL] {
			continue
		}
		fresh = append(fresh, cand)
	}
	c.debug("collected", "user", user.Name, "fresh", len(fresh), "seen", len(candidates)-len(fresh))
	return fresh, nil
}

func (c *Collector) debug(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, args...)
}
