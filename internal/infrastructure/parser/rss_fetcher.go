package parser

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

const userAgent = "DailyBriefing/1.0 (+https://github.com/dailybriefing)"

// RSSFetcher downloads RSS, Atom or JSON feeds and returns their newest
// entries in feed order.
type RSSFetcher struct {
	client *http.Client
	policy *bluemonday.Policy
	logger *slog.Logger
}

var _ ports.FeedFetcher = (*RSSFetcher)(nil)

// NewRSSFetcher wires an HTTP client; a nil client gets a 20s timeout.
func NewRSSFetcher(client *http.Client, logger *slog.Logger) *RSSFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger != nil {
		logger = logger.With("component", "rss")
	}
	return &RSSFetcher{
		client: client,
		policy: bluemonday.StrictPolicy(),
		logger: logger,
	}
}

// Fetch returns at most limit entries of the feed. A limit of zero or less
// returns every entry.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string, limit int) ([]domain.FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned %s", feedURL, resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := feed.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	out := make([]domain.FeedItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, domain.FeedItem{
			Title:       f.cleanTitle(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Published:   publishedText(item),
			PublishedAt: publishedTime(item),
		})
	}
	f.debug("feed fetched", "url", feedURL, "title", feed.Title, "entries", len(feed.Items), "kept", len(out))
	return out, nil
}

func (f *RSSFetcher) cleanTitle(raw string) string {
	text := html.UnescapeString(f.policy.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}

func publishedText(item *gofeed.Item) string {
	if item.Published != "" {
		return strings.TrimSpace(item.Published)
	}
	return strings.TrimSpace(item.Updated)
}

func publishedTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

func (f *RSSFetcher) debug(msg string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
