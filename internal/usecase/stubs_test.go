package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

var (
	_ ports.UserRegistry = (*stubRegistry)(nil)
	_ ports.HistoryStore = (*memoryHistory)(nil)
	_ ports.FeedFetcher  = (*stubFetcher)(nil)
	_ ports.Generator    = (*stubGenerator)(nil)
	_ ports.Extractor    = (*stubExtractor)(nil)
	_ ports.Renderer     = (*stubRenderer)(nil)
	_ ports.Mailer       = (*stubMailer)(nil)
	_ ports.Notifier     = (*stubNotifier)(nil)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 17, 6, 0, 0, 0, time.UTC)
}

type stubRegistry struct {
	users []domain.User
	err   error
}

func (r *stubRegistry) ActiveUsers(context.Context) ([]domain.User, error) {
	return r.users, r.err
}

type memoryHistory struct {
	mu        sync.Mutex
	entries   map[int64][]domain.HistoryEntry
	lookupErr error
	recordErr error
	records   int
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{entries: map[int64][]domain.HistoryEntry{}}
}

func (h *memoryHistory) Delivered(_ context.Context, userID int64, urls []string) (map[string]bool, error) {
	if h.lookupErr != nil {
		return nil, h.lookupErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := map[string]bool{}
	for _, e := range h.entries[userID] {
		for _, u := range urls {
			if e.URL == u {
				seen[u] = true
			}
		}
	}
	return seen, nil
}

func (h *memoryHistory) Record(_ context.Context, userID int64, entries []domain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records++
	if h.recordErr != nil {
		return h.recordErr
	}
	h.entries[userID] = append(h.entries[userID], entries...)
	return nil
}

func (h *memoryHistory) count(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries[userID])
}

type stubFetcher struct {
	feeds map[string][]domain.FeedItem
	fails map[string]bool
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, feedURL string, limit int) ([]domain.FeedItem, error) {
	f.calls = append(f.calls, feedURL)
	if f.fails[feedURL] {
		return nil, fmt.Errorf("fetch %s: connection refused", feedURL)
	}
	items := f.feeds[feedURL]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

type stubGenerator struct {
	selectFn    func([]domain.Candidate, int) ([]string, error)
	summarizeFn func(domain.EnrichedArticle) (string, error)
	briefingFn  func([]string) (string, error)

	summarized []domain.EnrichedArticle
}

func firstIDs(candidates []domain.Candidate, limit int) ([]string, error) {
	var ids []string
	for i := 0; i < len(candidates) && i < limit; i++ {
		ids = append(ids, candidates[i].ID)
	}
	return ids, nil
}

func (g *stubGenerator) SelectRelevant(_ context.Context, candidates []domain.Candidate, _ []string, limit int) ([]string, error) {
	if g.selectFn == nil {
		return firstIDs(candidates, limit)
	}
	return g.selectFn(candidates, limit)
}

func (g *stubGenerator) Summarize(_ context.Context, article domain.EnrichedArticle) (string, error) {
	g.summarized = append(g.summarized, article)
	if g.summarizeFn == nil {
		return "## " + article.Title + "\nResumo.", nil
	}
	return g.summarizeFn(article)
}

func (g *stubGenerator) ComposeBriefing(_ context.Context, summaries []string) (string, error) {
	if g.briefingFn == nil {
		return fmt.Sprintf("# Briefing\n%d notícias", len(summaries)), nil
	}
	return g.briefingFn(summaries)
}

type stubExtractor struct {
	fails map[string]bool
	calls []string
}

func (e *stubExtractor) Extract(_ context.Context, url string) (domain.Extraction, error) {
	e.calls = append(e.calls, url)
	if e.fails[url] {
		return domain.Extraction{}, errors.New("article not readable")
	}
	return domain.Extraction{Content: "corpo de " + url}, nil
}

type stubRenderer struct {
	err      error
	panics   bool
	editions []domain.Edition
}

func (r *stubRenderer) Render(_ context.Context, edition domain.Edition) ([]string, error) {
	if r.panics {
		panic("renderer exploded")
	}
	r.editions = append(r.editions, edition)
	if r.err != nil {
		return nil, r.err
	}
	return []string{fmt.Sprintf("out/Jornal_%s_%s.pdf", edition.Date.Format("2006-01-02"), edition.User.FirstName())}, nil
}

type stubMailer struct {
	err  error
	sent []string
}

func (m *stubMailer) Send(_ context.Context, path, to string) error {
	m.sent = append(m.sent, to+":"+path)
	return m.err
}

type stubNotifier struct {
	digests []string
}

func (n *stubNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return nil
}

type countingObserver struct {
	fallbacks int
	skipped   int
	degraded  int
	delivered map[bool]int
	stages    map[domain.Stage]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{delivered: map[bool]int{}, stages: map[domain.Stage]int{}}
}

func (o *countingObserver) CandidatesCollected(int) {}
func (o *countingObserver) SelectionFallback() { o.fallbacks++ }
func (o *countingObserver) ArticleEnriched() {}
func (o *countingObserver) ArticleSkipped() { o.skipped++ }
func (o *countingObserver) SummaryDegraded() { o.degraded++ }
func (o *countingObserver) Delivery(ok bool) { o.delivered[ok]++ }
func (o *countingObserver) UserRun(stage domain.Stage) { o.stages[stage]++ }
