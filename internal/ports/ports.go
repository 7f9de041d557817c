package ports

import (
	"context"
	"time"

	"DailyBriefing/internal/domain"
)

// UserRegistry lists the subscribers to process, each with its sources.
type UserRegistry interface {
	ActiveUsers(ctx context.Context) ([]domain.User, error)
}

// HistoryStore persists delivered articles for deduplication.
type HistoryStore interface {
	Delivered(ctx context.Context, userID int64, urls []string) (map[string]bool, error)
	Record(ctx context.Context, userID int64, entries []domain.HistoryEntry) error
}

// FeedFetcher reads up to limit of the most recent entries of a feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string, limit int) ([]domain.FeedItem, error)
}

// Generator is the single capability interface over the generation service.
// Each task has its own method so tests can stub them independently.
type Generator interface {
	SelectRelevant(ctx context.Context, candidates []domain.Candidate, topics []string, limit int) ([]string, error)
	Summarize(ctx context.Context, article domain.EnrichedArticle) (string, error)
	ComposeBriefing(ctx context.Context, summaries []string) (string, error)
}

// Extractor downloads a page and extracts its main text, image and authors.
type Extractor interface {
	Extract(ctx context.Context, url string) (domain.Extraction, error)
}

// Renderer turns an edition into one or more document files.
type Renderer interface {
	Render(ctx context.Context, edition domain.Edition) ([]string, error)
}

// Mailer sends a document as an email attachment.
type Mailer interface {
	Send(ctx context.Context, attachmentPath, to string) error
}

// Notifier streams batch summaries to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// RunObserver receives pipeline counters for metrics backends.
type RunObserver interface {
	CandidatesCollected(n int)
	SelectionFallback()
	ArticleEnriched()
	ArticleSkipped()
	SummaryDegraded()
	Delivery(ok bool)
	UserRun(stage domain.Stage)
}
