package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

const (
	summaryPlaceholder  = "## %s\nErro no resumo."
	briefingPlaceholder = "# Briefing\nErro."
)

var errNoAddress = errors.New("user has no delivery address")

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Registry  ports.UserRegistry
	History   ports.HistoryStore
	Fetcher   ports.FeedFetcher
	Generator ports.Generator
	Extractor ports.Extractor
	Renderer  ports.Renderer
	Mailer    ports.Mailer
	Notifier  ports.Notifier
	Observer  ports.RunObserver
	Logger    *slog.Logger
	Clock     func() time.Time
}

// PipelineOptions carries the per-run knobs.
type PipelineOptions struct {
	ScanLimit     int
	MaxArticles   int
	BodyCharLimit int
	Deliver       bool
	DryRun        bool
	// UserFilter restricts the batch to users whose name or first name
	// matches, case-insensitively.
	UserFilter string
}

// Pipeline implements the per-user newspaper workflow.
type Pipeline struct {
	registry  ports.UserRegistry
	history   ports.HistoryStore
	collector *Collector
	selector  *Selector
	generator ports.Generator
	extractor ports.Extractor
	renderer  ports.Renderer
	mailer    ports.Mailer
	notifier  ports.Notifier
	observer  ports.RunObserver
	logger    *slog.Logger
	clock     func() time.Time
	opts      PipelineOptions
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Pipeline{
		registry:  deps.Registry,
		history:   deps.History,
		collector: NewCollector(deps.Fetcher, deps.History, logger),
		selector:  NewSelector(deps.Generator, logger),
		generator: deps.Generator,
		extractor: deps.Extractor,
		renderer:  deps.Renderer,
		mailer:    deps.Mailer,
		notifier:  deps.Notifier,
		observer:  observer,
		logger:    logger.With("component", "pipeline"),
		clock:     clock,
		opts:      opts,
	}
}

// RunAll processes every active user for the given edition date, one at a
// time. A failure for one user never stops the others.
func (p *Pipeline) RunAll(ctx context.Context, day time.Time) ([]domain.RunReport, error) {
	if p.registry == nil {
		return nil, errors.New("no user registry configured")
	}
	users, err := p.registry.ActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	users = filterUsers(users, p.opts.UserFilter)
	if p.opts.UserFilter != "" && len(users) == 0 {
		return nil, fmt.Errorf("no active user matches %q", p.opts.UserFilter)
	}

	reports := make([]domain.RunReport, 0, len(users))
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report := p.RunUser(ctx, user, day)
		p.observer.UserRun(report.Stage)
		reports = append(reports, report)
	}

	if p.notifier != nil && len(reports) > 0 {
		if err := p.notifier.PublishDigest(ctx, buildDigestMessage(day, reports)); err != nil {
			p.logger.Warn("publish digest", "error", err)
		}
	}
	return reports, nil
}

// RunUser executes the whole state machine for one user. Panics are
// recovered into a failed report.
func (p *Pipeline) RunUser(ctx context.Context, user domain.User, day time.Time) (report domain.RunReport) {
	report = domain.RunReport{User: user, Stage: domain.StageCollecting, StartedAt: p.clock()}
	logger := p.logger.With("user", user.Name)

	defer func() {
		if r := recover(); r != nil {
			p.fail(&report, fmt.Errorf("panic: %v", r))
		}
		report.FinishedAt = p.clock()
		if report.Failed() {
			logger.Error("run failed", "stage", report.FailedAt, "error", report.Err)
			return
		}
		logger.Info("run finished", "articles", report.Articles, "delivered", report.Delivered, "recorded", report.Recorded)
	}()

	candidates, err := p.collector.Collect(ctx, user, p.opts.ScanLimit)
	if err != nil {
		p.fail(&report, err)
		return report
	}
	report.Candidates = len(candidates)
	p.observer.CandidatesCollected(len(candidates))
	if len(candidates) == 0 {
		logger.Info("no new candidates")
		report.Stage = domain.StageDone
		return report
	}

	report.Stage = domain.StageSelecting
	selected, fellBack := p.selector.Select(ctx, candidates, user.Topics, p.opts.MaxArticles)
	if fellBack {
		p.observer.SelectionFallback()
	}
	report.Selected = len(selected)

	report.Stage = domain.StageEnriching
	articles := p.enrich(ctx, logger, selected)
	report.Articles = len(articles)
	if len(articles) == 0 {
		logger.Info("no article could be downloaded")
		report.Stage = domain.StageDone
		return report
	}

	report.Stage = domain.StageSummarizing
	summaries := p.summarize(ctx, logger, articles)

	report.Stage = domain.StageComposing
	briefing, err := p.generator.ComposeBriefing(ctx, summaries)
	if err != nil {
		logger.Warn("briefing failed, using placeholder", "error", err)
		p.observer.SummaryDegraded()
		briefing = briefingPlaceholder
	}

	report.Stage = domain.StageRendering
	documents, err := p.renderer.Render(ctx, domain.Edition{
		Date:       day,
		User:       user,
		Briefing:   briefing,
		Articles:   articles,
		Candidates: candidates,
	})
	if err == nil && len(documents) == 0 {
		err = errors.New("renderer produced no document")
	}
	if err != nil {
		p.fail(&report, fmt.Errorf("render: %w", err))
		return report
	}
	report.Documents = documents

	if p.opts.DryRun || !p.opts.Deliver || p.mailer == nil {
		logger.Info("delivery skipped", "documents", documents, "dry_run", p.opts.DryRun)
		report.Stage = domain.StageDone
		return report
	}

	report.Stage = domain.StageDelivering
	if err := p.deliver(ctx, user, documents); err != nil {
		p.observer.Delivery(false)
		p.fail(&report, fmt.Errorf("deliver: %w", err))
		return report
	}
	p.observer.Delivery(true)
	report.Delivered = true

	report.Stage = domain.StageRecording
	if p.history != nil {
		entries := historyEntries(user.ID, articles, p.clock())
		if err := p.history.Record(ctx, user.ID, entries); err != nil {
			p.fail(&report, fmt.Errorf("record history: %w", err))
			return report
		}
		report.Recorded = len(entries)
	}

	report.Stage = domain.StageDone
	return report
}

func (p *Pipeline) enrich(ctx context.Context, logger *slog.Logger, selected []domain.Candidate) []domain.EnrichedArticle {
	articles := make([]domain.EnrichedArticle, 0, len(selected))
	for _, cand := range selected {
		extraction, err := p.extractor.Extract(ctx, cand.URL)
		if err != nil {
			p.observer.ArticleSkipped()
			logger.Warn("skip article", "url", cand.URL, "error", err)
			continue
		}
		p.observer.ArticleEnriched()
		articles = append(articles, domain.Enrich(cand, extraction))
	}
	return articles
}

func (p *Pipeline) summarize(ctx context.Context, logger *slog.Logger, articles []domain.EnrichedArticle) []string {
	summaries := make([]string, 0, len(articles))
	for i := range articles {
		prompt := articles[i]
		prompt.Content = truncateRunes(prompt.Content, p.opts.BodyCharLimit)

		summary, err := p.generator.Summarize(ctx, prompt)
		if err != nil {
			p.observer.SummaryDegraded()
			logger.Warn("summary failed, using placeholder", "url", articles[i].URL, "error", err)
			summary = fmt.Sprintf(summaryPlaceholder, articles[i].Title)
		}
		articles[i].Summary = summary
		summaries = append(summaries, summary)
	}
	return summaries
}

func (p *Pipeline) deliver(ctx context.Context, user domain.User, documents []string) error {
	if user.KindleEmail == "" {
		return errNoAddress
	}
	for _, doc := range documents {
		if err := p.mailer.Send(ctx, doc, user.KindleEmail); err != nil {
			return fmt.Errorf("send %s: %w", doc, err)
		}
	}
	return nil
}

func (p *Pipeline) fail(report *domain.RunReport, err error) {
	report.FailedAt = report.Stage
	report.Stage = domain.StageFailed
	report.Err = err
}

func historyEntries(userID int64, articles []domain.EnrichedArticle, deliveredAt time.Time) []domain.HistoryEntry {
	entries := make([]domain.HistoryEntry, 0, len(articles))
	for _, art := range articles {
		entries = append(entries, domain.HistoryEntry{
			UserID:      userID,
			Title:       art.Title,
			URL:         art.URL,
			PublishedAt: art.PublishedAt,
			DeliveredAt: deliveredAt,
		})
	}
	return entries
}

func filterUsers(users []domain.User, filter string) []domain.User {
	filter = strings.TrimSpace(filter)
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if !u.Active {
			continue
		}
		if filter != "" && !strings.EqualFold(u.Name, filter) && !strings.EqualFold(u.FirstName(), filter) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func buildDigestMessage(day time.Time, reports []domain.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily briefing %s\n", day.Format("2006-01-02"))
	for _, r := range reports {
		if r.Failed() {
			fmt.Fprintf(&b, "- %s: failed at %s: %v\n", r.User.Name, r.FailedAt, r.Err)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d/%d articles, delivered=%t, recorded=%d\n",
			r.User.Name, r.Articles, r.Candidates, r.Delivered, r.Recorded)
	}
	return b.String()
}

type nopObserver struct{}

func (nopObserver) CandidatesCollected(int) {}
func (nopObserver) SelectionFallback() {}
func (nopObserver) ArticleEnriched() {}
func (nopObserver) ArticleSkipped() {}
func (nopObserver) SummaryDegraded() {}
func (nopObserver) Delivery(bool) {}
func (nopObserver) UserRun(domain.Stage) {}
