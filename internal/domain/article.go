package domain

import "time"

// Candidate is a feed entry that has not been selected or downloaded yet.
// It only lives for the duration of one run.
type Candidate struct {
	ID          string
	Title       string
	URL         string
	Source      string
	Published   string
	PublishedAt *time.Time
}

// PublishedLabel returns the text shown next to the source in documents.
func (c Candidate) PublishedLabel() string {
	if c.Published != "" {
		return c.Published
	}
	if c.PublishedAt != nil {
		return c.PublishedAt.Format("02/01/2006 15:04")
	}
	return ""
}

// FeedItem is a single entry as returned by a feed fetcher.
type FeedItem struct {
	Title       string
	Link        string
	Published   string
	PublishedAt *time.Time
}

// Extraction carries what the article extractor managed to pull from a page.
type Extraction struct {
	Content   string
	ImageURL  string
	ImagePath string
	Authors   []string
}

// EnrichedArticle is a selected candidate with its downloaded body and,
// once summarized, the generated summary.
type EnrichedArticle struct {
	Candidate
	Content   string
	ImageURL  string
	ImagePath string
	Authors   []string
	Summary   string
}

// Enrich merges an extraction into the candidate.
func Enrich(c Candidate, ex Extraction) EnrichedArticle {
	return EnrichedArticle{
		Candidate: c,
		Content:   ex.Content,
		ImageURL:  ex.ImageURL,
		ImagePath: ex.ImagePath,
		Authors:   ex.Authors,
	}
}

// HistoryEntry records an article already delivered to a user.
type HistoryEntry struct {
	UserID      int64
	Title       string
	URL         string
	PublishedAt *time.Time
	DeliveredAt time.Time
}

// Edition is everything the renderer needs to produce one user's newspaper.
type Edition struct {
	Date       time.Time
	User       User
	Briefing   string
	Articles   []EnrichedArticle
	Candidates []Candidate
}
