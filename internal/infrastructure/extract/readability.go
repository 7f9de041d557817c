package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; DailyBriefing/1.0)"
	maxPageBytes = 5 << 20
)

// ErrNoContent is returned for pages without readable article text.
var ErrNoContent = errors.New("no readable content")

// ReadabilityExtractor downloads a page and extracts the article body.
type ReadabilityExtractor struct {
	client *http.Client
	images *ImageStore
	logger *slog.Logger
}

var _ ports.Extractor = (*ReadabilityExtractor)(nil)

// NewReadabilityExtractor wires the HTTP client. A nil image store disables
// image downloads.
func NewReadabilityExtractor(client *http.Client, images *ImageStore, logger *slog.Logger) *ReadabilityExtractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadabilityExtractor{client: client, images: images, logger: logger.With("component", "extractor")}
}

// Extract returns the plain text, lead image and authors of the page.
// Image failures only drop the image.
func (e *ReadabilityExtractor) Extract(ctx context.Context, rawURL string) (domain.Extraction, error) {
	pageURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("parse url: %w", err)
	}

	body, err := e.download(ctx, pageURL.String())
	if err != nil {
		return domain.Extraction{}, err
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("extract article: %w", err)
	}
	if article.Node == nil {
		return domain.Extraction{}, ErrNoContent
	}

	var text strings.Builder
	if err := article.RenderText(&text); err != nil {
		return domain.Extraction{}, fmt.Errorf("render text: %w", err)
	}
	content := normalizeText(text.String())
	if content == "" {
		return domain.Extraction{}, ErrNoContent
	}

	ex := domain.Extraction{Content: content}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		ex.Authors = mergeAuthors(splitByline(article.Byline()), metaAuthors(doc))
	} else {
		ex.Authors = splitByline(article.Byline())
	}

	imageURL := article.ImageURL()
	if imageURL == "" && doc != nil {
		imageURL = metaImage(doc)
	}
	ex.ImageURL = resolve(pageURL, imageURL)

	if e.images != nil && ex.ImageURL != "" {
		path, err := e.images.Save(ctx, ex.ImageURL)
		if err != nil {
			e.logger.Warn("skip image", "url", rawURL, "image", ex.ImageURL, "error", err)
		} else {
			ex.ImagePath = path
		}
	}
	return ex, nil
}

func (e *ReadabilityExtractor) download(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page %s returned %s", pageURL, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("page %s is %s, not html", pageURL, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return body, nil
}

func metaAuthors(doc *goquery.Document) []string {
	var authors []string
	doc.Find(`meta[name="author"], meta[property="article:author"]`).Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" || strings.HasPrefix(content, "http") {
			return
		}
		authors = append(authors, splitByline(content)...)
	})
	return authors
}

func metaImage(doc *goquery.Document) string {
	for _, sel := range []string{`meta[property="og:image"]`, `meta[name="twitter:image"]`, `link[rel="image_src"]`} {
		node := doc.Find(sel).First()
		if v := strings.TrimSpace(node.AttrOr("content", node.AttrOr("href", ""))); v != "" {
			return v
		}
	}
	return ""
}

func splitByline(byline string) []string {
	byline = strings.TrimSpace(byline)
	for _, prefix := range []string{"Por ", "por ", "By ", "by "} {
		byline = strings.TrimPrefix(byline, prefix)
	}
	if byline == "" {
		return nil
	}
	byline = strings.ReplaceAll(byline, " e ", ",")
	byline = strings.ReplaceAll(byline, " and ", ",")

	var out []string
	for _, part := range strings.Split(byline, ",") {
		if name := strings.Join(strings.Fields(part), " "); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func mergeAuthors(groups ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, group := range groups {
		for _, name := range group {
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	return out
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
