package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// Writer renders a document into one file format.
type Writer interface {
	Format() string
	Write(doc Document, path string) error
}

// Registry keeps a mapping from format names to their writers.
type Registry struct {
	writers map[string]Writer
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{writers: map[string]Writer{}}
}

// DefaultRegistry registers the PDF and EPUB writers.
func DefaultRegistry(logger *slog.Logger, pdfOpts ...PDFOption) *Registry {
	r := NewRegistry()
	r.Register(NewPDFWriter(logger, pdfOpts...))
	r.Register(NewEPUBWriter(logger))
	return r
}

// Register adds or replaces a writer implementation.
func (r *Registry) Register(w Writer) {
	if r.writers == nil {
		r.writers = map[string]Writer{}
	}
	r.writers[w.Format()] = w
}

// Resolve returns a writer by format or an error if it is absent.
func (r *Registry) Resolve(format string) (Writer, error) {
	if w, ok := r.writers[strings.ToLower(format)]; ok {
		return w, nil
	}
	return nil, fmt.Errorf("format %s is not supported", format)
}

// Settings configures a Renderer.
type Settings struct {
	OutputDir string
	Formats   []string
	MultiUser bool
	Options   Options
}

// Renderer writes each configured format of an edition to the output
// directory.
type Renderer struct {
	settings Settings
	registry *Registry
	logger   *slog.Logger
}

var _ ports.Renderer = (*Renderer)(nil)

// NewRenderer validates the formats against the registry.
func NewRenderer(settings Settings, registry *Registry, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = DefaultRegistry(logger)
	}
	if len(settings.Formats) == 0 {
		settings.Formats = []string{"pdf"}
	}
	for _, f := range settings.Formats {
		if _, err := registry.Resolve(f); err != nil {
			return nil, err
		}
	}
	return &Renderer{settings: settings, registry: registry, logger: logger.With("component", "renderer")}, nil
}

// Render composes the edition once and writes every format. On failure the
// files already written for this edition are removed.
func (r *Renderer) Render(ctx context.Context, edition domain.Edition) ([]string, error) {
	doc := Compose(edition, r.settings.Options)

	if err := os.MkdirAll(r.settings.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	name := ""
	if r.settings.MultiUser {
		name = edition.User.FirstName()
	}

	var written []string
	for _, format := range r.settings.Formats {
		if err := ctx.Err(); err != nil {
			removeAll(written)
			return nil, err
		}
		w, err := r.registry.Resolve(format)
		if err != nil {
			removeAll(written)
			return nil, err
		}
		path := filepath.Join(r.settings.OutputDir, FileName(edition.Date, name, w.Format()))
		if err := w.Write(doc, path); err != nil {
			removeAll(written)
			return nil, fmt.Errorf("%s: %w", w.Format(), err)
		}
		r.logger.Info("document written", "path", path, "articles", len(doc.Articles))
		written = append(written, path)
	}
	return written, nil
}

// FileName returns Jornal_<YYYY-MM-DD>[_<name>].<ext>.
func FileName(date time.Time, name, ext string) string {
	base := "Jornal_" + date.Format("2006-01-02")
	if clean := safeName(name); clean != "" {
		base += "_" + clean
	}
	return base + "." + ext
}

func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return -1
	}, name)
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
