package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	epub "github.com/go-shiori/go-epub"
)

const epubCSS = `body { font-family: serif; line-height: 1.4; }
h1 { font-size: 1.6em; }
h2 { font-size: 1.3em; color: #00008b; }
h3 { font-size: 1.1em; }
h1.article { color: #8b0000; }
p.meta { font-style: italic; font-size: 0.8em; color: #808080; }
img { max-width: 100%; }
ul.appendix li { margin-bottom: 0.3em; }`

// EPUBWriter renders documents as reflowable EPUB books.
type EPUBWriter struct {
	logger *slog.Logger
}

// NewEPUBWriter builds the writer.
func NewEPUBWriter(logger *slog.Logger) *EPUBWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EPUBWriter{logger: logger.With("component", "epub")}
}

// Format implements Writer.
func (w *EPUBWriter) Format() string { return "epub" }

// Write renders doc into path. Nothing is written when rendering fails.
func (w *EPUBWriter) Write(doc Document, path string) error {
	book, err := epub.NewEpub(doc.Title)
	if err != nil {
		return fmt.Errorf("new epub: %w", err)
	}
	book.SetAuthor(doc.Author)
	book.SetLang("pt-BR")
	book.SetDescription(doc.EditionLabel)

	css, err := book.AddCSS("data:text/css;base64,"+base64.StdEncoding.EncodeToString([]byte(epubCSS)), "style.css")
	if err != nil {
		return fmt.Errorf("add css: %w", err)
	}

	var cover strings.Builder
	fmt.Fprintf(&cover, "<p class=\"meta\">%s</p>\n", html.EscapeString(doc.EditionLabel))
	writeBlocksHTML(&cover, doc.Briefing)
	if _, err := book.AddSection(cover.String(), LabelBriefing, "briefing.xhtml", css); err != nil {
		return fmt.Errorf("add briefing: %w", err)
	}

	if doc.Contents {
		var toc strings.Builder
		fmt.Fprintf(&toc, "<h1>%s</h1>\n<ol>\n", html.EscapeString(LabelContents))
		for i, art := range doc.Articles {
			fmt.Fprintf(&toc, "<li><a href=\"%s\">%s</a></li>\n", articleFile(i), html.EscapeString(art.Title))
		}
		toc.WriteString("</ol>\n")
		if _, err := book.AddSection(toc.String(), LabelContents, "contents.xhtml", css); err != nil {
			return fmt.Errorf("add contents: %w", err)
		}
	}

	for i, art := range doc.Articles {
		var body strings.Builder
		if art.URL != "" {
			fmt.Fprintf(&body, "<h1 class=\"article\"><a href=\"%s\">%s</a></h1>\n", html.EscapeString(art.URL), html.EscapeString(art.Title))
		} else {
			fmt.Fprintf(&body, "<h1 class=\"article\">%s</h1>\n", html.EscapeString(art.Title))
		}
		fmt.Fprintf(&body, "<p class=\"meta\">%s</p>\n", html.EscapeString(art.Meta))
		if src := w.addImage(book, art.ImagePath, i); src != "" {
			fmt.Fprintf(&body, "<p><img src=\"%s\" alt=\"\"/></p>\n", src)
		}
		writeBlocksHTML(&body, art.Body)
		if _, err := book.AddSection(body.String(), art.Title, articleFile(i), css); err != nil {
			return fmt.Errorf("add article %d: %w", i+1, err)
		}
	}

	if len(doc.Appendix) > 0 {
		var app strings.Builder
		fmt.Fprintf(&app, "<h1>%s</h1>\n<p>%s</p>\n<ul class=\"appendix\">\n", html.EscapeString(LabelAppendix), html.EscapeString(LabelAppendixIntro))
		for _, line := range doc.Appendix {
			fmt.Fprintf(&app, "<li><b>[%s]</b> <a href=\"%s\">%s</a></li>\n",
				html.EscapeString(line.Source), html.EscapeString(line.URL), html.EscapeString(line.Title))
		}
		app.WriteString("</ul>\n")
		if _, err := book.AddSection(app.String(), LabelAppendixMark, "appendix.xhtml", css); err != nil {
			return fmt.Errorf("add appendix: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := book.WriteTo(&buf); err != nil {
		return fmt.Errorf("render epub: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write epub: %w", err)
	}
	return nil
}

func (w *EPUBWriter) addImage(book *epub.Epub, path string, index int) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		w.logger.Warn("skip image", "path", path, "error", err)
		return ""
	}
	src, err := book.AddImage(path, fmt.Sprintf("article_%d%s", index+1, filepath.Ext(path)))
	if err != nil {
		w.logger.Warn("skip image", "path", path, "error", err)
		return ""
	}
	return src
}

func articleFile(index int) string {
	return fmt.Sprintf("article_%d.xhtml", index+1)
}

func writeBlocksHTML(b *strings.Builder, blocks []Block) {
	inList := false
	for _, block := range blocks {
		if block.Kind == BlockBullet && !inList {
			b.WriteString("<ul>\n")
			inList = true
		}
		if block.Kind != BlockBullet && inList {
			b.WriteString("</ul>\n")
			inList = false
		}

		switch block.Kind {
		case BlockHeading:
			fmt.Fprintf(b, "<h%d>%s</h%d>\n", block.Level, spansHTML(block.Spans), block.Level)
		case BlockBullet:
			fmt.Fprintf(b, "<li>%s</li>\n", spansHTML(block.Spans))
		default:
			fmt.Fprintf(b, "<p>%s</p>\n", spansHTML(block.Spans))
		}
	}
	if inList {
		b.WriteString("</ul>\n")
	}
}

func spansHTML(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		text := html.EscapeString(s.Text)
		if s.Bold {
			b.WriteString("<b>" + text + "</b>")
			continue
		}
		b.WriteString(text)
	}
	return b.String()
}
