package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin     = 40.0
	imageMaxWidth = 400.0
	bodyFontSize  = 11.0
	bodyLeading   = 15.0
)

var (
	colorTitle    = [3]int{139, 0, 0}
	colorSection  = [3]int{0, 0, 139}
	colorMeta     = [3]int{128, 128, 128}
	colorLink     = [3]int{0, 0, 238}
	colorText     = [3]int{0, 0, 0}
	bulletIndent  = 14.0
	separatorGray = 200
)

const (
	coreFamily  = "Helvetica"
	embedFamily = "Body"
)

// PDFWriter renders documents as A4 PDF files with an outline.
//
// Without a font file the core Helvetica font is used and text passes
// through the cp1252 translator, so characters outside Western European
// scripts are lost. WithFont embeds a UTF-8 TrueType font instead; it
// renders every Basic Multilingual Plane glyph the font carries.
type PDFWriter struct {
	fontPath string
	logger   *slog.Logger
}

// PDFOption customizes a PDFWriter.
type PDFOption func(*PDFWriter)

// WithFont embeds the TrueType font at path for every style. An empty path
// keeps the core font.
func WithFont(path string) PDFOption {
	return func(w *PDFWriter) { w.fontPath = path }
}

// NewPDFWriter builds the writer.
func NewPDFWriter(logger *slog.Logger, opts ...PDFOption) *PDFWriter {
	if logger == nil {
		logger = slog.Default()
	}
	w := &PDFWriter{logger: logger.With("component", "pdf")}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Format implements Writer.
func (w *PDFWriter) Format() string { return "pdf" }

// Write renders doc into path. Nothing is written when rendering fails.
func (w *PDFWriter) Write(doc Document, path string) error {
	var buf bytes.Buffer
	if err := w.render(doc, &buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (w *PDFWriter) render(doc Document, out *bytes.Buffer) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetCatalogSort(true)
	if !doc.Date.IsZero() {
		pdf.SetCreationDate(doc.Date)
		pdf.SetModificationDate(doc.Date)
	}
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(doc.Author, true)
	pdf.SetCreator("DailyBriefing", true)

	p := &pdfPage{Fpdf: pdf, family: coreFamily, tr: pdf.UnicodeTranslatorFromDescriptor(""), logger: w.logger}
	if w.fontPath != "" {
		for _, style := range []string{"", "B", "I", "BI"} {
			pdf.AddUTF8Font(embedFamily, style, w.fontPath)
		}
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("load font %s: %w", w.fontPath, err)
		}
		p.family = embedFamily
		p.tr = basicPlane
	}
	pdf.SetFooterFunc(p.footer)

	p.cover(doc)
	links := p.contents(doc)
	p.articles(doc, links)
	p.appendix(doc)

	if err := pdf.Output(out); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// basicPlane drops runes outside the Basic Multilingual Plane, which the
// fpdf width tables cannot index.
func basicPlane(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return -1
		}
		return r
	}, s)
}

type pdfPage struct {
	*fpdf.Fpdf
	family string
	tr     func(string) string
	logger *slog.Logger
}

func (p *pdfPage) color(c [3]int) {
	p.SetTextColor(c[0], c[1], c[2])
}

func (p *pdfPage) footer() {
	p.SetY(-30)
	p.SetFont(p.family, "I", 8)
	p.color(colorMeta)
	p.CellFormat(0, 10, fmt.Sprintf("%d", p.PageNo()), "", 0, "C", false, 0, "")
}

func (p *pdfPage) cover(doc Document) {
	p.AddPage()
	p.Bookmark(p.tr(LabelBriefing), 0, -1)
	p.meta(doc.EditionLabel)
	p.Ln(10)
	p.blocks(doc.Briefing)
}

func (p *pdfPage) contents(doc Document) []int {
	links := make([]int, len(doc.Articles))
	for i := range links {
		links[i] = p.AddLink()
	}
	if !doc.Contents {
		return links
	}

	p.AddPage()
	p.Bookmark(p.tr(LabelContents), 0, -1)
	p.title(LabelContents)
	p.SetFont(p.family, "", bodyFontSize)
	p.color(colorLink)
	for i, art := range doc.Articles {
		p.WriteLinkID(bodyLeading, p.tr(fmt.Sprintf("%d. %s", i+1, art.Title)), links[i])
		p.Ln(bodyLeading + 4)
	}
	p.color(colorText)
	return links
}

func (p *pdfPage) articles(doc Document, links []int) {
	p.AddPage()
	p.Bookmark(p.tr(LabelArticles), 0, -1)
	p.title(LabelArticles)
	p.Ln(10)

	for i, art := range doc.Articles {
		if i > 0 {
			p.separator()
		}
		p.Bookmark(p.tr(art.Title), 1, -1)
		p.SetLink(links[i], -1, -1)

		p.SetFont(p.family, "B", 18)
		p.color(colorTitle)
		if art.URL != "" {
			p.WriteLinkString(22, p.tr(art.Title), art.URL)
		} else {
			p.Write(22, p.tr(art.Title))
		}
		p.Ln(26)

		p.meta(art.Meta)
		p.image(art.ImagePath)
		p.blocks(art.Body)
	}
}

func (p *pdfPage) appendix(doc Document) {
	if len(doc.Appendix) == 0 {
		return
	}
	p.AddPage()
	p.Bookmark(p.tr(LabelAppendixMark), 0, -1)
	p.title(LabelAppendix)
	p.SetFont(p.family, "", bodyFontSize)
	p.color(colorText)
	p.MultiCell(0, bodyLeading, p.tr(LabelAppendixIntro), "", "L", false)
	p.Ln(10)

	for _, line := range doc.Appendix {
		p.SetFont(p.family, "B", 10)
		p.color(colorText)
		p.Write(12, p.tr("["+line.Source+"] "))
		p.SetFont(p.family, "", 10)
		p.color(colorLink)
		if line.URL != "" {
			p.WriteLinkString(12, p.tr(line.Title), line.URL)
		} else {
			p.Write(12, p.tr(line.Title))
		}
		p.Ln(16)
	}
	p.color(colorText)
}

func (p *pdfPage) title(text string) {
	p.SetFont(p.family, "B", 24)
	p.color(colorText)
	p.MultiCell(0, 30, p.tr(text), "", "L", false)
	p.Ln(10)
}

func (p *pdfPage) meta(text string) {
	if text == "" {
		return
	}
	p.SetFont(p.family, "I", 9)
	p.color(colorMeta)
	p.MultiCell(0, 12, p.tr(text), "", "L", false)
	p.Ln(6)
	p.color(colorText)
}

// image embeds a local image scaled to imageMaxWidth. Unreadable images are
// skipped and the rest of the section is still rendered.
func (p *pdfPage) image(path string) {
	if path == "" {
		return
	}
	info := p.RegisterImageOptions(path, fpdf.ImageOptions{ReadDpi: false})
	if !p.Ok() || info == nil || info.Width() <= 0 {
		p.logger.Warn("skip image", "path", path, "error", p.Error())
		p.ClearError()
		return
	}

	pageWidth, _ := p.GetPageSize()
	width := imageMaxWidth
	if usable := pageWidth - 2*pdfMargin; width > usable {
		width = usable
	}
	height := width * info.Height() / info.Width()

	left, _, _, _ := p.GetMargins()
	p.ImageOptions(path, left, 0, width, height, true, fpdf.ImageOptions{ReadDpi: false}, 0, "")
	if !p.Ok() {
		p.logger.Warn("skip image", "path", path, "error", p.Error())
		p.ClearError()
		return
	}
	p.Ln(10)
}

func (p *pdfPage) blocks(blocks []Block) {
	left, _, _, _ := p.GetMargins()
	for _, b := range blocks {
		switch b.Kind {
		case BlockHeading:
			size, before := 13.0, 8.0
			switch b.Level {
			case 1:
				size, before = 22, 4
				p.color(colorText)
			case 2:
				size, before = 16, 12
				p.color(colorSection)
			default:
				p.color(colorText)
			}
			p.Ln(before)
			p.SetFont(p.family, "B", size)
			p.MultiCell(0, size+4, p.tr(b.Text()), "", "L", false)
			p.Ln(4)
			p.color(colorText)
		case BlockBullet:
			p.SetFont(p.family, "", bodyFontSize)
			p.SetX(left)
			p.Write(bodyLeading, p.tr("• "))
			p.SetLeftMargin(left + bulletIndent)
			p.spans(b.Spans)
			p.SetLeftMargin(left)
			p.Ln(bodyLeading + 4)
		default:
			p.spans(b.Spans)
			p.Ln(bodyLeading + 8)
		}
	}
}

func (p *pdfPage) spans(spans []Span) {
	for _, s := range spans {
		style := ""
		if s.Bold {
			style = "B"
		}
		p.SetFont(p.family, style, bodyFontSize)
		p.Write(bodyLeading, p.tr(s.Text))
	}
}

func (p *pdfPage) separator() {
	left, _, right, _ := p.GetMargins()
	pageWidth, _ := p.GetPageSize()
	p.Ln(10)
	p.SetDrawColor(separatorGray, separatorGray, separatorGray)
	p.Line(left, p.GetY(), pageWidth-right, p.GetY())
	p.Ln(20)
}
