package render

import (
	"strings"
	"time"

	"DailyBriefing/internal/domain"
)

// Labels printed in every edition.
const (
	LabelBriefing      = "Briefing Executivo"
	LabelContents      = "Índice"
	LabelArticles      = "Notícias Detalhadas"
	LabelAppendix      = "Todas as Manchetes Rastreadas"
	LabelAppendixMark  = "Outras Manchetes"
	LabelAppendixIntro = "Abaixo, a lista completa de notícias encontradas nos feeds hoje."
)

// Options selects the optional parts of a document.
type Options struct {
	TableOfContents   bool
	CandidateAppendix bool
	IncludeImages     bool
}

// Document is the format-independent content of one edition. Every writer
// renders the same Document, so the text is identical across formats.
type Document struct {
	Date         time.Time
	Title        string
	Author       string
	EditionLabel string
	Briefing     []Block
	Contents     bool
	Articles     []ArticleSection
	Appendix     []AppendixLine
}

// ArticleSection is one selected article.
type ArticleSection struct {
	Title     string
	URL       string
	Meta      string
	ImagePath string
	Body      []Block
}

// AppendixLine lists one collected candidate.
type AppendixLine struct {
	Source string
	Title  string
	URL    string
}

// Compose builds the document for an edition. It only depends on its
// inputs.
func Compose(ed domain.Edition, opts Options) Document {
	doc := Document{
		Date:         ed.Date,
		Title:        "Jornal " + ed.Date.Format("02/01/2006"),
		Author:       ed.User.Name,
		EditionLabel: "Edição de: " + ed.Date.Format("02/01/2006"),
		Briefing:     ParseMarkdown(ed.Briefing),
		Contents:     opts.TableOfContents && len(ed.Articles) > 0,
	}

	for _, art := range ed.Articles {
		section := ArticleSection{
			Title: strings.TrimSpace(art.Title),
			URL:   art.URL,
			Meta:  metaLine(art),
			Body:  ParseMarkdown(art.Summary),
		}
		if opts.IncludeImages {
			section.ImagePath = art.ImagePath
		}
		doc.Articles = append(doc.Articles, section)
	}

	if opts.CandidateAppendix {
		for _, c := range ed.Candidates {
			doc.Appendix = append(doc.Appendix, AppendixLine{Source: c.Source, Title: c.Title, URL: c.URL})
		}
	}
	return doc
}

func metaLine(art domain.EnrichedArticle) string {
	source := art.Source
	if source == "" {
		source = "Desconhecida"
	}
	parts := []string{"Fonte: " + source}
	if label := art.PublishedLabel(); label != "" {
		parts = append(parts, label)
	}
	if len(art.Authors) > 0 {
		parts = append(parts, "Por "+strings.Join(art.Authors, ", "))
	}
	return strings.Join(parts, " | ")
}
