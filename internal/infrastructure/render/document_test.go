package render

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"DailyBriefing/internal/domain"
)

func sampleEdition() domain.Edition {
	published := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	return domain.Edition{
		Date:     time.Date(2024, 5, 17, 6, 0, 0, 0, time.UTC),
		User:     domain.User{ID: 1, Name: "Maria Clara"},
		Briefing: "# Briefing do Dia\n## Visão Geral\nDia **movimentado**.\n* Juros\n* Chips",
		Articles: []domain.EnrichedArticle{
			{
				Candidate: domain.Candidate{ID: "1", Title: "Juros sobem", URL: "https://g1.example.com/juros", Source: "G1", Published: "Fri, 17 May 2024 09:30:00 -0300"},
				Authors:   []string{"Ana Lima"},
				ImagePath: "data/images/x.png",
				Summary:   "## Juros sobem\nO banco central elevou a taxa.\n* Ponto 1\n* Ponto 2\n* Ponto 3",
			},
			{
				Candidate: domain.Candidate{ID: "2", Title: "New GPU", URL: "https://verge.example.com/gpu", Source: "The Verge", PublishedAt: &published},
				Summary:   "## Nova GPU\n*New GPU*\nResumo.",
			},
		},
		Candidates: []domain.Candidate{
			{ID: "1", Title: "Juros sobem", URL: "https://g1.example.com/juros", Source: "G1"},
			{ID: "2", Title: "New GPU", URL: "https://verge.example.com/gpu", Source: "The Verge"},
			{ID: "3", Title: "Futebol", URL: "https://ge.example.com/futebol", Source: "GE"},
		},
	}
}

func TestComposeSections(t *testing.T) {
	doc := Compose(sampleEdition(), Options{TableOfContents: true, CandidateAppendix: true, IncludeImages: true})

	if doc.EditionLabel != "Edição de: 17/05/2024" {
		t.Fatalf("unexpected edition label %q", doc.EditionLabel)
	}
	if len(doc.Briefing) != 5 || !doc.Contents {
		t.Fatalf("unexpected briefing/contents: %d blocks, contents=%t", len(doc.Briefing), doc.Contents)
	}
	if len(doc.Articles) != 2 || len(doc.Appendix) != 3 {
		t.Fatalf("expected 2 articles and 3 appendix lines, got %d and %d", len(doc.Articles), len(doc.Appendix))
	}

	first := doc.Articles[0]
	if first.Meta != "Fonte: G1 | Fri, 17 May 2024 09:30:00 -0300 | Por Ana Lima" {
		t.Fatalf("unexpected meta %q", first.Meta)
	}
	if first.ImagePath != "data/images/x.png" {
		t.Fatalf("image should be kept when enabled")
	}
	if doc.Articles[1].Meta != "Fonte: The Verge | 17/05/2024 09:30" {
		t.Fatalf("unexpected meta %q", doc.Articles[1].Meta)
	}
	if diff := cmp.Diff(AppendixLine{Source: "GE", Title: "Futebol", URL: "https://ge.example.com/futebol"}, doc.Appendix[2]); diff != "" {
		t.Fatalf("appendix mismatch (-want +got):\n%s", diff)
	}
}

func TestComposeOptionalParts(t *testing.T) {
	doc := Compose(sampleEdition(), Options{})

	if doc.Contents || len(doc.Appendix) != 0 {
		t.Fatalf("optional parts should be disabled")
	}
	if doc.Articles[0].ImagePath != "" {
		t.Fatalf("images disabled, got %q", doc.Articles[0].ImagePath)
	}
}

func TestComposeIsReproducible(t *testing.T) {
	opts := Options{TableOfContents: true, CandidateAppendix: true}
	if diff := cmp.Diff(Compose(sampleEdition(), opts), Compose(sampleEdition(), opts)); diff != "" {
		t.Fatalf("compose not reproducible (-first +second):\n%s", diff)
	}
}
