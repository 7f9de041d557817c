package render

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMarkdown(t *testing.T) {
	input := `# KARTEIRO

## Visão Geral
O dia foi marcado por **juros** altos e **tecnologia**.
### Economia
* Primeiro ponto
-   Segundo **ponto**
#### nível quatro
*Título em itálico*
Texto com ** marcador solto`

	want := []Block{
		{Kind: BlockHeading, Level: 1, Spans: []Span{{Text: "KARTEIRO"}}},
		{Kind: BlockHeading, Level: 2, Spans: []Span{{Text: "Visão Geral"}}},
		{Kind: BlockParagraph, Spans: []Span{
			{Text: "O dia foi marcado por "},
			{Text: "juros", Bold: true},
			{Text: " altos e "},
			{Text: "tecnologia", Bold: true},
			{Text: "."},
		}},
		{Kind: BlockHeading, Level: 3, Spans: []Span{{Text: "Economia"}}},
		{Kind: BlockBullet, Spans: []Span{{Text: "Primeiro ponto"}}},
		{Kind: BlockBullet, Spans: []Span{{Text: "Segundo "}, {Text: "ponto", Bold: true}}},
		{Kind: BlockParagraph, Spans: []Span{{Text: "#### nível quatro"}}},
		{Kind: BlockParagraph, Spans: []Span{{Text: "*Título em itálico*"}}},
		{Kind: BlockParagraph, Spans: []Span{{Text: "Texto com ** marcador solto"}}},
	}

	if diff := cmp.Diff(want, ParseMarkdown(input)); diff != "" {
		t.Fatalf("blocks mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMarkdownEmpty(t *testing.T) {
	if blocks := ParseMarkdown("\n   \n"); len(blocks) != 0 {
		t.Fatalf("expected no blocks, got %v", blocks)
	}
}

func TestBlockText(t *testing.T) {
	b := ParseMarkdown("**Pontos** chave")[0]
	if b.Text() != "Pontos chave" {
		t.Fatalf("unexpected text %q", b.Text())
	}
}
