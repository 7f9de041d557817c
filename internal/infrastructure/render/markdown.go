package render

import "strings"

// BlockKind identifies one line type of the briefing markup.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockBullet
)

// Span is a run of text with uniform emphasis.
type Span struct {
	Text string
	Bold bool
}

// Block is one rendered line: a heading of level 1 to 3, a bullet or a
// paragraph.
type Block struct {
	Kind  BlockKind
	Level int
	Spans []Span
}

// Text returns the block content without emphasis markers.
func (b Block) Text() string {
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// ParseMarkdown reads the fixed subset produced by the generation service:
// "# ", "## " and "### " headings, "* " and "- " bullets, **bold** spans.
// Every other non-empty line is a paragraph.
func ParseMarkdown(text string) []Block {
	var blocks []Block
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "### "):
			blocks = append(blocks, heading(3, line[4:]))
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, heading(2, line[3:]))
		case strings.HasPrefix(line, "# "):
			blocks = append(blocks, heading(1, line[2:]))
		case strings.HasPrefix(line, "* "), strings.HasPrefix(line, "- "):
			blocks = append(blocks, Block{Kind: BlockBullet, Spans: parseSpans(strings.TrimSpace(line[2:]))})
		default:
			blocks = append(blocks, Block{Kind: BlockParagraph, Spans: parseSpans(line)})
		}
	}
	return blocks
}

func heading(level int, text string) Block {
	return Block{Kind: BlockHeading, Level: level, Spans: parseSpans(strings.TrimSpace(text))}
}

// parseSpans splits on "**" pairs. An unmatched trailing marker is kept as
// literal text.
func parseSpans(line string) []Span {
	parts := strings.Split(line, "**")
	if len(parts)%2 == 0 {
		last := len(parts) - 1
		parts[last-1] = parts[last-1] + "**" + parts[last]
		parts = parts[:last]
	}

	spans := make([]Span, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			continue
		}
		spans = append(spans, Span{Text: part, Bold: i%2 == 1})
	}
	return spans
}
