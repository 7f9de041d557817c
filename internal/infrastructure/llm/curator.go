package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("empty model reply")

// Completer sends one prompt to a text generation model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Curator turns the generation tasks of the pipeline into prompts for a
// Completer and parses the replies.
type Curator struct {
	completer Completer
	logger    *slog.Logger
}

var _ ports.Generator = (*Curator)(nil)

// NewCurator wraps a completer.
func NewCurator(completer Completer, logger *slog.Logger) *Curator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Curator{completer: completer, logger: logger.With("component", "curator")}
}

// SelectRelevant asks for up to limit candidate ids. An unparseable reply is
// an error so the caller can fall back.
func (c *Curator) SelectRelevant(ctx context.Context, candidates []domain.Candidate, topics []string, limit int) ([]string, error) {
	reply, err := c.completer.Complete(ctx, selectionPrompt(candidates, topics, limit))
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	ids, err := ParseIDList(reply)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	c.logger.Debug("selection reply", "candidates", len(candidates), "ids", len(ids))
	return ids, nil
}

// Summarize produces the markdown summary of one article.
func (c *Curator) Summarize(ctx context.Context, article domain.EnrichedArticle) (string, error) {
	reply, err := c.completer.Complete(ctx, summaryPrompt(article))
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", article.URL, err)
	}
	return strings.TrimSpace(reply), nil
}

// ComposeBriefing synthesizes the front page from every summary.
func (c *Curator) ComposeBriefing(ctx context.Context, summaries []string) (string, error) {
	reply, err := c.completer.Complete(ctx, briefingPrompt(summaries))
	if err != nil {
		return "", fmt.Errorf("compose briefing: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// ParseIDList decodes a JSON array of strings, optionally wrapped in a
// markdown code fence.
func ParseIDList(reply string) ([]string, error) {
	text := strings.TrimSpace(reply)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyReply
	}

	var ids []string
	if err := json.Unmarshal([]byte(text), &ids); err != nil {
		return nil, fmt.Errorf("parse id list: %w", err)
	}
	return ids, nil
}

func selectionPrompt(candidates []domain.Candidate, topics []string, limit int) string {
	var manifest strings.Builder
	for _, cand := range candidates {
		fmt.Fprintf(&manifest, "ID: %s | Título: %s | Fonte: %s\n", cand.ID, cand.Title, cand.Source)
	}

	return fmt.Sprintf(`Você é um editor chefe pessoal. Seu usuário tem interesse nestes tópicos: %s.

Abaixo está uma lista de manchetes candidatas.
Sua tarefa é selecionar até %d das notícias mais relevantes e importantes baseadas nos interesses do usuário.
Se houver notícias repetidas ou muito similares, escolha apenas a melhor fonte.

LISTA DE CANDIDATOS:
%s
FORMATO DE RESPOSTA:
Retorne APENAS uma lista JSON com os IDs das notícias escolhidas. Nada mais.
Exemplo: ["id_1", "id_2", "id_5"]`, strings.Join(topics, ", "), limit, manifest.String())
}

func summaryPrompt(article domain.EnrichedArticle) string {
	authors := ""
	if len(article.Authors) > 0 {
		authors = "\nAutores: " + strings.Join(article.Authors, ", ")
	}

	return fmt.Sprintf(`Você é um analista de inteligência especialista. Sua tarefa é ler e analisar a notícia abaixo e criar um relatório de resumo para um jornal executivo.
O título do artigo é "%[1]s". Se estiver em outro idioma, traduza-o para o português.

DADOS DA NOTÍCIA:
Título: %[1]s
Fonte: %[2]s%[3]s
Link: %[4]s
Conteúdo: %[5]s

FORMATO DE SAÍDA (Markdown):
- Comece com o título como heading (##). Se o título original não estiver em português, inclua-o em itálico logo abaixo.
- Escreva um resumo de 2 a 3 parágrafos, mantendo as informações do conteúdo.
- Liste exatamente 3 "Pontos Chave" em bullets.
- Inclua uma seção "Contexto Adicional" com 2-3 frases que expliquem a importância do tema ou suas implicações.
- O tom deve ser objetivo, profissional e direto.
- Idioma: Português do Brasil.

Gere apenas o conteúdo markdown, sem introduções ou conversas. Inclua o link original no final.`,
		article.Title, article.Source, authors, article.URL, article.Content)
}

func briefingPrompt(summaries []string) string {
	return fmt.Sprintf(`Atue como Editor Chefe de um jornal de elite. Abaixo estão os resumos das principais notícias do dia.

Sua tarefa é escrever a CAPA (Briefing Executivo) do jornal.

NOTÍCIAS DO DIA:
%s

ESTRUTURA DO BRIEFING (Markdown):
# Briefing do Dia
## Visão Geral
Um ou dois parágrafos concisos conectando os temas. Qual é o sentimento geral das notícias hoje?
## Resumo dos Temas Principais
Identifique de 3 a 5 temas mais relevantes e escreva para cada um um pequeno parágrafo com o panorama geral.
## Desenvolvimentos Chave
Agrupe notícias similares, separando os temas em heading 3 (###) se necessário. Entre 1 e 2 bullets por notícia, cada um com uma frase.
## O que observar
Uma lista curta de implicações futuras baseada nessas notícias.

IMPORTANTE:
- Não repita as notícias individualmente, apenas sintetize os temas.
- Seja extremamente conciso e denso em informação.
- Use apenas headings (#, ##, ###), negrito (**texto**) e bullets (* ou -).
- Gere apenas o markdown.`, strings.Join(summaries, "\n---\n"))
}
