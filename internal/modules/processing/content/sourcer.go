package content

import (
	"context"
	"strings"

	"github.com/mx-space/tldr/internal/config"
	"go.uber.org/zap"
)

// Source tags which strategy produced the summarized material.
type Source string

const (
	SourceRetrieved Source = "retrieved"
	SourceRaw       Source = "raw"
)

const chunkSeparator = "\n\n---\n\n"

// Passage is one ranked result from the similarity index.
type Passage struct {
	Text  string  `json:"text"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Retriever queries the similarity index. It returns an empty slice on any failure.
type Retriever interface {
	Retrieve(ctx context.Context, settings config.RetrievalSettings, doc Document, query string) []Passage
}

// Sourced is the material chosen for summarization.
type Sourced struct {
	Content  string
	Source   Source
	Passages []Passage
}

// Sourcer picks retrieved passages when available and falls back to truncated raw text.
type Sourcer struct {
	normalizer *Normalizer
	retriever  Retriever
	settings   config.SettingsSource
	budget     int
	logger     *zap.Logger
}

func NewSourcer(normalizer *Normalizer, retriever Retriever, settings config.SettingsSource, budget int, logger *zap.Logger) *Sourcer {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sourcer{
		normalizer: normalizer,
		retriever:  retriever,
		settings:   settings,
		budget:     budget,
		logger:     logger.Named("ContentSourcer"),
	}
}

// ContentForSummary resolves the text to summarize for doc. The result is
// empty only when the document itself has no text.
func (s *Sourcer) ContentForSummary(ctx context.Context, doc Document, query string) Sourced {
	if passages := s.retrieve(ctx, doc, query); len(passages) > 0 {
		return Sourced{
			Content:  FormatPassages(passages),
			Source:   SourceRetrieved,
			Passages: passages,
		}
	}

	raw := s.normalizer.Normalize(doc)
	if strings.TrimSpace(raw) == "" {
		return Sourced{Source: SourceRaw}
	}
	return Sourced{
		Content: Truncate(raw, s.budget),
		Source:  SourceRaw,
	}
}

func (s *Sourcer) retrieve(ctx context.Context, doc Document, query string) []Passage {
	if s.retriever == nil || s.settings == nil {
		return nil
	}
	cfg, err := s.settings.Get()
	if err != nil {
		s.logger.Warn("load retrieval settings", zap.Error(err))
		return nil
	}
	if !cfg.Retrieval.Configured() {
		return nil
	}

	raw := s.retriever.Retrieve(ctx, cfg.Retrieval, doc, query)
	passages := make([]Passage, 0, len(raw))
	for _, p := range raw {
		text := StripTags(p.Text)
		if text == "" {
			continue
		}
		passages = append(passages, Passage{Text: text, Title: StripTags(p.Title), Score: p.Score})
	}
	return passages
}

// FormatPassages renders passages as "Title: t\nContent: c" blocks. The title
// line is omitted when a passage has none.
func FormatPassages(passages []Passage) string {
	chunks := make([]string, 0, len(passages))
	for _, p := range passages {
		var b strings.Builder
		if p.Title != "" {
			b.WriteString("Title: ")
			b.WriteString(p.Title)
			b.WriteString("\n")
		}
		b.WriteString("Content: ")
		b.WriteString(p.Text)
		chunks = append(chunks, b.String())
	}
	return strings.Join(chunks, chunkSeparator)
}
