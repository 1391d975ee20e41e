package summary

import (
	"context"
	"time"

	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/modules/processing/ai"
	"github.com/mx-space/tldr/internal/modules/processing/content"
	"github.com/mx-space/tldr/internal/pkg/apperr"
	"github.com/mx-space/tldr/internal/pkg/metrics"
	"go.uber.org/zap"
)

// GenerateOptions tunes one generation. Empty length or tone falls back to the
// stored record, then to the configured defaults.
type GenerateOptions struct {
	Length          string `json:"length"`
	Tone            string `json:"tone"`
	ForceRegenerate bool   `json:"forceRegenerate"`
}

// Result is what generate returns to callers.
type Result struct {
	Success          bool      `json:"success"`
	Summary          string    `json:"summary"`
	Source           string    `json:"source"`
	TokenCount       *int      `json:"tokenCount"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	GeneratedAt      time.Time `json:"generatedAt"`
	Pinned           bool      `json:"pinned"`
	Cached           bool      `json:"cached"`
}

// Metadata describes a stored record.
type Metadata struct {
	Source      string     `json:"source"`
	IsPinned    bool       `json:"isPinned"`
	AutoRegen   bool       `json:"autoRegen"`
	Length      string     `json:"length"`
	Tone        string     `json:"tone"`
	GeneratedAt *time.Time `json:"generatedAt"`
	TokenCount  *int       `json:"tokenCount"`
	ContentHash string     `json:"contentHash"`
	AICopy      string     `json:"aiCopy"`
}

// View is the read model for one document.
type View struct {
	Exists   bool      `json:"exists"`
	Text     string    `json:"text"`
	Metadata *Metadata `json:"metadata"`
}

// ContentSourcer picks the material handed to the provider.
type ContentSourcer interface {
	ContentForSummary(ctx context.Context, doc content.Document, query string) content.Sourced
}

type Service struct {
	store      Store
	documents  content.DocumentSource
	sourcer    ContentSourcer
	provider   ai.Provider
	normalizer *content.Normalizer
	settings   config.SettingsSource
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *zap.Logger
}

type Deps struct {
	Store      Store
	Documents  content.DocumentSource
	Sourcer    ContentSourcer
	Provider   ai.Provider
	Normalizer *content.Normalizer
	Settings   config.SettingsSource
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

func NewService(d Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Normalizer == nil {
		d.Normalizer = content.NewNormalizer()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		store:      d.Store,
		documents:  d.Documents,
		sourcer:    d.Sourcer,
		provider:   d.Provider,
		normalizer: d.Normalizer,
		settings:   d.Settings,
		metrics:    d.Metrics,
		now:        d.Now,
		logger:     logger.Named("TLDRService"),
	}
}

// Generate produces and stores a fresh summary, unless the document is pinned
// and the caller did not force it.
func (s *Service) Generate(ctx context.Context, documentID string, opts GenerateOptions) (*Result, error) {
	started := s.now()

	existing, err := s.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsPinned && !opts.ForceRegenerate && existing.Text != "" {
		res := &Result{
			Success:    true,
			Summary:    existing.Text,
			Source:     existing.Source,
			TokenCount: existing.TokenCount,
			Pinned:     true,
			Cached:     true,
		}
		if existing.GeneratedAt != nil {
			res.GeneratedAt = *existing.GeneratedAt
		}
		s.metrics.ObserveGeneration(existing.Source, "cached", 0)
		return res, nil
	}

	doc, err := s.document(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defaults := s.defaults()
	length, tone := resolveStyle(opts, existing, defaults)

	sourced := s.sourcer.ContentForSummary(ctx, *doc, "")
	if sourced.Content == "" {
		s.metrics.ObserveGeneration("", "no_content", s.now().Sub(started))
		return nil, apperr.NoContent("no content available to summarize")
	}

	out, err := s.provider.Summarize(ctx, sourced.Content, length, tone)
	if err != nil {
		s.metrics.ObserveGeneration(string(sourced.Source), string(apperr.KindOf(err)), s.now().Sub(started))
		return nil, err
	}

	generatedAt := s.now()
	record := &Summary{
		DocumentID:  documentID,
		Text:        out.Text,
		AICopy:      out.Text,
		Source:      string(sourced.Source),
		Length:      length,
		Tone:        tone,
		ContentHash: s.normalizer.Hash(*doc),
		GeneratedAt: &generatedAt,
		TokenCount:  out.TokenCount,
		AutoRegen:   defaults.AutoRegenValue(),
	}
	if existing != nil {
		record.IsPinned = existing.IsPinned
		record.AutoRegen = existing.AutoRegen
	}
	if err := s.store.Put(ctx, record); err != nil {
		return nil, err
	}

	elapsed := generatedAt.Sub(started)
	s.metrics.ObserveGeneration(record.Source, "success", elapsed)
	s.logger.Info("summary generated",
		zap.String("document_id", documentID),
		zap.String("source", record.Source),
		zap.String("length", length),
		zap.Duration("elapsed", elapsed),
	)
	return &Result{
		Success:          true,
		Summary:          record.Text,
		Source:           record.Source,
		TokenCount:       record.TokenCount,
		ProcessingTimeMs: elapsed.Milliseconds(),
		GeneratedAt:      generatedAt,
	}, nil
}

// Get is a pure read. Exists is false until a summary text is stored.
func (s *Service) Get(ctx context.Context, documentID string) (*View, error) {
	rec, err := s.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &View{}, nil
	}
	return &View{
		Exists: rec.Text != "",
		Text:   rec.Text,
		Metadata: &Metadata{
			Source:      rec.Source,
			IsPinned:    rec.IsPinned,
			AutoRegen:   rec.AutoRegen,
			Length:      rec.Length,
			Tone:        rec.Tone,
			GeneratedAt: rec.GeneratedAt,
			TokenCount:  rec.TokenCount,
			ContentHash: rec.ContentHash,
			AICopy:      rec.AICopy,
		},
	}, nil
}

// Record returns the raw stored record, nil when absent.
func (s *Service) Record(ctx context.Context, documentID string) (*Summary, error) {
	return s.store.Get(ctx, documentID)
}

// Update replaces the displayed text with a sanitized manual edit. It returns
// false and leaves the record untouched when nothing survives sanitizing.
func (s *Service) Update(ctx context.Context, documentID, text string) (bool, error) {
	clean := content.SanitizeText(text)
	if clean == "" {
		return false, nil
	}
	rec, err := s.loadOrStub(ctx, documentID)
	if err != nil {
		return false, err
	}
	rec.Text = clean
	if err := s.store.Put(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) SetPinned(ctx context.Context, documentID string, pinned bool) error {
	rec, err := s.loadOrStub(ctx, documentID)
	if err != nil {
		return err
	}
	rec.IsPinned = pinned
	return s.store.Put(ctx, rec)
}

func (s *Service) SetAutoRegen(ctx context.Context, documentID string, enabled bool) error {
	rec, err := s.loadOrStub(ctx, documentID)
	if err != nil {
		return err
	}
	rec.AutoRegen = enabled
	return s.store.Put(ctx, rec)
}

// AutoRegen reports the effective flag, using the configured default when no
// record exists yet.
func (s *Service) AutoRegen(ctx context.Context, documentID string) (bool, error) {
	rec, err := s.store.Get(ctx, documentID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return s.defaults().AutoRegenValue(), nil
	}
	return rec.AutoRegen, nil
}

// Style is the length and tone a regeneration of documentID would use: the
// stored record's values when valid, else the configured defaults.
func (s *Service) Style(ctx context.Context, documentID string) (string, string, error) {
	rec, err := s.store.Get(ctx, documentID)
	if err != nil {
		return "", "", err
	}
	length, tone := resolveStyle(GenerateOptions{}, rec, s.defaults())
	return length, tone, nil
}

// RevertToAICopy restores the last machine-generated text.
func (s *Service) RevertToAICopy(ctx context.Context, documentID string) (string, error) {
	rec, err := s.store.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	if rec == nil || rec.AICopy == "" {
		return "", apperr.Invalid("no AI-generated copy to revert to")
	}
	rec.Text = rec.AICopy
	if err := s.store.Put(ctx, rec); err != nil {
		return "", err
	}
	return rec.Text, nil
}

// Delete removes the record. Deleting an absent record succeeds.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	return s.store.Delete(ctx, documentID)
}

// TestConnection checks provider credentials with a minimal request.
func (s *Service) TestConnection(ctx context.Context) (string, error) {
	return s.provider.TestConnection(ctx)
}

// Document loads a host document, failing with not_found when it is absent.
func (s *Service) Document(ctx context.Context, documentID string) (*content.Document, error) {
	return s.document(ctx, documentID)
}

// Fingerprint is the content hash the service stores for doc.
func (s *Service) Fingerprint(doc content.Document) string {
	return s.normalizer.Hash(doc)
}

func (s *Service) document(ctx context.Context, documentID string) (*content.Document, error) {
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperr.NotFound("document not found")
	}
	return doc, nil
}

// loadOrStub returns the stored record or, for an existing document without
// one, an empty record carrying the configured defaults.
func (s *Service) loadOrStub(ctx context.Context, documentID string) (*Summary, error) {
	rec, err := s.store.Get(ctx, documentID)
	if err != nil || rec != nil {
		return rec, err
	}
	if _, err := s.document(ctx, documentID); err != nil {
		return nil, err
	}
	d := s.defaults()
	return &Summary{
		DocumentID: documentID,
		Length:     d.LengthValue(),
		Tone:       d.ToneValue(),
		AutoRegen:  d.AutoRegenValue(),
	}, nil
}

func (s *Service) defaults() config.BlockDefaults {
	if s.settings == nil {
		return config.DefaultFullConfig().Defaults
	}
	cfg, err := s.settings.Get()
	if err != nil || cfg == nil {
		if err != nil {
			s.logger.Warn("settings unavailable, using defaults", zap.Error(err))
		}
		return config.DefaultFullConfig().Defaults
	}
	return cfg.Defaults
}

func resolveStyle(opts GenerateOptions, existing *Summary, d config.BlockDefaults) (string, string) {
	length, tone := d.LengthValue(), d.ToneValue()
	if existing != nil {
		if config.ValidLength(existing.Length) {
			length = existing.Length
		}
		if config.ValidTone(existing.Tone) {
			tone = existing.Tone
		}
	}
	if config.ValidLength(opts.Length) {
		length = opts.Length
	}
	if config.ValidTone(opts.Tone) {
		tone = opts.Tone
	}
	return length, tone
}
