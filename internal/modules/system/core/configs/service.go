package configs

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/models"
	"github.com/mx-space/tldr/internal/pkg/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// optionStore reads and writes the raw JSON settings row.
type optionStore interface {
	load() (string, bool, error)
	save(value string) error
}

type gormOptions struct{ db *gorm.DB }

func (g gormOptions) load() (string, bool, error) {
	var opt models.OptionModel
	err := g.db.Where("name = ?", configKey).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return opt.Value, true, nil
}

func (g gormOptions) save(value string) error {
	opt := models.OptionModel{Name: configKey, Value: value}
	return g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&opt).Error
}

// Service manages the persisted FullConfig.
type Service struct {
	store optionStore
	mu    sync.RWMutex
	cfg   *config.FullConfig
}

func NewService(db *gorm.DB) *Service {
	return &Service{store: gormOptions{db: db}}
}

// Get returns the current config, loading from DB if not cached.
func (s *Service) Get() (*config.FullConfig, error) {
	s.mu.RLock()
	if s.cfg != nil {
		defer s.mu.RUnlock()
		cfg := *s.cfg
		return &cfg, nil
	}
	s.mu.RUnlock()

	return s.load()
}

func (s *Service) load() (*config.FullConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, found, err := s.store.load()
	if err != nil {
		return nil, err
	}
	cfg := config.DefaultFullConfig()
	if !found {
		_ = s.persist(&cfg)
	} else if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, err
	}
	s.cfg = &cfg
	out := cfg
	return &out, nil
}

// Patch merges the given partial JSON update into the current config and persists it.
// Keys may be snake_case or camelCase.
func (s *Service) Patch(partial map[string]json.RawMessage) (*config.FullConfig, error) {
	current, err := s.Get()
	if err != nil {
		return nil, err
	}

	currentJSON, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	merged := map[string]interface{}{}
	if err := json.Unmarshal(currentJSON, &merged); err != nil {
		return nil, err
	}

	for k, v := range partial {
		if len(strings.TrimSpace(string(v))) == 0 {
			continue
		}
		var incoming interface{}
		if err := json.Unmarshal(v, &incoming); err != nil {
			return nil, apperr.Invalid("invalid json for " + k)
		}
		k = camelToSnakeKey(k)
		incoming = normalizeConfigSection(k, convertMapKeys(incoming, camelToSnakeKey))
		if existing, ok := merged[k]; ok {
			merged[k] = deepMergeJSON(existing, incoming)
			continue
		}
		merged[k] = incoming
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}

	updated := config.DefaultFullConfig()
	if err := json.Unmarshal(mergedJSON, &updated); err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	keepMaskedSecrets(&updated, current)
	if err := validate(&updated); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cfg = &updated
	s.mu.Unlock()

	out := updated
	return &out, s.persist(&updated)
}

func (s *Service) persist(cfg *config.FullConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.store.save(string(data))
}

// Invalidate clears the in-memory config cache, forcing a DB reload on next Get.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = nil
}

func validate(cfg *config.FullConfig) error {
	d := cfg.Defaults
	if d.Length != "" && !config.ValidLength(d.Length) {
		return apperr.Invalid("defaults.default_length must be short, medium or bullets")
	}
	if d.Tone != "" && !config.ValidTone(d.Tone) {
		return apperr.Invalid("defaults.default_tone must be neutral, executive or casual")
	}
	if d.ExpandThreshold < 0 {
		return apperr.Invalid("defaults.expand_threshold must not be negative")
	}
	switch cfg.Provider.Type {
	case "", config.ProviderOpenAICompatible, config.ProviderOpenAI, config.ProviderAnthropic:
	default:
		return apperr.Invalid("provider.type must be openai-compatible, openai or anthropic")
	}
	if t := cfg.Provider.Temperature; t != nil && (*t < 0 || *t > 2) {
		return apperr.Invalid("provider.temperature must be between 0 and 2")
	}
	return nil
}
