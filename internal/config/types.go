package config

import "strings"

// Summary lengths.
const (
	LengthShort   = "short"
	LengthMedium  = "medium"
	LengthBullets = "bullets"
)

// Summary tones.
const (
	ToneNeutral   = "neutral"
	ToneExecutive = "executive"
	ToneCasual    = "casual"
)

// Provider types.
const (
	ProviderOpenAICompatible = "openai-compatible"
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.3
	DefaultEndpoint    = "https://api.openai.com"
)

// FullConfig is the host-owned settings document. The summary core only reads it.
type FullConfig struct {
	Provider  ProviderSettings  `json:"provider"`
	Retrieval RetrievalSettings `json:"retrieval"`
	Defaults  BlockDefaults     `json:"defaults"`
}

type ProviderSettings struct {
	Type        string         `json:"type"` // openai-compatible | openai | anthropic
	APIKey      string         `json:"api_key"`
	Endpoint    string         `json:"endpoint,omitempty"`
	Model       string         `json:"model"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   map[string]int `json:"max_tokens,omitempty"`
}

type RetrievalSettings struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
}

// BlockDefaults apply to documents that have no summary yet.
type BlockDefaults struct {
	Length          string `json:"default_length"`
	Tone            string `json:"default_tone"`
	AutoRegen       *bool  `json:"auto_regen,omitempty"`
	ExpandThreshold int    `json:"expand_threshold"`
}

var defaultMaxTokens = map[string]int{
	LengthShort:   120,
	LengthMedium:  200,
	LengthBullets: 220,
}

// DefaultFullConfig returns the settings used before the host saves any.
func DefaultFullConfig() FullConfig {
	return FullConfig{
		Provider: ProviderSettings{
			Type:  ProviderOpenAICompatible,
			Model: DefaultModel,
		},
		Defaults: BlockDefaults{
			Length:          LengthMedium,
			Tone:            ToneNeutral,
			ExpandThreshold: 200,
		},
	}
}

// ValidLength reports whether v is a known summary length.
func ValidLength(v string) bool {
	switch v {
	case LengthShort, LengthMedium, LengthBullets:
		return true
	}
	return false
}

// ValidTone reports whether v is a known summary tone.
func ValidTone(v string) bool {
	switch v {
	case ToneNeutral, ToneExecutive, ToneCasual:
		return true
	}
	return false
}

// MaxTokensFor returns the configured token budget for length, falling back to the defaults.
func (p ProviderSettings) MaxTokensFor(length string) int {
	if n, ok := p.MaxTokens[length]; ok && n > 0 {
		return n
	}
	if n, ok := defaultMaxTokens[length]; ok {
		return n
	}
	return defaultMaxTokens[LengthMedium]
}

// TemperatureValue returns the sampling temperature, 0.3 unless set.
func (p ProviderSettings) TemperatureValue() float64 {
	if p.Temperature == nil {
		return DefaultTemperature
	}
	return *p.Temperature
}

// ModelValue returns the configured model or gpt-4o-mini.
func (p ProviderSettings) ModelValue() string {
	if m := strings.TrimSpace(p.Model); m != "" {
		return m
	}
	return DefaultModel
}

// TypeValue normalizes the provider type; unknown values map to openai-compatible.
func (p ProviderSettings) TypeValue() string {
	t := strings.ToLower(strings.TrimSpace(p.Type))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	switch t {
	case ProviderOpenAI, ProviderAnthropic:
		return t
	default:
		return ProviderOpenAICompatible
	}
}

// Configured reports whether the retrieval endpoint can be queried at all.
func (r RetrievalSettings) Configured() bool {
	return r.Enabled && strings.TrimSpace(r.Endpoint) != "" && strings.TrimSpace(r.APIKey) != ""
}

// LengthValue returns the default length for new documents.
func (d BlockDefaults) LengthValue() string {
	if ValidLength(d.Length) {
		return d.Length
	}
	return LengthMedium
}

// ToneValue returns the default tone for new documents.
func (d BlockDefaults) ToneValue() string {
	if ValidTone(d.Tone) {
		return d.Tone
	}
	return ToneNeutral
}

// AutoRegenValue defaults to true.
func (d BlockDefaults) AutoRegenValue() bool {
	return d.AutoRegen == nil || *d.AutoRegen
}

// SettingsSource supplies the persisted host settings.
type SettingsSource interface {
	Get() (*FullConfig, error)
}

// StaticSettings serves a fixed FullConfig.
type StaticSettings struct {
	Config FullConfig
}

func (s *StaticSettings) Get() (*FullConfig, error) {
	cfg := s.Config
	return &cfg, nil
}
