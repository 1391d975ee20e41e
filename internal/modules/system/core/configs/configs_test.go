package configs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryOptions struct {
	value string
	found bool
	saves int
}

func (m *memoryOptions) load() (string, bool, error) { return m.value, m.found, nil }

func (m *memoryOptions) save(value string) error {
	m.value, m.found = value, true
	m.saves++
	return nil
}

func newTestService(raw string) (*Service, *memoryOptions) {
	store := &memoryOptions{value: raw, found: raw != ""}
	return &Service{store: store}, store
}

func patch(t *testing.T, svc *Service, body string) (*config.FullConfig, error) {
	t.Helper()
	var partial map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &partial))
	return svc.Patch(partial)
}

func TestGetSeedsDefaults(t *testing.T) {
	svc, store := newTestService("")
	cfg, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultFullConfig().Defaults.ExpandThreshold, cfg.Defaults.ExpandThreshold)
	assert.Equal(t, 1, store.saves)

	_, err = svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
}

func TestGetReadsStoredRow(t *testing.T) {
	svc, _ := newTestService(`{"provider":{"api_key":"sk-abc","model":"gpt-4.1-mini"},"defaults":{"default_length":"short"}}`)
	cfg, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", cfg.Provider.APIKey)
	assert.Equal(t, "gpt-4.1-mini", cfg.Provider.ModelValue())
	assert.Equal(t, config.LengthShort, cfg.Defaults.LengthValue())
	assert.Equal(t, config.ToneNeutral, cfg.Defaults.ToneValue())
}

func TestGetReturnsCopy(t *testing.T) {
	svc, _ := newTestService(`{"provider":{"model":"a"}}`)
	cfg, _ := svc.Get()
	cfg.Provider.Model = "mutated"
	again, _ := svc.Get()
	assert.Equal(t, "a", again.Provider.Model)
}

func TestPatchMergesAndCoerces(t *testing.T) {
	svc, store := newTestService(`{"provider":{"api_key":"sk-abc","model":"gpt-4o-mini"}}`)

	cfg, err := patch(t, svc, `{"defaults":{"autoRegen":"false","expandThreshold":"150"},"provider":{"temperature":"0.5"}}`)
	require.NoError(t, err)
	assert.False(t, cfg.Defaults.AutoRegenValue())
	assert.Equal(t, 150, cfg.Defaults.ExpandThreshold)
	assert.InDelta(t, 0.5, cfg.Provider.TemperatureValue(), 1e-9)
	assert.Equal(t, "sk-abc", cfg.Provider.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	assert.Contains(t, store.value, `"expand_threshold":150`)
}

func TestPatchKeepsMaskedSecrets(t *testing.T) {
	svc, _ := newTestService(`{"provider":{"api_key":"sk-abc"},"retrieval":{"api_key":"rk-xyz"}}`)
	cfg, err := patch(t, svc, `{"provider":{"api_key":"********","model":"m"},"retrieval":{"api_key":"********"}}`)
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", cfg.Provider.APIKey)
	assert.Equal(t, "rk-xyz", cfg.Retrieval.APIKey)
	assert.Equal(t, "m", cfg.Provider.Model)
}

func TestPatchValidates(t *testing.T) {
	cases := map[string]string{
		"length":      `{"defaults":{"default_length":"epic"}}`,
		"tone":        `{"defaults":{"default_tone":"angry"}}`,
		"provider":    `{"provider":{"type":"mystery"}}`,
		"temperature": `{"provider":{"temperature":3}}`,
		"threshold":   `{"defaults":{"expand_threshold":-1}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc, store := newTestService(`{}`)
			_, err := patch(t, svc, body)
			assert.True(t, apperr.Is(err, apperr.KindInvalid), "%v", err)
			assert.Zero(t, store.saves)
		})
	}
}

func TestInvalidateReloads(t *testing.T) {
	svc, store := newTestService(`{"provider":{"model":"a"}}`)
	cfg, _ := svc.Get()
	assert.Equal(t, "a", cfg.Provider.Model)

	store.value = `{"provider":{"model":"b"}}`
	cfg, _ = svc.Get()
	assert.Equal(t, "a", cfg.Provider.Model)

	svc.Invalidate()
	cfg, _ = svc.Get()
	assert.Equal(t, "b", cfg.Provider.Model)
}

func TestHandlerMasksSecrets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newTestService(`{"provider":{"api_key":"sk-abc"}}`)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group(""), func(c *gin.Context) { c.Next() })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tldr/settings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-abc")
	assert.Contains(t, w.Body.String(), secretMask)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/tldr/settings", strings.NewReader(`{"defaults":{"default_tone":"loud"}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
