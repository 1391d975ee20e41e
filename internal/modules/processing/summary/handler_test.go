package summary

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/middleware"
	"github.com/mx-space/tldr/internal/pkg/jwt"
	"github.com/mx-space/tldr/internal/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	*fixture
	router *gin.Engine
	editor string
	admin  string
	now    time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a := &apiFixture{fixture: newFixture(t, widgetDoc()), now: fixedNow}
	signer := jwt.NewSigner("test-secret")
	a.editor, _ = signer.Sign("editor-1", "editor", time.Hour)
	a.admin, _ = signer.Sign("admin-1", middleware.RoleAdmin, time.Hour)

	limiter := ratelimit.NewMemory(3, time.Minute, func() time.Time { return a.now })
	a.router = gin.New()
	a.router.Use(middleware.OptionalAuth(signer))
	NewHandler(a.svc, limiter, nil).RegisterRoutes(a.router.Group("/api"))
	return a
}

func (a *apiFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHandlerGenerateAndRead(t *testing.T) {
	a := newAPIFixture(t)

	w := a.do(http.MethodPost, "/api/tldr/documents/p1/generate", a.editor, `{"length":"short","tone":"neutral"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Widgets are introduced.", body["summary"])
	assert.Equal(t, "raw", body["source"])
	assert.Equal(t, false, body["cached"])

	w = a.do(http.MethodGet, "/api/tldr/documents/p1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["exists"])
	meta := body["metadata"].(map[string]interface{})
	assert.Equal(t, "short", meta["length"])
	assert.Equal(t, false, meta["isPinned"])
}

func TestHandlerGenerateWithoutBody(t *testing.T) {
	a := newAPIFixture(t)
	w := a.do(http.MethodPost, "/api/tldr/documents/p1/generate", a.editor, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHandlerRequiresActorForWrites(t *testing.T) {
	a := newAPIFixture(t)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/api/tldr/documents/p1/generate", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodDelete, "/api/tldr/documents/p1", "", "").Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/tldr/test-connection", a.editor, "").Code)
	assert.Zero(t, a.provider.calls.Load())
}

func TestHandlerGenerateRateLimit(t *testing.T) {
	a := newAPIFixture(t)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/tldr/documents/p1/generate", a.editor, "").Code)
	}
	w := a.do(http.MethodPost, "/api/tldr/documents/p1/generate", a.editor, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.EqualValues(t, 3, a.provider.calls.Load())

	w = a.do(http.MethodGet, "/api/tldr/rate-limit", a.editor, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"limit":3,"used":3,"remaining":0,"resetIn":60}`, w.Body.String())

	a.now = a.now.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/tldr/documents/p1/generate", a.editor, "").Code)
}

func TestHandlerPinShortCircuits(t *testing.T) {
	a := newAPIFixture(t)
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/tldr/documents/p1/generate", a.editor, "").Code)

	w := a.do(http.MethodPost, "/api/tldr/documents/p1/pin", a.editor, `{"pinned":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"pinned":true,"message":"Summary pinned"}`, w.Body.String())

	w = a.do(http.MethodPost, "/api/tldr/documents/p1/generate", a.editor, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, true, body["pinned"])
	assert.EqualValues(t, 1, a.provider.calls.Load())

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/tldr/documents/p1/pin", a.editor, `{}`).Code)
}

func TestHandlerUpdateRevertDelete(t *testing.T) {
	a := newAPIFixture(t)
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/tldr/documents/p1/generate", a.editor, "").Code)

	w := a.do(http.MethodPost, "/api/tldr/documents/p1/update", a.editor, `{"text":"My own words.","autoRegen":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"message":"Summary updated successfully","autoRegen":false}`, w.Body.String())

	w = a.do(http.MethodPost, "/api/tldr/documents/p1/update", a.editor, `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/tldr/documents/p1/revert", a.editor, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Widgets are introduced.", decode(t, w)["text"])

	w = a.do(http.MethodDelete, "/api/tldr/documents/p1", a.editor, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodPost, "/api/tldr/documents/p1/revert", a.editor, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid", decode(t, w)["kind"])

	w = a.do(http.MethodGet, "/api/tldr/documents/p1", "", "")
	assert.JSONEq(t, `{"exists":false,"text":"","metadata":null}`, w.Body.String())
}

func TestHandlerErrors(t *testing.T) {
	a := newAPIFixture(t)

	w := a.do(http.MethodPost, "/api/tldr/documents/missing/generate", a.editor, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["kind"])

	w = a.do(http.MethodPost, "/api/tldr/documents/p1/generate", a.editor, `{"length":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerTestConnection(t *testing.T) {
	a := newAPIFixture(t)
	w := a.do(http.MethodGet, "/api/tldr/test-connection", a.admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"message":"Connection successful"}`, w.Body.String())
}
