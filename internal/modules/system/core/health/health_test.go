package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group(""), opts, func(c *gin.Context) { c.Next() })
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("refused") })

	tests := []struct {
		name     string
		opts     Options
		code     int
		contains []string
	}{
		{"no deps", Options{}, http.StatusOK, []string{`"status":"ok"`}},
		{"all up", Options{Database: up, Redis: up}, http.StatusOK, []string{`"database":true`, `"redis":true`}},
		{"redis down", Options{Database: up, Redis: down}, http.StatusServiceUnavailable, []string{`"status":"degraded"`, `"redis":false`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(newRouter(tt.opts), "/health")
			assert.Equal(t, tt.code, w.Code)
			for _, s := range tt.contains {
				assert.Contains(t, w.Body.String(), s)
			}
		})
	}
}

func TestLogs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tldr_2024-07-01.log"), make([]byte, 2048), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))

	w := get(newRouter(Options{LogDir: dir}), "/health/logs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"filename":"tldr_2024-07-01.log"`)
	assert.Contains(t, w.Body.String(), `"size":"2.00 KB"`)
	assert.NotContains(t, w.Body.String(), "archive")

	w = get(newRouter(Options{LogDir: filepath.Join(dir, "missing")}), "/health/logs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}
