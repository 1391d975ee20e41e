package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/modules/processing/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var doc = content.Document{ID: "doc-1", Title: "Widgets"}

func settings(url string) config.RetrievalSettings {
	return config.RetrievalSettings{Enabled: true, Endpoint: url, APIKey: "index-key"}
}

func TestRetrieveParsesHeterogeneousDocs(t *testing.T) {
	var got graphQLRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer index-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"similarity":{"docs":[
			{"score":0.92,"data":{"post_title":"Part one","post_content":"Alpha"}},
			{"score":0.81,"data":{"title":{"rendered":"Part two"},"content":{"rendered":"<p>Beta</p>"}}},
			{"score":0.70,"data":{"name":"Ignored","image":"x.png"}},
			{"score":0.55,"data":{"body":"Gamma"}}
		]}}}`))
	}))
	defer srv.Close()

	passages := New(time.Second, nil).Retrieve(context.Background(), settings(srv.URL), doc, "")
	require.Len(t, passages, 3)
	assert.Equal(t, content.Passage{Text: "Alpha", Title: "Part one", Score: 0.92}, passages[0])
	assert.Equal(t, content.Passage{Text: "<p>Beta</p>", Title: "Part two", Score: 0.81}, passages[1])
	assert.Equal(t, content.Passage{Text: "Gamma", Score: 0.55}, passages[2])

	assert.Equal(t, "Widgets", got.Variables["q"], "query defaults to the title")
	assert.Equal(t, "doc-1", got.Variables["documentId"])
	assert.Contains(t, got.Query, "similarity(query: $q")
}

func TestRetrieveSwallowsFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"malformed json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":`))
		}},
		{"graphql errors", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"errors":[{"message":"bad query"}]}`))
		}},
		{"empty docs", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"similarity":{"docs":[]}}}`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			passages := New(50*time.Millisecond, nil).Retrieve(context.Background(), settings(srv.URL), doc, "q")
			assert.Empty(t, passages)
		})
	}
}

func TestRetrieveUnconfigured(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	defer srv.Close()

	c := New(time.Second, nil)
	assert.Empty(t, c.Retrieve(context.Background(), config.RetrievalSettings{Endpoint: srv.URL}, doc, "q"))
	assert.Empty(t, c.Retrieve(context.Background(), settings(srv.URL), content.Document{ID: "x"}, ""))
	assert.Zero(t, calls)
}

func TestRetrieveLogsWithoutKey(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := New(time.Second, zap.New(core))
	assert.Empty(t, c.Retrieve(context.Background(), settings("http://127.0.0.1:1/index-key"), doc, "q"))

	entries := logs.FilterMessage("similarity retrieval failed").All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap()["error"], "index-key")
}
