// Package retrieval queries an external vector-similarity index over GraphQL.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mx-space/tldr/internal/config"
	"github.com/mx-space/tldr/internal/modules/processing/content"
	"github.com/mx-space/tldr/internal/pkg/apperr"
	"go.uber.org/zap"
)

const similarityQuery = `query($q: String!, $documentId: String!) {
  similarity(query: $q, documentId: $documentId) {
    docs {
      score
      data
    }
  }
}`

const maxResponseBytes = 4 << 20

// Field names tried in order when pulling text out of a result document.
var (
	bodyFields  = []string{"post_content", "content", "excerpt", "summary", "text", "description", "body"}
	titleFields = []string{"post_title", "title", "name", "heading"}
)

// Client implements content.Retriever. Every failure yields an empty result.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

func New(timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger.Named("Retriever"),
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type similarityResponse struct {
	Data struct {
		Similarity struct {
			Docs []struct {
				Score float64        `json:"score"`
				Data  map[string]any `json:"data"`
			} `json:"docs"`
		} `json:"similarity"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Retrieve returns the ranked passages for doc. The query defaults to the document title.
func (c *Client) Retrieve(ctx context.Context, settings config.RetrievalSettings, doc content.Document, query string) []content.Passage {
	endpoint := strings.TrimSpace(settings.Endpoint)
	apiKey := strings.TrimSpace(settings.APIKey)
	if endpoint == "" || apiKey == "" {
		return nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		query = strings.TrimSpace(doc.Title)
	}
	if query == "" {
		return nil
	}

	passages, err := c.query(ctx, endpoint, apiKey, doc.ID, query)
	if err != nil {
		c.logger.Warn("similarity retrieval failed",
			zap.String("document_id", doc.ID),
			zap.String("error", apperr.Sanitize(err.Error(), apiKey)),
		)
		return nil
	}
	return passages
}

func (c *Client) query(ctx context.Context, endpoint, apiKey, documentID, q string) ([]content.Passage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(graphQLRequest{
		Query:     similarityQuery,
		Variables: map[string]any{"q": q, "documentId": documentID},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("similarity endpoint returned %d", resp.StatusCode)
	}

	var parsed similarityResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode similarity response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("similarity query: %s", parsed.Errors[0].Message)
	}

	docs := parsed.Data.Similarity.Docs
	out := make([]content.Passage, 0, len(docs))
	for _, d := range docs {
		text := firstField(d.Data, bodyFields)
		if text == "" {
			continue
		}
		out = append(out, content.Passage{
			Text:  text,
			Title: firstField(d.Data, titleFields),
			Score: d.Score,
		})
	}
	return out, nil
}

// firstField returns the first non-empty value among names. Values may be
// plain strings or objects carrying a "rendered" string.
func firstField(data map[string]any, names []string) string {
	for _, name := range names {
		switch v := data[name].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case map[string]any:
			if r, ok := v["rendered"].(string); ok && strings.TrimSpace(r) != "" {
				return r
			}
		}
	}
	return ""
}
