package content

import (
	"context"
	"time"
)

// Document is the host-owned text the summaries are derived from.
type Document struct {
	ID        string
	Kind      string // post | note | page
	Title     string
	Body      string // markdown or HTML
	Published bool
	UpdatedAt time.Time
}

// DocumentSource loads documents from the host. Get returns nil, nil when the
// document does not exist.
type DocumentSource interface {
	Get(ctx context.Context, id string) (*Document, error)
}
