package document

import (
	"context"
	"errors"
	"time"

	"github.com/mx-space/tldr/internal/models"
	"github.com/mx-space/tldr/internal/modules/processing/content"
	"gorm.io/gorm"
)

const (
	KindPost = "post"
	KindNote = "note"
	KindPage = "page"
)

// GormSource reads host documents from the posts, notes and pages tables.
// Ids are unique across the three tables.
type GormSource struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db, now: time.Now}
}

func (s *GormSource) Get(ctx context.Context, id string) (*content.Document, error) {
	tx := s.db.WithContext(ctx)

	var post models.PostModel
	found, err := first(tx, &post, id)
	if err != nil {
		return nil, err
	}
	if found {
		return fromWrite(post.WriteBase, KindPost, post.IsPublished), nil
	}

	var note models.NoteModel
	if found, err = first(tx, &note, id); err != nil {
		return nil, err
	}
	if found {
		return fromWrite(note.WriteBase, KindNote, notePublished(note, s.now())), nil
	}

	var page models.PageModel
	if found, err = first(tx, &page, id); err != nil || !found {
		return nil, err
	}
	return fromWrite(page.WriteBase, KindPage, true), nil
}

func first(tx *gorm.DB, dst interface{}, id string) (bool, error) {
	err := tx.First(dst, "id = ?", id).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func notePublished(n models.NoteModel, now time.Time) bool {
	if !n.IsPublished {
		return false
	}
	return n.PublicAt == nil || !n.PublicAt.After(now)
}

func fromWrite(w models.WriteBase, kind string, published bool) *content.Document {
	return &content.Document{
		ID:        w.ID,
		Kind:      kind,
		Title:     w.Title,
		Body:      w.Text,
		Published: published,
		UpdatedAt: w.UpdatedAt,
	}
}
