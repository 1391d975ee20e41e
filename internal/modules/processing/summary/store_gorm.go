package summary

import (
	"context"
	"errors"

	"github.com/mx-space/tldr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps summaries in the tldr_summaries table.
type GormStore struct{ db *gorm.DB }

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) Get(ctx context.Context, documentID string) (*Summary, error) {
	var row models.SummaryModel
	err := s.db.WithContext(ctx).First(&row, "document_id = ?", documentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return fromModel(&row), nil
}

// Put replaces the whole record; last writer wins.
func (s *GormStore) Put(ctx context.Context, sum *Summary) error {
	row := toModel(sum)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns(summaryColumns),
	}).Create(row).Error
}

func (s *GormStore) Delete(ctx context.Context, documentID string) error {
	return s.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&models.SummaryModel{}).Error
}

var summaryColumns = []string{
	"text", "ai_copy", "source", "length", "tone", "content_hash",
	"generated_at", "token_count", "is_pinned", "auto_regen", "updated_at",
}

func toModel(s *Summary) *models.SummaryModel {
	return &models.SummaryModel{
		DocumentID:  s.DocumentID,
		Text:        s.Text,
		AICopy:      s.AICopy,
		Source:      s.Source,
		Length:      s.Length,
		Tone:        s.Tone,
		ContentHash: s.ContentHash,
		GeneratedAt: s.GeneratedAt,
		TokenCount:  s.TokenCount,
		IsPinned:    s.IsPinned,
		AutoRegen:   s.AutoRegen,
	}
}

func fromModel(m *models.SummaryModel) *Summary {
	return &Summary{
		DocumentID:  m.DocumentID,
		Text:        m.Text,
		AICopy:      m.AICopy,
		Source:      m.Source,
		Length:      m.Length,
		Tone:        m.Tone,
		ContentHash: m.ContentHash,
		GeneratedAt: m.GeneratedAt,
		TokenCount:  m.TokenCount,
		IsPinned:    m.IsPinned,
		AutoRegen:   m.AutoRegen,
	}
}
