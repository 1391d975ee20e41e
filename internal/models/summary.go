package models

import "time"

// SummaryModel stores one TL;DR record per document.
type SummaryModel struct {
	DocumentID  string     `json:"document_id"  gorm:"type:varchar(64);primaryKey"`
	Text        string     `json:"text"         gorm:"type:text"`
	AICopy      string     `json:"ai_copy"      gorm:"column:ai_copy;type:text"`
	Source      string     `json:"source"       gorm:"type:varchar(16)"`
	Length      string     `json:"length"       gorm:"type:varchar(16)"`
	Tone        string     `json:"tone"         gorm:"type:varchar(16)"`
	ContentHash string     `json:"content_hash" gorm:"type:char(64);index"`
	GeneratedAt *time.Time `json:"generated_at"`
	TokenCount  *int       `json:"token_count"`
	IsPinned    bool       `json:"is_pinned"    gorm:"default:false"`
	AutoRegen   bool       `json:"auto_regen"   gorm:"not null"`
	CreatedAt   time.Time  `json:"created"`
	UpdatedAt   time.Time  `json:"modified"`
}

func (SummaryModel) TableName() string { return "tldr_summaries" }
