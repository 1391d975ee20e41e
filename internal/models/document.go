package models

import "time"

// PostModel is a blog post owned by the host.
type PostModel struct {
	WriteBase
	Slug        string `json:"slug"         gorm:"uniqueIndex;not null"`
	Summary     string `json:"summary"`
	IsPublished bool   `json:"is_published" gorm:"default:false;index"`
}

func (PostModel) TableName() string { return "posts" }

// NoteModel is a diary entry. It counts as published once PublicAt has passed.
type NoteModel struct {
	WriteBase
	NID         int        `json:"nid"          gorm:"column:n_id;uniqueIndex;not null"`
	IsPublished bool       `json:"is_published" gorm:"default:false;index"`
	PublicAt    *time.Time `json:"public_at"`
}

func (NoteModel) TableName() string { return "notes" }

// PageModel is a static page; pages are always public.
type PageModel struct {
	WriteBase
	Slug     string `json:"slug"     gorm:"uniqueIndex;not null"`
	Subtitle string `json:"subtitle"`
}

func (PageModel) TableName() string { return "pages" }
