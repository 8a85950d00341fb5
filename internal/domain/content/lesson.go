package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Lesson struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChapterID uuid.UUID `gorm:"type:uuid;column:chapter_id;not null;index" json:"chapter_id"`
	Chapter   *Chapter  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChapterID;references:ID" json:"chapter,omitempty"`

	Name        string `gorm:"column:name;not null" json:"name"`
	Environment string `gorm:"column:environment" json:"environment"`
	// Index is the lesson's position within its chapter's discovered order.
	Index int `gorm:"column:position;not null" json:"index"`

	// GuideKey points at the uploaded guide body and is always set after sync.
	// WorkspaceKey is set only when the lesson had a workspace/ directory.
	GuideKey     string  `gorm:"column:guide_key" json:"guide_key"`
	WorkspaceKey *string `gorm:"column:workspace_key" json:"workspace_key,omitempty"`

	// Navigation edges across the whole course, written by the linker once
	// every lesson of the owning course exists. Null at the course edges.
	PreviousID *uuid.UUID `gorm:"type:uuid;column:previous_id" json:"previous_id,omitempty"`
	NextID     *uuid.UUID `gorm:"type:uuid;column:next_id" json:"next_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Lesson) TableName() string { return "lesson" }

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
