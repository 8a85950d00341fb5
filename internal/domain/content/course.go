package content

import (
	"time"

	"gorm.io/datatypes"
)

// Course is the root of the synchronized hierarchy. Its identifier comes from
// the course descriptor, not from the store, so re-syncing the same descriptor
// updates the same row.
type Course struct {
	ID          string                      `gorm:"primaryKey" json:"id"`
	Name        string                      `gorm:"column:name;not null" json:"name"`
	Description string                      `gorm:"column:description;type:text" json:"description"`
	Tags        datatypes.JSONSlice[string] `gorm:"column:tags" json:"tags"`
	Authors     datatypes.JSONSlice[string] `gorm:"column:authors" json:"authors"`
	// Chapters holds the declared chapter names in canonical order.
	Chapters datatypes.JSONSlice[string] `gorm:"column:chapters" json:"chapters"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Course) TableName() string { return "course" }
