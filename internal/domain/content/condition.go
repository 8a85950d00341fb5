package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Condition carries opaque comparison operands for the downstream grader.
// The pipeline persists them without interpreting their semantics; Value is
// either a verbatim literal or the blob key of an uploaded referenced file.
type Condition struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID uuid.UUID `gorm:"type:uuid;column:task_id;not null;index" json:"task_id"`
	Task   *Task     `gorm:"constraint:OnDelete:CASCADE;foreignKey:TaskID;references:ID" json:"task,omitempty"`

	Kind  string `gorm:"column:kind;not null" json:"kind"`
	In    string `gorm:"column:in_value" json:"in"`
	Is    string `gorm:"column:is_value" json:"is"`
	Value string `gorm:"column:value;type:text" json:"value"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Condition) TableName() string { return "condition" }

func (c *Condition) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
