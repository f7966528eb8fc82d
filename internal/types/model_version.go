package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Model version decisions.
const (
	ModelDecisionAccepted = "accepted"
	ModelDecisionRejected = "rejected"
	ModelDecisionError    = "error"
)

// ModelVersion is the append-only audit record of one training run. Rows
// are never updated after creation.
type ModelVersion struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Version  string    `gorm:"column:version;not null;uniqueIndex" json:"version"`
	Decision string    `gorm:"column:decision;not null" json:"decision"`
	// Evaluation metrics for production and candidate on the shared
	// held-out partition, plus relative changes.
	Metrics       datatypes.JSON `gorm:"column:metrics;type:jsonb" json:"metrics,omitempty"`
	Message       string         `gorm:"column:message" json:"message"`
	EpochsTrained int            `gorm:"column:epochs_trained;not null;default:0" json:"epochs_trained"`
	CreatedAt     time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (ModelVersion) TableName() string { return "model_versions" }

func (v *ModelVersion) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
