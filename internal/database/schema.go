package database

import (
	"time"

	"github.com/google/uuid"
)

// ValidationRecord is one row per completed license validation. Records are
// diagnostics only; nothing in the validation pipeline reads them back for
// trust decisions.
type ValidationRecord struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TokenDigest string `gorm:"size:64;index;not null"`
	Valid       bool   `gorm:"not null"`
	Reason      string `gorm:"size:32"`

	CheckedAt time.Time `gorm:"index"`
}
