package database

import (
	"context"
	"errors"
	"time"

	"license-engine/internal/licensing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Diagnostics persists per-validation counters for local inspection.
type Diagnostics struct {
	db *gorm.DB
}

func NewDiagnostics(db *gorm.DB) *Diagnostics {
	return &Diagnostics{db: db}
}

var _ licensing.DiagnosticsRecorder = (*Diagnostics)(nil)

func (d *Diagnostics) RecordValidation(ctx context.Context, tokenDigest string, valid bool, reason licensing.Reason) error {
	record := ValidationRecord{
		Id:          uuid.New(),
		TokenDigest: tokenDigest,
		Valid:       valid,
		Reason:      string(reason),
		CheckedAt:   time.Now(),
	}

	return d.db.WithContext(ctx).Create(&record).Error
}

// Summary holds aggregate validation counts.
type Summary struct {
	Total     int64            `json:"total"`
	Valid     int64            `json:"valid"`
	Invalid   int64            `json:"invalid"`
	ByReason  map[string]int64 `json:"by_reason"`
	LastCheck *time.Time       `json:"last_check,omitempty"`
}

func (d *Diagnostics) Summarize(ctx context.Context) (Summary, error) {
	summary := Summary{ByReason: make(map[string]int64)}

	if err := d.db.WithContext(ctx).Model(&ValidationRecord{}).Count(&summary.Total).Error; err != nil {
		return Summary{}, err
	}

	if err := d.db.WithContext(ctx).Model(&ValidationRecord{}).Where("valid = ?", true).Count(&summary.Valid).Error; err != nil {
		return Summary{}, err
	}
	summary.Invalid = summary.Total - summary.Valid

	type reasonCount struct {
		Reason string
		Count  int64
	}
	var counts []reasonCount
	if err := d.db.WithContext(ctx).Model(&ValidationRecord{}).
		Select("reason, COUNT(*) as count").
		Where("reason <> ''").
		Group("reason").
		Scan(&counts).Error; err != nil {
		return Summary{}, err
	}
	for _, c := range counts {
		summary.ByReason[c.Reason] = c.Count
	}

	var last ValidationRecord
	err := d.db.WithContext(ctx).Order("checked_at DESC").First(&last).Error
	if err == nil {
		summary.LastCheck = &last.CheckedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Summary{}, err
	}

	return summary, nil
}
