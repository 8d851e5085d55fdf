package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-service/internal/domain/parking"
)

type RateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) *RateRepository {
	return &RateRepository{db: db}
}

func (r *RateRepository) AllRates(ctx context.Context) (parking.RateTable, error) {
	var records []StreetRate
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load street rates: %w", err)
	}

	rates := make(parking.RateTable, len(records))
	for _, record := range records {
		rates[record.StreetName] = record.RatePerMinute
	}
	return rates, nil
}

func (r *RateRepository) UpsertRate(ctx context.Context, street string, rate decimal.Decimal) error {
	record := StreetRate{
		StreetName:    street,
		RatePerMinute: rate,
		UpdatedAt:     time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "street_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate_per_minute", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("upsert street rate: %w", err)
	}
	return nil
}
