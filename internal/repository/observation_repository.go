package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
)

const observationBatchSize = 100

type ObservationRepository struct {
	db *gorm.DB
}

func NewObservationRepository(db *gorm.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// SaveAll stores the batch atomically and fills in generated IDs.
func (r *ObservationRepository) SaveAll(ctx context.Context, observations []parking.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	records := make([]MonitoringObservation, 0, len(observations))
	for _, o := range observations {
		record, err := observationRecord(o)
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&records, observationBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save observations: %w", err)
	}

	for i := range observations {
		observations[i].ID = records[i].ID
	}
	return nil
}

// FindObservedBetween returns observations recorded in [from, to).
func (r *ObservationRepository) FindObservedBetween(ctx context.Context, from, to time.Time) ([]parking.Observation, error) {
	var records []MonitoringObservation
	err := r.db.WithContext(ctx).
		Where("observed_at >= ? AND observed_at < ?", from, to).
		Order("observed_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("find observations: %w", err)
	}

	observations := make([]parking.Observation, 0, len(records))
	for _, record := range records {
		o, err := record.toDomain()
		if err != nil {
			return nil, err
		}
		observations = append(observations, o)
	}
	return observations, nil
}

// DeleteObservedBefore removes observations older than the cutoff.
func (r *ObservationRepository) DeleteObservedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("observed_at < ?", cutoff).
		Delete(&MonitoringObservation{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
