package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindActiveByPlate returns nil when the plate has no open session.
func (r *SessionRepository) FindActiveByPlate(ctx context.Context, plate string) (*parking.Session, error) {
	var record ParkingSession
	err := r.db.WithContext(ctx).
		Where("licence_plate = ? AND status = ?", plate, parking.StatusRegistered.String()).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}

	s, err := record.toDomain()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Create(ctx context.Context, s *parking.Session) error {
	record := sessionRecord(s)
	err := r.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", parking.ErrAlreadyRegistered, s.LicencePlate)
	}
	if err != nil {
		return fmt.Errorf("failed to create parking session: %w", err)
	}
	return nil
}

// CloseActive persists a de-registration. The update only applies while the
// row is still Registered.
func (r *SessionRepository) CloseActive(ctx context.Context, s *parking.Session) error {
	if s.DeregisteredAt == nil {
		return fmt.Errorf("%w: session %s has no de-registration time", parking.ErrInvalidTransition, s.ID)
	}

	result := r.db.WithContext(ctx).
		Model(&ParkingSession{}).
		Where("id = ? AND status = ?", s.ID, parking.StatusRegistered.String()).
		Updates(map[string]interface{}{
			"deregistered_at": *s.DeregisteredAt,
			"status":          s.Status.String(),
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to close parking session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", parking.ErrRegistrationNotFound, s.LicencePlate)
	}
	return nil
}

// FindRegisteredBetween returns sessions registered in [from, to).
func (r *SessionRepository) FindRegisteredBetween(ctx context.Context, from, to time.Time) ([]parking.Session, error) {
	var records []ParkingSession
	err := r.db.WithContext(ctx).
		Where("registered_at >= ? AND registered_at < ?", from, to).
		Order("registered_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}

	sessions := make([]parking.Session, 0, len(records))
	for _, record := range records {
		s, err := record.toDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
