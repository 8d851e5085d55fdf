package repository

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"parking-service/internal/domain/parking"
)

func (ParkingSession) TableName() string {
	return "parking_sessions"
}

func (StreetRate) TableName() string {
	return "parking_street_rates"
}

func (MonitoringObservation) TableName() string {
	return "parking_observations"
}

type ParkingSession struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	LicencePlate   string    `gorm:"not null"`
	StreetName     string    `gorm:"not null"`
	RegisteredAt   time.Time `gorm:"not null"`
	DeregisteredAt *time.Time
	Status         string `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type StreetRate struct {
	StreetName    string          `gorm:"primaryKey"`
	RatePerMinute decimal.Decimal `gorm:"type:numeric(12,4);not null"`
	UpdatedAt     time.Time
}

type MonitoringObservation struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	LicencePlate string         `gorm:"not null"`
	StreetName   string         `gorm:"not null"`
	ObservedAt   time.Time      `gorm:"not null"`
	Metadata     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time
}

func sessionRecord(s *parking.Session) ParkingSession {
	return ParkingSession{
		ID:             s.ID,
		LicencePlate:   s.LicencePlate,
		StreetName:     s.StreetName,
		RegisteredAt:   s.RegisteredAt,
		DeregisteredAt: s.DeregisteredAt,
		Status:         s.Status.String(),
	}
}

func (r ParkingSession) toDomain() (parking.Session, error) {
	status, err := parking.ParseStatus(r.Status)
	if err != nil {
		return parking.Session{}, fmt.Errorf("session %s: %w", r.ID, err)
	}
	return parking.Session{
		ID:             r.ID,
		LicencePlate:   r.LicencePlate,
		StreetName:     r.StreetName,
		RegisteredAt:   r.RegisteredAt,
		DeregisteredAt: r.DeregisteredAt,
		Status:         status,
	}, nil
}

func observationRecord(o parking.Observation) (MonitoringObservation, error) {
	record := MonitoringObservation{
		ID:           o.ID,
		LicencePlate: o.LicencePlate,
		StreetName:   o.StreetName,
		ObservedAt:   o.ObservedAt,
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if len(o.Metadata) > 0 {
		raw, err := json.Marshal(o.Metadata)
		if err != nil {
			return MonitoringObservation{}, fmt.Errorf("marshal observation metadata: %w", err)
		}
		record.Metadata = datatypes.JSON(raw)
	}
	return record, nil
}

func (r MonitoringObservation) toDomain() (parking.Observation, error) {
	o := parking.Observation{
		ID:           r.ID,
		LicencePlate: r.LicencePlate,
		StreetName:   r.StreetName,
		ObservedAt:   r.ObservedAt,
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &o.Metadata); err != nil {
			return parking.Observation{}, fmt.Errorf("unmarshal observation metadata: %w", err)
		}
	}
	return o, nil
}
