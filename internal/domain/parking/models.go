package parking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAlreadyRegistered    = errors.New("licence number is already registered")
	ErrRegistrationNotFound = errors.New("parking registration not found")
	ErrRateNotFound         = errors.New("parking rate not found")
	ErrInvalidTransition    = errors.New("invalid session transition")
)

// Status is the lifecycle state of a parking session.
// Registered -> DeRegistered is the only legal transition; DeRegistered is terminal.
type Status string

const (
	StatusRegistered   Status = "Registered"
	StatusDeRegistered Status = "DeRegistered"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusRegistered, StatusDeRegistered:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown parking status: %q", s)
	}
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsTerminal() bool {
	return s == StatusDeRegistered
}

func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusRegistered:
		return next == StatusDeRegistered
	default:
		return false
	}
}

type Session struct {
	ID             uuid.UUID  `json:"id"`
	LicencePlate   string     `json:"licenceNumber"`
	StreetName     string     `json:"streetName"`
	RegisteredAt   time.Time  `json:"registerDatetime"`
	DeregisteredAt *time.Time `json:"unregisterDatetime,omitempty"`
	Status         Status     `json:"parkingStatus"`
}

// NewSession opens a session at the given instant, truncated to the second.
func NewSession(plate, street string, at time.Time) *Session {
	return &Session{
		ID:           uuid.New(),
		LicencePlate: plate,
		StreetName:   street,
		RegisteredAt: at.Truncate(time.Second),
		Status:       StatusRegistered,
	}
}

// Close moves the session to DeRegistered. A departure earlier than the
// registration is clamped to the registration instant.
func (s *Session) Close(at time.Time) error {
	if !s.Status.CanTransitionTo(StatusDeRegistered) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, StatusDeRegistered)
	}
	at = at.Truncate(time.Second)
	if at.Before(s.RegisteredAt) {
		at = s.RegisteredAt
	}
	s.DeregisteredAt = &at
	s.Status = StatusDeRegistered
	return nil
}

type Observation struct {
	ID           uuid.UUID              `json:"id"`
	LicencePlate string                 `json:"licenceNumber"`
	StreetName   string                 `json:"streetName"`
	ObservedAt   time.Time              `json:"recordingDate"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

type ReportEntry struct {
	LicencePlate string    `json:"licenceNumber"`
	StreetName   string    `json:"streetName"`
	ObservedAt   time.Time `json:"recordingDate"`
}

type FeeResult struct {
	Message         string          `json:"message"`
	Amount          decimal.Decimal `json:"parkingAmount"`
	BillableMinutes int64           `json:"billableMinutes"`
	LicencePlate    string          `json:"licenceNumber"`
	StreetName      string          `json:"streetName"`
	RegisteredAt    time.Time       `json:"registerDatetime"`
	DeregisteredAt  time.Time       `json:"unregisterDatetime"`
}
