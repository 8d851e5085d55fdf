package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"parking-service/internal/domain/parking"
)

type Type string

const (
	TypeSessionRegistered   Type = "session.registered"
	TypeSessionDeregistered Type = "session.deregistered"
)

// SessionEvent is published after a session transition has been stored.
type SessionEvent struct {
	ID              uuid.UUID        `json:"id"`
	Type            Type             `json:"type"`
	SessionID       uuid.UUID        `json:"sessionId"`
	LicencePlate    string           `json:"licenceNumber"`
	StreetName      string           `json:"streetName"`
	RegisteredAt    time.Time        `json:"registerDatetime"`
	DeregisteredAt  *time.Time       `json:"unregisterDatetime,omitempty"`
	Amount          *decimal.Decimal `json:"parkingAmount,omitempty"`
	BillableMinutes *int64           `json:"billableMinutes,omitempty"`
	OccurredAt      time.Time        `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event SessionEvent) error
	Close()
}

func SessionRegistered(s *parking.Session, at time.Time) SessionEvent {
	return SessionEvent{
		ID:           uuid.New(),
		Type:         TypeSessionRegistered,
		SessionID:    s.ID,
		LicencePlate: s.LicencePlate,
		StreetName:   s.StreetName,
		RegisteredAt: s.RegisteredAt,
		OccurredAt:   at,
	}
}

func SessionDeregistered(s *parking.Session, fee *parking.FeeResult, at time.Time) SessionEvent {
	event := SessionEvent{
		ID:             uuid.New(),
		Type:           TypeSessionDeregistered,
		SessionID:      s.ID,
		LicencePlate:   s.LicencePlate,
		StreetName:     s.StreetName,
		RegisteredAt:   s.RegisteredAt,
		DeregisteredAt: s.DeregisteredAt,
		OccurredAt:     at,
	}
	if fee != nil {
		amount := fee.Amount
		minutes := fee.BillableMinutes
		event.Amount = &amount
		event.BillableMinutes = &minutes
	}
	return event
}

// NoopPublisher drops events; used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ SessionEvent) error { return nil }
func (NoopPublisher) Close()                                          {}
