package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"parking-service/internal/domain/parking"
	"parking-service/internal/events"
	"parking-service/internal/lock"
)

type memSessionStore struct {
	mu       sync.Mutex
	sessions []parking.Session
}

func (m *memSessionStore) FindActiveByPlate(_ context.Context, plate string) (*parking.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.LicencePlate == plate && s.Status == parking.StatusRegistered {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memSessionStore) Create(_ context.Context, s *parking.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.LicencePlate == s.LicencePlate && existing.Status == parking.StatusRegistered {
			return parking.ErrAlreadyRegistered
		}
	}
	m.sessions = append(m.sessions, *s)
	return nil
}

func (m *memSessionStore) CloseActive(_ context.Context, s *parking.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.sessions {
		if existing.ID == s.ID && existing.Status == parking.StatusRegistered {
			m.sessions[i].Status = s.Status
			m.sessions[i].DeregisteredAt = s.DeregisteredAt
			return nil
		}
	}
	return parking.ErrRegistrationNotFound
}

func (m *memSessionStore) FindRegisteredBetween(_ context.Context, from, to time.Time) ([]parking.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []parking.Session
	for _, s := range m.sessions {
		if !s.RegisteredAt.Before(from) && s.RegisteredAt.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessionStore) byPlate(plate string) []parking.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []parking.Session
	for _, s := range m.sessions {
		if s.LicencePlate == plate {
			out = append(out, s)
		}
	}
	return out
}

type memRateStore struct {
	mu    sync.Mutex
	rates parking.RateTable
}

func newRateStore() *memRateStore {
	return &memRateStore{rates: parking.RateTable{
		"Java":    decimal.NewFromInt(3),
		"Azure":   decimal.NewFromInt(8),
		"Jakarta": decimal.NewFromInt(10),
	}}
}

func (m *memRateStore) AllRates(_ context.Context) (parking.RateTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(parking.RateTable, len(m.rates))
	for k, v := range m.rates {
		out[k] = v
	}
	return out, nil
}

func (m *memRateStore) UpsertRate(_ context.Context, street string, rate decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[street] = rate
	return nil
}

type memObservationStore struct {
	mu           sync.Mutex
	observations []parking.Observation
	err          error
}

func (m *memObservationStore) SaveAll(_ context.Context, observations []parking.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.observations = append(m.observations, observations...)
	return nil
}

func (m *memObservationStore) FindObservedBetween(_ context.Context, from, to time.Time) ([]parking.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []parking.Observation
	for _, o := range m.observations {
		if !o.ObservedAt.Before(from) && o.ObservedAt.Before(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memObservationStore) DeleteObservedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.observations[:0]
	var deleted int64
	for _, o := range m.observations {
		if o.ObservedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	m.observations = kept
	return deleted, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SessionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeArchiver struct {
	days []time.Time
	data [][]byte
	err  error
}

func (a *fakeArchiver) UploadReport(_ context.Context, day time.Time, data []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.days = append(a.days, day)
	a.data = append(a.data, data)
	return "https://files.example.com/parking/reports/" + day.Format("2006-01-02") + ".xlsx", nil
}

var errStoreDown = errors.New("store down")

// stallingPublisher never delivers; it returns when the context ends.
type stallingPublisher struct {
	mu          sync.Mutex
	calls       int
	hadDeadline bool
}

func (p *stallingPublisher) Publish(ctx context.Context, _ events.SessionEvent) error {
	_, ok := ctx.Deadline()
	p.mu.Lock()
	p.calls++
	p.hadDeadline = ok
	p.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

func (p *stallingPublisher) Close() {}

// lockCheckingPublisher records whether the event's plate lock was free
// while the event was being published.
type lockCheckingPublisher struct {
	locker lock.Locker
	mu     sync.Mutex
	free   []bool
}

func (p *lockCheckingPublisher) Publish(ctx context.Context, event events.SessionEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	unlock, err := p.locker.Lock(ctx, event.LicencePlate)
	if err == nil {
		unlock()
	}
	p.mu.Lock()
	p.free = append(p.free, err == nil)
	p.mu.Unlock()
	return nil
}

func (p *lockCheckingPublisher) Close() {}
