package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"parking-service/internal/clock"
	"parking-service/internal/domain/parking"
	"parking-service/internal/events"
	"parking-service/internal/lock"
	"parking-service/internal/metrics"
	"parking-service/internal/report"
	"parking-service/internal/utils"
)

var ErrInvalidInput = errors.New("invalid input")

const defaultPublishTimeout = 5 * time.Second

type SessionStore interface {
	// FindActiveByPlate returns nil, nil when the plate has no open session.
	FindActiveByPlate(ctx context.Context, plate string) (*parking.Session, error)
	Create(ctx context.Context, s *parking.Session) error
	CloseActive(ctx context.Context, s *parking.Session) error
	FindRegisteredBetween(ctx context.Context, from, to time.Time) ([]parking.Session, error)
}

type RateStore interface {
	AllRates(ctx context.Context) (parking.RateTable, error)
	UpsertRate(ctx context.Context, street string, rate decimal.Decimal) error
}

type ObservationStore interface {
	SaveAll(ctx context.Context, observations []parking.Observation) error
	FindObservedBetween(ctx context.Context, from, to time.Time) ([]parking.Observation, error)
	DeleteObservedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ObservationInput struct {
	LicencePlate string
	StreetName   string
	ObservedAt   time.Time
	Metadata     map[string]interface{}
}

type ParkingService struct {
	sessions     SessionStore
	rates        RateStore
	observations ObservationStore
	clock        clock.Clock
	locker       lock.Locker
	publisher    events.Publisher
	metrics      metrics.Recorder
	loc          *time.Location
	publishWait  time.Duration
	log          zerolog.Logger
}

type Option func(*ParkingService)

func WithClock(c clock.Clock) Option {
	return func(s *ParkingService) { s.clock = c }
}

func WithLocker(l lock.Locker) Option {
	return func(s *ParkingService) { s.locker = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *ParkingService) { s.publisher = p }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *ParkingService) { s.metrics = m }
}

// WithPublishTimeout bounds how long a call waits for its session event.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *ParkingService) {
		if d > 0 {
			s.publishWait = d
		}
	}
}

// WithLocation sets the zone used for wall clock billing and report days.
func WithLocation(loc *time.Location) Option {
	return func(s *ParkingService) { s.loc = loc }
}

func NewParkingService(sessions SessionStore, rates RateStore, observations ObservationStore, log zerolog.Logger, opts ...Option) *ParkingService {
	s := &ParkingService{
		sessions:     sessions,
		rates:        rates,
		observations: observations,
		publishWait:  defaultPublishTimeout,
		log:          log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.clock == nil {
		s.clock = clock.NewSystem(s.loc)
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.publisher == nil {
		s.publisher = events.NoopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Noop{}
	}
	return s
}

func (s *ParkingService) Location() *time.Location {
	return s.loc
}

// Today is the current calendar day in the service location.
func (s *ParkingService) Today() time.Time {
	now := s.clock.Now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

func (s *ParkingService) Register(ctx context.Context, plate, street string) (*parking.Session, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}
	street = utils.NormalizeStreet(street)
	if street == "" {
		return nil, fmt.Errorf("%w: street name is required", ErrInvalidInput)
	}

	session, err := s.openSession(ctx, plate, street)
	if err != nil {
		return nil, err
	}

	s.metrics.IncRegistrations()
	s.publish(ctx, events.SessionRegistered(session, s.clock.Now()))

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("plate", plate).
		Str("street", street).
		Time("registered_at", session.RegisteredAt).
		Msg("vehicle registered")

	return session, nil
}

// openSession runs the check-and-create under the plate lock.
func (s *ParkingService) openSession(ctx context.Context, plate, street string) (*parking.Session, error) {
	unlock, err := s.locker.Lock(ctx, plate)
	if err != nil {
		return nil, fmt.Errorf("lock plate %s: %w", plate, err)
	}
	defer unlock()

	active, err := s.sessions.FindActiveByPlate(ctx, plate)
	if err != nil {
		s.log.Error().Err(err).Str("plate", plate).Msg("failed to look up active session")
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: %s", parking.ErrAlreadyRegistered, plate)
	}

	session := parking.NewSession(plate, street, s.clock.Now().In(s.loc))
	if err := s.sessions.Create(ctx, session); err != nil {
		if !errors.Is(err, parking.ErrAlreadyRegistered) {
			s.log.Error().Err(err).Str("plate", plate).Msg("failed to create parking session")
		}
		return nil, err
	}
	return session, nil
}

// Deregister closes the plate's open session and prices it. The fee is
// computed before anything is written, so a missing rate leaves the session
// open.
func (s *ParkingService) Deregister(ctx context.Context, plate string) (*parking.FeeResult, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}

	closed, fee, err := s.closeSession(ctx, plate)
	if err != nil {
		return nil, err
	}

	s.metrics.IncDeregistrations(fee.Amount)
	s.publish(ctx, events.SessionDeregistered(closed, fee, s.clock.Now()))

	s.log.Info().
		Str("session_id", closed.ID.String()).
		Str("plate", plate).
		Str("street", closed.StreetName).
		Int64("billable_minutes", fee.BillableMinutes).
		Str("amount", fee.Amount.String()).
		Msg("vehicle de-registered")

	return fee, nil
}

// closeSession prices and closes the open session under the plate lock.
func (s *ParkingService) closeSession(ctx context.Context, plate string) (*parking.Session, *parking.FeeResult, error) {
	unlock, err := s.locker.Lock(ctx, plate)
	if err != nil {
		return nil, nil, fmt.Errorf("lock plate %s: %w", plate, err)
	}
	defer unlock()

	active, err := s.sessions.FindActiveByPlate(ctx, plate)
	if err != nil {
		s.log.Error().Err(err).Str("plate", plate).Msg("failed to look up active session")
		return nil, nil, err
	}
	if active == nil {
		return nil, nil, fmt.Errorf("%w: %s", parking.ErrRegistrationNotFound, plate)
	}

	rates, err := s.rates.AllRates(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load street rates")
		return nil, nil, err
	}

	closed := *active
	closed.RegisteredAt = active.RegisteredAt.In(s.loc)
	if err := closed.Close(s.clock.Now().In(s.loc)); err != nil {
		return nil, nil, err
	}

	fee, err := parking.ComputeFee(closed, rates)
	if err != nil {
		if errors.Is(err, parking.ErrRateNotFound) {
			s.log.Error().
				Err(err).
				Str("plate", plate).
				Str("street", closed.StreetName).
				Msg("no rate configured for street")
		}
		return nil, nil, err
	}

	if err := s.sessions.CloseActive(ctx, &closed); err != nil {
		if !errors.Is(err, parking.ErrRegistrationNotFound) {
			s.log.Error().Err(err).Str("plate", plate).Msg("failed to close parking session")
		}
		return nil, nil, err
	}
	return &closed, fee, nil
}

func (s *ParkingService) ActiveSession(ctx context.Context, plate string) (*parking.Session, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}

	active, err := s.sessions.FindActiveByPlate(ctx, plate)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, fmt.Errorf("%w: %s", parking.ErrRegistrationNotFound, plate)
	}
	active.RegisteredAt = active.RegisteredAt.In(s.loc)
	return active, nil
}

// UploadObservations stores a patrol batch. Observations without a time are
// stamped with the current instant.
func (s *ParkingService) UploadObservations(ctx context.Context, inputs []ObservationInput) ([]parking.Observation, error) {
	now := s.clock.Now()
	observations := make([]parking.Observation, 0, len(inputs))
	for i, in := range inputs {
		plate, err := normalizePlate(in.LicencePlate)
		if err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		street := utils.NormalizeStreet(in.StreetName)
		if street == "" {
			return nil, fmt.Errorf("%w: observation %d: street name is required", ErrInvalidInput, i)
		}

		observedAt := in.ObservedAt
		if observedAt.IsZero() {
			observedAt = now
		}
		observations = append(observations, parking.Observation{
			LicencePlate: plate,
			StreetName:   street,
			ObservedAt:   observedAt.Truncate(time.Second).In(s.loc),
			Metadata:     in.Metadata,
		})
	}
	if len(observations) == 0 {
		return observations, nil
	}

	if err := s.observations.SaveAll(ctx, observations); err != nil {
		s.log.Error().Err(err).Int("count", len(observations)).Msg("failed to save observations")
		return nil, err
	}

	s.metrics.AddObservationsUploaded(len(observations))
	s.log.Info().Int("count", len(observations)).Msg("observations uploaded")

	return observations, nil
}

// ViolationReport reconciles the sessions registered and the observations
// recorded on the given calendar day.
func (s *ParkingService) ViolationReport(ctx context.Context, day time.Time) ([]parking.ReportEntry, error) {
	from, to := s.dayBounds(day)

	var (
		sessions     []parking.Session
		observations []parking.Observation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = s.sessions.FindRegisteredBetween(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		observations, err = s.observations.FindObservedBetween(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Time("day", from).Msg("failed to load report data")
		return nil, err
	}

	entries := parking.Reconcile(sessions, observations)
	for i := range entries {
		entries[i].ObservedAt = entries[i].ObservedAt.In(s.loc)
	}

	s.metrics.SetViolationsReported(len(entries))
	s.log.Debug().
		Time("day", from).
		Int("sessions", len(sessions)).
		Int("observations", len(observations)).
		Int("violations", len(entries)).
		Msg("violation report built")

	return entries, nil
}

// ViolationReportXLSX renders the day's report as a workbook.
func (s *ParkingService) ViolationReportXLSX(ctx context.Context, day time.Time) ([]byte, error) {
	entries, err := s.ViolationReport(ctx, day)
	if err != nil {
		return nil, err
	}

	from, _ := s.dayBounds(day)
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, from, entries, s.loc); err != nil {
		return nil, fmt.Errorf("render violation report: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *ParkingService) ListRates(ctx context.Context) (parking.RateTable, error) {
	return s.rates.AllRates(ctx)
}

func (s *ParkingService) UpsertRate(ctx context.Context, street string, rate decimal.Decimal) error {
	street = utils.NormalizeStreet(street)
	if street == "" {
		return fmt.Errorf("%w: street name is required", ErrInvalidInput)
	}
	if rate.IsNegative() {
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidInput)
	}

	if err := s.rates.UpsertRate(ctx, street, rate); err != nil {
		s.log.Error().Err(err).Str("street", street).Msg("failed to update street rate")
		return err
	}

	s.log.Info().Str("street", street).Str("rate_per_minute", rate.String()).Msg("street rate updated")
	return nil
}

// PurgeObservations deletes observations older than the retention period.
func (s *ParkingService) PurgeObservations(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-retention)

	deleted, err := s.observations.DeleteObservedBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Dur("retention", retention).Msg("failed to purge old observations")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Time("cutoff", cutoff).Msg("purged old observations")
	}
	return deleted, nil
}

// publish runs after the plate lock is released. The session is already
// stored, so the event outlives a cancelled request but not publishWait.
func (s *ParkingService) publish(ctx context.Context, event events.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishWait)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().
			Err(err).
			Str("event_type", string(event.Type)).
			Str("plate", event.LicencePlate).
			Msg("failed to publish session event")
	}
}

func (s *ParkingService) dayBounds(day time.Time) (time.Time, time.Time) {
	day = day.In(s.loc)
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	return from, from.AddDate(0, 0, 1)
}

func normalizePlate(raw string) (string, error) {
	plate := utils.NormalizePlate(raw)
	if !utils.ValidPlate(plate) {
		return "", fmt.Errorf("%w: licence number must be between %d and %d characters",
			ErrInvalidInput, utils.MinPlateLength, utils.MaxPlateLength)
	}
	return plate, nil
}
