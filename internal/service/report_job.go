package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/metrics"
)

type ReportArchiver interface {
	UploadReport(ctx context.Context, day time.Time, data []byte) (string, error)
}

// ReportJob periodically builds today's violation report, archives it when
// an archiver is configured and purges expired observations. The first run
// after midnight archives the finished day once more so it includes
// observations recorded after the last run.
type ReportJob struct {
	parking   *ParkingService
	archiver  ReportArchiver
	interval  time.Duration
	retention time.Duration
	metrics   metrics.Recorder
	log       zerolog.Logger

	lastDay time.Time
}

func NewReportJob(parking *ParkingService, archiver ReportArchiver, interval, retention time.Duration, m metrics.Recorder, log zerolog.Logger) *ReportJob {
	if m == nil {
		m = metrics.Noop{}
	}
	return &ReportJob{
		parking:   parking,
		archiver:  archiver,
		interval:  interval,
		retention: retention,
		metrics:   m,
		log:       log,
	}
}

// Run blocks until ctx is done. A zero interval disables the job.
func (j *ReportJob) Run(ctx context.Context) {
	if j.interval <= 0 {
		j.log.Info().Msg("report job disabled")
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.log.Info().Dur("interval", j.interval).Msg("report job started")
	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("report job stopped")
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.log.Error().Err(err).Msg("report job run failed")
			}
		}
	}
}

// RunOnce is not safe for concurrent use; Run calls it from one goroutine.
func (j *ReportJob) RunOnce(ctx context.Context) error {
	day := j.parking.Today()

	if j.archiver != nil && !j.lastDay.IsZero() && j.lastDay.Before(day) {
		if err := j.buildAndArchive(ctx, j.lastDay); err != nil {
			return err
		}
	}
	if err := j.buildAndArchive(ctx, day); err != nil {
		return err
	}
	j.lastDay = day

	if _, err := j.parking.PurgeObservations(ctx, j.retention); err != nil {
		return err
	}
	return nil
}

func (j *ReportJob) buildAndArchive(ctx context.Context, day time.Time) error {
	data, err := j.parking.ViolationReportXLSX(ctx, day)
	if err != nil {
		return err
	}
	j.log.Info().
		Str("day", day.Format("2006-01-02")).
		Int("bytes", len(data)).
		Msg("violation report generated")

	if j.archiver == nil {
		return nil
	}
	url, err := j.archiver.UploadReport(ctx, day, data)
	if err != nil {
		return err
	}
	j.metrics.IncReportsArchived()
	j.log.Info().Str("url", url).Msg("violation report archived")
	return nil
}
