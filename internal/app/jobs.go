package app

import (
	"context"
	"errors"
	"time"

	"github.com/eventradar/radar/internal/cleanup"
	"github.com/eventradar/radar/internal/ingestion"
	"github.com/eventradar/radar/internal/scheduler"
)

const (
	JobExtraction = "extraction"
	JobCleanup    = "cleanup"
	JobDigest     = "digest"

	cleanupTimeout = 10 * time.Minute
	digestTimeout  = 2 * time.Minute
)

// Jobs returns the periodic jobs with their configured schedules.
func (a *App) Jobs() []scheduler.Job {
	cfg := a.Config
	// Sources started just before the deadline still need to finish.
	extractionTimeout := cfg.Pipeline.BatchDeadline + cfg.Pipeline.FetchTimeout + cfg.Pipeline.ExtractTimeout

	return []scheduler.Job{
		{
			Name:    JobExtraction,
			Spec:    cfg.Schedule.Extraction,
			Timeout: extractionTimeout,
			Run:     a.RunExtraction,
		},
		{
			Name:    JobCleanup,
			Spec:    cfg.Schedule.Cleanup,
			Timeout: cleanupTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.Cleanup.Run(ctx, cleanup.Options{})
				return err
			},
		},
		{
			Name:    JobDigest,
			Spec:    cfg.Schedule.Digest,
			Timeout: digestTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.Digest.Send(ctx)
				return err
			},
		},
	}
}

// RunExtraction runs every active source once. An overlapping run is logged
// and skipped.
func (a *App) RunExtraction(ctx context.Context) error {
	report, err := a.Pipeline.RunAll(ctx)
	if errors.Is(err, ingestion.ErrRunInProgress) {
		a.Logger.Warn("extraction run skipped, previous run still in progress")
		return nil
	}
	if err != nil {
		return err
	}
	a.Logger.Info("scheduled extraction finished",
		"run_id", report.ID,
		"ok", report.Totals.OK,
		"failed", report.Totals.Failed,
		"skipped", report.Totals.Skipped,
		"added", report.Totals.Added)
	return nil
}
