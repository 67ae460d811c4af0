// Package cron triggers periodic roster refreshes on a cron schedule.
//
// Example usage:
//
//	trigger, err := cron.NewCronTrigger("*/5 * * * *", refresh, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	trigger.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()        // Wait for shutdown signal
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Callback is run on every scheduled tick.
type Callback func(ctx context.Context) error

// CronTrigger runs a Callback according to a cron schedule.
type CronTrigger struct {
	spec     string
	schedule cron.Schedule
	callback Callback
	logger   *slog.Logger
	now      func() time.Time
}

// NewCronTrigger creates a CronTrigger for a standard 5-field spec (minute,
// hour, day, month, weekday). Returns ErrInvalidCronSpec if the spec cannot
// be parsed.
func NewCronTrigger(spec string, callback Callback, logger *slog.Logger) (*CronTrigger, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	return &CronTrigger{
		spec:     spec,
		schedule: schedule,
		callback: callback,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Spec returns the schedule the trigger was created with.
func (ct *CronTrigger) Spec() string {
	return ct.spec
}

// Start launches a goroutine that runs the callback on schedule.
// Returns immediately. The goroutine exits when ctx is cancelled.
func (ct *CronTrigger) Start(ctx context.Context) {
	go ct.loop(ctx)
}

// NextRun returns the next scheduled run time from now.
func (ct *CronTrigger) NextRun() time.Time {
	return ct.schedule.Next(ct.now())
}

func (ct *CronTrigger) loop(ctx context.Context) {
	for {
		nextRun := ct.NextRun()
		wait := time.Until(nextRun)

		ct.logger.Debug("waiting for next scheduled refresh",
			"next_run", nextRun,
			"wait_duration", wait,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			ct.logger.Info("cron trigger shutting down")
			return
		case <-timer.C:
			ct.execute(ctx)
		}
	}
}

func (ct *CronTrigger) execute(ctx context.Context) {
	ct.logger.Info("starting scheduled refresh")

	if err := ct.callback(ctx); err != nil {
		ct.logger.Warn("scheduled refresh failed", "error", err)
	} else {
		ct.logger.Info("scheduled refresh completed")
	}
}
