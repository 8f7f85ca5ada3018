package worker

import (
	"context"
	"fmt"
	"time"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"

	"go.uber.org/zap"
)

var _ application.Worker = (*Scheduler)(nil)

// Runner is satisfied by application.DetectionService.
type Runner interface {
	RunDetection(ctx context.Context, req application.DetectionRequest, idem *string) (domain.DetectionResult, error)
}

// Scheduler runs a detection pass over the configured universe every
// PollEvery and stores it as the latest result. Passes never overlap.
type Scheduler struct {
	Runner    Runner
	PollEvery time.Duration
	// RunOnStart triggers a pass immediately instead of waiting one period.
	RunOnStart bool
	Log        *zap.Logger
}

func (w *Scheduler) Start(ctx context.Context) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	if w.PollEvery <= 0 {
		w.PollEvery = time.Minute
	}

	t := time.NewTicker(w.PollEvery)
	defer t.Stop()

	log.Info("scheduler.started", zap.Duration("poll_every", w.PollEvery))
	if w.RunOnStart {
		w.tick(ctx, log)
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler.stopped")
			return
		case <-t.C:
			w.tick(ctx, log)
		}
	}
}

func (w *Scheduler) tick(ctx context.Context, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("scheduler.panic", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	res, err := w.Runner.RunDetection(ctx, application.DetectionRequest{}, nil)
	if err != nil {
		log.Warn("scheduler.pass_failed", zap.Error(err))
		return
	}
	sum := res.Summary()
	log.Info("scheduler.pass_stored",
		zap.String("detection_id", res.ID),
		zap.Int("attempted", res.Attempted),
		zap.Int("skipped", res.Skipped),
		zap.Int("opportunities", sum.Count),
		zap.String("max_percentage", sum.Max.String()),
	)
}
