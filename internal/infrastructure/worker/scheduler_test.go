package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"

	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	mu    sync.Mutex
	calls int
	reqs  []application.DetectionRequest
	err   error
	panic bool
}

func (r *countingRunner) RunDetection(_ context.Context, req application.DetectionRequest, idem *string) (domain.DetectionResult, error) {
	r.mu.Lock()
	r.calls++
	r.reqs = append(r.reqs, req)
	shouldPanic := r.panic
	r.mu.Unlock()
	if idem != nil {
		return domain.DetectionResult{}, errors.New("scheduler must not pass an idempotency key")
	}
	if shouldPanic {
		panic("boom")
	}
	return domain.DetectionResult{ID: "run"}, r.err
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestScheduler_RunsOnStartAndOnTicks(t *testing.T) {
	r := &countingRunner{}
	w := &Scheduler{Runner: r, PollEvery: 10 * time.Millisecond, RunOnStart: true}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Start(ctx); close(done) }()

	require.Eventually(t, func() bool { return r.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.reqs {
		require.Nil(t, req.Instruments, "scheduled passes cover the configured universe")
		require.Nil(t, req.Threshold)
	}
}

func TestScheduler_NoRunOnStart(t *testing.T) {
	r := &countingRunner{}
	w := &Scheduler{Runner: r, PollEvery: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Start(ctx); close(done) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	require.Equal(t, 0, r.count())
}

func TestScheduler_SurvivesFailuresAndPanics(t *testing.T) {
	r := &countingRunner{err: errors.New("repo down"), panic: true}
	w := &Scheduler{Runner: r, PollEvery: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Start(ctx); close(done) }()

	require.Eventually(t, func() bool { return r.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
