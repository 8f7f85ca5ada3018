package memstore

import (
	"context"
	"slices"
	"sync"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"
)

var _ application.DetectionRepo = (*DetectionRepo)(nil)

// DetectionRepo keeps the most recent detection result in process memory.
type DetectionRepo struct {
	mu   sync.RWMutex
	last *domain.DetectionResult
}

func NewDetectionRepo() *DetectionRepo { return &DetectionRepo{} }

func (r *DetectionRepo) Save(_ context.Context, res domain.DetectionResult) error {
	res.Opportunities = slices.Clone(res.Opportunities)
	res.SkippedInstruments = slices.Clone(res.SkippedInstruments)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last != nil && res.CompletedAt.Before(r.last.CompletedAt) {
		return nil
	}
	r.last = &res
	return nil
}

func (r *DetectionRepo) GetLast(context.Context) (domain.DetectionResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return domain.DetectionResult{}, application.ErrNotFound
	}
	out := *r.last
	out.Opportunities = slices.Clone(out.Opportunities)
	out.SkippedInstruments = slices.Clone(out.SkippedInstruments)
	return out, nil
}
