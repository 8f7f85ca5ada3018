package application

import (
	"context"
	"fmt"

	"arbitrage-detector/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine is the detection entry point the service drives.
type Engine interface {
	Detect(ctx context.Context, instruments []domain.Instrument, threshold decimal.Decimal) (domain.DetectionResult, error)
}

// DetectionRequest leaves Instruments nil to use the configured universe and
// Threshold nil to use the default threshold.
type DetectionRequest struct {
	Instruments []domain.Instrument
	Threshold   *decimal.Decimal
}

type DetectionService struct {
	engine           Engine
	repo             DetectionRepo
	idem             IdempotencyStore
	universe         []domain.Instrument
	defaultThreshold decimal.Decimal
	log              *zap.Logger
}

func NewDetectionService(engine Engine, repo DetectionRepo, idem IdempotencyStore, universe []domain.Instrument, defaultThreshold decimal.Decimal, log *zap.Logger) *DetectionService {
	if idem == nil {
		idem = NoopIdempotency{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DetectionService{
		engine:           engine,
		repo:             repo,
		idem:             idem,
		universe:         universe,
		defaultThreshold: defaultThreshold,
		log:              log,
	}
}

// Detect runs a pass without recording it.
func (s *DetectionService) Detect(ctx context.Context, req DetectionRequest) (domain.DetectionResult, error) {
	instruments, threshold := s.resolve(req)
	return s.engine.Detect(ctx, instruments, threshold)
}

// RunDetection runs a pass and stores it as the latest result. A repeated
// idempotency key yields ErrConflict without running the pass.
func (s *DetectionService) RunDetection(ctx context.Context, req DetectionRequest, idem *string) (domain.DetectionResult, error) {
	if idem != nil && *idem != "" {
		ok, err := s.idem.TryReserve(ctx, "detection:"+*idem)
		if err != nil {
			return domain.DetectionResult{}, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if !ok {
			return domain.DetectionResult{}, ErrConflict
		}
	}

	res, err := s.Detect(ctx, req)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	if s.repo != nil {
		if err := s.repo.Save(ctx, res); err != nil {
			s.log.Error("detection.save_failed", zap.String("detection_id", res.ID), zap.Error(err))
			return domain.DetectionResult{}, fmt.Errorf("save detection: %w", err)
		}
	}
	return res, nil
}

func (s *DetectionService) GetLastDetection(ctx context.Context) (domain.DetectionResult, error) {
	if s.repo == nil {
		return domain.DetectionResult{}, ErrNotFound
	}
	return s.repo.GetLast(ctx)
}

func (s *DetectionService) Universe() []domain.Instrument {
	return append([]domain.Instrument(nil), s.universe...)
}

func (s *DetectionService) resolve(req DetectionRequest) ([]domain.Instrument, decimal.Decimal) {
	instruments := req.Instruments
	if instruments == nil {
		instruments = s.Universe()
	}
	threshold := s.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	return instruments, threshold
}
