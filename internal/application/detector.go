package application

import (
	"context"
	"time"

	"arbitrage-detector/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DetectorConfig struct {
	OrchestratorConfig
	// PassTimeout bounds a whole Detect call; zero leaves only the caller's deadline.
	PassTimeout time.Duration
}

// Detector is the single entry point of the detection engine.
type Detector struct {
	fetcher     *FetchOrchestrator
	passTimeout time.Duration
	clock       Clock
	idgen       IDGen
	log         *zap.Logger
	rec         Recorder
}

type DetectorOption func(*Detector)

func WithClock(c Clock) DetectorOption        { return func(d *Detector) { d.clock = c } }
func WithIDGen(g IDGen) DetectorOption        { return func(d *Detector) { d.idgen = g } }
func WithLogger(l *zap.Logger) DetectorOption { return func(d *Detector) { d.log = l } }
func WithRecorder(r Recorder) DetectorOption  { return func(d *Detector) { d.rec = r } }

func NewDetector(provider QuoteProvider, cfg DetectorConfig, opts ...DetectorOption) *Detector {
	d := &Detector{passTimeout: cfg.PassTimeout}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = realClock{}
	}
	if d.idgen == nil {
		d.idgen = defaultIDGen{}
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.rec == nil {
		d.rec = nopRecorder{}
	}
	d.fetcher = NewFetchOrchestrator(provider, cfg.OrchestratorConfig, d.log, d.rec)
	return d
}

// Detect runs one pass. Only invalid input is returned as an error; every data
// failure is absorbed per instrument and counted in Skipped.
func (d *Detector) Detect(ctx context.Context, instruments []domain.Instrument, threshold decimal.Decimal) (domain.DetectionResult, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return domain.DetectionResult{}, err
	}
	if err := domain.ValidateInstruments(instruments); err != nil {
		return domain.DetectionResult{}, err
	}

	start := time.Now()
	res := domain.DetectionResult{
		ID:        d.idgen.NewID(),
		Threshold: threshold,
		Attempted: len(instruments),
		StartedAt: d.clock.Now(),
	}
	log := d.log.With(zap.String("detection_id", res.ID))
	log.Info("detect.pass_start", zap.Int("instruments", len(instruments)), zap.String("threshold", threshold.String()))

	if d.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.passTimeout)
		defer cancel()
	}
	outcomes := d.fetcher.FetchAll(ctx, instruments)

	opps := make([]domain.Opportunity, 0, len(outcomes))
	skip := func(inst domain.Instrument, reason string) {
		res.Skipped++
		res.SkippedInstruments = append(res.SkippedInstruments, domain.SkippedInstrument{Instrument: inst, Reason: reason})
	}
	for _, out := range outcomes {
		if !out.OK {
			skip(out.Instrument, out.Reason())
			continue
		}
		opp, ok, err := Evaluate(out.Pair, threshold)
		if err != nil {
			log.Debug("detect.pair_discarded", zap.String("instrument", out.Instrument.String()), zap.Error(err))
			skip(out.Instrument, err.Error())
			continue
		}
		if ok {
			opps = append(opps, opp)
		}
	}
	res.Opportunities = Rank(opps)
	res.CompletedAt = d.clock.Now()

	took := time.Since(start)
	d.rec.ObservePass(res, took)
	log.Info("detect.pass_done",
		zap.Int("attempted", res.Attempted),
		zap.Int("skipped", res.Skipped),
		zap.Int("opportunities", len(res.Opportunities)),
		zap.Duration("took", took),
	)
	return res, nil
}
