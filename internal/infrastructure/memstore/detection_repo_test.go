package memstore

import (
	"context"
	"testing"
	"time"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestDetectionRepo_LastWins(t *testing.T) {
	r := NewDetectionRepo()
	ctx := context.Background()

	_, err := r.GetLast(ctx)
	require.ErrorIs(t, err, application.ErrNotFound)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Save(ctx, domain.DetectionResult{ID: "a", CompletedAt: t0.Add(time.Minute)}))
	require.NoError(t, r.Save(ctx, domain.DetectionResult{ID: "old", CompletedAt: t0}))

	got, err := r.GetLast(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", got.ID)
}

func TestDetectionRepo_CopiesSlices(t *testing.T) {
	r := NewDetectionRepo()
	ctx := context.Background()
	opps := []domain.Opportunity{{Instrument: "TCS"}}
	require.NoError(t, r.Save(ctx, domain.DetectionResult{ID: "a", Opportunities: opps}))
	opps[0].Instrument = "MUTATED"

	got, err := r.GetLast(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Instrument("TCS"), got.Opportunities[0].Instrument)
}
