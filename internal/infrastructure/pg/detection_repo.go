package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"arbitrage-detector/internal/application"
	"arbitrage-detector/internal/domain"
	"arbitrage-detector/internal/infrastructure/logx"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ application.DetectionRepo = (*DetectionRepo)(nil)

// DefaultKeepRuns is how many past detection runs survive a Save.
const DefaultKeepRuns = 20

type DetectionRepo struct {
	db   *DB
	uow  *UnitOfWork
	keep int
}

func NewDetectionRepo(db *DB, keep int) *DetectionRepo {
	if keep <= 0 {
		keep = DefaultKeepRuns
	}
	return &DetectionRepo{db: db, uow: &UnitOfWork{Pool: db.Pool}, keep: keep}
}

type skippedRow struct {
	Instrument string `json:"instrument"`
	Reason     string `json:"reason"`
}

const (
	insertRun = `
        INSERT INTO detection_runs(id, threshold, attempted, skipped, skipped_instruments, started_at, completed_at)
        VALUES ($1, $2::numeric, $3, $4, $5::jsonb, $6, $7)`
	insertOpportunity = `
        INSERT INTO detection_opportunities(run_id, rank, instrument, buy_exchange, sell_exchange,
            buy_price, sell_price, price_difference, difference_percentage)
        VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric)`
	pruneRuns = `
        DELETE FROM detection_runs WHERE id IN (
            SELECT id FROM detection_runs ORDER BY completed_at DESC OFFSET $1)`
)

// Save stores the run and its ranked opportunities in one transaction and
// prunes runs beyond the retention window.
func (r *DetectionRepo) Save(ctx context.Context, res domain.DetectionResult) error {
	log := logx.L().With(
		zap.String("repo", "detection"),
		zap.String("operation", "Save"),
		zap.String("id", res.ID),
		zap.Int("opportunities", len(res.Opportunities)),
	)
	skipped := make([]skippedRow, 0, len(res.SkippedInstruments))
	for _, s := range res.SkippedInstruments {
		skipped = append(skipped, skippedRow{Instrument: s.Instrument.String(), Reason: s.Reason})
	}
	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return fmt.Errorf("encode skipped instruments: %w", err)
	}

	log.Info("sql.tx_start")
	err = r.uow.Do(ctx, func(ctx context.Context) error {
		q := conn(ctx, r.db.Pool)
		if _, err := q.Exec(ctx, insertRun,
			res.ID, res.Threshold.String(), res.Attempted, res.Skipped, string(skippedJSON),
			res.StartedAt.UTC(), res.CompletedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for i, o := range res.Opportunities {
			if _, err := q.Exec(ctx, insertOpportunity,
				res.ID, i+1, o.Instrument.String(), o.BuyExchange.String(), o.SellExchange.String(),
				o.BuyPrice.String(), o.SellPrice.String(), o.PriceDifference.String(), o.DifferencePercentage.String(),
			); err != nil {
				return fmt.Errorf("insert opportunity %d: %w", i+1, err)
			}
		}
		tag, err := q.Exec(ctx, pruneRuns, r.keep)
		if err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
		if n := tag.RowsAffected(); n > 0 {
			log.Debug("sql.pruned", zap.Int64("rows_affected", n))
		}
		return nil
	})
	if err != nil {
		log.Error("sql.tx_failed", zap.Error(err))
		return err
	}
	log.Info("sql.tx_committed")
	return nil
}

func (r *DetectionRepo) GetLast(ctx context.Context) (domain.DetectionResult, error) {
	const qRun = `
        SELECT id, threshold::text, attempted, skipped, skipped_instruments, started_at, completed_at
        FROM detection_runs ORDER BY completed_at DESC LIMIT 1`
	const qOpps = `
        SELECT instrument, buy_exchange, sell_exchange, buy_price::text, sell_price::text,
               price_difference::text, difference_percentage::text
        FROM detection_opportunities WHERE run_id=$1 ORDER BY rank`
	log := logx.L().With(
		zap.String("repo", "detection"),
		zap.String("operation", "GetLast"),
	)
	log.Info("sql.query_start")

	var (
		out         domain.DetectionResult
		threshold   string
		skippedJSON []byte
	)
	q := conn(ctx, r.db.Pool)
	err := q.QueryRow(ctx, qRun).Scan(&out.ID, &threshold, &out.Attempted, &out.Skipped,
		&skippedJSON, &out.StartedAt, &out.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Info("sql.query_no_rows")
		return domain.DetectionResult{}, application.ErrNotFound
	}
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return domain.DetectionResult{}, err
	}
	if out.Threshold, err = decimal.NewFromString(threshold); err != nil {
		return domain.DetectionResult{}, fmt.Errorf("decode threshold: %w", err)
	}
	var skipped []skippedRow
	if err := json.Unmarshal(skippedJSON, &skipped); err != nil {
		return domain.DetectionResult{}, fmt.Errorf("decode skipped instruments: %w", err)
	}
	for _, s := range skipped {
		out.SkippedInstruments = append(out.SkippedInstruments,
			domain.SkippedInstrument{Instrument: domain.Instrument(s.Instrument), Reason: s.Reason})
	}

	rows, err := q.Query(ctx, qOpps, out.ID)
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return domain.DetectionResult{}, err
	}
	defer rows.Close()
	out.Opportunities = []domain.Opportunity{}
	for rows.Next() {
		var (
			o                                  domain.Opportunity
			instrument, buy, sell              string
			buyPrice, sellPrice, diff, diffPct string
		)
		if err := rows.Scan(&instrument, &buy, &sell, &buyPrice, &sellPrice, &diff, &diffPct); err != nil {
			return domain.DetectionResult{}, err
		}
		o.Instrument = domain.Instrument(instrument)
		o.BuyExchange, o.SellExchange = domain.Exchange(buy), domain.Exchange(sell)
		if o.BuyPrice, err = decimal.NewFromString(buyPrice); err != nil {
			return domain.DetectionResult{}, fmt.Errorf("decode buy_price: %w", err)
		}
		if o.SellPrice, err = decimal.NewFromString(sellPrice); err != nil {
			return domain.DetectionResult{}, fmt.Errorf("decode sell_price: %w", err)
		}
		if o.PriceDifference, err = decimal.NewFromString(diff); err != nil {
			return domain.DetectionResult{}, fmt.Errorf("decode price_difference: %w", err)
		}
		if o.DifferencePercentage, err = decimal.NewFromString(diffPct); err != nil {
			return domain.DetectionResult{}, fmt.Errorf("decode difference_percentage: %w", err)
		}
		out.Opportunities = append(out.Opportunities, o)
	}
	if err := rows.Err(); err != nil {
		log.Error("sql.rows_failed", zap.Error(err))
		return domain.DetectionResult{}, err
	}
	out.StartedAt, out.CompletedAt = out.StartedAt.UTC(), out.CompletedAt.UTC()
	log.Info("sql.query_success", zap.String("id", out.ID), zap.Int("opportunities", len(out.Opportunities)))
	return out, nil
}
