package earnings

import (
	"context"
	"sync"

	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reconcileConcurrency = 8

type Drift struct {
	CreatorID string          `json:"creator_id"`
	Balance   decimal.Decimal `json:"balance"`
	Unpaid    decimal.Decimal `json:"unpaid"`
	Drift     decimal.Decimal `json:"drift"`
}

type ReconcileReport struct {
	Checked int     `json:"checked"`
	Drifts  []Drift `json:"drifts"`
}

// Reconcile compares every running balance counter with the sum of unpaid
// records. It only reports; nothing is corrected.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	balances, err := s.balances.Find(ctx, &Balance{})
	if err != nil {
		return nil, errutil.Store("failed to list balances", err)
	}

	var (
		mu     sync.Mutex
		report = &ReconcileReport{Checked: len(balances)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)

	for _, b := range balances {
		g.Go(func() error {
			sum, err := s.UnpaidBalance(gctx, s.db, b.CreatorID)
			if err != nil {
				return err
			}

			drift := b.Balance.Sub(sum)
			if drift.IsZero() {
				metrics.BalanceDrift.DeleteLabelValues(b.CreatorID)
				return nil
			}

			f, _ := drift.Float64()
			metrics.BalanceDrift.WithLabelValues(b.CreatorID).Set(f)

			mu.Lock()
			report.Drifts = append(report.Drifts, Drift{CreatorID: b.CreatorID, Balance: b.Balance, Unpaid: sum, Drift: drift})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errutil.Store("failed to reconcile balances", err)
	}

	for _, d := range report.Drifts {
		logger.Ctx(ctx).Warn("balance drift detected",
			zap.String("creator_id", d.CreatorID),
			zap.String("balance", d.Balance.String()),
			zap.String("unpaid", d.Unpaid.String()),
		)
	}
	return report, nil
}
