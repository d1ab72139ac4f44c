package fraud

import (
	"context"
	"strings"

	"creator-ledger/pkg/db/option"
	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/metrics"
	"creator-ledger/pkg/money"
	"creator-ledger/services/payout"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ChargebackParams struct {
	AdminID         string
	CreatorID       string
	PayoutRequestID string
	Amount          decimal.Decimal
	Reason          string
}

func (p ChargebackParams) validate() error {
	if strings.TrimSpace(p.AdminID) == "" {
		return ErrAdminRequired
	}
	if strings.TrimSpace(p.CreatorID) == "" {
		return ErrCreatorRequired
	}
	if strings.TrimSpace(p.PayoutRequestID) == "" {
		return payout.ErrRequestIDRequired
	}
	if err := money.Validate(p.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(p.Reason) == "" {
		return ErrReasonRequired
	}
	return nil
}

// FileChargeback reverses a completed payout. The chargeback row, the
// ledger debit and the payout transition commit together or not at all.
func (s *Service) FileChargeback(ctx context.Context, p ChargebackParams) (*Chargeback, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	reference := s.nextReference(ctx)

	var out *Chargeback
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.ledger.LockBalance(ctx, tx, p.CreatorID); err != nil {
			return err
		}

		req, err := s.payouts.GetTx(ctx, tx, p.PayoutRequestID)
		if err != nil {
			return err
		}
		if req.CreatorID != p.CreatorID {
			return ErrPayoutMismatch
		}
		if req.Status != payout.StatusCompleted {
			return ErrPayoutNotCompleted
		}
		if p.Amount.GreaterThan(req.AmountUSD) {
			return ErrAmountExceeds
		}

		now := s.now().UTC()
		cb := &Chargeback{
			ID:              s.node.Generate().String(),
			Reference:       reference,
			CreatorID:       p.CreatorID,
			PayoutRequestID: req.ID,
			AmountUSD:       p.Amount,
			Reason:          strings.TrimSpace(p.Reason),
			InitiatedBy:     p.AdminID,
			Status:          ChargebackPending,
			InitiatedAt:     now,
			CreatedAt:       now,
		}
		if err := s.chargebacks.WithTrx(tx).Create(ctx, cb); err != nil {
			return err
		}

		if _, err := s.ledger.Debit(ctx, tx, p.CreatorID, p.Amount, cb.Reference); err != nil {
			return err
		}

		if _, err := s.payouts.ApplyTx(ctx, tx, payout.ChargebackCommand{RequestID: req.ID, AdminID: p.AdminID}); err != nil {
			return err
		}

		if err := s.chargebacks.WithTrx(tx).Update(ctx, cb.ID, map[string]any{
			"status":       ChargebackCompleted,
			"completed_at": now,
		}); err != nil {
			return err
		}
		cb.Status = ChargebackCompleted
		cb.CompletedAt = &now
		out = cb
		return nil
	})
	if err != nil {
		return nil, errutil.Store("failed to file chargeback", err)
	}

	metrics.PayoutTransitions.WithLabelValues("chargeback_filed", "ok").Inc()
	logger.Ctx(ctx).Warn("chargeback filed",
		zap.String("chargeback_id", out.ID),
		zap.String("reference", out.Reference),
		zap.String("creator_id", out.CreatorID),
		zap.String("payout_request_id", out.PayoutRequestID),
		zap.String("amount_usd", out.AmountUSD.String()),
		zap.String("admin_id", p.AdminID),
	)
	return out, nil
}

func (s *Service) nextReference(ctx context.Context) string {
	if s.refs != nil {
		ref, err := s.refs.NextChargebackReference(ctx)
		if err == nil {
			return ref
		}
		logger.Ctx(ctx).Warn("chargeback reference generator unavailable", zap.Error(err))
	}
	return "CBK-" + s.node.Generate().String()
}

type ListChargebacksParams struct {
	CreatorID       string
	PayoutRequestID string
	Limit           int
}

func (s *Service) ListChargebacks(ctx context.Context, p ListChargebacksParams) ([]*Chargeback, error) {
	cbs, err := s.chargebacks.Find(ctx, &Chargeback{CreatorID: p.CreatorID, PayoutRequestID: p.PayoutRequestID},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.WithLimit(p.Limit),
	)
	if err != nil {
		return nil, errutil.Store("failed to list chargebacks", err)
	}
	return cbs, nil
}
