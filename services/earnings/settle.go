package earnings

import (
	"context"
	"strings"

	"creator-ledger/pkg/db/option"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func fifo() option.QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("earned_on ASC").Order("created_at ASC").Order("id ASC")
	}
}

// Settle marks unpaid records paid, oldest first, until exactly amount is
// covered. The record that overshoots is split: a paid part for what is
// still needed and a new unpaid record for the rest. The caller owns tx and
// must already hold the balance lock.
func (s *Service) Settle(ctx context.Context, tx *gorm.DB, creatorID, payoutRequestID string, amount decimal.Decimal) ([]*EarningsRecord, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrCreatorRequired
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	bal, err := s.LockBalance(ctx, tx, creatorID)
	if err != nil {
		return nil, err
	}

	recs, err := s.records.WithTrx(tx).Find(ctx, &EarningsRecord{CreatorID: creatorID}, unpaid(), option.WithLockingUpdate(), fifo())
	if err != nil {
		return nil, err
	}

	amounts := make([]decimal.Decimal, 0, len(recs))
	for _, r := range recs {
		amounts = append(amounts, r.EarningsUSD)
	}
	if money.Sum(amounts...).LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	now := s.now().UTC()
	needed := amount
	settled := make([]*EarningsRecord, 0, len(recs))

	for _, r := range recs {
		if !needed.IsPositive() {
			break
		}

		if r.EarningsUSD.LessThanOrEqual(needed) {
			if err := s.markPaid(ctx, tx, r, payoutRequestID, r.Views, r.EarningsUSD); err != nil {
				return nil, err
			}
			needed = needed.Sub(r.EarningsUSD)
			settled = append(settled, r)
			continue
		}

		remainder, err := s.split(ctx, tx, r, payoutRequestID, needed)
		if err != nil {
			return nil, err
		}
		logger.Ctx(ctx).Debug("earnings record split",
			zap.String("record_id", r.ID),
			zap.String("remainder_id", remainder.ID),
			zap.String("remainder_usd", remainder.EarningsUSD.String()),
		)
		needed = decimal.Zero
		settled = append(settled, r)
	}

	if needed.IsPositive() {
		return nil, ErrInsufficientBalance
	}

	if err := s.balances.WithTrx(tx).Update(ctx, bal.ID, map[string]any{
		"balance":    bal.Balance.Sub(amount),
		"total_paid": bal.TotalPaid.Add(amount),
		"updated_at": now,
	}); err != nil {
		return nil, err
	}

	return settled, nil
}

func (s *Service) markPaid(ctx context.Context, tx *gorm.DB, r *EarningsRecord, payoutRequestID string, views uint64, amount decimal.Decimal) error {
	now := s.now().UTC()
	if err := s.records.WithTrx(tx).Update(ctx, r.ID, map[string]any{
		"is_paid":           true,
		"paid_at":           now,
		"payout_request_id": payoutRequestID,
		"views":             views,
		"earnings_usd":      amount,
		"updated_at":        now,
	}); err != nil {
		return err
	}

	r.IsPaid = true
	r.PaidAt = &now
	r.PayoutRequestID = payoutRequestID
	r.Views = views
	r.EarningsUSD = amount
	r.UpdatedAt = now
	return nil
}

// split pays `paid` out of r and opens an unpaid remainder record carrying
// the same locked rate. Views are pro-rated, rounding the paid share down.
func (s *Service) split(ctx context.Context, tx *gorm.DB, r *EarningsRecord, payoutRequestID string, paid decimal.Decimal) (*EarningsRecord, error) {
	rest := r.EarningsUSD.Sub(paid)
	paidViews := uint64(decimal.NewFromUint64(r.Views).Mul(paid).Div(r.EarningsUSD).IntPart())

	remainder := &EarningsRecord{
		ID:              s.node.Generate().String(),
		CreatorID:       r.CreatorID,
		ContentID:       r.ContentID,
		ContentType:     r.ContentType,
		EarnedOn:        r.EarnedOn,
		RateKey:         r.RateKey,
		Views:           r.Views - paidViews,
		EarningsUSD:     rest,
		TierRateAtTime:  r.TierRateAtTime,
		BonusMultiplier: r.BonusMultiplier,
		RateVersion:     r.RateVersion,
		SplitFromID:     r.ID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       s.now().UTC(),
	}

	// The original must leave the open-record index before the remainder
	// takes its place.
	if err := s.markPaid(ctx, tx, r, payoutRequestID, paidViews, paid); err != nil {
		return nil, err
	}
	if err := s.records.WithTrx(tx).Create(ctx, remainder); err != nil {
		return nil, err
	}
	return remainder, nil
}

// Debit records a chargeback against the creator as a negative unpaid
// adjustment. The running balance may go below zero.
func (s *Service) Debit(ctx context.Context, tx *gorm.DB, creatorID string, amount decimal.Decimal, reference string) (*EarningsRecord, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, ErrCreatorRequired
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	bal, err := s.LockBalance(ctx, tx, creatorID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	adj := &EarningsRecord{
		ID:              s.node.Generate().String(),
		CreatorID:       creatorID,
		ContentID:       reference,
		ContentType:     ContentTypeAdjustment,
		EarnedOn:        truncateDay(now),
		RateKey:         RateKeyAdjustment,
		EarningsUSD:     amount.Neg(),
		TierRateAtTime:  decimal.Zero,
		BonusMultiplier: decimal.NewFromInt(1),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.records.WithTrx(tx).Create(ctx, adj); err != nil {
		return nil, err
	}

	if err := s.balances.WithTrx(tx).Update(ctx, bal.ID, map[string]any{
		"balance":            bal.Balance.Sub(amount),
		"total_charged_back": bal.TotalChargedBack.Add(amount),
		"updated_at":         now,
	}); err != nil {
		return nil, err
	}

	return adj, nil
}
