package earnings

import (
	"context"
	"testing"
	"time"

	"creator-ledger/pkg/db/pagination"
	"creator-ledger/pkg/errutil"
	"creator-ledger/services/testutil"
	"creator-ledger/services/tier"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	db    *gorm.DB
	clock *testutil.Clock
	tiers *tier.Service
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	models := append([]any{&tier.Tier{}}, Models()...)
	db := testutil.NewTestDB(t, models...)
	node := testutil.NewNode(t)
	clock := testutil.NewClock(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))

	tiers := tier.NewService(tier.ServiceParams{DB: db, Node: node, Rates: tier.DefaultRateTable(), Clock: clock.Now})
	svc := NewService(ServiceParams{DB: db, Node: node, Tiers: tiers, Clock: clock.Now})
	return &fixture{db: db, clock: clock, tiers: tiers, svc: svc}
}

func (f *fixture) accrue(t *testing.T, creatorID, contentID string, views uint64) *EarningsRecord {
	t.Helper()
	rec, err := f.svc.Accrue(context.Background(), AccrueParams{
		CreatorID:   creatorID,
		ContentID:   contentID,
		ContentType: "video",
		ViewDelta:   views,
	})
	require.NoError(t, err)
	return rec
}

func (f *fixture) upgrade(t *testing.T, creatorID string, level tier.Level) {
	t.Helper()
	ctx := context.Background()
	_, err := f.tiers.RequestUpgrade(ctx, creatorID)
	require.NoError(t, err)
	_, err = f.tiers.Approve(ctx, "admin-1", creatorID, level)
	require.NoError(t, err)
}

func (f *fixture) records(t *testing.T, creatorID string) []*EarningsRecord {
	t.Helper()
	var out []*EarningsRecord
	require.NoError(t, f.db.Where("creator_id = ?", creatorID).Order("earned_on, created_at, id").Find(&out).Error)
	return out
}

func (f *fixture) balance(t *testing.T, creatorID string) *Balance {
	t.Helper()
	var b Balance
	require.NoError(t, f.db.Where("creator_id = ?", creatorID).Take(&b).Error)
	return &b
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func (f *fixture) unpaid(t *testing.T, creatorID string) decimal.Decimal {
	t.Helper()
	sum, err := f.svc.GetUnpaidBalance(context.Background(), creatorID)
	require.NoError(t, err)
	return sum
}

func TestAccrueCreatesAndIncrementsDailyRecord(t *testing.T) {
	f := newFixture(t)

	rec := f.accrue(t, "creator-1", "video-1", 10_000)
	requireDecimal(t, "8", rec.EarningsUSD)
	requireDecimal(t, "0.0008", rec.TierRateAtTime)
	requireDecimal(t, "1", rec.BonusMultiplier)
	require.Equal(t, "v1", rec.RateVersion)

	f.clock.Advance(time.Hour)
	again := f.accrue(t, "creator-1", "video-1", 2_500)
	require.Equal(t, rec.ID, again.ID)

	recs := f.records(t, "creator-1")
	require.Len(t, recs, 1)
	require.Equal(t, uint64(12_500), recs[0].Views)
	requireDecimal(t, "10", recs[0].EarningsUSD)

	requireDecimal(t, "10", f.unpaid(t, "creator-1"))
	bal := f.balance(t, "creator-1")
	requireDecimal(t, "10", bal.Balance)
	requireDecimal(t, "10", bal.TotalEarned)

	tr, err := f.tiers.Get(context.Background(), "creator-1")
	require.NoError(t, err)
	require.Equal(t, uint64(12_500), tr.TotalViews)
}

func TestAccrueValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Accrue(ctx, AccrueParams{CreatorID: "creator-1", ContentID: "video-1"})
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Empty(t, f.records(t, "creator-1"))

	_, err = f.svc.Accrue(ctx, AccrueParams{CreatorID: "creator-1", ViewDelta: 1})
	require.ErrorIs(t, err, ErrContentRequired)

	_, err = f.svc.Accrue(ctx, AccrueParams{ContentID: "video-1", ViewDelta: 1})
	require.ErrorIs(t, err, ErrCreatorRequired)

	_, err = f.svc.Accrue(ctx, AccrueParams{CreatorID: "creator-1", ContentID: "video-1", ViewDelta: 1<<63 + 5})
	require.ErrorIs(t, err, ErrViewDeltaTooLarge)
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusValidationFailed, be.Code)
	require.Empty(t, f.records(t, "creator-1"))
}

func TestAccrueNewDayOpensNewRecord(t *testing.T) {
	f := newFixture(t)

	f.accrue(t, "creator-1", "video-1", 100)
	f.clock.Advance(24 * time.Hour)
	f.accrue(t, "creator-1", "video-1", 100)

	recs := f.records(t, "creator-1")
	require.Len(t, recs, 2)
	require.True(t, recs[0].EarnedOn.Before(recs[1].EarnedOn))
}

func TestRateChangeLocksPastRecords(t *testing.T) {
	f := newFixture(t)

	f.accrue(t, "creator-1", "video-1", 10_000)
	f.upgrade(t, "creator-1", tier.Silver)
	f.accrue(t, "creator-1", "video-1", 2_400)

	recs := f.records(t, "creator-1")
	require.Len(t, recs, 2)
	requireDecimal(t, "8", recs[0].EarningsUSD)
	requireDecimal(t, "0.0008", recs[0].TierRateAtTime)
	requireDecimal(t, "12", recs[1].EarningsUSD)
	requireDecimal(t, "0.005", recs[1].TierRateAtTime)
	require.NotEqual(t, recs[0].RateKey, recs[1].RateKey)

	requireDecimal(t, "20", f.unpaid(t, "creator-1"))
}

func TestBonusMultiplierApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBonus(ctx, CreateBonusParams{
		AdminID:    "admin-1",
		CreatorID:  "creator-1",
		Multiplier: decimal.RequireFromString("1.5"),
		EndsAt:     f.clock.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.CreateBonus(ctx, CreateBonusParams{
		AdminID:    "admin-1",
		CreatorID:  "creator-1",
		Multiplier: decimal.RequireFromString("3"),
		StartsAt:   f.clock.Now().Add(24 * time.Hour),
		EndsAt:     f.clock.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	m, err := f.svc.ActiveMultiplier(ctx, "creator-1")
	require.NoError(t, err)
	requireDecimal(t, "1.5", m)

	rec := f.accrue(t, "creator-1", "video-1", 1_000)
	requireDecimal(t, "1.2", rec.EarningsUSD)
	requireDecimal(t, "1.5", rec.BonusMultiplier)

	f.clock.Advance(72 * time.Hour)
	m, err = f.svc.ActiveMultiplier(ctx, "creator-1")
	require.NoError(t, err)
	requireDecimal(t, "1", m)
}

func TestCreateBonusValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end := f.clock.Now().Add(time.Hour)

	_, err := f.svc.CreateBonus(ctx, CreateBonusParams{CreatorID: "c", Multiplier: decimal.NewFromInt(2), EndsAt: end})
	require.ErrorIs(t, err, ErrAdminRequired)

	_, err = f.svc.CreateBonus(ctx, CreateBonusParams{AdminID: "a", CreatorID: "c", Multiplier: decimal.RequireFromString("0.5"), EndsAt: end})
	require.ErrorIs(t, err, ErrInvalidMultiplier)

	_, err = f.svc.CreateBonus(ctx, CreateBonusParams{AdminID: "a", CreatorID: "c", Multiplier: decimal.NewFromInt(2), EndsAt: f.clock.Now()})
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func settle(f *fixture, creatorID, payoutID string, amount string) ([]*EarningsRecord, error) {
	var out []*EarningsRecord
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = f.svc.Settle(context.Background(), tx, creatorID, payoutID, decimal.RequireFromString(amount))
		return err
	})
	return out, err
}

func TestSettleSplitsOvershootingRecord(t *testing.T) {
	f := newFixture(t)

	f.accrue(t, "creator-1", "video-1", 10_000)
	f.upgrade(t, "creator-1", tier.Silver)
	f.clock.Advance(time.Minute)
	f.accrue(t, "creator-1", "video-1", 2_400)

	settled, err := settle(f, "creator-1", "payout-1", "18")
	require.NoError(t, err)
	require.Len(t, settled, 2)

	recs := f.records(t, "creator-1")
	require.Len(t, recs, 3)

	require.True(t, recs[0].IsPaid)
	requireDecimal(t, "8", recs[0].EarningsUSD)
	require.Equal(t, "payout-1", recs[0].PayoutRequestID)

	require.True(t, recs[1].IsPaid)
	requireDecimal(t, "10", recs[1].EarningsUSD)
	require.Equal(t, uint64(2_000), recs[1].Views)

	require.False(t, recs[2].IsPaid)
	requireDecimal(t, "2", recs[2].EarningsUSD)
	require.Equal(t, uint64(400), recs[2].Views)
	require.Equal(t, recs[1].ID, recs[2].SplitFromID)
	require.Equal(t, recs[1].RateKey, recs[2].RateKey)

	requireDecimal(t, "2", f.unpaid(t, "creator-1"))
	bal := f.balance(t, "creator-1")
	requireDecimal(t, "2", bal.Balance)
	requireDecimal(t, "18", bal.TotalPaid)

	// Later views the same day land on the remainder record.
	f.accrue(t, "creator-1", "video-1", 200)
	recs = f.records(t, "creator-1")
	require.Len(t, recs, 3)
	requireDecimal(t, "3", recs[2].EarningsUSD)
}

func TestSettleOldestDayFirst(t *testing.T) {
	f := newFixture(t)

	f.accrue(t, "creator-1", "video-2", 10_000)
	f.clock.Advance(24 * time.Hour)
	f.accrue(t, "creator-1", "video-1", 10_000)

	_, err := settle(f, "creator-1", "payout-1", "8")
	require.NoError(t, err)

	recs := f.records(t, "creator-1")
	require.Len(t, recs, 2)
	require.True(t, recs[0].IsPaid)
	require.Equal(t, "video-2", recs[0].ContentID)
	require.False(t, recs[1].IsPaid)
}

func TestSettleInsufficientLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.accrue(t, "creator-1", "video-1", 10_000)

	_, err := settle(f, "creator-1", "payout-1", "8.01")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	recs := f.records(t, "creator-1")
	require.Len(t, recs, 1)
	require.False(t, recs[0].IsPaid)
	requireDecimal(t, "8", f.unpaid(t, "creator-1"))
	requireDecimal(t, "8", f.balance(t, "creator-1").Balance)

	_, err = settle(f, "creator-1", "payout-1", "0")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func debit(f *fixture, creatorID, amount, ref string) error {
	return f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Debit(context.Background(), tx, creatorID, decimal.RequireFromString(amount), ref)
		return err
	})
}

func TestDebitWritesNegativeAdjustment(t *testing.T) {
	f := newFixture(t)
	f.accrue(t, "creator-1", "video-1", 10_000)

	require.NoError(t, debit(f, "creator-1", "5", "cb-1"))
	requireDecimal(t, "3", f.unpaid(t, "creator-1"))

	bal := f.balance(t, "creator-1")
	requireDecimal(t, "3", bal.Balance)
	requireDecimal(t, "5", bal.TotalChargedBack)

	require.NoError(t, debit(f, "creator-1", "10", "cb-2"))
	requireDecimal(t, "-7", f.unpaid(t, "creator-1"))
	requireDecimal(t, "-7", f.balance(t, "creator-1").Balance)

	recs := f.records(t, "creator-1")
	require.Len(t, recs, 3)
	require.Equal(t, ContentTypeAdjustment, recs[1].ContentType)
	require.Equal(t, "cb-1", recs[1].ContentID)
}

func TestSettleConsumesAdjustments(t *testing.T) {
	f := newFixture(t)
	f.accrue(t, "creator-1", "video-1", 30_000) // 24.00
	require.NoError(t, debit(f, "creator-1", "4", "cb-1"))

	_, err := settle(f, "creator-1", "payout-1", "20.01")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = settle(f, "creator-1", "payout-1", "20")
	require.NoError(t, err)
	requireDecimal(t, "0", f.unpaid(t, "creator-1"))
	requireDecimal(t, "0", f.balance(t, "creator-1").Balance)
}

func TestReconcileReportsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.accrue(t, "creator-1", "video-1", 10_000)
	f.accrue(t, "creator-2", "video-9", 5_000)

	report, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Checked)
	require.Empty(t, report.Drifts)

	require.NoError(t, f.db.Model(&Balance{}).Where("creator_id = ?", "creator-2").Update("balance", decimal.NewFromInt(100)).Error)

	report, err = f.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	require.Equal(t, "creator-2", report.Drifts[0].CreatorID)
	requireDecimal(t, "96", report.Drifts[0].Drift)
}

func TestGetBalanceSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.GetBalance(ctx, "nobody")
	require.NoError(t, err)
	require.True(t, empty.Balance.IsZero())
	require.Nil(t, empty.UpdatedAt)

	f.accrue(t, "creator-1", "video-1", 10_000)
	summary, err := f.svc.GetBalance(ctx, "creator-1")
	require.NoError(t, err)
	requireDecimal(t, "8", summary.Balance)
	requireDecimal(t, "8", summary.UnpaidEarnings)
	requireDecimal(t, "8", summary.TotalEarned)
}

func TestListEarningsPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, content := range []string{"video-1", "video-2", "video-3"} {
		f.accrue(t, "creator-1", content, 10)
		f.clock.Advance(time.Minute)
	}

	page1, info, err := f.svc.ListEarnings(ctx, ListEarningsParams{
		CreatorID:  "creator-1",
		Pagination: pagination.Pagination{Limit: 2},
	})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.True(t, info.HasMore)
	require.Equal(t, "video-3", page1[0].ContentID)

	page2, info, err := f.svc.ListEarnings(ctx, ListEarningsParams{
		CreatorID:  "creator-1",
		Pagination: pagination.Pagination{Limit: 2, Cursor: info.NextCursor},
	})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.False(t, info.HasMore)
	require.Equal(t, "video-1", page2[0].ContentID)

	_, _, err = f.svc.ListEarnings(ctx, ListEarningsParams{
		CreatorID:  "creator-1",
		Pagination: pagination.Pagination{Cursor: "%%%"},
	})
	require.ErrorIs(t, err, ErrInvalidCursor)
}
