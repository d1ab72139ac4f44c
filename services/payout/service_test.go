package payout

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"creator-ledger/pkg/db/pagination"
	"creator-ledger/pkg/featureflags"
	"creator-ledger/services/earnings"
	"creator-ledger/services/pin"
	"creator-ledger/services/testutil"
	"creator-ledger/services/tier"
	"creator-ledger/services/wallet"

	"github.com/btcsuite/btcutil/base58"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const testPin = "4821"

type fixture struct {
	db       *gorm.DB
	clock    *testutil.Clock
	tiers    *tier.Service
	earnings *earnings.Service
	wallets  *wallet.Service
	pins     *pin.Service
	svc      *Service
}

func newFixture(t *testing.T, flags featureflags.FeatureFlag) *fixture {
	t.Helper()

	models := []any{&tier.Tier{}}
	models = append(models, earnings.Models()...)
	models = append(models, wallet.Models()...)
	models = append(models, pin.Models()...)
	models = append(models, Models()...)
	db := testutil.NewTestDB(t, models...)
	node := testutil.NewNode(t)
	clock := testutil.NewClock(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))

	tiers := tier.NewService(tier.ServiceParams{DB: db, Node: node, Rates: tier.DefaultRateTable(), Clock: clock.Now})
	ledger := earnings.NewService(earnings.ServiceParams{DB: db, Node: node, Tiers: tiers, Clock: clock.Now})
	wallets := wallet.NewService(wallet.ServiceParams{DB: db, Node: node, Clock: clock.Now})
	pins := pin.NewService(pin.ServiceParams{DB: db, Node: node, Cost: bcrypt.MinCost, Clock: clock.Now})

	svc := NewService(ServiceParams{
		DB:      db,
		Node:    node,
		Ledger:  ledger,
		Wallets: wallets,
		Pins:    pins,
		Flags:   flags,
		Clock:   clock.Now,
	})
	return &fixture{db: db, clock: clock, tiers: tiers, earnings: ledger, wallets: wallets, pins: pins, svc: svc}
}

func solAddress(seed byte) string {
	return base58.Encode(bytes.Repeat([]byte{seed}, 32))
}

// setup saves a wallet and PIN for the creator.
func (f *fixture) setup(t *testing.T, creatorID string) string {
	t.Helper()
	ctx := context.Background()
	address := solAddress(9)
	_, err := f.wallets.SetWallet(ctx, creatorID, "SOL", address)
	require.NoError(t, err)
	_, err = f.pins.CreateOrChange(ctx, creatorID, testPin, "")
	require.NoError(t, err)
	return address
}

func (f *fixture) accrue(t *testing.T, creatorID string, views uint64) {
	t.Helper()
	_, err := f.earnings.Accrue(context.Background(), earnings.AccrueParams{
		CreatorID:   creatorID,
		ContentID:   "video-1",
		ContentType: "video",
		ViewDelta:   views,
	})
	require.NoError(t, err)
}

func (f *fixture) upgrade(t *testing.T, creatorID string, level tier.Level) {
	t.Helper()
	ctx := context.Background()
	_, err := f.tiers.RequestUpgrade(ctx, creatorID)
	require.NoError(t, err)
	_, err = f.tiers.Approve(ctx, "admin-1", creatorID, level)
	require.NoError(t, err)
}

func (f *fixture) submit(creatorID, amount, address string) (*PayoutRequest, error) {
	return f.svc.Submit(context.Background(), SubmitParams{
		CreatorID:     creatorID,
		Amount:        decimal.RequireFromString(amount),
		CryptoType:    "SOL",
		WalletAddress: address,
		Pin:           testPin,
	})
}

func (f *fixture) unpaid(t *testing.T, creatorID string) decimal.Decimal {
	t.Helper()
	d, err := f.earnings.GetUnpaidBalance(context.Background(), creatorID)
	require.NoError(t, err)
	return d
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func (f *fixture) count(t *testing.T, creatorID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&PayoutRequest{}).Where("creator_id = ?", creatorID).Count(&n).Error)
	return n
}

func TestWithdrawalLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	address := f.setup(t, "creator-1")

	f.accrue(t, "creator-1", 10_000)
	requireDecimal(t, "8", f.unpaid(t, "creator-1"))
	f.upgrade(t, "creator-1", tier.Silver)

	_, err := f.submit("creator-1", "18", address)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Zero(t, f.count(t, "creator-1"))

	f.clock.Advance(time.Minute)
	f.accrue(t, "creator-1", 2_400)
	requireDecimal(t, "20", f.unpaid(t, "creator-1"))

	first, err := f.submit("creator-1", "18", address)
	require.NoError(t, err)
	require.Equal(t, StatusPending, first.Status)
	require.NotEmpty(t, first.Reference)
	require.Equal(t, wallet.SOL, first.CryptoType)

	rejected, err := f.svc.Reject(ctx, "admin-1", first.ID, "name mismatch")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "admin-1", rejected.ProcessedBy)
	require.NotNil(t, rejected.ProcessedAt)
	require.Equal(t, "name mismatch", rejected.RejectionReason)
	requireDecimal(t, "20", f.unpaid(t, "creator-1"))

	second, err := f.submit("creator-1", "18", address)
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, "admin-1", second.ID, "checked")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	requireDecimal(t, "20", f.unpaid(t, "creator-1"))

	completed, err := f.svc.Complete(ctx, "admin-2", second.ID, "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdpKuc147dw2N9d")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.Equal(t, "admin-2", completed.ProcessedBy)
	require.NotEmpty(t, completed.TransactionHash)

	requireDecimal(t, "2", f.unpaid(t, "creator-1"))
	summary, err := f.earnings.GetBalance(ctx, "creator-1")
	require.NoError(t, err)
	requireDecimal(t, "2", summary.Balance)
	requireDecimal(t, "18", summary.TotalPaid)

	var paid []*earnings.EarningsRecord
	require.NoError(t, f.db.Where("payout_request_id = ?", second.ID).Find(&paid).Error)
	amounts := make([]decimal.Decimal, 0, len(paid))
	for _, r := range paid {
		require.True(t, r.IsPaid)
		amounts = append(amounts, r.EarningsUSD)
	}
	requireDecimal(t, "18", decimal.Sum(decimal.Zero, amounts...))
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, nil)
	address := f.setup(t, "creator-1")
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitParams{CreatorID: "creator-1", Amount: decimal.RequireFromString("18.555"), CryptoType: "SOL", WalletAddress: address, Pin: testPin})
	require.Error(t, err)

	_, err = f.svc.Submit(ctx, SubmitParams{CreatorID: "creator-1", Amount: decimal.RequireFromString("18"), CryptoType: "DOGE", WalletAddress: address, Pin: testPin})
	require.ErrorIs(t, err, wallet.ErrUnsupportedCrypto)

	_, err = f.svc.Submit(ctx, SubmitParams{Amount: decimal.RequireFromString("18"), CryptoType: "SOL", WalletAddress: address, Pin: testPin})
	require.ErrorIs(t, err, ErrCreatorRequired)
}

func TestSubmitChecksInOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.submit("creator-1", "18", solAddress(9))
	require.ErrorIs(t, err, ErrSetupIncomplete)

	address := f.setup(t, "creator-1")

	_, err = f.svc.Submit(ctx, SubmitParams{CreatorID: "creator-1", Amount: decimal.RequireFromString("18"), CryptoType: "SOL", WalletAddress: address, Pin: "0000"})
	require.ErrorIs(t, err, pin.ErrInvalidPin)

	_, err = f.submit("creator-1", "10", address)
	require.ErrorIs(t, err, ErrBelowMinimum)

	_, err = f.submit("creator-1", "18", address)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	f.upgrade(t, "creator-1", tier.Gold)
	f.accrue(t, "creator-1", 10_000)
	requireDecimal(t, "100", f.unpaid(t, "creator-1"))

	_, err = f.submit("creator-1", "18", solAddress(4))
	require.ErrorIs(t, err, ErrWalletMismatch)

	_, err = f.submit("creator-1", "18", address)
	require.NoError(t, err)

	_, err = f.submit("creator-1", "18", address)
	require.ErrorIs(t, err, ErrPendingRequestExists)
	require.Equal(t, int64(1), f.count(t, "creator-1"))
}

func TestSubmitMonthlyLimit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	address := f.setup(t, "creator-1")
	f.upgrade(t, "creator-1", tier.Gold)
	f.accrue(t, "creator-1", 10_000)

	limit := decimal.RequireFromString("43")
	_, err := f.svc.UpdateSetting(ctx, UpdateSettingParams{AdminID: "admin-1", CreatorID: "creator-1", MonthlyLimit: &limit})
	require.NoError(t, err)

	req, err := f.submit("creator-1", "25", address)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, "admin-1", req.ID, "")
	require.NoError(t, err)

	_, err = f.submit("creator-1", "18.01", address)
	require.ErrorIs(t, err, ErrMonthlyLimitExceeded)

	// Exactly reaching the limit is allowed.
	_, err = f.submit("creator-1", "18", address)
	require.NoError(t, err)
}

func TestSubmitMonthlyWindowSlides(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	address := f.setup(t, "creator-1")
	f.upgrade(t, "creator-1", tier.Gold)
	f.accrue(t, "creator-1", 10_000)

	limit := decimal.RequireFromString("30")
	_, err := f.svc.UpdateSetting(ctx, UpdateSettingParams{AdminID: "admin-1", CreatorID: "creator-1", MonthlyLimit: &limit})
	require.NoError(t, err)

	req, err := f.submit("creator-1", "20", address)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, "admin-1", req.ID, "")
	require.NoError(t, err)

	_, err = f.submit("creator-1", "18", address)
	require.ErrorIs(t, err, ErrMonthlyLimitExceeded)

	f.clock.Advance(31 * 24 * time.Hour)
	_, err = f.submit("creator-1", "18", address)
	require.NoError(t, err)
}

func TestSubmitPaused(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	address := f.setup(t, "creator-1")
	f.upgrade(t, "creator-1", tier.Gold)
	f.accrue(t, "creator-1", 10_000)

	off := false
	_, err := f.svc.UpdateSetting(ctx, UpdateSettingParams{AdminID: "admin-1", CreatorID: "creator-1", WithdrawalsEnabled: &off})
	require.ErrorIs(t, err, ErrPauseReasonRequired)

	st, err := f.svc.UpdateSetting(ctx, UpdateSettingParams{AdminID: "admin-1", CreatorID: "creator-1", WithdrawalsEnabled: &off, PauseReason: "fraud review"})
	require.NoError(t, err)
	require.False(t, st.WithdrawalsEnabled)
	requireDecimal(t, "5000", st.EffectiveLimitUSD)

	_, err = f.submit("creator-1", "18", address)
	require.ErrorIs(t, err, ErrWithdrawalsPaused)
	require.Contains(t, err.Error(), "withdrawals are paused")

	on := true
	st, err = f.svc.UpdateSetting(ctx, UpdateSettingParams{AdminID: "admin-1", CreatorID: "creator-1", WithdrawalsEnabled: &on})
	require.NoError(t, err)
	require.Empty(t, st.PauseReason)

	_, err = f.submit("creator-1", "18", address)
	require.NoError(t, err)
}

func TestSubmitGlobalKillSwitch(t *testing.T) {
	f := newFixture(t, featureflags.Static{defaultWithdrawalsFlag: false})
	address := f.setup(t, "creator-1")
	f.upgrade(t, "creator-1", tier.Gold)
	f.accrue(t, "creator-1", 10_000)

	_, err := f.submit("creator-1", "18", address)
	require.ErrorIs(t, err, ErrWithdrawalsPaused)
}

func TestConcurrentSubmitLeavesOnePending(t *testing.T) {
	f := newFixture(t, nil)
	address := f.setup(t, "creator-1")
	f.upgrade(t, "creator-1", tier.Gold)
	f.accrue(t, "creator-1", 10_000)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		pending int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.submit("creator-1", "18", address)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrPendingRequestExists):
				pending++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	require.Equal(t, workers-1, pending)

	var n int64
	require.NoError(t, f.db.Model(&PayoutRequest{}).Where("creator_id = ? AND status = ?", "creator-1", StatusPending).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestSecondPendingRowHitsUniqueIndex(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	now := f.clock.Now()

	row := func(id, ref string, status Status) *PayoutRequest {
		return &PayoutRequest{
			ID:            id,
			Reference:     ref,
			CreatorID:     "creator-1",
			AmountUSD:     decimal.RequireFromString("18"),
			CryptoType:    wallet.SOL,
			WalletAddress: solAddress(9),
			Status:        status,
			RequestedAt:   now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	require.NoError(t, f.svc.insertPending(ctx, f.db, row("req-1", "PAY-1", StatusPending)))

	err := f.svc.insertPending(ctx, f.db, row("req-2", "PAY-2", StatusPending))
	require.ErrorIs(t, err, ErrPendingRequestExists)

	// Only pending rows are covered by the index.
	require.NoError(t, f.svc.insertPending(ctx, f.db, row("req-3", "PAY-3", StatusCompleted)))
	require.NoError(t, f.svc.insertPending(ctx, f.db, row("req-4", "PAY-4", StatusRejected)))

	var n int64
	require.NoError(t, f.db.Model(&PayoutRequest{}).Where("creator_id = ? AND status = ?", "creator-1", StatusPending).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestTransitionsFromWrongState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	address := f.setup(t, "creator-1")
	f.upgrade(t, "creator-1", tier.Gold)
	f.accrue(t, "creator-1", 10_000)

	req, err := f.submit("creator-1", "18", address)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, "admin-1", req.ID, "0xabc")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Complete(ctx, "admin-1", req.ID, "  ")
	require.ErrorIs(t, err, ErrTransactionHash)

	_, err = f.svc.Reject(ctx, "admin-1", req.ID, "")
	require.ErrorIs(t, err, ErrRejectionReason)

	_, err = f.svc.Approve(ctx, "", req.ID, "")
	require.ErrorIs(t, err, ErrAdminRequired)

	_, err = f.svc.Approve(ctx, "admin-1", "missing", "")
	require.ErrorIs(t, err, ErrRequestNotFound)

	_, err = f.svc.Approve(ctx, "admin-1", req.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, "admin-1", req.ID, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.Reject(ctx, "admin-1", req.ID, "late")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Complete(ctx, "admin-1", req.ID, "0xabc")
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, "admin-1", req.ID, "late")
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.Empty(t, got.RejectionReason)
	requireDecimal(t, "82", f.unpaid(t, "creator-1"))
}

func TestChargebackCommandOnlyFromCompleted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	address := f.setup(t, "creator-1")
	f.upgrade(t, "creator-1", tier.Gold)
	f.accrue(t, "creator-1", 10_000)

	req, err := f.submit("creator-1", "18", address)
	require.NoError(t, err)

	_, err = f.svc.Apply(ctx, ChargebackCommand{RequestID: req.ID, AdminID: "admin-1"})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Approve(ctx, "admin-1", req.ID, "")
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, "admin-1", req.ID, "0xabc")
	require.NoError(t, err)

	out, err := f.svc.Apply(ctx, ChargebackCommand{RequestID: req.ID, AdminID: "admin-1"})
	require.NoError(t, err)
	require.Equal(t, StatusChargedBack, out.Status)
}

func TestListAndHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	address := f.setup(t, "creator-1")
	f.upgrade(t, "creator-1", tier.Gold)
	f.accrue(t, "creator-1", 10_000)

	first, err := f.submit("creator-1", "18", address)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, "admin-1", first.ID, "duplicate")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.submit("creator-1", "20", address)
	require.NoError(t, err)

	reqs, info, err := f.svc.History(ctx, "creator-1", pagination.Pagination{Limit: 1})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, second.ID, reqs[0].ID)
	require.True(t, info.HasMore)

	reqs, _, err = f.svc.History(ctx, "creator-1", pagination.Pagination{Cursor: info.NextCursor, Limit: 10})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, first.ID, reqs[0].ID)

	reqs, _, err = f.svc.List(ctx, ListParams{Status: StatusRejected})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, first.ID, reqs[0].ID)

	_, _, err = f.svc.List(ctx, ListParams{Status: "sent"})
	require.ErrorIs(t, err, ErrInvalidStatus)
}
