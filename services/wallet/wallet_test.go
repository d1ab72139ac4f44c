package wallet

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"creator-ledger/pkg/errutil"
	"creator-ledger/services/testutil"

	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func solAddress(seed byte) string {
	return base58.Encode(bytes.Repeat([]byte{seed}, 32))
}

func tronAddress(seed byte) string {
	return base58.CheckEncode(bytes.Repeat([]byte{seed}, 20), tronVersion)
}

func corruptLast(s string) string {
	last := byte('1')
	if s[len(s)-1] == last {
		last = '2'
	}
	return s[:len(s)-1] + string(last)
}

const bscAddress = "0x52908400098527886E0F7030069857D2E4169EE7"

func newTestService(t *testing.T) (*Service, *testutil.Clock) {
	t.Helper()
	db := testutil.NewTestDB(t, Models()...)
	clock := testutil.NewClock(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	return NewService(ServiceParams{DB: db, Node: testutil.NewNode(t), Clock: clock.Now}), clock
}

func TestValidateAddress(t *testing.T) {
	cases := []struct {
		name    string
		ct      CryptoType
		address string
		err     error
	}{
		{"sol", SOL, solAddress(7), nil},
		{"sol wrong size", SOL, base58.Encode(bytes.Repeat([]byte{7}, 24)), ErrInvalidAddress},
		{"sol bad alphabet", SOL, strings.Repeat("0", 40), ErrInvalidAddress},
		{"tron", TRC20, tronAddress(3), nil},
		{"tron wrong version", TRC20, base58.CheckEncode(bytes.Repeat([]byte{3}, 20), 0x00), ErrInvalidAddress},
		{"tron bad checksum", TRC20, corruptLast(tronAddress(3)), ErrInvalidAddress},
		{"bep20", BEP20, bscAddress, nil},
		{"bep20 no prefix", BEP20, strings.TrimPrefix(bscAddress, "0x") + "00", ErrInvalidAddress},
		{"bep20 not hex", BEP20, "0x" + strings.Repeat("z", 40), ErrInvalidAddress},
		{"too short", SOL, "abc", ErrAddressTooShort},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAddress(tc.ct, tc.address, defaultMinLength)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestParseCryptoType(t *testing.T) {
	ct, err := ParseCryptoType(" trc20 ")
	require.NoError(t, err)
	require.Equal(t, TRC20, ct)

	_, err = ParseCryptoType("BTC")
	require.ErrorIs(t, err, ErrUnsupportedCrypto)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestSetWalletCooldown(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	first, err := svc.SetWallet(ctx, "creator-1", "SOL", solAddress(1))
	require.NoError(t, err)
	require.Equal(t, clock.Now().Add(defaultCooldown), first.CanChangeAt)

	_, err = svc.SetWallet(ctx, "creator-1", "TRC20", tronAddress(2))
	require.ErrorIs(t, err, ErrCooldownActive)
	days, ok := DaysRemaining(err)
	require.True(t, ok)
	require.Equal(t, 21, days)

	stored, err := svc.GetWallet(ctx, "creator-1")
	require.NoError(t, err)
	require.Equal(t, SOL, stored.CryptoType)
	require.Equal(t, solAddress(1), stored.Address)

	clock.Advance(20*24*time.Hour + time.Hour)
	_, err = svc.SetWallet(ctx, "creator-1", "TRC20", tronAddress(2))
	days, ok = DaysRemaining(err)
	require.True(t, ok)
	require.Equal(t, 1, days)

	clock.Advance(23 * time.Hour)
	changed, err := svc.SetWallet(ctx, "creator-1", "TRC20", tronAddress(2))
	require.NoError(t, err)
	require.Equal(t, TRC20, changed.CryptoType)
	require.Equal(t, clock.Now().Add(defaultCooldown), changed.CanChangeAt)

	history, err := svc.History(ctx, "creator-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, solAddress(1), history[0].Address)
	require.True(t, first.LastChangedAt.Equal(history[0].ActiveFrom))
}

func TestSetWalletSameWalletIsNoop(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	first, err := svc.SetWallet(ctx, "creator-1", "BEP20", bscAddress)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	again, err := svc.SetWallet(ctx, "creator-1", "bep20", bscAddress)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.True(t, first.CanChangeAt.Equal(again.CanChangeAt))

	history, err := svc.History(ctx, "creator-1")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestSetWalletRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetWallet(ctx, "", "SOL", solAddress(1))
	require.ErrorIs(t, err, ErrCreatorRequired)

	_, err = svc.SetWallet(ctx, "creator-1", "DOGE", solAddress(1))
	require.ErrorIs(t, err, ErrUnsupportedCrypto)

	_, err = svc.SetWallet(ctx, "creator-1", "BEP20", solAddress(1))
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = svc.GetWallet(ctx, "creator-1")
	require.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletEndpoints(t *testing.T) {
	svc, _ := newTestService(t)
	r := testutil.NewRouter(t, NewHandler(HandlerParams{Service: svc}))

	w := testutil.Do(t, r, testutil.Request{Method: http.MethodGet, Path: "/v1/wallet", CreatorID: "creator-1"})
	require.Equal(t, http.StatusNotFound, w.Code)

	body := map[string]string{"crypto_type": "SOL", "address": solAddress(4)}
	w = testutil.Do(t, r, testutil.Request{Method: http.MethodPut, Path: "/v1/wallet", CreatorID: "creator-1", Body: body})
	require.Equal(t, http.StatusOK, w.Code)

	body = map[string]string{"crypto_type": "TRC20", "address": tronAddress(5)}
	w = testutil.Do(t, r, testutil.Request{Method: http.MethodPut, Path: "/v1/wallet", CreatorID: "creator-1", Body: body})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "WALLET_COOLDOWN_ACTIVE", testutil.ErrorReason(t, w))
	require.Contains(t, w.Body.String(), `"days_remaining"`)

	w = testutil.Do(t, r, testutil.Request{Method: http.MethodPut, Path: "/v1/wallet", CreatorID: "creator-1", Body: map[string]string{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
