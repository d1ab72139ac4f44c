package payout

import (
	"creator-ledger/pkg/errutil"
	"creator-ledger/services/earnings"
)

var (
	ErrCreatorRequired      = errutil.Sentinel(errutil.StatusValidationFailed, "CREATOR_REQUIRED", "creator id is required")
	ErrAdminRequired        = errutil.Sentinel(errutil.StatusUnauthorized, "ADMIN_REQUIRED", "admin identity is required")
	ErrRequestIDRequired    = errutil.Sentinel(errutil.StatusValidationFailed, "REQUEST_ID_REQUIRED", "payout request id is required")
	ErrTransactionHash      = errutil.Sentinel(errutil.StatusValidationFailed, "TRANSACTION_HASH_REQUIRED", "transaction hash is required")
	ErrRejectionReason      = errutil.Sentinel(errutil.StatusValidationFailed, "REJECTION_REASON_REQUIRED", "rejection reason is required")
	ErrPauseReasonRequired  = errutil.Sentinel(errutil.StatusValidationFailed, "PAUSE_REASON_REQUIRED", "a reason is required to pause withdrawals")
	ErrInvalidLimit         = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_MONTHLY_LIMIT", "monthly limit must be positive")
	ErrUnknownAction        = errutil.Sentinel(errutil.StatusValidationFailed, "UNKNOWN_ACTION", "unknown payout action")
	ErrInvalidStatus        = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_STATUS", "unknown payout status")
	ErrRequestNotFound      = errutil.Sentinel(errutil.StatusNotFound, "PAYOUT_REQUEST_NOT_FOUND", "payout request not found")
	ErrWithdrawalsPaused    = errutil.Sentinel(errutil.StatusUnprocessableEntity, "WITHDRAWALS_PAUSED", "withdrawals are paused")
	ErrSetupIncomplete      = errutil.Sentinel(errutil.StatusUnprocessableEntity, "SETUP_INCOMPLETE", "a wallet and withdrawal pin are required")
	ErrBelowMinimum         = errutil.Sentinel(errutil.StatusUnprocessableEntity, "BELOW_MINIMUM", "amount is below the minimum withdrawal")
	ErrMonthlyLimitExceeded = errutil.Sentinel(errutil.StatusUnprocessableEntity, "MONTHLY_LIMIT_EXCEEDED", "amount exceeds the monthly withdrawal limit")
	ErrWalletMismatch       = errutil.Sentinel(errutil.StatusUnprocessableEntity, "WALLET_MISMATCH", "wallet does not match the saved wallet")
	ErrPendingRequestExists = errutil.Sentinel(errutil.StatusConflict, "PENDING_REQUEST_EXISTS", "a pending withdrawal already exists")
	ErrInvalidTransition    = errutil.Sentinel(errutil.StatusConflict, "INVALID_STATE_TRANSITION", "payout request is not in the required state")

	ErrInsufficientBalance = earnings.ErrInsufficientBalance
)
