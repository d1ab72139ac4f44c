package earnings

import "creator-ledger/pkg/errutil"

var (
	ErrCreatorRequired     = errutil.Sentinel(errutil.StatusValidationFailed, "CREATOR_REQUIRED", "creator id is required")
	ErrContentRequired     = errutil.Sentinel(errutil.StatusValidationFailed, "CONTENT_REQUIRED", "content id is required")
	ErrViewDeltaTooLarge   = errutil.Sentinel(errutil.StatusValidationFailed, "VIEW_DELTA_TOO_LARGE", "view delta is out of range")
	ErrAdminRequired       = errutil.Sentinel(errutil.StatusUnauthorized, "ADMIN_REQUIRED", "admin identity is required")
	ErrInvalidMultiplier   = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_MULTIPLIER", "multiplier must be at least 1")
	ErrInvalidWindow       = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_WINDOW", "bonus window must end after it starts")
	ErrInvalidAmount       = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_AMOUNT", "amount must be positive")
	ErrInsufficientBalance = errutil.Sentinel(errutil.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "unpaid earnings do not cover the amount")
	ErrInvalidCursor       = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_CURSOR", "invalid pagination cursor")
)
