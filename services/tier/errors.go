package tier

import "creator-ledger/pkg/errutil"

var (
	ErrCreatorRequired  = errutil.Sentinel(errutil.StatusValidationFailed, "CREATOR_REQUIRED", "creator id is required")
	ErrAdminRequired    = errutil.Sentinel(errutil.StatusUnauthorized, "ADMIN_REQUIRED", "admin identity is required")
	ErrUnknownLevel     = errutil.Sentinel(errutil.StatusValidationFailed, "UNKNOWN_TIER", "unknown tier level")
	ErrAlreadyPending   = errutil.Sentinel(errutil.StatusConflict, "UPGRADE_ALREADY_PENDING", "a tier upgrade request is already pending")
	ErrNoPendingRequest = errutil.Sentinel(errutil.StatusConflict, "NO_PENDING_UPGRADE", "no pending tier upgrade request")
	ErrHighestTier      = errutil.Sentinel(errutil.StatusUnprocessableEntity, "HIGHEST_TIER", "creator is already on the highest tier")
	ErrTierNotHigher    = errutil.Sentinel(errutil.StatusUnprocessableEntity, "TIER_NOT_HIGHER", "approved tier must be above the current tier")
)
