package fraud

import "creator-ledger/pkg/errutil"

var (
	ErrCreatorRequired    = errutil.Sentinel(errutil.StatusValidationFailed, "CREATOR_REQUIRED", "creator id is required")
	ErrAdminRequired      = errutil.Sentinel(errutil.StatusUnauthorized, "ADMIN_REQUIRED", "admin identity is required")
	ErrFlagTypeRequired   = errutil.Sentinel(errutil.StatusValidationFailed, "FLAG_TYPE_REQUIRED", "flag type is required")
	ErrInvalidSeverity    = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_SEVERITY", "severity must be low, medium, high or critical")
	ErrInvalidFlagStatus  = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_FLAG_STATUS", "unknown fraud flag status")
	ErrReasonRequired     = errutil.Sentinel(errutil.StatusValidationFailed, "REASON_REQUIRED", "reason is required")
	ErrEvidenceRequired   = errutil.Sentinel(errutil.StatusValidationFailed, "EVIDENCE_REQUIRED", "evidence file is required")
	ErrInvalidEvidence    = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_EVIDENCE", "evidence must be a JSON list")
	ErrFlagNotFound       = errutil.Sentinel(errutil.StatusNotFound, "FRAUD_FLAG_NOT_FOUND", "fraud flag not found")
	ErrFlagResolved       = errutil.Sentinel(errutil.StatusConflict, "FRAUD_FLAG_RESOLVED", "fraud flag is already resolved")
	ErrFlagTransition     = errutil.Sentinel(errutil.StatusConflict, "FRAUD_FLAG_TRANSITION", "fraud flag cannot move to that status")
	ErrPayoutNotCompleted = errutil.Sentinel(errutil.StatusConflict, "PAYOUT_NOT_COMPLETED", "only completed payouts can be charged back")
	ErrPayoutMismatch     = errutil.Sentinel(errutil.StatusUnprocessableEntity, "PAYOUT_CREATOR_MISMATCH", "payout request belongs to another creator")
	ErrAmountExceeds      = errutil.Sentinel(errutil.StatusUnprocessableEntity, "CHARGEBACK_EXCEEDS_PAYOUT", "chargeback amount exceeds the payout amount")
	ErrEvidenceStore      = errutil.Sentinel(errutil.StatusBadGateway, "EVIDENCE_STORE_UNAVAILABLE", "evidence storage is unavailable")
)

var ErrEvidenceDisabled = errutil.Sentinel(errutil.StatusServiceUnavailable, "EVIDENCE_STORE_DISABLED", "evidence storage is not configured")
