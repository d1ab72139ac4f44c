package payout

import (
	"strings"
	"time"
)

type Action string

const (
	ActionApprove    Action = "approve"
	ActionComplete   Action = "complete"
	ActionReject     Action = "reject"
	ActionChargeback Action = "charge_back"
)

// Command is an admin action on a payout request. The set of commands is
// closed; each one carries only the fields its transition needs.
type Command interface {
	Action() Action
	target() (requestID, adminID string)
	validate() error
	fields() map[string]any
}

type ApproveCommand struct {
	RequestID string
	AdminID   string
	Note      string
}

type CompleteCommand struct {
	RequestID       string
	AdminID         string
	TransactionHash string
}

type RejectCommand struct {
	RequestID string
	AdminID   string
	Reason    string
}

// ChargebackCommand is issued by the fraud service while filing a chargeback.
type ChargebackCommand struct {
	RequestID string
	AdminID   string
}

func (ApproveCommand) Action() Action    { return ActionApprove }
func (CompleteCommand) Action() Action   { return ActionComplete }
func (RejectCommand) Action() Action     { return ActionReject }
func (ChargebackCommand) Action() Action { return ActionChargeback }

func (c ApproveCommand) target() (string, string)    { return c.RequestID, c.AdminID }
func (c CompleteCommand) target() (string, string)   { return c.RequestID, c.AdminID }
func (c RejectCommand) target() (string, string)     { return c.RequestID, c.AdminID }
func (c ChargebackCommand) target() (string, string) { return c.RequestID, c.AdminID }

func (c ApproveCommand) validate() error { return nil }

func (c CompleteCommand) validate() error {
	if strings.TrimSpace(c.TransactionHash) == "" {
		return ErrTransactionHash
	}
	return nil
}

func (c RejectCommand) validate() error {
	if strings.TrimSpace(c.Reason) == "" {
		return ErrRejectionReason
	}
	return nil
}

func (c ChargebackCommand) validate() error { return nil }

func (c ApproveCommand) fields() map[string]any {
	return map[string]any{"admin_note": c.Note}
}

func (c CompleteCommand) fields() map[string]any {
	return map[string]any{"transaction_hash": strings.TrimSpace(c.TransactionHash)}
}

func (c RejectCommand) fields() map[string]any {
	return map[string]any{"rejection_reason": strings.TrimSpace(c.Reason)}
}

func (c ChargebackCommand) fields() map[string]any {
	return map[string]any{}
}

type transition struct {
	from Status
	to   Status
	// stamp records processedAt and processedBy.
	stamp bool
	// settle draws down unpaid earnings for the request amount.
	settle bool
}

var transitions = map[Action]transition{
	ActionApprove:    {from: StatusPending, to: StatusApproved, stamp: true},
	ActionComplete:   {from: StatusApproved, to: StatusCompleted, stamp: true, settle: true},
	ActionReject:     {from: StatusPending, to: StatusRejected, stamp: true},
	ActionChargeback: {from: StatusCompleted, to: StatusChargedBack},
}

func (t transition) updates(cmd Command, adminID string, now time.Time) map[string]any {
	u := cmd.fields()
	u["status"] = t.to
	u["updated_at"] = now
	if t.stamp {
		u["processed_at"] = now
		u["processed_by"] = adminID
	}
	return u
}

// ParseCommand builds the command for an HTTP action. Chargebacks are only
// reachable through the fraud service.
func ParseCommand(action, requestID, adminID, note, transactionHash, reason string) (Command, error) {
	switch Action(strings.ToLower(strings.TrimSpace(action))) {
	case ActionApprove:
		return ApproveCommand{RequestID: requestID, AdminID: adminID, Note: note}, nil
	case ActionComplete:
		return CompleteCommand{RequestID: requestID, AdminID: adminID, TransactionHash: transactionHash}, nil
	case ActionReject:
		return RejectCommand{RequestID: requestID, AdminID: adminID, Reason: reason}, nil
	}
	return nil, ErrUnknownAction
}
