// Package lifecycle implements the invoice status state machine. It is a
// pure decision layer: Apply computes the next status and the audit action
// to record, while persistence (and per-invoice serialization of
// transitions) stays with the caller.
package lifecycle

import "backend/internal/model"

// Event is a requested status transition
type Event string

const (
	EventAccept           Event = "accept"
	EventHold             Event = "hold"
	EventReject           Event = "reject"
	EventTransferToOffice Event = "transfer_to_office"
)

// Outcome describes an applied transition. When Changed is false the event
// was an idempotent re-apply: the status stays as-is and no audit entry may
// be written.
type Outcome struct {
	Status      string
	AuditAction string
	Changed     bool
}

type transition struct {
	to          string
	auditAction string
}

// Legal transitions per (current status, event). Anything absent is an
// invalid transition; in particular REJECTED and SENT_TO_OFFICE are not
// reachable from each other.
var transitions = map[string]map[Event]transition{
	model.InvoiceStatusNew: {
		EventAccept: {to: model.InvoiceStatusAccepted, auditAction: model.InvoiceActionAccepted},
		EventHold:   {to: model.InvoiceStatusNew, auditAction: model.InvoiceActionHeld},
		EventReject: {to: model.InvoiceStatusRejected, auditAction: model.InvoiceActionRejected},
	},
	model.InvoiceStatusAccepted: {
		EventHold:             {to: model.InvoiceStatusNew, auditAction: model.InvoiceActionHeld},
		EventReject:           {to: model.InvoiceStatusRejected, auditAction: model.InvoiceActionRejected},
		EventTransferToOffice: {to: model.InvoiceStatusSentToOffice, auditAction: model.InvoiceActionTransferredToOffice},
	},
}

// Apply resolves one lifecycle event against the current status.
//
// Re-applying an event whose target equals the current status (a retried
// request from the boundary layer) is reported as an unchanged Outcome so
// the caller skips the duplicate audit entry. Any transition not in the
// table is returned as *InvalidTransitionError with no partial effect.
func Apply(current string, event Event) (Outcome, error) {
	// Retried request: the terminal states absorb their own event.
	switch {
	case event == EventAccept && current == model.InvoiceStatusAccepted,
		event == EventReject && current == model.InvoiceStatusRejected,
		event == EventTransferToOffice && current == model.InvoiceStatusSentToOffice,
		event == EventHold && current == model.InvoiceStatusNew:
		return Outcome{Status: current, Changed: false}, nil
	}

	t, ok := transitions[current][event]
	if !ok {
		return Outcome{}, &InvalidTransitionError{From: current, Event: event}
	}
	return Outcome{Status: t.to, AuditAction: t.auditAction, Changed: true}, nil
}

// CanChangePaymentStatus reports whether a payment-status change is allowed
// in the given status. SENT_TO_OFFICE still accepts payment updates;
// REJECTED is terminal for the payment axis too.
func CanChangePaymentStatus(status string) bool {
	return status != model.InvoiceStatusRejected
}

// ValidPaymentStatus reports whether s is a known payment status value
func ValidPaymentStatus(s string) bool {
	switch s {
	case model.PaymentUnpaid, model.PaymentPartiallyPaid, model.PaymentSuspended,
		model.PaymentPaidCash, model.PaymentPaidTransfer:
		return true
	}
	return false
}
