package lifecycle

import (
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyLegalTransitions(t *testing.T) {
	tests := []struct {
		name       string
		current    string
		event      Event
		wantStatus string
		wantAction string
	}{
		{"accept new", model.InvoiceStatusNew, EventAccept, model.InvoiceStatusAccepted, model.InvoiceActionAccepted},
		{"reject new", model.InvoiceStatusNew, EventReject, model.InvoiceStatusRejected, model.InvoiceActionRejected},
		{"hold accepted", model.InvoiceStatusAccepted, EventHold, model.InvoiceStatusNew, model.InvoiceActionHeld},
		{"reject accepted", model.InvoiceStatusAccepted, EventReject, model.InvoiceStatusRejected, model.InvoiceActionRejected},
		{"transfer accepted", model.InvoiceStatusAccepted, EventTransferToOffice, model.InvoiceStatusSentToOffice, model.InvoiceActionTransferredToOffice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(tt.current, tt.event)
			require.NoError(t, err)
			assert.True(t, out.Changed)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantAction, out.AuditAction)
		})
	}
}

func TestApplyIdempotentReapply(t *testing.T) {
	tests := []struct {
		name    string
		current string
		event   Event
	}{
		{"accept when accepted", model.InvoiceStatusAccepted, EventAccept},
		{"reject when rejected", model.InvoiceStatusRejected, EventReject},
		{"transfer when sent", model.InvoiceStatusSentToOffice, EventTransferToOffice},
		{"hold when new", model.InvoiceStatusNew, EventHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Apply(tt.current, tt.event)
			require.NoError(t, err)
			assert.False(t, out.Changed)
			assert.Equal(t, tt.current, out.Status)
			assert.Empty(t, out.AuditAction)
		})
	}
}

func TestApplyInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current string
		event   Event
	}{
		{"transfer from new", model.InvoiceStatusNew, EventTransferToOffice},
		{"accept rejected", model.InvoiceStatusRejected, EventAccept},
		{"hold rejected", model.InvoiceStatusRejected, EventHold},
		{"transfer rejected", model.InvoiceStatusRejected, EventTransferToOffice},
		{"accept sent", model.InvoiceStatusSentToOffice, EventAccept},
		{"hold sent", model.InvoiceStatusSentToOffice, EventHold},
		{"reject sent", model.InvoiceStatusSentToOffice, EventReject},
		{"unknown status", "ARCHIVED", EventAccept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.current, tt.event)
			require.Error(t, err)
			assert.True(t, IsInvalidTransition(err))

			ite, ok := err.(*InvalidTransitionError)
			require.True(t, ok)
			assert.Equal(t, tt.current, ite.From)
			assert.Equal(t, tt.event, ite.Event)
		})
	}
}

func TestRejectedAndSentToOfficeNotReachableFromEachOther(t *testing.T) {
	for _, event := range []Event{EventAccept, EventHold, EventReject, EventTransferToOffice} {
		if event == EventReject {
			continue // absorbed as idempotent re-apply
		}
		_, err := Apply(model.InvoiceStatusRejected, event)
		assert.True(t, IsInvalidTransition(err), "event %s from REJECTED", event)
	}
	for _, event := range []Event{EventAccept, EventHold, EventReject} {
		_, err := Apply(model.InvoiceStatusSentToOffice, event)
		assert.True(t, IsInvalidTransition(err), "event %s from SENT_TO_OFFICE", event)
	}
}

func TestCanChangePaymentStatus(t *testing.T) {
	assert.True(t, CanChangePaymentStatus(model.InvoiceStatusNew))
	assert.True(t, CanChangePaymentStatus(model.InvoiceStatusAccepted))
	assert.True(t, CanChangePaymentStatus(model.InvoiceStatusSentToOffice))
	assert.False(t, CanChangePaymentStatus(model.InvoiceStatusRejected))
}

func TestValidPaymentStatus(t *testing.T) {
	for _, s := range []string{
		model.PaymentUnpaid,
		model.PaymentPartiallyPaid,
		model.PaymentSuspended,
		model.PaymentPaidCash,
		model.PaymentPaidTransfer,
	} {
		assert.True(t, ValidPaymentStatus(s), s)
	}

	assert.False(t, ValidPaymentStatus("PAID"))
	assert.False(t, ValidPaymentStatus(""))
	assert.False(t, ValidPaymentStatus("unpaid"))
}
