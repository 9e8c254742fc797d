package service

import (
	"context"
	"testing"

	"backend/internal/lifecycle"
	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterInvoiceDefaultsAndFormats(t *testing.T) {
	env := newTestEnv(t)

	inv := registerInvoice(t, env, "FV/2026/08/001", "Orlen Gaz Sp. z o.o.", "propan 2500L")

	assert.Equal(t, model.InvoiceStatusNew, inv.Status)
	assert.Equal(t, model.PaymentUnpaid, inv.PaymentStatus)
	assert.Equal(t, "100.50", inv.NetAmount)
	assert.Equal(t, "23.12", inv.VatAmount)
	assert.Equal(t, "123.62", inv.GrossAmount)
	assert.Equal(t, "2026-08-01", inv.IssuedAt)

	// No rules configured: the invoice lands in the manual triage queue
	assert.Nil(t, inv.AssignedUserID)
	assert.Nil(t, inv.TargetFarmID)
	assert.Nil(t, inv.TargetModule)
	assert.Empty(t, env.historyActions(t, inv.ID))

	assert.Equal(t, []string{model.ActionRegisterInvoice}, env.auditActions(t))
}

func TestRegisterInvoiceRejectsDuplicateNumber(t *testing.T) {
	env := newTestEnv(t)

	registerInvoice(t, env, "FV/2026/08/001", "Vendor", "")

	_, err := env.invoices.RegisterInvoice(context.Background(), RegisterInvoiceRequest{
		InvoiceNo:   "FV/2026/08/001",
		Direction:   model.DirectionSales,
		SellerName:  "Other Vendor",
		BuyerName:   "Buyer",
		NetAmount:   "10.00",
		GrossAmount: "12.30",
		IssuedAt:    "2026-08-02",
	}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterInvoiceRejectsMalformedInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := RegisterInvoiceRequest{
		InvoiceNo:   "FV/2026/08/002",
		Direction:   model.DirectionPurchase,
		SellerName:  "Vendor",
		BuyerName:   "Buyer",
		NetAmount:   "10.00",
		GrossAmount: "12.30",
		IssuedAt:    "2026-08-02",
	}

	badAmount := base
	badAmount.NetAmount = "ten"
	_, err := env.invoices.RegisterInvoice(ctx, badAmount, "")
	assert.Error(t, err)

	badDate := base
	badDate.IssuedAt = "02.08.2026"
	_, err = env.invoices.RegisterInvoice(ctx, badDate, "")
	assert.Error(t, err)

	badEntity := base
	badEntity.TaxEntityID = "not-a-uuid"
	_, err = env.invoices.RegisterInvoice(ctx, badEntity, "")
	assert.Error(t, err)
}

func TestRegisterInvoiceAppliesRulesAndWritesHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reviewerID := uuid.NewString()
	_, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:        model.RuleTypeUserAssignment,
		Name:            "gas reviewer",
		IncludeKeywords: []string{"gaz"},
		AssignedUserID:  reviewerID,
	}, "")
	require.NoError(t, err)
	_, err = env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:        model.RuleTypeModuleAssignment,
		Name:            "gas module",
		IncludeKeywords: []string{"gaz"},
		TargetModule:    model.ModuleGas,
	}, "")
	require.NoError(t, err)

	inv := registerInvoice(t, env, "FV/2026/08/010", "Orlen Gaz Sp. z o.o.", "propan")

	require.NotNil(t, inv.AssignedUserID)
	assert.Equal(t, reviewerID, *inv.AssignedUserID)
	require.NotNil(t, inv.TargetModule)
	assert.Equal(t, model.ModuleGas, *inv.TargetModule)

	actions := env.historyActions(t, inv.ID)
	assert.Equal(t, 1, countAction(actions, model.InvoiceActionEmployeeAssigned))
	assert.Equal(t, 1, countAction(actions, model.InvoiceActionModuleChanged))
}

func TestLifecycleTransitionsWriteHistoryOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/020", "Vendor", "")

	accepted, err := env.invoices.AcceptInvoice(ctx, inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusAccepted, accepted.Status)

	// Retried accept is absorbed without a duplicate history entry
	again, err := env.invoices.AcceptInvoice(ctx, inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusAccepted, again.Status)
	assert.Equal(t, 1, countAction(env.historyActions(t, inv.ID), model.InvoiceActionAccepted))

	sent, err := env.invoices.TransferToOffice(ctx, inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusSentToOffice, sent.Status)

	actions := env.historyActions(t, inv.ID)
	assert.Equal(t, []string{model.InvoiceActionAccepted, model.InvoiceActionTransferredToOffice}, actions)
}

func TestHoldReturnsAcceptedInvoiceToQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/021", "Vendor", "")

	_, err := env.invoices.AcceptInvoice(ctx, inv.ID, "")
	require.NoError(t, err)

	held, err := env.invoices.HoldInvoice(ctx, inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusNew, held.Status)

	// Holding an already-NEW invoice is a no-op
	heldAgain, err := env.invoices.HoldInvoice(ctx, inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusNew, heldAgain.Status)
	assert.Equal(t, 1, countAction(env.historyActions(t, inv.ID), model.InvoiceActionHeld))
}

func TestInvalidTransitionsAreRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/022", "Vendor", "")

	// NEW cannot go straight to the office
	_, err := env.invoices.TransferToOffice(ctx, inv.ID, "")
	require.Error(t, err)
	assert.True(t, lifecycle.IsInvalidTransition(err))

	_, err = env.invoices.RejectInvoice(ctx, inv.ID, "")
	require.NoError(t, err)

	// REJECTED is terminal
	_, err = env.invoices.AcceptInvoice(ctx, inv.ID, "")
	require.Error(t, err)
	assert.True(t, lifecycle.IsInvalidTransition(err))

	got, err := env.invoices.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusRejected, got.Status)
}

func TestSetPaymentStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/030", "Vendor", "")

	updated, err := env.invoices.SetPaymentStatus(ctx, inv.ID, model.PaymentPaidTransfer, "")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaidTransfer, updated.PaymentStatus)

	// Same value again writes no second history entry
	_, err = env.invoices.SetPaymentStatus(ctx, inv.ID, model.PaymentPaidTransfer, "")
	require.NoError(t, err)
	assert.Equal(t, 1, countAction(env.historyActions(t, inv.ID), model.InvoiceActionPaymentStatusChanged))

	_, err = env.invoices.SetPaymentStatus(ctx, inv.ID, "PAID", "")
	assert.Error(t, err)
}

func TestSetPaymentStatusBlockedOnRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/031", "Vendor", "")
	_, err := env.invoices.RejectInvoice(ctx, inv.ID, "")
	require.NoError(t, err)

	_, err = env.invoices.SetPaymentStatus(ctx, inv.ID, model.PaymentPaidCash, "")
	require.Error(t, err)
	assert.True(t, lifecycle.IsInvalidTransition(err))
}

func TestPaymentStatusAllowedAfterTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/032", "Vendor", "")
	_, err := env.invoices.AcceptInvoice(ctx, inv.ID, "")
	require.NoError(t, err)
	_, err = env.invoices.TransferToOffice(ctx, inv.ID, "")
	require.NoError(t, err)

	updated, err := env.invoices.SetPaymentStatus(ctx, inv.ID, model.PaymentPaidCash, "")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaidCash, updated.PaymentStatus)
}

func TestVersionedUpdateDetectsStaleWriter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/040", "Vendor", "")
	invoiceID, err := uuid.Parse(inv.ID)
	require.NoError(t, err)

	ok, err := env.invoiceRepo.ApplyVersionedUpdate(ctx, invoiceID, 0, map[string]interface{}{
		"status": model.InvoiceStatusAccepted,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// Same stale version again loses the race
	ok, err = env.invoiceRepo.ApplyVersionedUpdate(ctx, invoiceID, 0, map[string]interface{}{
		"status": model.InvoiceStatusRejected,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := env.invoiceRepo.FindByID(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusAccepted, stored.Status)
	assert.Equal(t, 1, stored.Version)
}

func TestReassignUserAndModule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/050", "Vendor", "")

	assignee := uuid.NewString()
	updated, err := env.invoices.ReassignUser(ctx, inv.ID, assignee, "")
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedUserID)
	assert.Equal(t, assignee, *updated.AssignedUserID)

	// Reassigning to the same user is a no-op
	_, err = env.invoices.ReassignUser(ctx, inv.ID, assignee, "")
	require.NoError(t, err)
	assert.Equal(t, 1, countAction(env.historyActions(t, inv.ID), model.InvoiceActionEmployeeAssigned))

	updated, err = env.invoices.ReassignModule(ctx, inv.ID, model.ModuleSales, "")
	require.NoError(t, err)
	require.NotNil(t, updated.TargetModule)
	assert.Equal(t, model.ModuleSales, *updated.TargetModule)

	_, err = env.invoices.ReassignModule(ctx, inv.ID, "LOGISTICS", "")
	assert.Error(t, err)
}

func TestPreviewClassificationDoesNotTouchInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/060", "Orlen Gaz", "propan")

	_, err := env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:        model.RuleTypeModuleAssignment,
		Name:            "gas module",
		IncludeKeywords: []string{"gaz"},
		TargetModule:    model.ModuleGas,
	}, "")
	require.NoError(t, err)

	preview, err := env.invoices.PreviewClassification(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, preview.TargetModule)
	assert.Equal(t, model.ModuleGas, *preview.TargetModule)
	require.NotNil(t, preview.MatchedRules.Module)
	assert.Equal(t, "gas module", *preview.MatchedRules.Module)
	assert.Nil(t, preview.AssignedUserID)

	// The dry run left the stored invoice untouched
	stored, err := env.invoices.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.TargetModule)
	assert.Empty(t, env.historyActions(t, inv.ID))
}

func TestReclassifyInvoiceKeepsValuesTheEngineDoesNotDecide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/070", "Orlen Gaz", "propan")

	// Manual module assignment first
	_, err := env.invoices.ReassignModule(ctx, inv.ID, model.ModuleFarmstead, "")
	require.NoError(t, err)

	// Only a user rule matches; the module chain decides nothing
	reviewerID := uuid.NewString()
	_, err = env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:        model.RuleTypeUserAssignment,
		Name:            "gas reviewer",
		IncludeKeywords: []string{"gaz"},
		AssignedUserID:  reviewerID,
	}, "")
	require.NoError(t, err)

	updated, err := env.invoices.ReclassifyInvoice(ctx, inv.ID, "")
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedUserID)
	assert.Equal(t, reviewerID, *updated.AssignedUserID)
	require.NotNil(t, updated.TargetModule)
	assert.Equal(t, model.ModuleFarmstead, *updated.TargetModule)
}

func TestReclassifyBatchOnlyTouchesNewInvoices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gas1 := registerInvoice(t, env, "FV/2026/08/080", "Orlen Gaz", "propan")
	gas2 := registerInvoice(t, env, "FV/2026/08/081", "Gaz-System", "butla")
	other := registerInvoice(t, env, "FV/2026/08/082", "Hurtownia Biurowa", "papier")
	accepted := registerInvoice(t, env, "FV/2026/08/083", "Orlen Gaz", "propan")
	_, err := env.invoices.AcceptInvoice(ctx, accepted.ID, "")
	require.NoError(t, err)

	_, err = env.rules.CreateRule(ctx, CreateRuleRequest{
		RuleType:        model.RuleTypeModuleAssignment,
		Name:            "gas module",
		IncludeKeywords: []string{"gaz"},
		TargetModule:    model.ModuleGas,
	}, "")
	require.NoError(t, err)

	result, err := env.invoices.ReclassifyBatch(ctx, 100, "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Updated)

	for _, id := range []string{gas1.ID, gas2.ID} {
		got, err := env.invoices.GetInvoice(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.TargetModule, id)
		assert.Equal(t, model.ModuleGas, *got.TargetModule)
	}

	got, err := env.invoices.GetInvoice(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TargetModule)

	// The accepted invoice was out of scope for the batch
	got, err = env.invoices.GetInvoice(ctx, accepted.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TargetModule)

	assert.Equal(t, 1, countAction(env.auditActions(t), model.ActionReclassifyBatch))
}

func TestInvoiceHistoryIsChronological(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inv := registerInvoice(t, env, "FV/2026/08/090", "Vendor", "")

	_, err := env.invoices.AcceptInvoice(ctx, inv.ID, "")
	require.NoError(t, err)
	_, err = env.invoices.SetPaymentStatus(ctx, inv.ID, model.PaymentPartiallyPaid, "")
	require.NoError(t, err)
	_, err = env.invoices.TransferToOffice(ctx, inv.ID, "")
	require.NoError(t, err)

	entries, err := env.invoices.GetInvoiceHistory(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, model.InvoiceActionAccepted, entries[0].Action)
	assert.Equal(t, model.InvoiceActionPaymentStatusChanged, entries[1].Action)
	assert.Equal(t, model.InvoiceActionTransferredToOffice, entries[2].Action)

	// Transition entries carry the previous and new status
	require.NotNil(t, entries[0].PreviousValue)
	assert.Equal(t, model.InvoiceStatusNew, *entries[0].PreviousValue)
	require.NotNil(t, entries[0].NewValue)
	assert.Equal(t, model.InvoiceStatusAccepted, *entries[0].NewValue)
}

func TestRegisterInvoiceSurfacesLookupFailure(t *testing.T) {
	env := newTestEnv(t)

	// A broken invoices table makes the duplicate-number lookup fail with
	// something other than a not-found
	require.NoError(t, env.db.Exec("DROP TABLE invoices").Error)

	_, err := env.invoices.RegisterInvoice(context.Background(), RegisterInvoiceRequest{
		InvoiceNo:   "FV/2026/08/200",
		Direction:   model.DirectionPurchase,
		SellerName:  "Vendor",
		BuyerName:   "Buyer",
		NetAmount:   "100.00",
		GrossAmount: "123.00",
		IssuedAt:    "2026-08-01",
	}, "")
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to check invoice number")
}

func TestReclassifyBatchSurfacesAuditFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registerInvoice(t, env, "FV/2026/08/201", "Vendor", "")

	require.NoError(t, env.db.Exec("DROP TABLE audit_logs").Error)

	_, err := env.invoices.ReclassifyBatch(ctx, 10, "")
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to write audit log")
}
