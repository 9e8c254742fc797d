package service

import (
	"context"
	"fmt"
	"testing"

	"backend/internal/database"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the real repositories against an in-memory sqlite database so
// service tests exercise the full transaction and audit paths.
type testEnv struct {
	db          *gorm.DB
	rules       RuleService
	invoices    InvoiceService
	invoiceRepo repository.InvoiceRepository
	historyRepo repository.InvoiceAuditRepository
	auditRepo   repository.AuditRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	txManager := repository.NewTransactionManager(db)
	ruleRepo := repository.NewRuleRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	historyRepo := repository.NewInvoiceAuditRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	rules := NewRuleService(ruleRepo, auditRepo, txManager)
	invoices := NewInvoiceService(invoiceRepo, historyRepo, auditRepo, rules, txManager, nil)

	return &testEnv{
		db:          db,
		rules:       rules,
		invoices:    invoices,
		invoiceRepo: invoiceRepo,
		historyRepo: historyRepo,
		auditRepo:   auditRepo,
	}
}

// auditActions returns the actions of all admin audit entries, newest first
func (e *testEnv) auditActions(t *testing.T) []string {
	t.Helper()
	logs, _, err := e.auditRepo.List(context.Background(), 1, 100)
	require.NoError(t, err)

	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	return actions
}

// historyActions returns the invoice's history actions in append order
func (e *testEnv) historyActions(t *testing.T, invoiceID string) []string {
	t.Helper()
	entries, err := e.invoices.GetInvoiceHistory(context.Background(), invoiceID)
	require.NoError(t, err)

	actions := make([]string, 0, len(entries))
	for _, entry := range entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

func countAction(actions []string, action string) int {
	n := 0
	for _, a := range actions {
		if a == action {
			n++
		}
	}
	return n
}

func registerInvoice(t *testing.T, env *testEnv, invoiceNo, sellerName, freeText string) InvoiceResponse {
	t.Helper()
	inv, err := env.invoices.RegisterInvoice(context.Background(), RegisterInvoiceRequest{
		InvoiceNo:   invoiceNo,
		Direction:   model.DirectionPurchase,
		SellerName:  sellerName,
		BuyerName:   "Ferma Drobiu Kowalski",
		FreeText:    freeText,
		NetAmount:   "100.50",
		VatAmount:   "23.12",
		GrossAmount: "123.62",
		IssuedAt:    "2026-08-01",
	}, "")
	require.NoError(t, err)
	return inv
}
