package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/classification"
	"backend/internal/lifecycle"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type RegisterInvoiceRequest struct {
	InvoiceNo   string `json:"invoice_no" binding:"required"`
	Direction   string `json:"direction" binding:"required,oneof=PURCHASE SALES"`
	SellerName  string `json:"seller_name" binding:"required"`
	BuyerName   string `json:"buyer_name" binding:"required"`
	SellerTaxID string `json:"seller_tax_id"`
	BuyerTaxID  string `json:"buyer_tax_id"`
	FreeText    string `json:"free_text"`
	TaxEntityID string `json:"tax_entity_id"`
	NetAmount   string `json:"net_amount" binding:"required"` // Decimal string
	VatAmount   string `json:"vat_amount"`
	GrossAmount string `json:"gross_amount" binding:"required"`
	IssuedAt    string `json:"issued_at" binding:"required"` // YYYY-MM-DD
}

type InvoiceFilter struct {
	Status         string
	PaymentStatus  string
	Direction      string
	TargetModule   string
	AssignedUserID string
	TargetFarmID   string
	Unassigned     bool
	Page           int
	Limit          int
}

type InvoiceResponse struct {
	ID             string  `json:"id"`
	InvoiceNo      string  `json:"invoice_no"`
	Direction      string  `json:"direction"`
	SellerName     string  `json:"seller_name"`
	BuyerName      string  `json:"buyer_name"`
	SellerTaxID    string  `json:"seller_tax_id"`
	BuyerTaxID     string  `json:"buyer_tax_id"`
	FreeText       string  `json:"free_text"`
	TaxEntityID    *string `json:"tax_entity_id"`
	NetAmount      string  `json:"net_amount"`
	VatAmount      string  `json:"vat_amount"`
	GrossAmount    string  `json:"gross_amount"`
	IssuedAt       string  `json:"issued_at"`
	Status         string  `json:"status"`
	PaymentStatus  string  `json:"payment_status"`
	AssignedUserID *string `json:"assigned_user_id"`
	AssignedUser   string  `json:"assigned_user,omitempty"`
	TargetFarmID   *string `json:"target_farm_id"`
	TargetFarm     string  `json:"target_farm,omitempty"`
	TargetModule   *string `json:"target_module"`
	CreatedAt      string  `json:"created_at"`
}

// ClassificationPreview is the dry-run result: the decision the engine
// would take right now, without touching the invoice.
type ClassificationPreview struct {
	AssignedUserID *string `json:"assigned_user_id"`
	TargetFarmID   *string `json:"target_farm_id"`
	TargetModule   *string `json:"target_module"`
	MatchedRules   struct {
		User   *string `json:"user"`
		Farm   *string `json:"farm"`
		Module *string `json:"module"`
	} `json:"matched_rules"`
}

type BatchReclassifyResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
}

type InvoiceHistoryEntry struct {
	ID            string  `json:"id"`
	Action        string  `json:"action"`
	ActorUserID   *string `json:"actor_user_id"`
	ActorName     string  `json:"actor_name"`
	PreviousValue *string `json:"previous_value"`
	NewValue      *string `json:"new_value"`
	CreatedAt     string  `json:"created_at"`
}

// --- Interface ---

type InvoiceService interface {
	RegisterInvoice(ctx context.Context, req RegisterInvoiceRequest, userID string) (InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	GetInvoiceHistory(ctx context.Context, id string) ([]InvoiceHistoryEntry, error)

	PreviewClassification(ctx context.Context, id string) (ClassificationPreview, error)
	ReclassifyInvoice(ctx context.Context, id string, userID string) (InvoiceResponse, error)
	ReclassifyBatch(ctx context.Context, limit int, userID string) (BatchReclassifyResult, error)

	AcceptInvoice(ctx context.Context, id string, userID string) (InvoiceResponse, error)
	HoldInvoice(ctx context.Context, id string, userID string) (InvoiceResponse, error)
	RejectInvoice(ctx context.Context, id string, userID string) (InvoiceResponse, error)
	TransferToOffice(ctx context.Context, id string, userID string) (InvoiceResponse, error)
	SetPaymentStatus(ctx context.Context, id string, paymentStatus string, userID string) (InvoiceResponse, error)
	ReassignUser(ctx context.Context, id string, newUserID string, actorID string) (InvoiceResponse, error)
	ReassignModule(ctx context.Context, id string, module string, actorID string) (InvoiceResponse, error)
}

// maxReclassifyBatch bounds one bulk re-classification pass
const maxReclassifyBatch = 500

// Broadcaster pushes invoice events to connected clients; nil disables it
type Broadcaster interface {
	BroadcastEvent(eventType string, payload interface{})
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	historyRepo repository.InvoiceAuditRepository
	auditRepo   repository.AuditRepository
	ruleService RuleService
	txManager   repository.TransactionManager
	hub         Broadcaster
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	historyRepo repository.InvoiceAuditRepository,
	auditRepo repository.AuditRepository,
	ruleService RuleService,
	txManager repository.TransactionManager,
	hub Broadcaster,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		historyRepo: historyRepo,
		auditRepo:   auditRepo,
		ruleService: ruleService,
		txManager:   txManager,
		hub:         hub,
	}
}

// --- Registration and classification ---

func (s *invoiceService) RegisterInvoice(ctx context.Context, req RegisterInvoiceRequest, userID string) (InvoiceResponse, error) {
	net, err := decimal.NewFromString(req.NetAmount)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("invalid net_amount: %w", err)
	}
	gross, err := decimal.NewFromString(req.GrossAmount)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("invalid gross_amount: %w", err)
	}
	vat := decimal.Zero
	if req.VatAmount != "" {
		if vat, err = decimal.NewFromString(req.VatAmount); err != nil {
			return InvoiceResponse{}, fmt.Errorf("invalid vat_amount: %w", err)
		}
	}
	issuedAt, err := time.Parse("2006-01-02", req.IssuedAt)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("invalid issued_at date format (expected YYYY-MM-DD): %w", err)
	}

	if _, err := s.invoiceRepo.FindByInvoiceNo(ctx, req.InvoiceNo); err == nil {
		return InvoiceResponse{}, fmt.Errorf("invoice %s is already registered", req.InvoiceNo)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return InvoiceResponse{}, fmt.Errorf("failed to check invoice number: %w", err)
	}

	invoice := model.Invoice{
		InvoiceNo:     req.InvoiceNo,
		Direction:     req.Direction,
		SellerName:    req.SellerName,
		BuyerName:     req.BuyerName,
		SellerTaxID:   req.SellerTaxID,
		BuyerTaxID:    req.BuyerTaxID,
		FreeText:      req.FreeText,
		NetAmount:     net,
		VatAmount:     vat,
		GrossAmount:   gross,
		IssuedAt:      issuedAt,
		Status:        model.InvoiceStatusNew,
		PaymentStatus: model.PaymentUnpaid,
	}
	if req.TaxEntityID != "" {
		parsed, parseErr := uuid.Parse(req.TaxEntityID)
		if parseErr != nil {
			return InvoiceResponse{}, fmt.Errorf("invalid tax_entity_id: %w", parseErr)
		}
		invoice.TaxEntityID = &parsed
	}

	// Classification runs against one rule snapshot before the insert; the
	// decision is applied together with the audit trail in one transaction.
	snapshot, err := s.ruleService.LoadSnapshot(ctx)
	if err != nil {
		return InvoiceResponse{}, err
	}
	result := classification.Classify(buildInvoiceView(&invoice), snapshot)
	invoice.AssignedUserID = result.AssignedUserID
	invoice.TargetFarmID = result.TargetFarmID
	invoice.TargetModule = result.TargetModule

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.invoiceRepo.Create(txCtx, &invoice); createErr != nil {
			return fmt.Errorf("failed to register invoice: %w", createErr)
		}

		actor := parseOptionalUUID(userID)
		if result.AssignedUserID != nil {
			newValue := result.AssignedUserID.String()
			if histErr := s.historyRepo.Append(txCtx, &model.InvoiceAuditEntry{
				InvoiceID:   invoice.ID,
				Action:      model.InvoiceActionEmployeeAssigned,
				ActorUserID: actor,
				NewValue:    &newValue,
			}); histErr != nil {
				return fmt.Errorf("failed to write invoice history: %w", histErr)
			}
		}
		if result.TargetModule != nil {
			if histErr := s.historyRepo.Append(txCtx, &model.InvoiceAuditEntry{
				InvoiceID:   invoice.ID,
				Action:      model.InvoiceActionModuleChanged,
				ActorUserID: actor,
				NewValue:    result.TargetModule,
			}); histErr != nil {
				return fmt.Errorf("failed to write invoice history: %w", histErr)
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"invoice_no": invoice.InvoiceNo,
			"direction":  invoice.Direction,
			"gross":      gross.StringFixed(2),
		})
		audit := model.AuditLog{
			UserID:     actor,
			Action:     model.ActionRegisterInvoice,
			EntityID:   invoice.ID.String(),
			EntityName: invoice.InvoiceNo,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.broadcast("invoice.registered", &invoice)
	return toInvoiceResponse(invoice), nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("invalid invoice id: %w", err)
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InvoiceResponse{}, fmt.Errorf("invoice not found")
		}
		return InvoiceResponse{}, fmt.Errorf("failed to fetch invoice: %w", err)
	}

	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error) {
	repoFilter := repository.InvoiceListFilter{
		Status:        filter.Status,
		PaymentStatus: filter.PaymentStatus,
		Direction:     filter.Direction,
		TargetModule:  filter.TargetModule,
		Unassigned:    filter.Unassigned,
		Page:          filter.Page,
		Limit:         filter.Limit,
	}
	if filter.AssignedUserID != "" {
		if parsed, err := uuid.Parse(filter.AssignedUserID); err == nil {
			repoFilter.AssignedUserID = &parsed
		}
	}
	if filter.TargetFarmID != "" {
		if parsed, err := uuid.Parse(filter.TargetFarmID); err == nil {
			repoFilter.TargetFarmID = &parsed
		}
	}
	if repoFilter.Page <= 0 {
		repoFilter.Page = 1
	}
	if repoFilter.Limit <= 0 {
		repoFilter.Limit = 20
	}

	invoices, total, err := s.invoiceRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	res := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		res = append(res, toInvoiceResponse(inv))
	}
	return res, total, nil
}

func (s *invoiceService) GetInvoiceHistory(ctx context.Context, id string) ([]InvoiceHistoryEntry, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice id: %w", err)
	}

	entries, err := s.historyRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice history: %w", err)
	}

	res := make([]InvoiceHistoryEntry, 0, len(entries))
	for _, e := range entries {
		entry := InvoiceHistoryEntry{
			ID:            e.ID.String(),
			Action:        e.Action,
			PreviousValue: e.PreviousValue,
			NewValue:      e.NewValue,
			CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		}
		if e.ActorUserID != nil {
			actorID := e.ActorUserID.String()
			entry.ActorUserID = &actorID
		}
		if e.Actor != nil {
			entry.ActorName = e.Actor.Username
		}
		res = append(res, entry)
	}
	return res, nil
}

// PreviewClassification re-runs the engine without applying the result;
// the dry-run the UI shows before an admin confirms a rule change.
func (s *invoiceService) PreviewClassification(ctx context.Context, id string) (ClassificationPreview, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return ClassificationPreview{}, fmt.Errorf("invalid invoice id: %w", err)
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ClassificationPreview{}, fmt.Errorf("invoice not found")
		}
		return ClassificationPreview{}, fmt.Errorf("failed to fetch invoice: %w", err)
	}

	snapshot, err := s.ruleService.LoadSnapshot(ctx)
	if err != nil {
		return ClassificationPreview{}, err
	}

	view := buildInvoiceView(invoice)
	var preview ClassificationPreview
	if rule := classification.Evaluate(snapshot.UserRules, view); rule != nil && rule.AssignedUserID != nil {
		id := rule.AssignedUserID.String()
		preview.AssignedUserID = &id
		preview.MatchedRules.User = &rule.Name
	}
	if rule := classification.Evaluate(snapshot.FarmRules, view); rule != nil && rule.TargetFarmID != nil {
		id := rule.TargetFarmID.String()
		preview.TargetFarmID = &id
		preview.MatchedRules.Farm = &rule.Name
	}
	if rule := classification.Evaluate(snapshot.ModuleRules, view); rule != nil && rule.TargetModule != nil {
		preview.TargetModule = rule.TargetModule
		preview.MatchedRules.Module = &rule.Name
	}
	return preview, nil
}

func (s *invoiceService) ReclassifyInvoice(ctx context.Context, id string, userID string) (InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("invalid invoice id: %w", err)
	}

	snapshot, err := s.ruleService.LoadSnapshot(ctx)
	if err != nil {
		return InvoiceResponse{}, err
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err = s.invoiceRepo.FindByID(txCtx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice not found")
			}
			return fmt.Errorf("failed to fetch invoice: %w", err)
		}
		_, err = s.applyClassification(txCtx, invoice, snapshot, userID)
		return err
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.broadcast("invoice.reclassified", invoice)
	return toInvoiceResponse(*invoice), nil
}

// ReclassifyBatch re-runs classification over NEW invoices with one fixed
// rule snapshot. The batch is bounded and cancellation is honored between
// invoices; a partially processed batch is fine, the remainder picks up the
// then-current rule set on the next run.
func (s *invoiceService) ReclassifyBatch(ctx context.Context, limit int, userID string) (BatchReclassifyResult, error) {
	if limit <= 0 || limit > maxReclassifyBatch {
		limit = maxReclassifyBatch
	}

	snapshot, err := s.ruleService.LoadSnapshot(ctx)
	if err != nil {
		return BatchReclassifyResult{}, err
	}

	invoices, err := s.invoiceRepo.ListByStatus(ctx, model.InvoiceStatusNew, limit)
	if err != nil {
		return BatchReclassifyResult{}, fmt.Errorf("failed to load invoices for reclassification: %w", err)
	}

	var result BatchReclassifyResult
	for i := range invoices {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		invoice := &invoices[i]
		err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			changed, applyErr := s.applyClassification(txCtx, invoice, snapshot, userID)
			if applyErr != nil {
				return applyErr
			}
			if changed {
				result.Updated++
			}
			return nil
		})
		if err != nil {
			// A conflicting concurrent transition skips this invoice only.
			if errors.Is(err, lifecycle.ErrConflict) {
				continue
			}
			return result, err
		}
		result.Processed++
	}

	details, _ := json.Marshal(result)
	audit := model.AuditLog{
		UserID:   parseOptionalUUID(userID),
		Action:   model.ActionReclassifyBatch,
		EntityID: model.InvoiceStatusNew,
		Details:  string(details),
	}
	if err := s.auditRepo.Log(ctx, &audit); err != nil {
		return result, fmt.Errorf("failed to write audit log: %w", err)
	}

	return result, nil
}

// applyClassification writes a fresh engine decision onto one invoice and
// appends a history entry per changed assignment. A nil decision for a kind
// keeps the invoice's current value.
func (s *invoiceService) applyClassification(ctx context.Context, invoice *model.Invoice, snapshot classification.RuleSnapshot, userID string) (bool, error) {
	result := classification.Classify(buildInvoiceView(invoice), snapshot)
	actor := parseOptionalUUID(userID)

	updates := map[string]interface{}{}
	var entries []model.InvoiceAuditEntry

	if result.AssignedUserID != nil && !uuidPtrEqual(result.AssignedUserID, invoice.AssignedUserID) {
		updates["assigned_user_id"] = *result.AssignedUserID
		entries = append(entries, model.InvoiceAuditEntry{
			InvoiceID:     invoice.ID,
			Action:        model.InvoiceActionEmployeeAssigned,
			ActorUserID:   actor,
			PreviousValue: uuidPtrString(invoice.AssignedUserID),
			NewValue:      uuidPtrString(result.AssignedUserID),
		})
	}
	if result.TargetFarmID != nil && !uuidPtrEqual(result.TargetFarmID, invoice.TargetFarmID) {
		updates["target_farm_id"] = *result.TargetFarmID
	}
	if result.TargetModule != nil && !stringPtrEqual(result.TargetModule, invoice.TargetModule) {
		updates["target_module"] = *result.TargetModule
		entries = append(entries, model.InvoiceAuditEntry{
			InvoiceID:     invoice.ID,
			Action:        model.InvoiceActionModuleChanged,
			ActorUserID:   actor,
			PreviousValue: invoice.TargetModule,
			NewValue:      result.TargetModule,
		})
	}

	if len(updates) == 0 {
		return false, nil
	}

	ok, err := s.invoiceRepo.ApplyVersionedUpdate(ctx, invoice.ID, invoice.Version, updates)
	if err != nil {
		return false, fmt.Errorf("failed to apply classification: %w", err)
	}
	if !ok {
		return false, lifecycle.ErrConflict
	}

	for i := range entries {
		if err := s.historyRepo.Append(ctx, &entries[i]); err != nil {
			return false, fmt.Errorf("failed to write invoice history: %w", err)
		}
	}

	if result.AssignedUserID != nil {
		invoice.AssignedUserID = result.AssignedUserID
	}
	if result.TargetFarmID != nil {
		invoice.TargetFarmID = result.TargetFarmID
	}
	if result.TargetModule != nil {
		invoice.TargetModule = result.TargetModule
	}
	invoice.Version++
	return true, nil
}

// --- Lifecycle transitions ---

func (s *invoiceService) AcceptInvoice(ctx context.Context, id string, userID string) (InvoiceResponse, error) {
	return s.applyLifecycleEvent(ctx, id, userID, lifecycle.EventAccept)
}

func (s *invoiceService) HoldInvoice(ctx context.Context, id string, userID string) (InvoiceResponse, error) {
	return s.applyLifecycleEvent(ctx, id, userID, lifecycle.EventHold)
}

func (s *invoiceService) RejectInvoice(ctx context.Context, id string, userID string) (InvoiceResponse, error) {
	return s.applyLifecycleEvent(ctx, id, userID, lifecycle.EventReject)
}

func (s *invoiceService) TransferToOffice(ctx context.Context, id string, userID string) (InvoiceResponse, error) {
	return s.applyLifecycleEvent(ctx, id, userID, lifecycle.EventTransferToOffice)
}

func (s *invoiceService) applyLifecycleEvent(ctx context.Context, id string, userID string, event lifecycle.Event) (InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("invalid invoice id: %w", err)
	}
	actor := parseOptionalUUID(userID)

	var invoice *model.Invoice
	var changed bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err = s.invoiceRepo.FindByID(txCtx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice not found")
			}
			return fmt.Errorf("failed to fetch invoice: %w", err)
		}

		outcome, applyErr := lifecycle.Apply(invoice.Status, event)
		if applyErr != nil {
			return applyErr
		}
		if !outcome.Changed {
			// Retried request, nothing to persist and no duplicate audit entry.
			return nil
		}

		ok, updateErr := s.invoiceRepo.ApplyVersionedUpdate(txCtx, invoice.ID, invoice.Version, map[string]interface{}{
			"status": outcome.Status,
		})
		if updateErr != nil {
			return fmt.Errorf("failed to update invoice status: %w", updateErr)
		}
		if !ok {
			return lifecycle.ErrConflict
		}

		previous := invoice.Status
		next := outcome.Status
		if histErr := s.historyRepo.Append(txCtx, &model.InvoiceAuditEntry{
			InvoiceID:     invoice.ID,
			Action:        outcome.AuditAction,
			ActorUserID:   actor,
			PreviousValue: &previous,
			NewValue:      &next,
		}); histErr != nil {
			return fmt.Errorf("failed to write invoice history: %w", histErr)
		}

		invoice.Status = outcome.Status
		invoice.Version++
		changed = true
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	if changed {
		s.broadcast("invoice.status_changed", invoice)
	}
	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) SetPaymentStatus(ctx context.Context, id string, paymentStatus string, userID string) (InvoiceResponse, error) {
	if !lifecycle.ValidPaymentStatus(paymentStatus) {
		return InvoiceResponse{}, fmt.Errorf("unknown payment status: %s", paymentStatus)
	}
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("invalid invoice id: %w", err)
	}
	actor := parseOptionalUUID(userID)

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err = s.invoiceRepo.FindByID(txCtx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice not found")
			}
			return fmt.Errorf("failed to fetch invoice: %w", err)
		}

		if !lifecycle.CanChangePaymentStatus(invoice.Status) {
			return &lifecycle.InvalidTransitionError{From: invoice.Status, Event: "set_payment_status"}
		}
		if invoice.PaymentStatus == paymentStatus {
			return nil
		}

		ok, updateErr := s.invoiceRepo.ApplyVersionedUpdate(txCtx, invoice.ID, invoice.Version, map[string]interface{}{
			"payment_status": paymentStatus,
		})
		if updateErr != nil {
			return fmt.Errorf("failed to update payment status: %w", updateErr)
		}
		if !ok {
			return lifecycle.ErrConflict
		}

		previous := invoice.PaymentStatus
		next := paymentStatus
		if histErr := s.historyRepo.Append(txCtx, &model.InvoiceAuditEntry{
			InvoiceID:     invoice.ID,
			Action:        model.InvoiceActionPaymentStatusChanged,
			ActorUserID:   actor,
			PreviousValue: &previous,
			NewValue:      &next,
		}); histErr != nil {
			return fmt.Errorf("failed to write invoice history: %w", histErr)
		}

		invoice.PaymentStatus = paymentStatus
		invoice.Version++
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) ReassignUser(ctx context.Context, id string, newUserID string, actorID string) (InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("invalid invoice id: %w", err)
	}
	assignee, err := uuid.Parse(newUserID)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("invalid user id: %w", err)
	}
	actor := parseOptionalUUID(actorID)

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err = s.invoiceRepo.FindByID(txCtx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice not found")
			}
			return fmt.Errorf("failed to fetch invoice: %w", err)
		}

		if invoice.AssignedUserID != nil && *invoice.AssignedUserID == assignee {
			return nil
		}

		ok, updateErr := s.invoiceRepo.ApplyVersionedUpdate(txCtx, invoice.ID, invoice.Version, map[string]interface{}{
			"assigned_user_id": assignee,
		})
		if updateErr != nil {
			return fmt.Errorf("failed to reassign invoice: %w", updateErr)
		}
		if !ok {
			return lifecycle.ErrConflict
		}

		newValue := assignee.String()
		if histErr := s.historyRepo.Append(txCtx, &model.InvoiceAuditEntry{
			InvoiceID:     invoice.ID,
			Action:        model.InvoiceActionEmployeeAssigned,
			ActorUserID:   actor,
			PreviousValue: uuidPtrString(invoice.AssignedUserID),
			NewValue:      &newValue,
		}); histErr != nil {
			return fmt.Errorf("failed to write invoice history: %w", histErr)
		}

		invoice.AssignedUserID = &assignee
		invoice.Version++
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.broadcast("invoice.assigned", invoice)
	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) ReassignModule(ctx context.Context, id string, module string, actorID string) (InvoiceResponse, error) {
	if !validModule(module) {
		return InvoiceResponse{}, fmt.Errorf("unknown module: %s", module)
	}
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("invalid invoice id: %w", err)
	}
	actor := parseOptionalUUID(actorID)

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err = s.invoiceRepo.FindByID(txCtx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice not found")
			}
			return fmt.Errorf("failed to fetch invoice: %w", err)
		}

		if invoice.TargetModule != nil && *invoice.TargetModule == module {
			return nil
		}

		ok, updateErr := s.invoiceRepo.ApplyVersionedUpdate(txCtx, invoice.ID, invoice.Version, map[string]interface{}{
			"target_module": module,
		})
		if updateErr != nil {
			return fmt.Errorf("failed to change invoice module: %w", updateErr)
		}
		if !ok {
			return lifecycle.ErrConflict
		}

		newValue := module
		if histErr := s.historyRepo.Append(txCtx, &model.InvoiceAuditEntry{
			InvoiceID:     invoice.ID,
			Action:        model.InvoiceActionModuleChanged,
			ActorUserID:   actor,
			PreviousValue: invoice.TargetModule,
			NewValue:      &newValue,
		}); histErr != nil {
			return fmt.Errorf("failed to write invoice history: %w", histErr)
		}

		invoice.TargetModule = &newValue
		invoice.Version++
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	return toInvoiceResponse(*invoice), nil
}

// --- Helpers ---

func buildInvoiceView(invoice *model.Invoice) classification.InvoiceView {
	return classification.InvoiceView{
		SellerName:  invoice.SellerName,
		BuyerName:   invoice.BuyerName,
		FreeText:    invoice.FreeText,
		TaxEntityID: invoice.TaxEntityID,
		Direction:   invoice.Direction,
	}
}

func validModule(module string) bool {
	switch module {
	case model.ModuleFeeds, model.ModuleProductionExpenses, model.ModuleGas,
		model.ModuleSales, model.ModuleFarmstead:
		return true
	}
	return false
}

func parseOptionalUUID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &parsed
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *invoiceService) broadcast(eventType string, invoice *model.Invoice) {
	if s.hub == nil || invoice == nil {
		return
	}
	s.hub.BroadcastEvent(eventType, toInvoiceResponse(*invoice))
}

func toInvoiceResponse(inv model.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID.String(),
		InvoiceNo:     inv.InvoiceNo,
		Direction:     inv.Direction,
		SellerName:    inv.SellerName,
		BuyerName:     inv.BuyerName,
		SellerTaxID:   inv.SellerTaxID,
		BuyerTaxID:    inv.BuyerTaxID,
		FreeText:      inv.FreeText,
		NetAmount:     inv.NetAmount.StringFixed(2),
		VatAmount:     inv.VatAmount.StringFixed(2),
		GrossAmount:   inv.GrossAmount.StringFixed(2),
		IssuedAt:      inv.IssuedAt.Format("2006-01-02"),
		Status:        inv.Status,
		PaymentStatus: inv.PaymentStatus,
		TargetModule:  inv.TargetModule,
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.TaxEntityID != nil {
		s := inv.TaxEntityID.String()
		resp.TaxEntityID = &s
	}
	if inv.AssignedUserID != nil {
		s := inv.AssignedUserID.String()
		resp.AssignedUserID = &s
	}
	if inv.AssignedUser != nil {
		resp.AssignedUser = inv.AssignedUser.Username
	}
	if inv.TargetFarmID != nil {
		s := inv.TargetFarmID.String()
		resp.TargetFarmID = &s
	}
	if inv.TargetFarm != nil {
		resp.TargetFarm = inv.TargetFarm.Name
	}
	return resp
}
