package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateFeedDeliveryRequest struct {
	FarmID      string `json:"farm_id" binding:"required"`
	HenhouseID  string `json:"henhouse_id"`
	VendorName  string `json:"vendor_name" binding:"required"`
	FeedName    string `json:"feed_name" binding:"required"`
	QuantityKg  string `json:"quantity_kg" binding:"required"`
	UnitPrice   string `json:"unit_price" binding:"required"`
	InvoiceNo   string `json:"invoice_no"`
	DeliveredAt string `json:"delivered_at" binding:"required"` // YYYY-MM-DD
}

type CreateGasDeliveryRequest struct {
	FarmID         string `json:"farm_id" binding:"required"`
	VendorName     string `json:"vendor_name" binding:"required"`
	QuantityLiters string `json:"quantity_liters" binding:"required"`
	UnitPrice      string `json:"unit_price" binding:"required"`
	InvoiceNo      string `json:"invoice_no"`
	DeliveredAt    string `json:"delivered_at" binding:"required"`
}

type DeliveryQuery struct {
	FarmID string
	From   string
	To     string
	Page   int
	Limit  int
}

type FeedDeliveryResponse struct {
	ID          string  `json:"id"`
	FarmID      string  `json:"farm_id"`
	FarmName    string  `json:"farm_name,omitempty"`
	HenhouseID  *string `json:"henhouse_id"`
	VendorName  string  `json:"vendor_name"`
	FeedName    string  `json:"feed_name"`
	QuantityKg  string  `json:"quantity_kg"`
	UnitPrice   string  `json:"unit_price"`
	TotalPrice  string  `json:"total_price"`
	InvoiceNo   string  `json:"invoice_no"`
	DeliveredAt string  `json:"delivered_at"`
}

type GasDeliveryResponse struct {
	ID             string `json:"id"`
	FarmID         string `json:"farm_id"`
	FarmName       string `json:"farm_name,omitempty"`
	VendorName     string `json:"vendor_name"`
	QuantityLiters string `json:"quantity_liters"`
	UnitPrice      string `json:"unit_price"`
	TotalPrice     string `json:"total_price"`
	InvoiceNo      string `json:"invoice_no"`
	DeliveredAt    string `json:"delivered_at"`
}

// --- Interface ---

type DeliveryService interface {
	CreateFeedDelivery(ctx context.Context, req CreateFeedDeliveryRequest, userID string) (FeedDeliveryResponse, error)
	DeleteFeedDelivery(ctx context.Context, id string, userID string) error
	ListFeedDeliveries(ctx context.Context, query DeliveryQuery) ([]FeedDeliveryResponse, int64, error)

	CreateGasDelivery(ctx context.Context, req CreateGasDeliveryRequest, userID string) (GasDeliveryResponse, error)
	DeleteGasDelivery(ctx context.Context, id string, userID string) error
	ListGasDeliveries(ctx context.Context, query DeliveryQuery) ([]GasDeliveryResponse, int64, error)
}

type deliveryService struct {
	feedRepo  repository.FeedDeliveryRepository
	gasRepo   repository.GasDeliveryRepository
	farmRepo  repository.FarmRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewDeliveryService(
	feedRepo repository.FeedDeliveryRepository,
	gasRepo repository.GasDeliveryRepository,
	farmRepo repository.FarmRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) DeliveryService {
	return &deliveryService{
		feedRepo:  feedRepo,
		gasRepo:   gasRepo,
		farmRepo:  farmRepo,
		auditRepo: auditRepo,
		txManager: txManager,
	}
}

// --- Feed deliveries ---

func (s *deliveryService) CreateFeedDelivery(ctx context.Context, req CreateFeedDeliveryRequest, userID string) (FeedDeliveryResponse, error) {
	farmID, quantity, unitPrice, deliveredAt, err := s.parseDeliveryCommon(ctx, req.FarmID, req.QuantityKg, req.UnitPrice, req.DeliveredAt)
	if err != nil {
		return FeedDeliveryResponse{}, err
	}

	delivery := model.FeedDelivery{
		FarmID:      farmID,
		VendorName:  req.VendorName,
		FeedName:    req.FeedName,
		QuantityKg:  quantity,
		UnitPrice:   unitPrice,
		TotalPrice:  quantity.Mul(unitPrice).Round(2),
		InvoiceNo:   req.InvoiceNo,
		DeliveredAt: deliveredAt,
	}
	if req.HenhouseID != "" {
		henhouseID, parseErr := uuid.Parse(req.HenhouseID)
		if parseErr != nil {
			return FeedDeliveryResponse{}, fmt.Errorf("invalid henhouse id: %w", parseErr)
		}
		delivery.HenhouseID = &henhouseID
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.feedRepo.Create(txCtx, &delivery); err != nil {
			return fmt.Errorf("failed to record feed delivery: %w", err)
		}
		return s.writeDeliveryAudit(txCtx, model.ActionCreateDelivery, "feed", delivery.ID, delivery.VendorName, userID)
	})
	if err != nil {
		return FeedDeliveryResponse{}, err
	}

	return toFeedDeliveryResponse(delivery), nil
}

func (s *deliveryService) DeleteFeedDelivery(ctx context.Context, id string, userID string) error {
	deliveryID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid delivery id: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		delivery, err := s.feedRepo.FindByID(txCtx, deliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("delivery not found")
			}
			return fmt.Errorf("failed to fetch delivery: %w", err)
		}

		if err := s.feedRepo.Delete(txCtx, delivery.ID); err != nil {
			return fmt.Errorf("failed to delete delivery: %w", err)
		}
		return s.writeDeliveryAudit(txCtx, model.ActionDeleteDelivery, "feed", delivery.ID, delivery.VendorName, userID)
	})
}

func (s *deliveryService) ListFeedDeliveries(ctx context.Context, query DeliveryQuery) ([]FeedDeliveryResponse, int64, error) {
	filter, err := buildDeliveryFilter(query)
	if err != nil {
		return nil, 0, err
	}

	deliveries, total, err := s.feedRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feed deliveries: %w", err)
	}

	res := make([]FeedDeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		res = append(res, toFeedDeliveryResponse(d))
	}
	return res, total, nil
}

// --- Gas deliveries ---

func (s *deliveryService) CreateGasDelivery(ctx context.Context, req CreateGasDeliveryRequest, userID string) (GasDeliveryResponse, error) {
	farmID, quantity, unitPrice, deliveredAt, err := s.parseDeliveryCommon(ctx, req.FarmID, req.QuantityLiters, req.UnitPrice, req.DeliveredAt)
	if err != nil {
		return GasDeliveryResponse{}, err
	}

	delivery := model.GasDelivery{
		FarmID:         farmID,
		VendorName:     req.VendorName,
		QuantityLiters: quantity,
		UnitPrice:      unitPrice,
		TotalPrice:     quantity.Mul(unitPrice).Round(2),
		InvoiceNo:      req.InvoiceNo,
		DeliveredAt:    deliveredAt,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.gasRepo.Create(txCtx, &delivery); err != nil {
			return fmt.Errorf("failed to record gas delivery: %w", err)
		}
		return s.writeDeliveryAudit(txCtx, model.ActionCreateDelivery, "gas", delivery.ID, delivery.VendorName, userID)
	})
	if err != nil {
		return GasDeliveryResponse{}, err
	}

	return toGasDeliveryResponse(delivery), nil
}

func (s *deliveryService) DeleteGasDelivery(ctx context.Context, id string, userID string) error {
	deliveryID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid delivery id: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		delivery, err := s.gasRepo.FindByID(txCtx, deliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("delivery not found")
			}
			return fmt.Errorf("failed to fetch delivery: %w", err)
		}

		if err := s.gasRepo.Delete(txCtx, delivery.ID); err != nil {
			return fmt.Errorf("failed to delete delivery: %w", err)
		}
		return s.writeDeliveryAudit(txCtx, model.ActionDeleteDelivery, "gas", delivery.ID, delivery.VendorName, userID)
	})
}

func (s *deliveryService) ListGasDeliveries(ctx context.Context, query DeliveryQuery) ([]GasDeliveryResponse, int64, error) {
	filter, err := buildDeliveryFilter(query)
	if err != nil {
		return nil, 0, err
	}

	deliveries, total, err := s.gasRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list gas deliveries: %w", err)
	}

	res := make([]GasDeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		res = append(res, toGasDeliveryResponse(d))
	}
	return res, total, nil
}

// --- Helpers ---

func (s *deliveryService) parseDeliveryCommon(ctx context.Context, rawFarmID, rawQuantity, rawUnitPrice, rawDate string) (uuid.UUID, decimal.Decimal, decimal.Decimal, time.Time, error) {
	farmID, err := uuid.Parse(rawFarmID)
	if err != nil {
		return uuid.Nil, decimal.Zero, decimal.Zero, time.Time{}, fmt.Errorf("invalid farm id: %w", err)
	}
	if _, err := s.farmRepo.FindByID(ctx, farmID); err != nil {
		return uuid.Nil, decimal.Zero, decimal.Zero, time.Time{}, fmt.Errorf("farm not found")
	}

	quantity, err := decimal.NewFromString(rawQuantity)
	if err != nil || quantity.IsNegative() || quantity.IsZero() {
		return uuid.Nil, decimal.Zero, decimal.Zero, time.Time{}, fmt.Errorf("quantity must be a positive decimal")
	}
	unitPrice, err := decimal.NewFromString(rawUnitPrice)
	if err != nil || unitPrice.IsNegative() {
		return uuid.Nil, decimal.Zero, decimal.Zero, time.Time{}, fmt.Errorf("unit price must be a non-negative decimal")
	}

	deliveredAt, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		return uuid.Nil, decimal.Zero, decimal.Zero, time.Time{}, fmt.Errorf("invalid delivered_at date format (expected YYYY-MM-DD): %w", err)
	}

	return farmID, quantity, unitPrice, deliveredAt, nil
}

func buildDeliveryFilter(query DeliveryQuery) (repository.DeliveryListFilter, error) {
	filter := repository.DeliveryListFilter{
		Page:  query.Page,
		Limit: query.Limit,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	if query.FarmID != "" {
		farmID, err := uuid.Parse(query.FarmID)
		if err != nil {
			return filter, fmt.Errorf("invalid farm id: %w", err)
		}
		filter.FarmID = &farmID
	}
	if query.From != "" {
		from, err := time.Parse("2006-01-02", query.From)
		if err != nil {
			return filter, fmt.Errorf("invalid from date: %w", err)
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := time.Parse("2006-01-02", query.To)
		if err != nil {
			return filter, fmt.Errorf("invalid to date: %w", err)
		}
		filter.To = &to
	}
	return filter, nil
}

func (s *deliveryService) writeDeliveryAudit(ctx context.Context, action, kind string, id uuid.UUID, vendor, userID string) error {
	details, _ := json.Marshal(map[string]string{"kind": kind})
	audit := model.AuditLog{
		UserID:     parseOptionalUUID(userID),
		Action:     action,
		EntityID:   id.String(),
		EntityName: vendor,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, &audit); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func toFeedDeliveryResponse(d model.FeedDelivery) FeedDeliveryResponse {
	resp := FeedDeliveryResponse{
		ID:          d.ID.String(),
		FarmID:      d.FarmID.String(),
		VendorName:  d.VendorName,
		FeedName:    d.FeedName,
		QuantityKg:  d.QuantityKg.StringFixed(2),
		UnitPrice:   d.UnitPrice.StringFixed(2),
		TotalPrice:  d.TotalPrice.StringFixed(2),
		InvoiceNo:   d.InvoiceNo,
		DeliveredAt: d.DeliveredAt.Format("2006-01-02"),
	}
	if d.Farm != nil {
		resp.FarmName = d.Farm.Name
	}
	if d.HenhouseID != nil {
		henhouseID := d.HenhouseID.String()
		resp.HenhouseID = &henhouseID
	}
	return resp
}

func toGasDeliveryResponse(d model.GasDelivery) GasDeliveryResponse {
	resp := GasDeliveryResponse{
		ID:             d.ID.String(),
		FarmID:         d.FarmID.String(),
		VendorName:     d.VendorName,
		QuantityLiters: d.QuantityLiters.StringFixed(2),
		UnitPrice:      d.UnitPrice.StringFixed(2),
		TotalPrice:     d.TotalPrice.StringFixed(2),
		InvoiceNo:      d.InvoiceNo,
		DeliveredAt:    d.DeliveredAt.Format("2006-01-02"),
	}
	if d.Farm != nil {
		resp.FarmName = d.Farm.Name
	}
	return resp
}
