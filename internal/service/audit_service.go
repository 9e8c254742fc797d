package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/repository"
)

// --- DTOs ---

type AuditLogResponse struct {
	ID         string  `json:"id"`
	UserID     *string `json:"user_id"`
	Username   string  `json:"username,omitempty"`
	Action     string  `json:"action"`
	EntityID   string  `json:"entity_id"`
	EntityName string  `json:"entity_name,omitempty"`
	Details    string  `json:"details"`
	CreatedAt  string  `json:"created_at"`
}

// --- Interface ---

type AuditService interface {
	ListAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

func (s *auditService) ListAuditLogs(ctx context.Context, page, limit int) ([]AuditLogResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	logs, total, err := s.auditRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		entry := AuditLogResponse{
			ID:         l.ID.String(),
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format(time.RFC3339),
		}
		if l.UserID != nil {
			userID := l.UserID.String()
			entry.UserID = &userID
		}
		if l.User != nil {
			entry.Username = l.User.Username
		}
		res = append(res, entry)
	}
	return res, total, nil
}
