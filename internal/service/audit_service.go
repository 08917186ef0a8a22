package service

import (
	"context"
	"time"

	"crm/internal/apperr"
	"crm/internal/model"
	"crm/internal/repository"

	"github.com/google/uuid"
)

type AuditLogResponse struct {
	ID           uuid.UUID        `json:"id"`
	EntityType   model.EntityType `json:"entity_type"`
	EntityID     uuid.UUID        `json:"entity_id"`
	UserID       *uuid.UUID       `json:"user_id"`
	Username     string           `json:"username"`
	Action       string           `json:"action"`
	BeforeValues model.JSONB      `json:"before_values"`
	AfterValues  model.JSONB      `json:"after_values"`
	Context      *string          `json:"context"`
	CreatedAt    time.Time        `json:"created_at"`
}

type AuditService interface {
	ListAuditLogs(ctx context.Context, filter repository.AuditFilter, skip, limit int) ([]AuditLogResponse, error)
	GetAuditLog(ctx context.Context, id uuid.UUID) (*AuditLogResponse, error)
	DeleteAuditLog(ctx context.Context, id uuid.UUID) error
}

type auditService struct {
	repo  repository.AuditRepository
	users repository.UserRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, users repository.UserRepository) AuditService {
	return &auditService{repo: repo, users: users}
}

// ListAuditLogs returns matching entries newest first. Entries written by a
// user that no longer exists carry an empty username.
func (s *auditService) ListAuditLogs(ctx context.Context, filter repository.AuditFilter, skip, limit int) ([]AuditLogResponse, error) {
	if filter.EntityType != "" && !model.EntityType(filter.EntityType).Valid() {
		return nil, apperr.Validation("validation failed", map[string]string{"entity_type": "must be a valid value"})
	}

	logs, err := s.repo.List(ctx, filter, skip, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	ids := make([]uuid.UUID, 0, len(logs))
	seen := make(map[uuid.UUID]bool)
	for _, l := range logs {
		if l.UserID != nil && !seen[*l.UserID] {
			seen[*l.UserID] = true
			ids = append(ids, *l.UserID)
		}
	}
	names, err := s.users.UsernamesByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		res = append(res, toAuditLogResponse(l, names))
	}
	return res, nil
}

func (s *auditService) GetAuditLog(ctx context.Context, id uuid.UUID) (*AuditLogResponse, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "Audit log")
	}

	var ids []uuid.UUID
	if entry.UserID != nil {
		ids = append(ids, *entry.UserID)
	}
	names, err := s.users.UsernamesByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	resp := toAuditLogResponse(*entry, names)
	return &resp, nil
}

// DeleteAuditLog is a maintenance operation; no route exposes it.
func (s *auditService) DeleteAuditLog(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return lookupErr(err, "Audit log")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func toAuditLogResponse(l model.AuditLog, names map[uuid.UUID]string) AuditLogResponse {
	resp := AuditLogResponse{
		ID:           l.ID,
		EntityType:   l.EntityType,
		EntityID:     l.EntityID,
		UserID:       l.UserID,
		Action:       l.Action,
		BeforeValues: l.BeforeValues,
		AfterValues:  l.AfterValues,
		Context:      l.Context,
		CreatedAt:    l.CreatedAt,
	}
	if l.UserID != nil {
		resp.Username = names[*l.UserID]
	}
	return resp
}
