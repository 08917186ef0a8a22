package service

import (
	"context"

	"crm/internal/apperr"
	"crm/internal/audit"
	"crm/internal/auth"
	"crm/internal/model"
	"crm/internal/repository"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// --- DTOs ---

type CreateLeadRequest struct {
	Name        string  `json:"name" binding:"required"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	UTMSource   *string `json:"utm_source"`
	UTMMedium   *string `json:"utm_medium"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMContent  *string `json:"utm_content"`
	UTMTerm     *string `json:"utm_term"`
}

func (r CreateLeadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Email, is.Email, validation.Length(0, 255)),
		validation.Field(&r.Phone, validation.Match(phonePattern).Error("must be a valid phone number")),
	)
}

// UpdateLeadRequest patches the fields that are present.
type UpdateLeadRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	UTMSource   *string `json:"utm_source"`
	UTMMedium   *string `json:"utm_medium"`
	UTMCampaign *string `json:"utm_campaign"`
	UTMContent  *string `json:"utm_content"`
	UTMTerm     *string `json:"utm_term"`
}

func (r UpdateLeadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Email, is.Email, validation.Length(0, 255)),
		validation.Field(&r.Phone, validation.Match(phonePattern).Error("must be a valid phone number")),
	)
}

type UpdateLeadStatusRequest struct {
	Status model.LeadStatus `json:"status" binding:"required"`
}

func (r UpdateLeadStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(
			model.LeadStatusNew, model.LeadStatusContacted, model.LeadStatusQualified, model.LeadStatusLost,
		)),
	)
}

// --- Interface ---

type LeadService interface {
	GetLead(ctx context.Context, id uuid.UUID) (*model.Lead, error)
	ListLeads(ctx context.Context, filter repository.LeadFilter, skip, limit int) ([]model.Lead, error)
	CreateLead(ctx context.Context, req CreateLeadRequest, actor *auth.Identity) (*model.Lead, error)
	UpdateLead(ctx context.Context, id uuid.UUID, req UpdateLeadRequest, actor *auth.Identity) (*model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, req UpdateLeadStatusRequest, actor *auth.Identity) (*model.Lead, error)
	DeleteLead(ctx context.Context, id uuid.UUID, actor *auth.Identity) error
}

type leadService struct {
	repo       repository.LeadRepository
	quotations repository.QuotationRepository
	txm        repository.TransactionManager
	recorder   AuditRecorder
}

func NewLeadService(repo repository.LeadRepository, quotations repository.QuotationRepository, txm repository.TransactionManager, recorder AuditRecorder) LeadService {
	return &leadService{repo: repo, quotations: quotations, txm: txm, recorder: recorder}
}

// --- Implementation ---

func (s *leadService) GetLead(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "Lead")
	}
	return lead, nil
}

func (s *leadService) ListLeads(ctx context.Context, filter repository.LeadFilter, skip, limit int) ([]model.Lead, error) {
	if filter.Status != "" && !model.LeadStatus(filter.Status).Valid() {
		return nil, apperr.Validation("validation failed", map[string]string{"status": "must be a valid value"})
	}
	leads, err := s.repo.List(ctx, filter, skip, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return leads, nil
}

func (s *leadService) CreateLead(ctx context.Context, req CreateLeadRequest, actor *auth.Identity) (*model.Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	lead := &model.Lead{
		Name:        req.Name,
		Email:       emptyToNil(req.Email),
		Phone:       emptyToNil(req.Phone),
		Status:      model.LeadStatusNew,
		UTMSource:   emptyToNil(req.UTMSource),
		UTMMedium:   emptyToNil(req.UTMMedium),
		UTMCampaign: emptyToNil(req.UTMCampaign),
		UTMContent:  emptyToNil(req.UTMContent),
		UTMTerm:     emptyToNil(req.UTMTerm),
	}
	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, apperr.Internal(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityLead,
		EntityID:   lead.ID,
		UserID:     actorID(actor),
		Action:     model.ActionCreateLead,
		After:      lead,
	})
	return lead, nil
}

func (s *leadService) UpdateLead(ctx context.Context, id uuid.UUID, req UpdateLeadRequest, actor *auth.Identity) (*model.Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var before, after model.Lead
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		lead, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "Lead")
		}
		before = *lead

		if req.Name != nil {
			lead.Name = *req.Name
		}
		if req.Email != nil {
			lead.Email = emptyToNil(req.Email)
		}
		if req.Phone != nil {
			lead.Phone = emptyToNil(req.Phone)
		}
		if req.UTMSource != nil {
			lead.UTMSource = emptyToNil(req.UTMSource)
		}
		if req.UTMMedium != nil {
			lead.UTMMedium = emptyToNil(req.UTMMedium)
		}
		if req.UTMCampaign != nil {
			lead.UTMCampaign = emptyToNil(req.UTMCampaign)
		}
		if req.UTMContent != nil {
			lead.UTMContent = emptyToNil(req.UTMContent)
		}
		if req.UTMTerm != nil {
			lead.UTMTerm = emptyToNil(req.UTMTerm)
		}
		if lead.Status == model.LeadStatusQualified && !lead.HasEmail() {
			return apperr.Validation("a QUALIFIED lead must keep an email", map[string]string{"email": "cannot be blank"})
		}

		if err := s.repo.Update(txCtx, lead); err != nil {
			return apperr.Internal(err)
		}
		after = *lead
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityLead,
		EntityID:   after.ID,
		UserID:     actorID(actor),
		Action:     model.ActionUpdateLead,
		Before:     before,
		After:      after,
	})
	return &after, nil
}

// UpdateLeadStatus moves a lead to CONTACTED, QUALIFIED or LOST. Leads never
// go back to NEW and only qualify with an email on file.
func (s *leadService) UpdateLeadStatus(ctx context.Context, id uuid.UUID, req UpdateLeadStatusRequest, actor *auth.Identity) (*model.Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var before, after model.Lead
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		lead, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "Lead")
		}

		switch {
		case req.Status == lead.Status:
			return apperr.NoOpTransition("Lead", string(lead.Status))
		case req.Status == model.LeadStatusNew:
			return apperr.Validation("lead status cannot be changed to NEW", map[string]string{"status": "cannot be NEW"})
		case req.Status == model.LeadStatusQualified && !lead.HasEmail():
			return apperr.Validation("lead status cannot be changed to QUALIFIED without an email", map[string]string{"email": "required for QUALIFIED"})
		}

		before = *lead
		lead.Status = req.Status
		if err := s.repo.Update(txCtx, lead); err != nil {
			return apperr.Internal(err)
		}
		after = *lead
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityLead,
		EntityID:   after.ID,
		UserID:     actorID(actor),
		Action:     model.ActionUpdateLeadStatus,
		Before:     before,
		After:      after,
	})
	return &after, nil
}

// DeleteLead removes a lead without quotations. Quotations must be deleted first.
func (s *leadService) DeleteLead(ctx context.Context, id uuid.UUID, actor *auth.Identity) error {
	var before model.Lead
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		lead, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return lookupErr(err, "Lead")
		}

		quoted, err := s.quotations.CountByLead(txCtx, lead.ID)
		if err != nil {
			return apperr.Internal(err)
		}
		if quoted > 0 {
			return apperr.Validation("lead still has quotations", map[string]string{"id": "lead has quotations"})
		}

		before = *lead
		if err := s.repo.Delete(txCtx, id); err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityLead,
		EntityID:   before.ID,
		UserID:     actorID(actor),
		Action:     model.ActionDeleteLead,
		Before:     before,
	})
	return nil
}
