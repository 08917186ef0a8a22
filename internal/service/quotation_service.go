package service

import (
	"context"
	"errors"
	"reflect"

	"crm/internal/apperr"
	"crm/internal/audit"
	"crm/internal/auth"
	"crm/internal/model"
	"crm/internal/notify"
	"crm/internal/repository"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type LineItemInput struct {
	Description string          `json:"description" binding:"required"`
	Quantity    int             `json:"quantity" binding:"required"`
	Price       decimal.Decimal `json:"price" swaggertype:"string" example:"19.99"`
}

func (r LineItemInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Description, validation.Required),
		validation.Field(&r.Quantity, validation.By(minQuantity)),
		validation.Field(&r.Price, validation.By(validPrice)),
	)
}

type CreateQuotationRequest struct {
	LeadID    uuid.UUID       `json:"lead_id" binding:"required"`
	LineItems []LineItemInput `json:"line_items"`
}

func (r CreateQuotationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.LeadID, validation.By(requiredUUID)),
		validation.Field(&r.LineItems),
	)
}

type UpdateQuotationRequest struct {
	LeadID uuid.UUID `json:"lead_id" binding:"required"`
}

func (r UpdateQuotationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.LeadID, validation.By(requiredUUID)),
	)
}

// LineItemPatch updates the item with ID, or appends a new item when ID is nil.
type LineItemPatch struct {
	ID          *uuid.UUID       `json:"id"`
	Description *string          `json:"description"`
	Quantity    *int             `json:"quantity"`
	Price       *decimal.Decimal `json:"price" swaggertype:"string" example:"19.99"`
}

func (r LineItemPatch) Validate() error {
	isNew := r.ID == nil
	return validation.ValidateStruct(&r,
		validation.Field(&r.Description, validation.By(requiredWhen(isNew)), validation.NilOrNotEmpty),
		validation.Field(&r.Quantity, validation.By(requiredWhen(isNew)), validation.By(minQuantity)),
		validation.Field(&r.Price, validation.By(requiredWhen(isNew)), validation.By(validPrice)),
	)
}

type UpdateLineItemsRequest struct {
	LineItems []LineItemPatch `json:"line_items" binding:"required"`
}

func (r UpdateLineItemsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.LineItems, validation.Required),
	)
}

type UpdateQuotationStatusRequest struct {
	Status model.QuotationStatus `json:"status" binding:"required"`
}

func (r UpdateQuotationStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(
			model.QuotationDraft, model.QuotationSubmitted, model.QuotationApproved,
			model.QuotationSent, model.QuotationAccepted, model.QuotationRejected,
		)),
	)
}

func requiredUUID(value interface{}) error {
	if id, ok := value.(uuid.UUID); ok && id == uuid.Nil {
		return errors.New("cannot be blank")
	}
	return nil
}

func requiredWhen(required bool) validation.RuleFunc {
	return func(value interface{}) error {
		if !required {
			return nil
		}
		rv := reflect.ValueOf(value)
		if !rv.IsValid() || (rv.Kind() == reflect.Ptr && rv.IsNil()) {
			return errors.New("cannot be blank")
		}
		return nil
	}
}

func minQuantity(value interface{}) error {
	var n int
	switch v := value.(type) {
	case int:
		n = v
	case *int:
		if v == nil {
			return nil
		}
		n = *v
	default:
		return nil
	}
	if n < 1 {
		return errors.New("must be no less than 1")
	}
	return nil
}

// validPrice accepts non-negative amounts that fit the decimal(15,2) columns.
func validPrice(value interface{}) error {
	var d decimal.Decimal
	switch v := value.(type) {
	case decimal.Decimal:
		d = v
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		d = *v
	default:
		return nil
	}
	if d.IsNegative() {
		return errors.New("must be no less than 0")
	}
	if !d.Equal(d.Round(2)) {
		return errors.New("must have at most 2 decimal places")
	}
	return nil
}

// ValidateQuotationTransition enforces the forward-only workflow
// DRAFT -> SUBMITTED -> APPROVED -> SENT -> ACCEPTED | REJECTED.
func ValidateQuotationTransition(from, to model.QuotationStatus) error {
	if !to.Valid() {
		return apperr.Validation("validation failed", map[string]string{"status": "must be a valid value"})
	}
	fromIdx, toIdx := from.Index(), to.Index()
	switch {
	case toIdx < fromIdx:
		return apperr.InvalidTransition("Quotation", string(from), string(to))
	case toIdx == fromIdx:
		return apperr.NoOpTransition("Quotation", string(to))
	case to.Terminal():
		if from != model.QuotationSent {
			return apperr.InvalidTransition("Quotation", string(from), string(to))
		}
	case toIdx > fromIdx+1:
		return apperr.InvalidTransition("Quotation", string(from), string(to))
	}
	return nil
}

// --- Interface ---

type QuotationService interface {
	GetQuotation(ctx context.Context, id uuid.UUID) (*model.Quotation, error)
	ListQuotations(ctx context.Context, filter repository.QuotationFilter, skip, limit int) ([]model.Quotation, error)
	CreateQuotation(ctx context.Context, req CreateQuotationRequest, actor *auth.Identity) (*model.Quotation, error)
	UpdateQuotation(ctx context.Context, id uuid.UUID, req UpdateQuotationRequest, actor *auth.Identity) (*model.Quotation, error)
	UpdateLineItems(ctx context.Context, id uuid.UUID, req UpdateLineItemsRequest, actor *auth.Identity) (*model.Quotation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateQuotationStatusRequest, actor *auth.Identity) (*model.Quotation, error)
	SendQuotation(ctx context.Context, id uuid.UUID, actor *auth.Identity) (*model.Quotation, error)
	DeleteQuotation(ctx context.Context, id uuid.UUID, actor *auth.Identity) error
}

type quotationService struct {
	repo          repository.QuotationRepository
	leads         repository.LeadRepository
	txm           repository.TransactionManager
	recorder      AuditRecorder
	notifier      notify.Notifier
	approverRoles []string
}

func NewQuotationService(
	repo repository.QuotationRepository,
	leads repository.LeadRepository,
	txm repository.TransactionManager,
	recorder AuditRecorder,
	notifier notify.Notifier,
	approverRoles []string,
) QuotationService {
	return &quotationService{
		repo:          repo,
		leads:         leads,
		txm:           txm,
		recorder:      recorder,
		notifier:      notifier,
		approverRoles: approverRoles,
	}
}

// --- Implementation ---

func (s *quotationService) GetQuotation(ctx context.Context, id uuid.UUID) (*model.Quotation, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "Quotation")
	}
	return q, nil
}

func (s *quotationService) ListQuotations(ctx context.Context, filter repository.QuotationFilter, skip, limit int) ([]model.Quotation, error) {
	if filter.Status != "" && !model.QuotationStatus(filter.Status).Valid() {
		return nil, apperr.Validation("validation failed", map[string]string{"status": "must be a valid value"})
	}
	quotations, err := s.repo.List(ctx, filter, skip, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return quotations, nil
}

func (s *quotationService) CreateQuotation(ctx context.Context, req CreateQuotationRequest, actor *auth.Identity) (*model.Quotation, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var created *model.Quotation
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.leads.GetByID(txCtx, req.LeadID); err != nil {
			return lookupErr(err, "Lead")
		}

		q := &model.Quotation{LeadID: req.LeadID, Status: model.QuotationDraft}
		for i, item := range req.LineItems {
			q.LineItems = append(q.LineItems, model.QuotationLineItem{
				Position:    i,
				Description: item.Description,
				Quantity:    item.Quantity,
				Price:       item.Price,
			})
		}
		q.RecalculateTotal()

		if err := s.repo.Create(txCtx, q); err != nil {
			return apperr.Internal(err)
		}
		created = q
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityQuotation,
		EntityID:   created.ID,
		UserID:     actorID(actor),
		Action:     model.ActionCreateQuotation,
		After:      created,
	})
	return created, nil
}

// UpdateQuotation re-assigns a draft quotation to another lead.
func (s *quotationService) UpdateQuotation(ctx context.Context, id uuid.UUID, req UpdateQuotationRequest, actor *auth.Identity) (*model.Quotation, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var before, after model.Quotation
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		q, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "Quotation")
		}
		if q.Status != model.QuotationDraft {
			return apperr.RequiresStatus("Quotation", string(model.QuotationDraft), string(q.Status))
		}
		if _, err := s.leads.GetByID(txCtx, req.LeadID); err != nil {
			return lookupErr(err, "Lead")
		}

		before = *q
		q.LeadID = req.LeadID
		if err := s.repo.Update(txCtx, q); err != nil {
			return apperr.Internal(err)
		}
		after = *q
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityQuotation,
		EntityID:   after.ID,
		UserID:     actorID(actor),
		Action:     model.ActionUpdateQuotation,
		Before:     before,
		After:      after,
	})
	return &after, nil
}

// UpdateLineItems patches or appends line items on a draft quotation and
// recomputes its total.
func (s *quotationService) UpdateLineItems(ctx context.Context, id uuid.UUID, req UpdateLineItemsRequest, actor *auth.Identity) (*model.Quotation, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var before, after model.Quotation
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		q, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "Quotation")
		}
		if q.Status != model.QuotationDraft {
			return apperr.RequiresStatus("Quotation", string(model.QuotationDraft), string(q.Status))
		}

		before = *q
		before.LineItems = append([]model.QuotationLineItem(nil), q.LineItems...)

		for _, patch := range req.LineItems {
			if patch.ID == nil {
				q.LineItems = append(q.LineItems, model.QuotationLineItem{
					QuotationID: q.ID,
					Position:    len(q.LineItems),
					Description: *patch.Description,
					Quantity:    *patch.Quantity,
					Price:       *patch.Price,
				})
				continue
			}

			item := findLineItem(q.LineItems, *patch.ID)
			if item == nil {
				return apperr.NotFound("Line item")
			}
			if patch.Description != nil {
				item.Description = *patch.Description
			}
			if patch.Quantity != nil {
				item.Quantity = *patch.Quantity
			}
			if patch.Price != nil {
				item.Price = *patch.Price
			}
		}
		q.RecalculateTotal()

		if err := s.repo.SaveLineItems(txCtx, q); err != nil {
			return apperr.Internal(err)
		}
		after = *q
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityQuotation,
		EntityID:   after.ID,
		UserID:     actorID(actor),
		Action:     model.ActionUpdateQuotationLineItems,
		Before:     before,
		After:      after,
	})
	return &after, nil
}

func findLineItem(items []model.QuotationLineItem, id uuid.UUID) *model.QuotationLineItem {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func (s *quotationService) UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateQuotationStatusRequest, actor *auth.Identity) (*model.Quotation, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	var before, after model.Quotation
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		q, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "Quotation")
		}
		if err := ValidateQuotationTransition(q.Status, req.Status); err != nil {
			return err
		}
		if req.Status == model.QuotationApproved && (actor == nil || !actor.HasRole(s.approverRoles...)) {
			return apperr.Forbidden("only an approver can approve a quotation")
		}

		before = *q
		q.Status = req.Status
		if err := s.repo.Update(txCtx, q); err != nil {
			return apperr.Internal(err)
		}
		after = *q
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityQuotation,
		EntityID:   after.ID,
		UserID:     actorID(actor),
		Action:     model.ActionUpdateQuotationStatus,
		Before:     before,
		After:      after,
	})
	return &after, nil
}

// SendQuotation e-mails an approved quotation to its qualified lead and marks
// it SENT. A delivery failure leaves the quotation untouched.
func (s *quotationService) SendQuotation(ctx context.Context, id uuid.UUID, actor *auth.Identity) (*model.Quotation, error) {
	q, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "Quotation")
	}
	lead, err := s.leads.GetByID(ctx, q.LeadID)
	if err != nil {
		return nil, lookupErr(err, "Lead")
	}
	if q.Status != model.QuotationApproved {
		return nil, apperr.RequiresStatus("Quotation", string(model.QuotationApproved), string(q.Status))
	}
	if !lead.HasEmail() || lead.Status != model.LeadStatusQualified {
		return nil, apperr.Validation("lead is not qualified", map[string]string{"lead_id": "lead must be QUALIFIED and have an email"})
	}

	if err := s.notifier.SendQuotation(ctx, lead, q); err != nil {
		return nil, apperr.NotificationFailed(err)
	}

	var before, after model.Quotation
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "Quotation")
		}
		if current.Status != model.QuotationApproved {
			return apperr.RequiresStatus("Quotation", string(model.QuotationApproved), string(current.Status))
		}

		before = *current
		current.Status = model.QuotationSent
		if err := s.repo.Update(txCtx, current); err != nil {
			return apperr.Internal(err)
		}
		after = *current
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityQuotation,
		EntityID:   after.ID,
		UserID:     actorID(actor),
		Action:     model.ActionSendQuotation,
		Before:     before,
		After:      after,
	})
	return &after, nil
}

func (s *quotationService) DeleteQuotation(ctx context.Context, id uuid.UUID, actor *auth.Identity) error {
	var before model.Quotation
	err := s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		q, err := s.repo.GetForUpdate(txCtx, id)
		if err != nil {
			return lookupErr(err, "Quotation")
		}
		before = *q
		if err := s.repo.Delete(txCtx, id); err != nil {
			return apperr.Internal(err)
		}
		return nil
	})
	if err != nil {
		return apperr.From(err)
	}

	s.recorder.Record(ctx, audit.Entry{
		EntityType: model.EntityQuotation,
		EntityID:   before.ID,
		UserID:     actorID(actor),
		Action:     model.ActionDeleteQuotation,
		Before:     before,
	})
	return nil
}
