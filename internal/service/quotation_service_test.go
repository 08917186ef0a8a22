package service_test

import (
	"context"
	"testing"

	"crm/internal/apperr"
	"crm/internal/model"
	"crm/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateQuotationTransition(t *testing.T) {
	tests := []struct {
		from, to model.QuotationStatus
		want     error
	}{
		{model.QuotationDraft, model.QuotationSubmitted, nil},
		{model.QuotationSubmitted, model.QuotationApproved, nil},
		{model.QuotationApproved, model.QuotationSent, nil},
		{model.QuotationSent, model.QuotationAccepted, nil},
		{model.QuotationSent, model.QuotationRejected, nil},
		{model.QuotationDraft, model.QuotationDraft, apperr.ErrNoOpTransition},
		{model.QuotationDraft, model.QuotationSent, apperr.ErrInvalidTransition},
		{model.QuotationDraft, model.QuotationApproved, apperr.ErrInvalidTransition},
		{model.QuotationSent, model.QuotationApproved, apperr.ErrInvalidTransition},
		{model.QuotationApproved, model.QuotationAccepted, apperr.ErrInvalidTransition},
		{model.QuotationAccepted, model.QuotationRejected, apperr.ErrInvalidTransition},
		{model.QuotationRejected, model.QuotationAccepted, apperr.ErrInvalidTransition},
		{model.QuotationDraft, "ARCHIVED", apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := service.ValidateQuotationTransition(tt.from, tt.to)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func newQualifiedLead(t *testing.T, e *env) *model.Lead {
	t.Helper()
	ctx := context.Background()
	lead, err := e.Leads.CreateLead(ctx, service.CreateLeadRequest{Name: "Acme", Email: strPtr("buyer@acme.io")}, nil)
	require.NoError(t, err)
	lead, err = e.Leads.UpdateLeadStatus(ctx, lead.ID, service.UpdateLeadStatusRequest{Status: model.LeadStatusQualified}, nil)
	require.NoError(t, err)
	return lead
}

func newDraft(t *testing.T, e *env, leadID uuid.UUID) *model.Quotation {
	t.Helper()
	q, err := e.Quotations.CreateQuotation(context.Background(), service.CreateQuotationRequest{
		LeadID: leadID,
		LineItems: []service.LineItemInput{
			{Description: "Widget", Quantity: 2, Price: decimal.RequireFromString("10.50")},
			{Description: "Setup", Quantity: 1, Price: decimal.RequireFromString("5")},
		},
	}, actor("Sales Rep"))
	require.NoError(t, err)
	return q
}

func advance(t *testing.T, e *env, id uuid.UUID, by string, statuses ...model.QuotationStatus) {
	t.Helper()
	for _, s := range statuses {
		_, err := e.Quotations.UpdateStatus(context.Background(), id, service.UpdateQuotationStatusRequest{Status: s}, actor(by))
		require.NoError(t, err, "moving to %s", s)
	}
}

func TestCreateQuotation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	lead := newQualifiedLead(t, e)

	q := newDraft(t, e, lead.ID)
	assert.Equal(t, model.QuotationDraft, q.Status)
	assert.True(t, q.TotalPrice.Equal(decimal.RequireFromString("26")), "total was %s", q.TotalPrice)

	_, err := e.Quotations.CreateQuotation(ctx, service.CreateQuotationRequest{LeadID: uuid.New()}, nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.Quotations.CreateQuotation(ctx, service.CreateQuotationRequest{
		LeadID:    lead.ID,
		LineItems: []service.LineItemInput{{Description: "Bad", Quantity: 0, Price: decimal.NewFromInt(1)}},
	}, nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.From(err).Fields(), "line_items.0.quantity")

	_, err = e.Quotations.CreateQuotation(ctx, service.CreateQuotationRequest{
		LeadID:    lead.ID,
		LineItems: []service.LineItemInput{{Description: "Bad", Quantity: 1, Price: decimal.NewFromInt(-1)}},
	}, nil)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = e.Quotations.CreateQuotation(ctx, service.CreateQuotationRequest{
		LeadID:    lead.ID,
		LineItems: []service.LineItemInput{{Description: "Fraction", Quantity: 3, Price: decimal.RequireFromString("0.005")}},
	}, nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "must have at most 2 decimal places", apperr.From(err).Fields()["line_items.0.price"])

	q, err = e.Quotations.CreateQuotation(ctx, service.CreateQuotationRequest{
		LeadID:    lead.ID,
		LineItems: []service.LineItemInput{{Description: "Padded", Quantity: 3, Price: decimal.RequireFromString("0.500")}},
	}, nil)
	require.NoError(t, err, "trailing zeros are not extra precision")
	assert.True(t, decimal.RequireFromString("1.5").Equal(q.TotalPrice))
}

func TestUpdateLineItemsRecomputesTotal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := newDraft(t, e, newQualifiedLead(t, e).ID)

	widget := q.LineItems[0].ID
	qty := 4
	updated, err := e.Quotations.UpdateLineItems(ctx, q.ID, service.UpdateLineItemsRequest{
		LineItems: []service.LineItemPatch{
			{ID: &widget, Quantity: &qty},
			{Description: strPtr("Support"), Quantity: &qty, Price: decimalPtr("0.25")},
		},
	}, nil)
	require.NoError(t, err)
	require.Len(t, updated.LineItems, 3)
	// 4*10.50 + 1*5 + 4*0.25
	assert.True(t, updated.TotalPrice.Equal(decimal.RequireFromString("48")), "total was %s", updated.TotalPrice)

	stored, err := e.Quotations.GetQuotation(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalPrice.Equal(stored.ComputeTotal()))
	assert.Equal(t, "Support", stored.LineItems[2].Description)

	missing := uuid.New()
	_, err = e.Quotations.UpdateLineItems(ctx, q.ID, service.UpdateLineItemsRequest{
		LineItems: []service.LineItemPatch{{ID: &missing, Quantity: &qty}},
	}, nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.Quotations.UpdateLineItems(ctx, q.ID, service.UpdateLineItemsRequest{
		LineItems: []service.LineItemPatch{{Description: strPtr("No price"), Quantity: &qty}},
	}, nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestOnlyDraftQuotationsAreEditable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	lead := newQualifiedLead(t, e)
	q := newDraft(t, e, lead.ID)
	advance(t, e, q.ID, "Sales Rep", model.QuotationSubmitted)

	qty := 3
	_, err := e.Quotations.UpdateLineItems(ctx, q.ID, service.UpdateLineItemsRequest{
		LineItems: []service.LineItemPatch{{ID: &q.LineItems[0].ID, Quantity: &qty}},
	}, nil)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = e.Quotations.UpdateQuotation(ctx, q.ID, service.UpdateQuotationRequest{LeadID: lead.ID}, nil)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestApprovalRequiresApproverRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := newDraft(t, e, newQualifiedLead(t, e).ID)
	advance(t, e, q.ID, "Sales Rep", model.QuotationSubmitted)

	_, err := e.Quotations.UpdateStatus(ctx, q.ID, service.UpdateQuotationStatusRequest{Status: model.QuotationApproved}, actor("Sales Rep"))
	require.ErrorIs(t, err, apperr.ErrForbidden)

	approved, err := e.Quotations.UpdateStatus(ctx, q.ID, service.UpdateQuotationStatusRequest{Status: model.QuotationApproved}, actor("Manager"))
	require.NoError(t, err)
	assert.Equal(t, model.QuotationApproved, approved.Status)

	entry := e.recorder.last()
	assert.Equal(t, model.ActionUpdateQuotationStatus, entry.Action)
	assert.Equal(t, model.QuotationSubmitted, entry.Before.(model.Quotation).Status)
	assert.Equal(t, model.QuotationApproved, entry.After.(model.Quotation).Status)
}

func TestSendQuotation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := newDraft(t, e, newQualifiedLead(t, e).ID)

	_, err := e.Quotations.SendQuotation(ctx, q.ID, nil)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition, "drafts cannot be sent")

	_, err = e.Quotations.UpdateStatus(ctx, q.ID, service.UpdateQuotationStatusRequest{Status: model.QuotationSent}, actor("Manager"))
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	advance(t, e, q.ID, "Manager", model.QuotationSubmitted, model.QuotationApproved)

	e.notifier.err = errSMTPDown
	_, err = e.Quotations.SendQuotation(ctx, q.ID, nil)
	require.ErrorIs(t, err, apperr.ErrNotificationFailed)
	stored, err := e.Quotations.GetQuotation(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuotationApproved, stored.Status)

	e.notifier.err = nil
	sent, err := e.Quotations.SendQuotation(ctx, q.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.QuotationSent, sent.Status)
	assert.Equal(t, []uuid.UUID{q.ID}, e.notifier.sent)
	assert.Equal(t, model.ActionSendQuotation, e.recorder.last().Action)

	_, err = e.Quotations.UpdateStatus(ctx, q.ID, service.UpdateQuotationStatusRequest{Status: model.QuotationApproved}, actor("Manager"))
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
	advance(t, e, q.ID, "Sales Rep", model.QuotationAccepted)
}

func TestSendQuotationRequiresQualifiedLead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	lead, err := e.Leads.CreateLead(ctx, service.CreateLeadRequest{Name: "Cold", Email: strPtr("cold@acme.io")}, nil)
	require.NoError(t, err)
	q := newDraft(t, e, lead.ID)
	advance(t, e, q.ID, "Manager", model.QuotationSubmitted, model.QuotationApproved)

	_, err = e.Quotations.SendQuotation(ctx, q.ID, nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, e.notifier.sent)
}

func TestDeleteQuotation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	q := newDraft(t, e, newQualifiedLead(t, e).ID)

	require.NoError(t, e.Quotations.DeleteQuotation(ctx, q.ID, nil))
	_, err := e.Quotations.GetQuotation(ctx, q.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.ErrorIs(t, e.Quotations.DeleteQuotation(ctx, q.ID, nil), apperr.ErrNotFound)
}

func TestLeadWithQuotationsCannotBeDeleted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	lead := newQualifiedLead(t, e)
	q := newDraft(t, e, lead.ID)
	recorded := len(e.recorder.actions())

	err := e.Leads.DeleteLead(ctx, lead.ID, nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.From(err).Fields(), "id")
	assert.Len(t, e.recorder.actions(), recorded, "a rejected delete is not audited")

	kept, err := e.Quotations.GetQuotation(ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, kept.LineItems, 2)

	require.NoError(t, e.Quotations.DeleteQuotation(ctx, q.ID, nil))
	require.NoError(t, e.Leads.DeleteLead(ctx, lead.ID, nil))
	assert.Equal(t, []string{model.ActionDeleteQuotation, model.ActionDeleteLead}, e.recorder.actions()[recorded:])
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
