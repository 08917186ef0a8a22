package model_test

import (
	"testing"

	"crm/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotationRecalculateTotal(t *testing.T) {
	q := &model.Quotation{
		LineItems: []model.QuotationLineItem{
			{Description: "Setup", Quantity: 1, Price: decimal.RequireFromString("250.00")},
			{Description: "Licence", Quantity: 3, Price: decimal.RequireFromString("19.99")},
		},
	}

	q.RecalculateTotal()

	assert.True(t, q.TotalPrice.Equal(decimal.RequireFromString("309.97")), q.TotalPrice.String())
}

func TestQuotationStatusOrder(t *testing.T) {
	assert.Equal(t, 0, model.QuotationDraft.Index())
	assert.Equal(t, 3, model.QuotationSent.Index())
	assert.Equal(t, -1, model.QuotationStatus("ARCHIVED").Index())
	assert.True(t, model.QuotationRejected.Terminal())
	assert.False(t, model.QuotationSent.Terminal())
}

func TestLeadStatusValid(t *testing.T) {
	assert.True(t, model.LeadStatusQualified.Valid())
	assert.False(t, model.LeadStatus("Qualified").Valid())
}

func TestSnapshotUsesJSONShape(t *testing.T) {
	email := "jane@example.com"
	lead := model.Lead{ID: uuid.New(), Name: "Jane", Email: &email, Status: model.LeadStatusNew}

	snap := model.Snapshot(lead)

	require.NotNil(t, snap)
	assert.Equal(t, "Jane", snap["name"])
	assert.Equal(t, "jane@example.com", snap["email"])
	assert.Equal(t, "NEW", snap["status"])
	assert.Equal(t, lead.ID.String(), snap["id"])
	assert.Nil(t, model.Snapshot(nil))
}

func TestJSONBScanAcceptsStringAndBytes(t *testing.T) {
	var fromString model.JSONB
	require.NoError(t, fromString.Scan(`{"a":1}`))
	assert.Equal(t, float64(1), fromString["a"])

	var fromBytes model.JSONB
	require.NoError(t, fromBytes.Scan([]byte(`{"b":"x"}`)))
	assert.Equal(t, "x", fromBytes["b"])

	var empty model.JSONB
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)

	v, err := model.JSONB(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
