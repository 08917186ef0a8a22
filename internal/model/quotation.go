package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type QuotationStatus string

const (
	QuotationDraft     QuotationStatus = "DRAFT"
	QuotationSubmitted QuotationStatus = "SUBMITTED"
	QuotationApproved  QuotationStatus = "APPROVED"
	QuotationSent      QuotationStatus = "SENT"
	QuotationAccepted  QuotationStatus = "ACCEPTED"
	QuotationRejected  QuotationStatus = "REJECTED"
)

// QuotationStatuses is the workflow order. ACCEPTED and REJECTED are both
// terminal branches off SENT.
var QuotationStatuses = []QuotationStatus{
	QuotationDraft,
	QuotationSubmitted,
	QuotationApproved,
	QuotationSent,
	QuotationAccepted,
	QuotationRejected,
}

// Index returns the position of s in the workflow, or -1 if unknown.
func (s QuotationStatus) Index() int {
	for i, v := range QuotationStatuses {
		if v == s {
			return i
		}
	}
	return -1
}

func (s QuotationStatus) Valid() bool {
	return s.Index() >= 0
}

func (s QuotationStatus) Terminal() bool {
	return s == QuotationAccepted || s == QuotationRejected
}

// Quotation is a priced offer made to a Lead.
type Quotation struct {
	ID         uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	LeadID     uuid.UUID           `gorm:"type:uuid;not null;index" json:"lead_id"`
	Lead       *Lead               `gorm:"foreignKey:LeadID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	Status     QuotationStatus     `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	TotalPrice decimal.Decimal     `gorm:"type:decimal(15,2);not null;default:0" json:"total_price"`
	LineItems  []QuotationLineItem `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE;" json:"line_items"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// QuotationLineItem is one priced row of a quotation.
type QuotationLineItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	QuotationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"quotation_id"`
	Position    int             `gorm:"not null;default:0" json:"position"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price"`
}

func (q *Quotation) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Status == "" {
		q.Status = QuotationDraft
	}
	return nil
}

func (i *QuotationLineItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Subtotal is price × quantity.
func (i QuotationLineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ComputeTotal sums the line items.
func (q *Quotation) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range q.LineItems {
		total = total.Add(item.Subtotal())
	}
	return total
}

// RecalculateTotal keeps TotalPrice equal to the sum of the line items.
func (q *Quotation) RecalculateTotal() {
	q.TotalPrice = q.ComputeTotal()
}
