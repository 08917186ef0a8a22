package repository

import (
	"context"

	"crm/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuotationFilter struct {
	LeadID    *uuid.UUID
	Status    string
	PriceFrom *decimal.Decimal
	PriceTo   *decimal.Decimal
}

type QuotationRepository interface {
	Create(ctx context.Context, q *model.Quotation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Quotation, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Quotation, error)
	List(ctx context.Context, filter QuotationFilter, skip, limit int) ([]model.Quotation, error)
	Update(ctx context.Context, q *model.Quotation) error
	SaveLineItems(ctx context.Context, q *model.Quotation) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByLead(ctx context.Context, leadID uuid.UUID) (int64, error)
}

type quotationRepository struct {
	db *gorm.DB
}

func NewQuotationRepository(db *gorm.DB) QuotationRepository {
	return &quotationRepository{db: db}
}

func (r *quotationRepository) withItems(ctx context.Context) *gorm.DB {
	return GetDB(ctx, r.db).Preload("LineItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	})
}

// Create inserts the quotation together with its line items.
func (r *quotationRepository) Create(ctx context.Context, q *model.Quotation) error {
	return GetDB(ctx, r.db).Omit("Lead").Create(q).Error
}

func (r *quotationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quotation, error) {
	var q model.Quotation
	if err := r.withItems(ctx).First(&q, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// GetForUpdate loads the quotation and locks its row until the surrounding
// transaction ends.
func (r *quotationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Quotation, error) {
	var q model.Quotation
	if err := r.withItems(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&q, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *quotationRepository) List(ctx context.Context, f QuotationFilter, skip, limit int) ([]model.Quotation, error) {
	db := r.withItems(ctx).Model(&model.Quotation{})
	if f.LeadID != nil {
		db = db.Where("lead_id = ?", *f.LeadID)
	}
	db = equals(db, "status", f.Status)
	if f.PriceFrom != nil {
		db = db.Where("total_price >= ?", *f.PriceFrom)
	}
	if f.PriceTo != nil {
		db = db.Where("total_price <= ?", *f.PriceTo)
	}

	var quotations []model.Quotation
	if err := paginate(db, skip, limit).Order("created_at asc").Find(&quotations).Error; err != nil {
		return nil, err
	}
	return quotations, nil
}

// Update saves the quotation columns only; line items go through SaveLineItems.
func (r *quotationRepository) Update(ctx context.Context, q *model.Quotation) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(q).Error
}

// SaveLineItems upserts every line item of q and stores the recomputed total.
func (r *quotationRepository) SaveLineItems(ctx context.Context, q *model.Quotation) error {
	db := GetDB(ctx, r.db)
	for i := range q.LineItems {
		item := &q.LineItems[i]
		item.QuotationID = q.ID
		if item.ID == uuid.Nil {
			if err := db.Create(item).Error; err != nil {
				return err
			}
			continue
		}
		if err := db.Save(item).Error; err != nil {
			return err
		}
	}
	return r.Update(ctx, q)
}

func (r *quotationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("quotation_id = ?", id).Delete(&model.QuotationLineItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Quotation{}).Error
}

func (r *quotationRepository) CountByLead(ctx context.Context, leadID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Quotation{}).Where("lead_id = ?", leadID).Count(&count).Error
	return count, err
}
