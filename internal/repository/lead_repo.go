package repository

import (
	"context"

	"crm/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeadFilter narrows a lead listing. Empty fields are ignored; text fields
// match case-insensitive substrings.
type LeadFilter struct {
	Name        string
	Email       string
	Phone       string
	Status      string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMContent  string
	UTMTerm     string
}

type LeadRepository interface {
	Create(ctx context.Context, lead *model.Lead) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error)
	List(ctx context.Context, filter LeadFilter, skip, limit int) ([]model.Lead, error)
	Update(ctx context.Context, lead *model.Lead) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type leadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &leadRepository{db: db}
}

func (r *leadRepository) Create(ctx context.Context, lead *model.Lead) error {
	return GetDB(ctx, r.db).Create(lead).Error
}

func (r *leadRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	var lead model.Lead
	if err := GetDB(ctx, r.db).First(&lead, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *leadRepository) List(ctx context.Context, f LeadFilter, skip, limit int) ([]model.Lead, error) {
	db := GetDB(ctx, r.db).Model(&model.Lead{})
	db = containsFold(db, "name", f.Name)
	db = containsFold(db, "email", f.Email)
	db = containsFold(db, "phone", f.Phone)
	db = equals(db, "status", f.Status)
	db = containsFold(db, "utm_source", f.UTMSource)
	db = containsFold(db, "utm_medium", f.UTMMedium)
	db = containsFold(db, "utm_campaign", f.UTMCampaign)
	db = containsFold(db, "utm_content", f.UTMContent)
	db = containsFold(db, "utm_term", f.UTMTerm)

	var leads []model.Lead
	if err := paginate(db, skip, limit).Order("created_at asc").Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *leadRepository) Update(ctx context.Context, lead *model.Lead) error {
	return GetDB(ctx, r.db).Save(lead).Error
}

func (r *leadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Lead{}).Error
}
