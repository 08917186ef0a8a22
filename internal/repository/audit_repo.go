package repository

import (
	"context"
	"time"

	"crm/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditFilter struct {
	EntityType string
	EntityID   *uuid.UUID
	UserID     *uuid.UUID
	Action     string
	Context    string
	DateFrom   *time.Time
	DateTo     *time.Time
}

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.AuditLog, error)
	List(ctx context.Context, filter AuditFilter, skip, limit int) ([]model.AuditLog, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AuditLog, error) {
	var entry model.AuditLog
	if err := GetDB(ctx, r.db).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns matching entries, newest first.
func (r *auditRepository) List(ctx context.Context, f AuditFilter, skip, limit int) ([]model.AuditLog, error) {
	db := GetDB(ctx, r.db).Model(&model.AuditLog{})
	db = equals(db, "entity_type", f.EntityType)
	if f.EntityID != nil {
		db = db.Where("entity_id = ?", *f.EntityID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	db = containsFold(db, "action", f.Action)
	db = containsFold(db, "context", f.Context)
	if f.DateFrom != nil {
		db = db.Where("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		db = db.Where("created_at <= ?", *f.DateTo)
	}

	var logs []model.AuditLog
	if err := paginate(db, skip, limit).Order("created_at desc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *auditRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.AuditLog{}).Error
}
