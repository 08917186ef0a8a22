package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EntityType string

const (
	EntityLead      EntityType = "LEAD"
	EntityQuotation EntityType = "QUOTATION"
	EntityRole      EntityType = "ROLE"
	EntityUser      EntityType = "USER"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntityLead, EntityQuotation, EntityRole, EntityUser:
		return true
	}
	return false
}

const (
	ActionCreateLead       = "Create Lead"
	ActionUpdateLead       = "Update Lead"
	ActionUpdateLeadStatus = "Update Lead Status"
	ActionDeleteLead       = "Delete Lead"

	ActionCreateQuotation          = "Create Quotation"
	ActionUpdateQuotation          = "Update Quotation"
	ActionUpdateQuotationLineItems = "Update Quotation Line Items"
	ActionUpdateQuotationStatus    = "Update Quotation Status"
	ActionSendQuotation            = "Send Quotation"
	ActionDeleteQuotation          = "Delete Quotation"

	ActionCreateRole           = "Create Role"
	ActionUpdateRole           = "Update Role"
	ActionAddRolePermission    = "Add Permission To Role"
	ActionRemoveRolePermission = "Remove Permission From Role"
	ActionDeleteRole           = "Delete Role"

	ActionRegisterUser   = "Register User"
	ActionLogin          = "Login"
	ActionUpdateUser     = "Update User"
	ActionUpdateUserRole = "Update User Role"
	ActionDeleteUser     = "Delete User"
)

// AuditLog is an append-only record of one entity mutation. UserID is a weak
// reference: deleting the user leaves the row untouched.
type AuditLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EntityType   EntityType `gorm:"type:varchar(20);not null;index" json:"entity_type"`
	EntityID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"entity_id"`
	UserID       *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Action       string     `gorm:"type:varchar(100);not null;index" json:"action"`
	BeforeValues JSONB      `gorm:"type:jsonb" json:"before_values"`
	AfterValues  JSONB      `gorm:"type:jsonb" json:"after_values"`
	Context      *string    `gorm:"type:text" json:"context"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
