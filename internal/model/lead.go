package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "NEW"
	LeadStatusContacted LeadStatus = "CONTACTED"
	LeadStatusQualified LeadStatus = "QUALIFIED"
	LeadStatusLost      LeadStatus = "LOST"
)

// LeadStatuses lists every valid lead status.
var LeadStatuses = []LeadStatus{LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusLost}

func (s LeadStatus) Valid() bool {
	for _, v := range LeadStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Lead is a prospective customer together with its UTM attribution.
type Lead struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Email       *string    `gorm:"type:varchar(255)" json:"email"`
	Phone       *string    `gorm:"type:varchar(20)" json:"phone"`
	Status      LeadStatus `gorm:"type:varchar(20);not null;default:'NEW';index" json:"status"`
	UTMSource   *string    `gorm:"column:utm_source;type:varchar(255)" json:"utm_source"`
	UTMMedium   *string    `gorm:"column:utm_medium;type:varchar(255)" json:"utm_medium"`
	UTMCampaign *string    `gorm:"column:utm_campaign;type:varchar(255)" json:"utm_campaign"`
	UTMContent  *string    `gorm:"column:utm_content;type:varchar(255)" json:"utm_content"`
	UTMTerm     *string    `gorm:"column:utm_term;type:varchar(255)" json:"utm_term"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	return nil
}

// HasEmail reports whether the lead can be contacted by e-mail.
func (l *Lead) HasEmail() bool {
	return l.Email != nil && *l.Email != ""
}
