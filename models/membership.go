package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipExpired MembershipStatus = "expired"
	MembershipBlocked MembershipStatus = "blocked"
)

// Membership is one plan period of a live account. Blocked and expired rows
// are kept as history; at most one row per user is non-blocked.
type Membership struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;index;not null" json:"userId"`
	PlanID    uuid.UUID        `gorm:"type:uuid;index;not null" json:"planId"`
	PlanName  string           `gorm:"not null" json:"planName"`
	Price     decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"price"`
	StartDate time.Time        `gorm:"not null" json:"startDate"`
	EndDate   time.Time        `gorm:"index;not null" json:"endDate"`
	Status    MembershipStatus `gorm:"type:varchar(20);index;not null;default:'active'" json:"status"`

	Payments []Payment `gorm:"foreignKey:MembershipID" json:"payments,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Membership) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
