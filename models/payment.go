package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment is the normalized live-side payment row, one per transaction.
type Payment struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID       `gorm:"type:uuid;index;not null" json:"userId"`
	MembershipID uuid.UUID       `gorm:"type:uuid;index;not null" json:"membershipId"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Mode         PaymentMode     `gorm:"type:varchar(20);not null;default:'cash'" json:"paymentMode"`
	Notes        string          `json:"notes"`
	PaidAt       time.Time       `gorm:"index;not null" json:"paidAt"`
	RecordedBy   *uuid.UUID      `gorm:"type:uuid" json:"recordedBy,omitempty"`

	// ReconciledAt is set once the payment has been folded into the
	// member record ledger.
	ReconciledAt *time.Time `gorm:"index" json:"reconciledAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Mode == "" {
		p.Mode = PaymentCash
	}
	return
}
