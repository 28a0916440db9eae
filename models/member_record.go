package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentMode string

const (
	PaymentCash         PaymentMode = "cash"
	PaymentUPI          PaymentMode = "upi"
	PaymentCard         PaymentMode = "card"
	PaymentBankTransfer PaymentMode = "bank_transfer"
	PaymentOnline       PaymentMode = "online"
)

// ParsePaymentMode accepts the usual spellings operators type. An empty
// mode is cash.
func ParsePaymentMode(s string) (PaymentMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cash":
		return PaymentCash, true
	case "upi":
		return PaymentUPI, true
	case "card", "credit_card", "debit_card":
		return PaymentCard, true
	case "bank_transfer", "bank-transfer", "bank transfer", "neft", "imps":
		return PaymentBankTransfer, true
	case "online":
		return PaymentOnline, true
	}
	return "", false
}

// LedgerEntry is one payment event in a member record's embedded ledger.
// Entries are never edited; a correction is a delete followed by an add.
type LedgerEntry struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentMode PaymentMode     `json:"paymentMode"`
	Notes       string          `json:"notes"`
	PaidAt      time.Time       `json:"paidAt"`
	RecordedBy  *string         `json:"recordedBy,omitempty"`
}

// MemberRecord is the gym's registry row for one person, whether or not
// they have a live account.
type MemberRecord struct {
	ID     uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"userId"`

	Name  string  `gorm:"not null" json:"name"`
	Email *string `gorm:"uniqueIndex" json:"email"`
	Phone *string `gorm:"uniqueIndex" json:"phone"`

	PlanName        *string         `json:"planName"`
	PlanTotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"planTotalAmount"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"paidAmount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"remainingAmount"`

	PaymentInstallments datatypes.JSONSlice[LedgerEntry] `gorm:"not null" json:"paymentInstallments"`

	MembershipStartDate *time.Time `json:"membershipStartDate"`
	MembershipEndDate   *time.Time `json:"membershipEndDate"`
	Notes               *string    `gorm:"type:text" json:"notes"`
	IsSignedUp          bool       `gorm:"not null;default:false" json:"isSignedUp"`

	// Version is bumped on every write; writers compare-and-swap on it.
	Version int `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *MemberRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.PaymentInstallments == nil {
		r.PaymentInstallments = datatypes.JSONSlice[LedgerEntry]{}
	}
	r.Recompute()
	return
}

// EntryTotal sums the amounts of the current ledger entries.
func (r *MemberRecord) EntryTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.PaymentInstallments {
		total = total.Add(e.Amount)
	}
	return total
}

// Recompute derives PaidAmount and RemainingAmount from the entry list.
// It is the only place PaidAmount is assigned.
func (r *MemberRecord) Recompute() {
	r.PaidAmount = r.EntryTotal()
	r.RemainingAmount = r.PlanTotalAmount.Sub(r.PaidAmount)
}

func (r *MemberRecord) IsLinked() bool {
	return r.IsSignedUp || r.UserID != nil
}

func (r *MemberRecord) FindEntry(entryID string) (int, bool) {
	for i, e := range r.PaymentInstallments {
		if e.ID == entryID {
			return i, true
		}
	}
	return -1, false
}

// Entries returns the ledger as a non-nil slice.
func (r *MemberRecord) Entries() []LedgerEntry {
	if r.PaymentInstallments == nil {
		return []LedgerEntry{}
	}
	return r.PaymentInstallments
}
