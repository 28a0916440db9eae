package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fitsense-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LedgerService mutates the embedded payment ledger of member records.
// Every mutation reads the record and its version, changes the entry list
// in memory and writes it back with a version check, retrying on conflict.
type LedgerService struct {
	db         *gorm.DB
	notifier   Notifier
	publisher  EventPublisher
	maxRetries int
	now        func() time.Time
}

func NewLedgerService(db *gorm.DB, notifier Notifier, publisher EventPublisher, maxRetries int) *LedgerService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &LedgerService{
		db:         db,
		notifier:   notifier,
		publisher:  publisher,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

type AddEntryInput struct {
	Amount      decimal.Decimal
	PaymentMode string
	Notes       string
	PaidAt      *time.Time
	RecordedBy  string
}

// LedgerView is the read model returned by ListEntries.
type LedgerView struct {
	Entries         []models.LedgerEntry `json:"entries"`
	PaidAmount      decimal.Decimal      `json:"paidAmount"`
	PlanTotalAmount decimal.Decimal      `json:"planTotalAmount"`
	RemainingAmount decimal.Decimal      `json:"remainingAmount"`
	PlanName        *string              `json:"planName"`
}

func (s *LedgerService) mutate(ctx context.Context, id uuid.UUID, fn func(tx *gorm.DB, rec *models.MemberRecord) error) (*models.MemberRecord, error) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		var out *models.MemberRecord
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			rec, err := loadRecord(tx, id)
			if err != nil {
				return err
			}
			prev := rec.Version
			if err := fn(tx, rec); err != nil {
				return err
			}
			if err := saveRecord(tx, rec, prev); err != nil {
				return err
			}
			out = rec
			return nil
		})
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, err
		}
		log.Printf("[LEDGER] record %s modified concurrently, retrying (%d/%d)", id, attempt, s.maxRetries)
	}
	return nil, ErrConcurrentModification
}

func validateAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	rounded := amount.Round(2)
	if !rounded.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return rounded, nil
}

// AddEntry appends a payment to the record's ledger.
func (s *LedgerService) AddEntry(ctx context.Context, recordID uuid.UUID, input AddEntryInput) (*models.LedgerEntry, *models.MemberRecord, error) {
	amount, err := validateAmount(input.Amount)
	if err != nil {
		return nil, nil, err
	}
	mode, ok := models.ParsePaymentMode(input.PaymentMode)
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown payment mode %q", ErrInvalidInput, input.PaymentMode)
	}

	paidAt := s.now()
	if input.PaidAt != nil && !input.PaidAt.IsZero() {
		paidAt = *input.PaidAt
	}
	entry := models.LedgerEntry{
		ID:          uuid.NewString(),
		Amount:      amount,
		PaymentMode: mode,
		Notes:       strings.TrimSpace(input.Notes),
		PaidAt:      paidAt,
	}
	if input.RecordedBy != "" {
		by := input.RecordedBy
		entry.RecordedBy = &by
	}

	rec, err := s.mutate(ctx, recordID, func(tx *gorm.DB, rec *models.MemberRecord) error {
		rec.PaymentInstallments = append(rec.Entries(), entry)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Printf("[LEDGER] added %s to record %s, paid now %s", amount, rec.ID, rec.PaidAmount)

	snapshot := *rec
	notifyAsync("receipt for "+rec.ID.String(), func(ctx context.Context) error {
		return s.notifier.SendReceipt(ctx, snapshot, entry)
	})
	publishAsync(s.publisher, PaymentEvent{
		Type:       EventPaymentRecorded,
		RecordID:   rec.ID.String(),
		EntryID:    entry.ID,
		Amount:     amount,
		PaidAmount: rec.PaidAmount,
		OccurredAt: s.now(),
	})

	return &entry, rec, nil
}

func (s *LedgerService) ListEntries(ctx context.Context, recordID uuid.UUID) (*LedgerView, error) {
	rec, err := loadRecord(s.db.WithContext(ctx), recordID)
	if err != nil {
		return nil, err
	}
	return &LedgerView{
		Entries:         rec.Entries(),
		PaidAmount:      rec.PaidAmount,
		PlanTotalAmount: rec.PlanTotalAmount,
		RemainingAmount: rec.RemainingAmount,
		PlanName:        rec.PlanName,
	}, nil
}

// DeleteEntry removes one entry and recomputes the paid total from the
// entries that remain.
func (s *LedgerService) DeleteEntry(ctx context.Context, recordID uuid.UUID, entryID string, privileged bool) (*models.LedgerEntry, *models.MemberRecord, error) {
	if !privileged {
		return nil, nil, ErrForbidden
	}
	if strings.TrimSpace(entryID) == "" {
		return nil, nil, fmt.Errorf("%w: entry id is required", ErrInvalidInput)
	}

	var deleted models.LedgerEntry
	rec, err := s.mutate(ctx, recordID, func(tx *gorm.DB, rec *models.MemberRecord) error {
		idx, ok := rec.FindEntry(entryID)
		if !ok {
			return ErrEntryNotFound
		}
		entries := rec.Entries()
		deleted = entries[idx]
		remaining := make([]models.LedgerEntry, 0, len(entries)-1)
		remaining = append(remaining, entries[:idx]...)
		remaining = append(remaining, entries[idx+1:]...)
		rec.PaymentInstallments = remaining
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Printf("[LEDGER] deleted entry %s (%s) from record %s, paid now %s", deleted.ID, deleted.Amount, rec.ID, rec.PaidAmount)
	publishAsync(s.publisher, PaymentEvent{
		Type:       EventPaymentDeleted,
		RecordID:   rec.ID.String(),
		EntryID:    deleted.ID,
		Amount:     deleted.Amount,
		PaidAmount: rec.PaidAmount,
		OccurredAt: s.now(),
	})
	return &deleted, rec, nil
}

type AssignPlanInput struct {
	PlanID       uuid.UUID
	KeepPayments bool
	StartDate    *time.Time
}

// AssignPlan replaces the record's plan. Without KeepPayments the balance
// starts fresh. A linked record also gets a new live membership.
func (s *LedgerService) AssignPlan(ctx context.Context, recordID uuid.UUID, input AssignPlanInput) (*models.MemberRecord, error) {
	var plan models.Plan
	if err := s.db.WithContext(ctx).First(&plan, "id = ?", input.PlanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}

	start := s.now()
	if input.StartDate != nil && !input.StartDate.IsZero() {
		start = *input.StartDate
	}
	end := start.AddDate(0, 0, plan.DurationDays)

	rec, err := s.mutate(ctx, recordID, func(tx *gorm.DB, rec *models.MemberRecord) error {
		name := plan.Name
		rec.PlanName = &name
		rec.PlanTotalAmount = plan.Price
		rec.MembershipStartDate = &start
		rec.MembershipEndDate = &end
		if !input.KeepPayments {
			rec.PaymentInstallments = datatypes.JSONSlice[models.LedgerEntry]{}
		}
		if rec.UserID != nil {
			if _, err := startMembership(tx, *rec.UserID, plan, start); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[LEDGER] assigned plan %q to record %s (keepPayments=%v)", plan.Name, rec.ID, input.KeepPayments)
	publishAsync(s.publisher, PaymentEvent{
		Type:       EventPlanAssigned,
		RecordID:   rec.ID.String(),
		Amount:     plan.Price,
		PaidAmount: rec.PaidAmount,
		OccurredAt: s.now(),
	})
	return rec, nil
}

// CancelPlan blocks the current membership. With resetPayments the plan
// and financial fields of the record are cleared as well.
func (s *LedgerService) CancelPlan(ctx context.Context, recordID uuid.UUID, resetPayments bool) (*models.MemberRecord, error) {
	var cancelled *models.Membership
	now := s.now()

	rec, err := s.mutate(ctx, recordID, func(tx *gorm.DB, rec *models.MemberRecord) error {
		cancelled = nil
		if rec.UserID != nil {
			m, err := currentMembership(tx, *rec.UserID)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.Membership{}).Where("id = ?", m.ID).
				Update("status", models.MembershipBlocked).Error; err != nil {
				return fmt.Errorf("block membership: %w", err)
			}
			cancelled = m
		} else if rec.PlanName == nil || (rec.MembershipEndDate != nil && !rec.MembershipEndDate.After(now)) {
			return ErrNoActiveMembership
		}

		if resetPayments {
			rec.PlanName = nil
			rec.PlanTotalAmount = decimal.Zero
			rec.MembershipStartDate = nil
			rec.MembershipEndDate = nil
			rec.PaymentInstallments = datatypes.JSONSlice[models.LedgerEntry]{}
		} else {
			rec.MembershipEndDate = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cancelled != nil {
		// In-app notification is best-effort.
		n := models.Notification{
			UserID:  cancelled.UserID,
			Type:    "plan_cancelled",
			Title:   "Membership cancelled",
			Message: fmt.Sprintf("Your %s membership has been cancelled.", cancelled.PlanName),
		}
		if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
			log.Printf("[LEDGER] notification for user %s failed: %v", cancelled.UserID, err)
		}
	}

	log.Printf("[LEDGER] cancelled plan on record %s (resetPayments=%v)", rec.ID, resetPayments)
	publishAsync(s.publisher, PaymentEvent{
		Type:       EventPlanCancelled,
		RecordID:   rec.ID.String(),
		PaidAmount: rec.PaidAmount,
		OccurredAt: now,
	})
	return rec, nil
}
