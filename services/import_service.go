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

const maxImportErrors = 5

// ImportRow is one member line from a bulk upload.
type ImportRow struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	PlanName        string          `json:"planName"`
	PlanTotalAmount decimal.Decimal `json:"planTotalAmount"`
	PaidAmount      decimal.Decimal `json:"paidAmount"`
	PaymentMode     string          `json:"paymentMode"`
	StartDate       *time.Time      `json:"membershipStartDate"`
	EndDate         *time.Time      `json:"membershipEndDate"`
	Notes           string          `json:"notes"`

	// ParseError is set by file readers when a cell could not be decoded.
	ParseError string `json:"-"`
}

type ImportReport struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

func (r *ImportReport) skip(line int, err error) {
	r.Skipped++
	if len(r.Errors) < maxImportErrors {
		r.Errors = append(r.Errors, fmt.Sprintf("row %d: %v", line, err))
	}
}

type ImportService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewImportService(db *gorm.DB) *ImportService {
	return &ImportService{db: db, now: time.Now}
}

// Import upserts rows by email, then phone. Every row is its own
// transaction; a bad row is counted and skipped.
func (s *ImportService) Import(ctx context.Context, rows []ImportRow, recordedBy string) *ImportReport {
	report := &ImportReport{Errors: []string{}}
	for i, row := range rows {
		line := i + 1
		if err := s.importRow(ctx, row, recordedBy); err != nil {
			report.skip(line, err)
			continue
		}
		report.Imported++
	}
	log.Printf("[IMPORT] imported=%d skipped=%d", report.Imported, report.Skipped)
	return report
}

type normalizedRow struct {
	name     string
	email    *string
	phone    *string
	planName *string
	total    decimal.Decimal
	paid     decimal.Decimal
	mode     models.PaymentMode
	start    *time.Time
	end      *time.Time
	notes    *string
}

func (s *ImportService) normalize(tx *gorm.DB, row ImportRow) (*normalizedRow, error) {
	n := &normalizedRow{name: strings.TrimSpace(row.Name)}
	if n.name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	var err error
	if n.email, n.phone, err = normalizeContact(row.Email, row.Phone); err != nil {
		return nil, err
	}
	if row.PlanTotalAmount.IsNegative() || row.PaidAmount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	n.total = row.PlanTotalAmount.Round(2)
	n.paid = row.PaidAmount.Round(2)

	mode, ok := models.ParsePaymentMode(row.PaymentMode)
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment mode %q", ErrInvalidInput, row.PaymentMode)
	}
	n.mode = mode

	n.start, n.end = row.StartDate, row.EndDate
	if plan := strings.TrimSpace(row.PlanName); plan != "" {
		n.planName = &plan
		// A known plan fills in price and end date the way AssignPlan would.
		var known models.Plan
		err := tx.Where("LOWER(name) = ?", strings.ToLower(plan)).First(&known).Error
		switch {
		case err == nil:
			if n.total.IsZero() {
				n.total = known.Price
			}
			if n.start != nil && n.end == nil {
				end := n.start.AddDate(0, 0, known.DurationDays)
				n.end = &end
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("lookup plan: %w", err)
		}
	}
	if n.start != nil && n.end != nil && n.end.Before(*n.start) {
		return nil, fmt.Errorf("%w: membership ends before it starts", ErrInvalidInput)
	}
	if notes := strings.TrimSpace(row.Notes); notes != "" {
		n.notes = &notes
	}
	return n, nil
}

func findByContact(tx *gorm.DB, email, phone *string) (*models.MemberRecord, error) {
	var byEmail, byPhone []models.MemberRecord
	if email != nil {
		if err := tx.Where("email = ?", *email).Limit(1).Find(&byEmail).Error; err != nil {
			return nil, fmt.Errorf("lookup by email: %w", err)
		}
	}
	if phone != nil {
		if err := tx.Where("phone = ?", *phone).Limit(1).Find(&byPhone).Error; err != nil {
			return nil, fmt.Errorf("lookup by phone: %w", err)
		}
	}
	switch {
	case len(byEmail) > 0 && len(byPhone) > 0 && byEmail[0].ID != byPhone[0].ID:
		return nil, ErrDuplicatePhone
	case len(byEmail) > 0:
		return &byEmail[0], nil
	case len(byPhone) > 0:
		return &byPhone[0], nil
	}
	return nil, nil
}

func (s *ImportService) openingEntry(amount decimal.Decimal, mode models.PaymentMode, note, recordedBy string) models.LedgerEntry {
	entry := models.LedgerEntry{
		ID:          uuid.NewString(),
		Amount:      amount,
		PaymentMode: mode,
		Notes:       note,
		PaidAt:      s.now(),
	}
	if recordedBy != "" {
		by := recordedBy
		entry.RecordedBy = &by
	}
	return entry
}

func (s *ImportService) importRow(ctx context.Context, row ImportRow, recordedBy string) error {
	if row.ParseError != "" {
		return fmt.Errorf("%w: %s", ErrInvalidInput, row.ParseError)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.normalize(tx, row)
		if err != nil {
			return err
		}
		existing, err := findByContact(tx, n.email, n.phone)
		if err != nil {
			return err
		}

		if existing == nil {
			rec := models.MemberRecord{
				Name:                n.name,
				Email:               n.email,
				Phone:               n.phone,
				PlanName:            n.planName,
				PlanTotalAmount:     n.total,
				MembershipStartDate: n.start,
				MembershipEndDate:   n.end,
				Notes:               n.notes,
				PaymentInstallments: datatypes.JSONSlice[models.LedgerEntry]{},
			}
			if n.paid.IsPositive() {
				rec.PaymentInstallments = append(rec.PaymentInstallments,
					s.openingEntry(n.paid, n.mode, "Imported opening balance", recordedBy))
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("create member record: %w", err)
			}
			return nil
		}

		prev := existing.Version
		existing.Name = n.name
		if n.email != nil {
			existing.Email = n.email
		}
		if n.phone != nil {
			existing.Phone = n.phone
		}
		if err := checkUnique(tx, existing.Email, existing.Phone, existing.ID); err != nil {
			return err
		}
		if n.planName != nil {
			existing.PlanName = n.planName
		}
		if !n.total.IsZero() {
			existing.PlanTotalAmount = n.total
		}
		if n.start != nil {
			existing.MembershipStartDate = n.start
		}
		if n.end != nil {
			existing.MembershipEndDate = n.end
		}
		if n.notes != nil {
			existing.Notes = n.notes
		}
		// The paid column only grows through an adjustment entry; a lower
		// figure in the sheet never removes recorded payments.
		if delta := n.paid.Sub(existing.EntryTotal()); delta.IsPositive() {
			existing.PaymentInstallments = append(existing.Entries(),
				s.openingEntry(delta, n.mode, "Imported balance adjustment", recordedBy))
		}
		return saveRecord(tx, existing, prev)
	})
}
