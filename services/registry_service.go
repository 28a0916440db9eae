package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fitsense-backend/models"
	"fitsense-backend/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RegistryService owns plain CRUD on member records. Financial fields are
// only changed through LedgerService.
type RegistryService struct {
	db *gorm.DB
}

func NewRegistryService(db *gorm.DB) *RegistryService {
	return &RegistryService{db: db}
}

type CreateMemberInput struct {
	Name                string     `json:"name" binding:"required"`
	Email               string     `json:"email"`
	Phone               string     `json:"phone"`
	Notes               string     `json:"notes"`
	MembershipStartDate *time.Time `json:"membershipStartDate"`
	MembershipEndDate   *time.Time `json:"membershipEndDate"`
}

type UpdateMemberInput struct {
	Name                *string    `json:"name"`
	Email               *string    `json:"email"`
	Phone               *string    `json:"phone"`
	Notes               *string    `json:"notes"`
	MembershipStartDate *time.Time `json:"membershipStartDate"`
	MembershipEndDate   *time.Time `json:"membershipEndDate"`
}

type ListMembersFilter struct {
	Search   string
	SignedUp *bool
	Limit    int
	Offset   int
}

func loadRecord(tx *gorm.DB, id uuid.UUID) (*models.MemberRecord, error) {
	var rec models.MemberRecord
	if err := tx.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load member record: %w", err)
	}
	return &rec, nil
}

func recordColumns(rec *models.MemberRecord) map[string]interface{} {
	return map[string]interface{}{
		"user_id":               rec.UserID,
		"name":                  rec.Name,
		"email":                 rec.Email,
		"phone":                 rec.Phone,
		"plan_name":             rec.PlanName,
		"plan_total_amount":     rec.PlanTotalAmount,
		"paid_amount":           rec.PaidAmount,
		"remaining_amount":      rec.RemainingAmount,
		"payment_installments":  datatypes.JSONSlice[models.LedgerEntry](rec.Entries()),
		"membership_start_date": rec.MembershipStartDate,
		"membership_end_date":   rec.MembershipEndDate,
		"notes":                 rec.Notes,
		"is_signed_up":          rec.IsSignedUp,
		"version":               rec.Version,
		"updated_at":            rec.UpdatedAt,
	}
}

// saveRecord writes rec only if nobody else bumped the version since it
// was read as prevVersion.
func saveRecord(tx *gorm.DB, rec *models.MemberRecord, prevVersion int) error {
	rec.Recompute()
	rec.Version = prevVersion + 1
	rec.UpdatedAt = time.Now()

	res := tx.Model(&models.MemberRecord{}).
		Where("id = ? AND version = ?", rec.ID, prevVersion).
		Updates(recordColumns(rec))
	if res.Error != nil {
		return fmt.Errorf("save member record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		rec.Version = prevVersion
		return ErrConcurrentModification
	}
	return nil
}

// checkUnique rejects an email or phone already held by another record.
func checkUnique(tx *gorm.DB, email, phone *string, exclude uuid.UUID) error {
	if email != nil {
		var count int64
		if err := tx.Model(&models.MemberRecord{}).
			Where("email = ? AND id <> ?", *email, exclude).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return ErrDuplicateEmail
		}
	}
	if phone != nil {
		var count int64
		if err := tx.Model(&models.MemberRecord{}).
			Where("phone = ? AND id <> ?", *phone, exclude).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check phone: %w", err)
		}
		if count > 0 {
			return ErrDuplicatePhone
		}
	}
	return nil
}

func normalizeContact(email, phone string) (*string, *string, error) {
	e := utils.NormalizeEmail(email)
	if e != nil && !utils.ValidateEmail(*e) {
		return nil, nil, fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	p := utils.NormalizePhone(phone)
	if p != nil && !utils.ValidatePhone(*p) {
		return nil, nil, fmt.Errorf("%w: invalid phone number format", ErrInvalidInput)
	}
	return e, p, nil
}

// Create registers a walk-in member with no live account.
func (s *RegistryService) Create(ctx context.Context, input CreateMemberInput) (*models.MemberRecord, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email, phone, err := normalizeContact(input.Email, input.Phone)
	if err != nil {
		return nil, err
	}

	rec := models.MemberRecord{
		Name:                name,
		Email:               email,
		Phone:               phone,
		MembershipStartDate: input.MembershipStartDate,
		MembershipEndDate:   input.MembershipEndDate,
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		rec.Notes = &notes
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, email, phone, uuid.Nil); err != nil {
			return err
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("create member record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RegistryService) Get(ctx context.Context, id uuid.UUID) (*models.MemberRecord, error) {
	return loadRecord(s.db.WithContext(ctx), id)
}

// GetByUser returns the record linked to a live account.
func (s *RegistryService) GetByUser(ctx context.Context, userID uuid.UUID) (*models.MemberRecord, error) {
	var rec models.MemberRecord
	if err := s.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load member record: %w", err)
	}
	return &rec, nil
}

func (s *RegistryService) List(ctx context.Context, filter ListMembersFilter) ([]models.MemberRecord, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.MemberRecord{})
	if q := strings.TrimSpace(filter.Search); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR email LIKE ? OR phone LIKE ?", like, like, like)
	}
	if filter.SignedUp != nil {
		query = query.Where("is_signed_up = ?", *filter.SignedUp)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count member records: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var records []models.MemberRecord
	if err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("list member records: %w", err)
	}
	return records, total, nil
}

// Update edits identity and note fields. Email and phone collisions are
// rejected here; only reconciliation resolves them automatically.
func (s *RegistryService) Update(ctx context.Context, id uuid.UUID, input UpdateMemberInput) (*models.MemberRecord, error) {
	var out *models.MemberRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := loadRecord(tx, id)
		if err != nil {
			return err
		}
		prev := rec.Version

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
			}
			rec.Name = name
		}
		var email, phone *string
		if input.Email != nil || input.Phone != nil {
			var rawEmail, rawPhone string
			if input.Email != nil {
				rawEmail = *input.Email
			}
			if input.Phone != nil {
				rawPhone = *input.Phone
			}
			email, phone, err = normalizeContact(rawEmail, rawPhone)
			if err != nil {
				return err
			}
		}
		if input.Email != nil {
			rec.Email = email
		}
		if input.Phone != nil {
			rec.Phone = phone
		}
		if err := checkUnique(tx, email, phone, rec.ID); err != nil {
			return err
		}
		if input.Notes != nil {
			notes := strings.TrimSpace(*input.Notes)
			rec.Notes = &notes
		}
		if input.MembershipStartDate != nil {
			rec.MembershipStartDate = input.MembershipStartDate
		}
		if input.MembershipEndDate != nil {
			rec.MembershipEndDate = input.MembershipEndDate
		}

		if err := saveRecord(tx, rec, prev); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete hard-deletes a record that was never linked to a live account.
func (s *RegistryService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := loadRecord(tx, id)
		if err != nil {
			return err
		}
		if rec.IsLinked() {
			return ErrLinkedRecord
		}
		res := tx.Where("id = ? AND is_signed_up = ? AND user_id IS NULL", id, false).
			Delete(&models.MemberRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete member record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrLinkedRecord
		}
		return nil
	})
}
