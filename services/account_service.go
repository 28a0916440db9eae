package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fitsense-backend/models"
	"fitsense-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountService struct {
	db *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db}
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register creates a member account and links it to the registry: an
// existing walk-in record with the same email (or, failing that, an
// unlinked record with the same phone) is adopted, otherwise a new record
// is created. A phone already held by another account is rejected.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*models.User, *models.MemberRecord, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == nil || !utils.ValidateEmail(*email) {
		return nil, nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	phone := utils.NormalizePhone(input.Phone)
	if phone != nil && !utils.ValidatePhone(*phone) {
		return nil, nil, fmt.Errorf("%w: invalid phone number format", ErrInvalidInput)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	var user models.User
	var record models.MemberRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", *email).Count(&count).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return ErrDuplicateEmail
		}
		if phone != nil {
			if err := tx.Model(&models.User{}).Where("phone = ?", *phone).Count(&count).Error; err != nil {
				return fmt.Errorf("check phone: %w", err)
			}
			if count > 0 {
				return ErrDuplicatePhone
			}
		}

		user = models.User{
			Email:    *email,
			Phone:    phone,
			Name:     name,
			Password: input.Password, // hashed in BeforeCreate
			Role:     models.RoleMember,
			IsActive: true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create account: %w", err)
		}

		existing, err := findUnlinked(tx, email, phone)
		if err != nil {
			return err
		}
		if existing != nil {
			prev := existing.Version
			existing.UserID = &user.ID
			existing.IsSignedUp = true
			if existing.Email == nil {
				existing.Email = email
			}
			if existing.Phone == nil && phone != nil {
				if err := checkUnique(tx, nil, phone, existing.ID); err == nil {
					existing.Phone = phone
				}
			}
			if err := saveRecord(tx, existing, prev); err != nil {
				return err
			}
			record = *existing
			return nil
		}

		record = models.MemberRecord{
			UserID:     &user.ID,
			Name:       name,
			Email:      email,
			IsSignedUp: true,
		}
		// A phone held by another linked record is left for reconciliation.
		if phone != nil {
			if err := checkUnique(tx, nil, phone, uuid.Nil); err == nil {
				record.Phone = phone
			}
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("create member record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[ACCOUNT] registered %s, linked record %s", user.Email, record.ID)
	return &user, &record, nil
}

func findUnlinked(tx *gorm.DB, email, phone *string) (*models.MemberRecord, error) {
	var found []models.MemberRecord
	if email != nil {
		if err := tx.Where("email = ?", *email).Limit(1).Find(&found).Error; err != nil {
			return nil, fmt.Errorf("lookup by email: %w", err)
		}
		if len(found) > 0 {
			if found[0].UserID != nil {
				owner, err := memberAccount(tx, *found[0].UserID)
				if err != nil {
					return nil, err
				}
				if owner != nil {
					return nil, ErrDuplicateEmail
				}
			}
			return &found[0], nil
		}
	}
	if phone != nil {
		if err := tx.Where("phone = ? AND user_id IS NULL", *phone).Limit(1).Find(&found).Error; err != nil {
			return nil, fmt.Errorf("lookup by phone: %w", err)
		}
		if len(found) > 0 {
			return &found[0], nil
		}
	}
	return nil, nil
}

// Authenticate checks an email or phone plus password.
func (s *AccountService) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	var user models.User
	query := s.db.WithContext(ctx).Where("email = ? OR phone = ?", strings.ToLower(identifier), identifier)
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	if !user.IsActive || !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", &now).Error; err != nil {
		log.Printf("[ACCOUNT] update last login for %s: %v", user.ID, err)
	}
	return &user, nil
}

func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	return &user, nil
}

// ListNotifications returns the in-app notifications of a user, newest first.
func (s *AccountService) ListNotifications(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	var out []models.Notification
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *AccountService) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
