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
	"gorm.io/gorm"
)

// currentMembership returns the user's non-blocked membership.
func currentMembership(tx *gorm.DB, userID uuid.UUID) (*models.Membership, error) {
	var m models.Membership
	err := tx.Where("user_id = ? AND status <> ?", userID, models.MembershipBlocked).
		Order("start_date DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveMembership
		}
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return &m, nil
}

// startMembership blocks every other non-blocked membership of the user
// and opens a new active one, keeping at most one non-blocked row.
func startMembership(tx *gorm.DB, userID uuid.UUID, plan models.Plan, start time.Time) (*models.Membership, error) {
	if err := tx.Model(&models.Membership{}).
		Where("user_id = ? AND status <> ?", userID, models.MembershipBlocked).
		Update("status", models.MembershipBlocked).Error; err != nil {
		return nil, fmt.Errorf("block previous memberships: %w", err)
	}
	m := models.Membership{
		UserID:    userID,
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Price:     plan.Price,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, plan.DurationDays),
		Status:    models.MembershipActive,
	}
	if err := tx.Create(&m).Error; err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}
	return &m, nil
}

// MembershipService is the account-based side: plans, memberships and
// normalized payments.
type MembershipService struct {
	db         *gorm.DB
	reconciler *Reconciler
	notifier   Notifier
	publisher  EventPublisher
	now        func() time.Time
}

func NewMembershipService(db *gorm.DB, reconciler *Reconciler, notifier Notifier, publisher EventPublisher) *MembershipService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &MembershipService{
		db:         db,
		reconciler: reconciler,
		notifier:   notifier,
		publisher:  publisher,
		now:        time.Now,
	}
}

type CreatePlanInput struct {
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"durationDays" binding:"required,min=1"`
}

func (s *MembershipService) CreatePlan(ctx context.Context, input CreatePlanInput) (*models.Plan, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.Price.IsNegative() || input.DurationDays <= 0 {
		return nil, ErrInvalidInput
	}
	plan := models.Plan{
		Name:         name,
		Description:  input.Description,
		Price:        input.Price.Round(2),
		DurationDays: input.DurationDays,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return &plan, nil
}

func (s *MembershipService) ListPlans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("price ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (s *MembershipService) loadMember(tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, "id = ? AND role = ?", userID, models.RoleMember).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}
	return &user, nil
}

// AssignMembership opens a new live membership for a member account.
func (s *MembershipService) AssignMembership(ctx context.Context, userID, planID uuid.UUID, startDate *time.Time) (*models.Membership, error) {
	start := s.now()
	if startDate != nil && !startDate.IsZero() {
		start = *startDate
	}

	var m *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadMember(tx, userID); err != nil {
			return err
		}
		var plan models.Plan
		if err := tx.First(&plan, "id = ?", planID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlanNotFound
			}
			return fmt.Errorf("load plan: %w", err)
		}
		var err error
		m, err = startMembership(tx, userID, plan, start)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.reconcileLater(ctx, userID)
	return m, nil
}

type LivePaymentInput struct {
	Amount      decimal.Decimal
	PaymentMode string
	Notes       string
	PaidAt      *time.Time
	RecordedBy  *uuid.UUID
}

// RecordPayment inserts a normalized payment against the account's current
// membership, then folds it into the member record.
func (s *MembershipService) RecordPayment(ctx context.Context, userID uuid.UUID, input LivePaymentInput) (*models.Payment, error) {
	amount, err := validateAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	mode, ok := models.ParsePaymentMode(input.PaymentMode)
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment mode %q", ErrInvalidInput, input.PaymentMode)
	}
	paidAt := s.now()
	if input.PaidAt != nil && !input.PaidAt.IsZero() {
		paidAt = *input.PaidAt
	}

	var payment models.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadMember(tx, userID); err != nil {
			return err
		}
		m, err := currentMembership(tx, userID)
		if err != nil {
			return err
		}
		payment = models.Payment{
			UserID:       userID,
			MembershipID: m.ID,
			Amount:       amount,
			Mode:         mode,
			Notes:        strings.TrimSpace(input.Notes),
			PaidAt:       paidAt,
			RecordedBy:   input.RecordedBy,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[LEDGER] live payment %s of %s for user %s", payment.ID, amount, userID)
	publishAsync(s.publisher, PaymentEvent{
		Type:       EventLivePayment,
		UserID:     userID.String(),
		EntryID:    payment.ID.String(),
		Amount:     amount,
		OccurredAt: s.now(),
	})
	s.reconcileLater(ctx, userID)
	return &payment, nil
}

// reconcileLater folds the account into the registry right away. A failure
// is left for the next full sweep.
func (s *MembershipService) reconcileLater(ctx context.Context, userID uuid.UUID) {
	if s.reconciler == nil {
		return
	}
	if _, err := s.reconciler.ReconcileAccount(ctx, userID); err != nil {
		log.Printf("[RECONCILE] incremental reconcile of user %s failed: %v", userID, err)
	}
}

func (s *MembershipService) ListPayments(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("paid_at DESC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// ExpireMemberships marks active memberships past their end date expired
// and sends the expiry message. It returns how many were expired.
func (s *MembershipService) ExpireMemberships(ctx context.Context) (int, error) {
	now := s.now()
	var due []models.Membership
	if err := s.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", models.MembershipActive, now).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("find expired memberships: %w", err)
	}

	expired := 0
	for _, m := range due {
		res := s.db.WithContext(ctx).Model(&models.Membership{}).
			Where("id = ? AND status = ?", m.ID, models.MembershipActive).
			Update("status", models.MembershipExpired)
		if res.Error != nil {
			log.Printf("[SCHEDULER] expire membership %s failed: %v", m.ID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		expired++

		var user models.User
		if err := s.db.WithContext(ctx).First(&user, "id = ?", m.UserID).Error; err != nil {
			log.Printf("[SCHEDULER] load user %s for expiry message: %v", m.UserID, err)
			continue
		}
		membership := m
		notifyAsync("expiry for "+user.ID.String(), func(ctx context.Context) error {
			return s.notifier.SendExpiry(ctx, user, membership)
		})
	}
	return expired, nil
}
