package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fitsense-backend/models"
	"fitsense-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"

	defaultMaxDetails = 50
)

// ReconcileReport summarises one sweep.
type ReconcileReport struct {
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Unchanged int       `json:"unchanged"`
	Orphaned  int       `json:"orphaned"`
	Failed    int       `json:"failed"`
	Details   []string  `json:"sampleDetails"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
}

func (r *ReconcileReport) addDetail(max int, format string, args ...interface{}) {
	if len(r.Details) >= max {
		return
	}
	r.Details = append(r.Details, fmt.Sprintf(format, args...))
}

// Reconciler folds live accounts, memberships and payments into the member
// registry. Accounts are processed one at a time because phone conflict
// resolution has to see the registry as the previous account left it.
type Reconciler struct {
	db         *gorm.DB
	maxDetails int
	now        func() time.Time
}

func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db, maxDetails: defaultMaxDetails, now: time.Now}
}

// Run reconciles every member account and then clears orphaned links.
// Only a failure to list accounts aborts the run.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{StartedAt: r.now(), Details: []string{}}

	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("role = ? AND email <> ''", models.RoleMember).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list member accounts: %w", err)
	}
	log.Printf("[RECONCILE] starting sweep over %d accounts", len(users))

	for _, user := range users {
		outcome, err := r.reconcileUser(ctx, user)
		if err != nil {
			report.Failed++
			report.addDetail(r.maxDetails, "failed %s: %v", user.Email, err)
			log.Printf("[RECONCILE] account %s (%s) failed: %v", user.ID, user.Email, err)
			continue
		}
		switch outcome {
		case OutcomeCreated:
			report.Created++
			report.addDetail(r.maxDetails, "created record for %s", user.Email)
		case OutcomeUpdated:
			report.Updated++
			report.addDetail(r.maxDetails, "updated record for %s", user.Email)
		default:
			report.Unchanged++
		}
	}

	orphaned, err := r.clearOrphans(ctx)
	if err != nil {
		report.addDetail(r.maxDetails, "orphan cleanup failed: %v", err)
		log.Printf("[RECONCILE] orphan cleanup failed: %v", err)
	}
	report.Orphaned = orphaned

	report.Duration = time.Since(report.StartedAt).String()
	log.Printf("[RECONCILE] done: created=%d updated=%d unchanged=%d orphaned=%d failed=%d",
		report.Created, report.Updated, report.Unchanged, report.Orphaned, report.Failed)
	return report, nil
}

// ReconcileAccount reconciles a single account. Accounts that are not
// members or have no email are skipped.
func (r *Reconciler) ReconcileAccount(ctx context.Context, userID uuid.UUID) (string, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("load account: %w", err)
	}
	if user.Role != models.RoleMember || user.Email == "" {
		return OutcomeSkipped, nil
	}
	return r.reconcileUser(ctx, user)
}

func (r *Reconciler) reconcileUser(ctx context.Context, user models.User) (string, error) {
	var outcome string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, err = r.reconcileInTx(tx, user)
		return err
	})
	return outcome, err
}

// liveState is what the live side says about one account.
type liveState struct {
	membership *models.Membership
	payments   []models.Payment
	entries    []models.LedgerEntry
	paid       decimal.Decimal
}

func loadLiveState(tx *gorm.DB, userID uuid.UUID) (*liveState, error) {
	state := &liveState{paid: decimal.Zero, entries: []models.LedgerEntry{}}

	m, err := currentMembership(tx, userID)
	if err != nil && !errors.Is(err, ErrNoActiveMembership) {
		return nil, err
	}
	if m == nil {
		return state, nil
	}
	state.membership = m

	if err := tx.Where("membership_id = ?", m.ID).
		Order("paid_at ASC, created_at ASC").
		Find(&state.payments).Error; err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	for _, p := range state.payments {
		entry := models.LedgerEntry{
			ID:          p.ID.String(),
			Amount:      p.Amount,
			PaymentMode: p.Mode,
			Notes:       p.Notes,
			PaidAt:      p.PaidAt,
		}
		if p.RecordedBy != nil {
			by := p.RecordedBy.String()
			entry.RecordedBy = &by
		}
		state.entries = append(state.entries, entry)
		state.paid = state.paid.Add(p.Amount)
	}
	return state, nil
}

// memberAccount returns the live member account with id, or nil when the
// account is gone or no longer a member.
func memberAccount(tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	var users []models.User
	if err := tx.Where("id = ? AND role = ?", id, models.RoleMember).Limit(1).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("lookup linked account: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func findMatch(tx *gorm.DB, user models.User, email *string) (*models.MemberRecord, error) {
	var byUser, byEmail []models.MemberRecord
	if err := tx.Where("user_id = ?", user.ID).Limit(1).Find(&byUser).Error; err != nil {
		return nil, fmt.Errorf("lookup by user: %w", err)
	}
	if email != nil {
		if err := tx.Where("email = ?", *email).Limit(1).Find(&byEmail).Error; err != nil {
			return nil, fmt.Errorf("lookup by email: %w", err)
		}
	}

	switch {
	case len(byUser) > 0 && len(byEmail) > 0 && byUser[0].ID != byEmail[0].ID:
		return nil, fmt.Errorf("%w: records %s and %s", ErrIdentityConflict, byUser[0].ID, byEmail[0].ID)
	case len(byUser) > 0:
		return &byUser[0], nil
	case len(byEmail) > 0:
		rec := &byEmail[0]
		if rec.UserID != nil && *rec.UserID != user.ID {
			owner, err := memberAccount(tx, *rec.UserID)
			if err != nil {
				return nil, err
			}
			if owner != nil {
				return nil, fmt.Errorf("%w: record %s is linked to another account", ErrIdentityConflict, rec.ID)
			}
			log.Printf("[RECONCILE] record %s was linked to missing account %s, adopting", rec.ID, *rec.UserID)
		}
		return rec, nil
	}
	return nil, nil
}

// releasePhone clears phone on every record other than keep. The account
// being reconciled wins a phone it currently holds, unless the other record
// belongs to a live member account with the same phone.
func releasePhone(tx *gorm.DB, phone string, keep, userID uuid.UUID) error {
	var holders []models.MemberRecord
	if err := tx.Where("phone = ? AND id <> ?", phone, keep).Find(&holders).Error; err != nil {
		return fmt.Errorf("lookup phone holders: %w", err)
	}
	for i := range holders {
		holder := &holders[i]
		if holder.UserID != nil && *holder.UserID != userID {
			owner, err := memberAccount(tx, *holder.UserID)
			if err != nil {
				return err
			}
			if owner != nil && owner.Phone != nil && equalStringPtr(utils.NormalizePhone(*owner.Phone), &phone) {
				return fmt.Errorf("%w: phone %s belongs to account %s", ErrDuplicatePhone, phone, owner.ID)
			}
		}
		prev := holder.Version
		holder.Phone = nil
		if err := saveRecord(tx, holder, prev); err != nil {
			return fmt.Errorf("release phone from %s: %w", holder.ID, err)
		}
		log.Printf("[RECONCILE] phone %s moved away from record %s (%s)", phone, holder.ID, holder.Name)
	}
	return nil
}

func (r *Reconciler) reconcileInTx(tx *gorm.DB, user models.User) (string, error) {
	live, err := loadLiveState(tx, user.ID)
	if err != nil {
		return "", err
	}

	email := utils.NormalizeEmail(user.Email)
	var phone *string
	if user.Phone != nil {
		phone = utils.NormalizePhone(*user.Phone)
	}

	rec, err := findMatch(tx, user, email)
	if err != nil {
		return "", err
	}

	if phone != nil {
		keep := uuid.Nil
		if rec != nil {
			keep = rec.ID
		}
		if err := releasePhone(tx, *phone, keep, user.ID); err != nil {
			return "", err
		}
	}

	outcome := OutcomeUnchanged
	if rec == nil {
		rec = &models.MemberRecord{
			UserID:              &user.ID,
			Name:                user.Name,
			Email:               email,
			Phone:               phone,
			PaymentInstallments: datatypes.JSONSlice[models.LedgerEntry](live.entries),
			IsSignedUp:          true,
		}
		if live.membership != nil {
			name := live.membership.PlanName
			start, end := live.membership.StartDate, live.membership.EndDate
			rec.PlanName = &name
			rec.PlanTotalAmount = live.membership.Price
			rec.MembershipStartDate = &start
			rec.MembershipEndDate = &end
		}
		if err := tx.Create(rec).Error; err != nil {
			return "", fmt.Errorf("create member record: %w", err)
		}
		outcome = OutcomeCreated
	} else {
		prev := rec.Version
		if applyLiveState(rec, user, email, phone, live) {
			if err := saveRecord(tx, rec, prev); err != nil {
				return "", err
			}
			outcome = OutcomeUpdated
		}
	}

	if len(live.payments) > 0 {
		ids := make([]uuid.UUID, 0, len(live.payments))
		for _, p := range live.payments {
			ids = append(ids, p.ID)
		}
		if err := tx.Model(&models.Payment{}).
			Where("id IN ? AND reconciled_at IS NULL", ids).
			Update("reconciled_at", r.now()).Error; err != nil {
			return "", fmt.Errorf("mark payments reconciled: %w", err)
		}
	}
	return outcome, nil
}

// applyLiveState copies live values onto rec and reports whether anything
// changed. Plan data only overwrites the record when the live side has some.
func applyLiveState(rec *models.MemberRecord, user models.User, email, phone *string, live *liveState) bool {
	changed := false

	if rec.UserID == nil || *rec.UserID != user.ID {
		id := user.ID
		rec.UserID = &id
		changed = true
	}
	if rec.Name != user.Name && user.Name != "" {
		rec.Name = user.Name
		changed = true
	}
	if !equalStringPtr(rec.Email, email) {
		rec.Email = email
		changed = true
	}
	if phone != nil && !equalStringPtr(rec.Phone, phone) {
		rec.Phone = phone
		changed = true
	}
	if !rec.IsSignedUp {
		rec.IsSignedUp = true
		changed = true
	}

	if m := live.membership; m != nil {
		if !equalStringPtr(rec.PlanName, &m.PlanName) {
			name := m.PlanName
			rec.PlanName = &name
			changed = true
		}
		if m.Price.IsPositive() && !rec.PlanTotalAmount.Equal(m.Price) {
			rec.PlanTotalAmount = m.Price
			changed = true
		}
		if !equalTimePtr(rec.MembershipStartDate, &m.StartDate) {
			start := m.StartDate
			rec.MembershipStartDate = &start
			changed = true
		}
		if !equalTimePtr(rec.MembershipEndDate, &m.EndDate) {
			end := m.EndDate
			rec.MembershipEndDate = &end
			changed = true
		}
	}

	if foldPayments(rec, live) {
		changed = true
	}
	return changed
}

// foldPayments appends live payments that have not been folded yet and are
// not already in the ledger. Existing entries are never removed, so entries
// recorded directly against the record survive and a payment deleted from
// the ledger after folding stays deleted.
func foldPayments(rec *models.MemberRecord, live *liveState) bool {
	seen := make(map[string]bool, len(rec.PaymentInstallments))
	for _, e := range rec.PaymentInstallments {
		seen[e.ID] = true
	}
	entries := append([]models.LedgerEntry{}, rec.Entries()...)
	added := false
	for i, p := range live.payments {
		if p.ReconciledAt != nil || seen[live.entries[i].ID] {
			continue
		}
		entries = append(entries, live.entries[i])
		added = true
	}
	if added {
		rec.PaymentInstallments = entries
	}
	return added
}

// clearOrphans unlinks every record whose account is gone or is no longer
// a member, in one statement.
func (r *Reconciler) clearOrphans(ctx context.Context) (int, error) {
	db := r.db.WithContext(ctx)
	members := db.Model(&models.User{}).Select("id").Where("role = ?", models.RoleMember)

	res := db.Model(&models.MemberRecord{}).
		Where("(user_id IS NOT NULL AND user_id NOT IN (?)) OR (user_id IS NULL AND is_signed_up = ?)", members, true).
		Updates(map[string]interface{}{
			"user_id":      nil,
			"is_signed_up": false,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   r.now(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("clear orphaned records: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
