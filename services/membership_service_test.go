package services

import (
	"context"
	"testing"
	"time"

	"fitsense-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndListPlans(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db, nil, nil, nil)

	_, err := svc.CreatePlan(context.Background(), CreatePlanInput{Name: "Annual", Price: dec("9000"), DurationDays: 365})
	require.NoError(t, err)
	_, err = svc.CreatePlan(context.Background(), CreatePlanInput{Name: "Monthly", Price: dec("900"), DurationDays: 30})
	require.NoError(t, err)
	_, err = svc.CreatePlan(context.Background(), CreatePlanInput{Name: "Broken", Price: dec("-1"), DurationDays: 30})
	assert.ErrorIs(t, err, ErrInvalidInput)

	plans, err := svc.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Monthly", plans[0].Name)
}

func TestAssignMembershipBlocksPrevious(t *testing.T) {
	db := newTestDB(t)
	svc := NewMembershipService(db, NewReconciler(db), nil, nil)
	monthly := createPlan(t, db, "Monthly", "900", 30)
	annual := createPlan(t, db, "Annual", "9000", 365)
	user := createMemberAccount(t, db, "swap@example.com", "Swap", nil)

	_, err := svc.AssignMembership(context.Background(), user.ID, monthly.ID, nil)
	require.NoError(t, err)
	current, err := svc.AssignMembership(context.Background(), user.ID, annual.ID, nil)
	require.NoError(t, err)

	var rows []models.Membership
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, m := range rows {
		if m.ID == current.ID {
			assert.Equal(t, models.MembershipActive, m.Status)
		} else {
			assert.Equal(t, models.MembershipBlocked, m.Status)
		}
	}

	var rec models.MemberRecord
	require.NoError(t, db.First(&rec, "user_id = ?", user.ID).Error)
	assert.Equal(t, "Annual", *rec.PlanName)
	assert.True(t, dec("9000").Equal(rec.PlanTotalAmount))

	_, err = svc.AssignMembership(context.Background(), user.ID, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, err = svc.AssignMembership(context.Background(), uuid.New(), annual.ID, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

type expiryRecorder struct {
	recordingNotifier
	expired chan uuid.UUID
}

func (e *expiryRecorder) SendExpiry(_ context.Context, _ models.User, m models.Membership) error {
	e.expired <- m.ID
	return nil
}

func TestExpireMemberships(t *testing.T) {
	db := newTestDB(t)
	notifier := &expiryRecorder{expired: make(chan uuid.UUID, 4)}
	svc := NewMembershipService(db, nil, notifier, nil)
	plan := createPlan(t, db, "Weekly", "200", 7)
	user := createMemberAccount(t, db, "old@example.com", "Old", nil)

	past := time.Now().AddDate(0, 0, -30)
	old, err := svc.AssignMembership(context.Background(), user.ID, plan.ID, &past)
	require.NoError(t, err)

	n, err := svc.ExpireMemberships(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case id := <-notifier.expired:
		assert.Equal(t, old.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry notice was not sent")
	}

	var stored models.Membership
	require.NoError(t, db.First(&stored, "id = ?", old.ID).Error)
	assert.Equal(t, models.MembershipExpired, stored.Status)

	n, err = svc.ExpireMemberships(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	db := newTestDB(t)
	reconciler := NewReconciler(db)
	s := NewScheduler(reconciler, NewMembershipService(db, reconciler, nil, nil))

	assert.Error(t, s.Start("not a cron spec", "0 9 * * *"))

	s = NewScheduler(reconciler, NewMembershipService(db, reconciler, nil, nil))
	require.NoError(t, s.Start("30 2 * * *", "0 9 * * *"))
	<-s.Stop().Done()

	// the jobs themselves run synchronously when called directly
	s.RunReconciliation()
	s.RunExpiry()
}
