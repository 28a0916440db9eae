package services

import (
	"context"
	"testing"
	"time"

	"fitsense-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var revenueNow = time.Date(2026, 5, 14, 15, 0, 0, 0, time.UTC) // a Thursday

type revenueFixture struct {
	walkIn   models.MemberRecord
	overpaid models.MemberRecord
	linked   models.MemberRecord
}

func entry(amount string, mode models.PaymentMode, at time.Time) models.LedgerEntry {
	return models.LedgerEntry{ID: uuid.NewString(), Amount: dec(amount), PaymentMode: mode, PaidAt: at}
}

func seedRevenue(t *testing.T, db *gorm.DB) revenueFixture {
	t.Helper()
	var f revenueFixture

	f.walkIn = models.MemberRecord{
		Name:            "Walk-in",
		PlanTotalAmount: dec("1000"),
		PaymentInstallments: datatypes.JSONSlice[models.LedgerEntry]{
			entry("300", models.PaymentCash, time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC)),
			entry("200", models.PaymentUPI, time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)),
		},
	}
	require.NoError(t, db.Create(&f.walkIn).Error)

	f.overpaid = models.MemberRecord{
		Name:            "Overpaid",
		PlanTotalAmount: dec("500"),
		PaymentInstallments: datatypes.JSONSlice[models.LedgerEntry]{
			entry("600", models.PaymentCard, time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC)),
		},
	}
	require.NoError(t, db.Create(&f.overpaid).Error)

	user := createMemberAccount(t, db, "live@example.com", "Live", nil)
	plan := createPlan(t, db, "Monthly", "800", 30)
	m := models.Membership{
		UserID:    user.ID,
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Price:     plan.Price,
		StartDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
		Status:    models.MembershipActive,
	}
	require.NoError(t, db.Create(&m).Error)
	p := models.Payment{
		UserID:       user.ID,
		MembershipID: m.ID,
		Amount:       dec("400"),
		Mode:         models.PaymentCash,
		PaidAt:       time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&p).Error)

	f.linked = models.MemberRecord{Name: "Live", UserID: &user.ID, IsSignedUp: true}
	require.NoError(t, db.Create(&f.linked).Error)
	return f
}

func newRevenue(db *gorm.DB) *RevenueService {
	s := NewRevenueService(db, 0)
	s.now = func() time.Time { return revenueNow }
	return s
}

func TestRevenueSummary(t *testing.T) {
	db := newTestDB(t)
	seedRevenue(t, db)

	summary, err := newRevenue(db).Summary(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.True(t, dec("1100").Equal(summary.RegistryTotal), summary.RegistryTotal.String())
	assert.True(t, dec("400").Equal(summary.LiveTotal), summary.LiveTotal.String())
	assert.True(t, dec("1100").Equal(summary.TotalCollected))
	assert.True(t, dec("400").Equal(summary.UnreconciledLiveTotal))
	assert.True(t, dec("500").Equal(summary.PendingTotal))
	assert.Equal(t, 1, summary.OverpaidCount)

	assert.True(t, dec("300").Equal(summary.TodayCollected))
	assert.True(t, dec("900").Equal(summary.ThisWeekCollected))
	assert.True(t, dec("900").Equal(summary.ThisMonthCollected))

	assert.Equal(t, 3, summary.TotalMembers)
	assert.Equal(t, 1, summary.SignedUpMembers)
	assert.Equal(t, 2, summary.WalkInMembers)
	assert.Equal(t, 1, summary.ActiveMemberships)
}

func TestRevenueSummaryInRange(t *testing.T) {
	db := newTestDB(t)
	seedRevenue(t, db)

	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 5, 31, 23, 59, 59, 0, time.UTC)
	summary, err := newRevenue(db).Summary(context.Background(), &from, &to)
	require.NoError(t, err)
	assert.True(t, dec("900").Equal(summary.RegistryTotal), summary.RegistryTotal.String())
	assert.True(t, dec("400").Equal(summary.LiveTotal))
	assert.True(t, dec("900").Equal(summary.TotalCollected))

	from = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	summary, err = newRevenue(db).Summary(context.Background(), &from, nil)
	require.NoError(t, err)
	assert.True(t, summary.RegistryTotal.IsZero())
	assert.True(t, summary.LiveTotal.IsZero())
}

func TestRevenueUnreconciledDropsAfterReconcile(t *testing.T) {
	db := newTestDB(t)
	seedRevenue(t, db)

	_, err := NewReconciler(db).Run(context.Background())
	require.NoError(t, err)

	summary, err := newRevenue(db).Summary(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, summary.UnreconciledLiveTotal.IsZero())
	// the live payment is now in the registry too, so the total is not doubled
	assert.True(t, dec("1500").Equal(summary.RegistryTotal), summary.RegistryTotal.String())
	assert.True(t, dec("1500").Equal(summary.TotalCollected))
}

func TestMemberTotalSource(t *testing.T) {
	db := newTestDB(t)
	f := seedRevenue(t, db)
	svc := newRevenue(db)

	walkIn, err := svc.MemberTotal(context.Background(), f.walkIn.ID)
	require.NoError(t, err)
	assert.Equal(t, "registry", walkIn.Source)
	assert.True(t, dec("500").Equal(walkIn.Amount))

	linked, err := svc.MemberTotal(context.Background(), f.linked.ID)
	require.NoError(t, err)
	assert.Equal(t, "live", linked.Source)
	assert.True(t, dec("400").Equal(linked.Amount))

	_, err = svc.MemberTotal(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestModeBreakdown(t *testing.T) {
	db := newTestDB(t)
	seedRevenue(t, db)

	modes, err := newRevenue(db).ModeBreakdown(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, modes, 3)
	assert.Equal(t, models.PaymentCard, modes[0].Mode)
	assert.Equal(t, models.PaymentCash, modes[1].Mode)
	assert.Equal(t, models.PaymentUPI, modes[2].Mode)
	assert.Equal(t, 1, modes[0].Count)
}

func TestMonthlySeries(t *testing.T) {
	db := newTestDB(t)
	seedRevenue(t, db)

	series, err := newRevenue(db).MonthlySeries(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, "2026-03", series[0].Month)
	assert.Equal(t, "2026-05", series[2].Month)
	assert.True(t, series[0].Amount.IsZero())
	assert.True(t, dec("200").Equal(series[1].Amount))
	assert.True(t, dec("900").Equal(series[2].Amount))
	assert.Equal(t, 100.0, series[1].Growth)
	assert.Equal(t, 350.0, series[2].Growth)
}

func TestRecentPayments(t *testing.T) {
	db := newTestDB(t)
	seedRevenue(t, db)

	recent, err := newRevenue(db).RecentPayments(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Walk-in", recent[0].Name)
	assert.True(t, dec("300").Equal(recent[0].Entry.Amount))
	assert.Equal(t, "Overpaid", recent[1].Name)
}

func TestRecentPaymentsEmpty(t *testing.T) {
	db := newTestDB(t)

	recent, err := newRevenue(db).RecentPayments(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, recent)
	assert.Empty(t, recent)
}

func TestRevenueSummaryCacheHandsOutCopies(t *testing.T) {
	db := newTestDB(t)
	seedRevenue(t, db)
	s := NewRevenueService(db, time.Minute)
	s.now = func() time.Time { return revenueNow }

	first, err := s.Summary(context.Background(), nil, nil)
	require.NoError(t, err)
	first.TotalCollected = dec("1")
	first.TotalMembers = 99

	second, err := s.Summary(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, dec("1100").Equal(second.TotalCollected))
	assert.Equal(t, 3, second.TotalMembers)

	second.PendingTotal = dec("0")
	third, err := s.Summary(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(third.PendingTotal))
}
