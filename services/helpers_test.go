package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"fitsense-backend/config"
	"fitsense-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Use a per-test in-memory database to avoid cross-test interference
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.ConnectDB(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []PaymentEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	receipts []models.LedgerEntry
}

func (n *recordingNotifier) SendReceipt(_ context.Context, _ models.MemberRecord, e models.LedgerEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, e)
	return nil
}

func (n *recordingNotifier) SendExpiry(context.Context, models.User, models.Membership) error {
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.receipts)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string { return &s }

func createPlan(t *testing.T, db *gorm.DB, name, price string, days int) models.Plan {
	t.Helper()
	plan := models.Plan{Name: name, Price: dec(price), DurationDays: days, IsActive: true}
	require.NoError(t, db.Create(&plan).Error)
	return plan
}

func createMemberAccount(t *testing.T, db *gorm.DB, email, name string, phone *string) models.User {
	t.Helper()
	user := models.User{
		Email:    email,
		Name:     name,
		Phone:    phone,
		Password: "secret-password",
		Role:     models.RoleMember,
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createWalkIn(t *testing.T, db *gorm.DB, name string, email, phone *string) models.MemberRecord {
	t.Helper()
	rec := models.MemberRecord{Name: name, Email: email, Phone: phone}
	require.NoError(t, db.Create(&rec).Error)
	return rec
}

func reload(t *testing.T, db *gorm.DB, id uuid.UUID) models.MemberRecord {
	t.Helper()
	var rec models.MemberRecord
	require.NoError(t, db.First(&rec, "id = ?", id).Error)
	return rec
}

// eventually waits for fire-and-forget goroutines.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}
