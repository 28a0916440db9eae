package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fitsense-backend/models"
	"fitsense-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RevenueSummary combines both stores. TotalCollected is the larger of the
// two independently summed totals, never their sum.
type RevenueSummary struct {
	RegistryTotal         decimal.Decimal `json:"registryTotal"`
	LiveTotal             decimal.Decimal `json:"liveTotal"`
	TotalCollected        decimal.Decimal `json:"totalCollected"`
	UnreconciledLiveTotal decimal.Decimal `json:"unreconciledLiveTotal"`
	PendingTotal          decimal.Decimal `json:"pendingTotal"`
	OverpaidCount         int             `json:"overpaidCount"`

	TodayCollected     decimal.Decimal `json:"todayCollected"`
	ThisWeekCollected  decimal.Decimal `json:"thisWeekCollected"`
	ThisMonthCollected decimal.Decimal `json:"thisMonthCollected"`

	TotalMembers      int `json:"totalMembers"`
	SignedUpMembers   int `json:"signedUpMembers"`
	WalkInMembers     int `json:"walkInMembers"`
	ActiveMemberships int `json:"activeMemberships"`
}

type MemberTotal struct {
	RecordID uuid.UUID       `json:"recordId"`
	Amount   decimal.Decimal `json:"amount"`
	Source   string          `json:"source"` // registry or live
}

type ModeTotal struct {
	Mode   models.PaymentMode `json:"paymentMode"`
	Amount decimal.Decimal    `json:"amount"`
	Count  int                `json:"count"`
}

type MonthTotal struct {
	Month  string          `json:"month"` // yyyy-mm
	Amount decimal.Decimal `json:"amount"`
	Growth float64         `json:"growth"`
}

type RecentPayment struct {
	RecordID uuid.UUID          `json:"recordId"`
	Name     string             `json:"name"`
	Entry    models.LedgerEntry `json:"entry"`
}

type cachedValue struct {
	value   interface{}
	expires time.Time
}

// statsCache keeps statistics for a few seconds. Values are stored by
// value so callers never share a cached result.
type statsCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]cachedValue
}

func (c *statsCache) get(key string, now time.Time) (interface{}, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok || now.After(v.expires) {
		return nil, false
	}
	return v.value, true
}

func (c *statsCache) put(key string, value interface{}, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cachedValue{value: value, expires: now.Add(c.ttl)}
}

type RevenueService struct {
	db    *gorm.DB
	cache *statsCache
	now   func() time.Time
}

// NewRevenueService caches results for cacheTTL; zero disables caching.
func NewRevenueService(db *gorm.DB, cacheTTL time.Duration) *RevenueService {
	return &RevenueService{
		db:    db,
		cache: &statsCache{ttl: cacheTTL, items: map[string]cachedValue{}},
		now:   time.Now,
	}
}

type sumRow struct {
	Total decimal.Decimal
}

func (s *RevenueService) liveSum(ctx context.Context, from, to *time.Time, unreconciledOnly bool) (decimal.Decimal, error) {
	query := s.db.WithContext(ctx).Model(&models.Payment{})
	if from != nil {
		query = query.Where("paid_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("paid_at <= ?", *to)
	}
	if unreconciledOnly {
		query = query.Where("reconciled_at IS NULL")
	}
	var row sumRow
	if err := query.Select("COALESCE(SUM(amount), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, fmt.Errorf("sum live payments: %w", err)
	}
	return row.Total, nil
}

func (s *RevenueService) loadRecords(ctx context.Context) ([]models.MemberRecord, error) {
	var records []models.MemberRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load member records: %w", err)
	}
	return records, nil
}

func rangeKey(prefix string, from, to *time.Time) string {
	key := prefix
	if from != nil {
		key += "|" + from.UTC().Format(time.RFC3339)
	}
	if to != nil {
		key += "|" + to.UTC().Format(time.RFC3339)
	}
	return key
}

// Summary answers "how much has the gym collected", optionally limited to
// payments made in [from, to].
func (s *RevenueService) Summary(ctx context.Context, from, to *time.Time) (*RevenueSummary, error) {
	now := s.now()
	key := rangeKey("summary", from, to)
	if v, ok := s.cache.get(key, now); ok {
		cached := v.(RevenueSummary)
		return &cached, nil
	}

	records, err := s.loadRecords(ctx)
	if err != nil {
		return nil, err
	}

	summary := &RevenueSummary{
		RegistryTotal:      decimal.Zero,
		PendingTotal:       decimal.Zero,
		TodayCollected:     decimal.Zero,
		ThisWeekCollected:  decimal.Zero,
		ThisMonthCollected: decimal.Zero,
	}
	today := utils.BeginningOfDay(now)
	week := utils.BeginningOfWeek(now)
	month := utils.BeginningOfMonth(now)
	ranged := from != nil || to != nil

	for i := range records {
		rec := &records[i]
		summary.TotalMembers++
		if rec.IsSignedUp {
			summary.SignedUpMembers++
		} else {
			summary.WalkInMembers++
		}

		if !ranged {
			summary.RegistryTotal = summary.RegistryTotal.Add(rec.PaidAmount)
		}
		for _, e := range rec.Entries() {
			if ranged && utils.InRange(e.PaidAt, from, to) {
				summary.RegistryTotal = summary.RegistryTotal.Add(e.Amount)
			}
			if !e.PaidAt.Before(today) {
				summary.TodayCollected = summary.TodayCollected.Add(e.Amount)
			}
			if !e.PaidAt.Before(week) {
				summary.ThisWeekCollected = summary.ThisWeekCollected.Add(e.Amount)
			}
			if !e.PaidAt.Before(month) {
				summary.ThisMonthCollected = summary.ThisMonthCollected.Add(e.Amount)
			}
		}

		// Negative remaining means overpaid.
		switch {
		case rec.RemainingAmount.IsPositive():
			summary.PendingTotal = summary.PendingTotal.Add(rec.RemainingAmount)
		case rec.RemainingAmount.IsNegative():
			summary.OverpaidCount++
		}
	}

	if summary.LiveTotal, err = s.liveSum(ctx, from, to, false); err != nil {
		return nil, err
	}
	if summary.UnreconciledLiveTotal, err = s.liveSum(ctx, from, to, true); err != nil {
		return nil, err
	}
	summary.TotalCollected = decimal.Max(summary.RegistryTotal, summary.LiveTotal)

	var active int64
	if err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("status = ?", models.MembershipActive).
		Count(&active).Error; err != nil {
		return nil, fmt.Errorf("count active memberships: %w", err)
	}
	summary.ActiveMemberships = int(active)

	s.cache.put(key, *summary, now)
	return summary, nil
}

// MemberTotal prefers the registry total when it is non-zero and falls back
// to the linked account's live payments.
func (s *RevenueService) MemberTotal(ctx context.Context, recordID uuid.UUID) (*MemberTotal, error) {
	rec, err := loadRecord(s.db.WithContext(ctx), recordID)
	if err != nil {
		return nil, err
	}
	if !rec.PaidAmount.IsZero() || rec.UserID == nil {
		return &MemberTotal{RecordID: rec.ID, Amount: rec.PaidAmount, Source: "registry"}, nil
	}

	var row sumRow
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("user_id = ?", *rec.UserID).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&row).Error; err != nil {
		return nil, fmt.Errorf("sum live payments: %w", err)
	}
	return &MemberTotal{RecordID: rec.ID, Amount: row.Total, Source: "live"}, nil
}

// ModeBreakdown groups registry ledger entries by payment mode.
func (s *RevenueService) ModeBreakdown(ctx context.Context, from, to *time.Time) ([]ModeTotal, error) {
	records, err := s.loadRecords(ctx)
	if err != nil {
		return nil, err
	}
	byMode := map[models.PaymentMode]*ModeTotal{}
	for _, rec := range records {
		for _, e := range rec.Entries() {
			if !utils.InRange(e.PaidAt, from, to) {
				continue
			}
			t, ok := byMode[e.PaymentMode]
			if !ok {
				t = &ModeTotal{Mode: e.PaymentMode, Amount: decimal.Zero}
				byMode[e.PaymentMode] = t
			}
			t.Amount = t.Amount.Add(e.Amount)
			t.Count++
		}
	}

	out := make([]ModeTotal, 0, len(byMode))
	for _, t := range byMode {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	return out, nil
}

// MonthlySeries returns registry ledger totals for the last n months,
// oldest first, with month-over-month growth.
func (s *RevenueService) MonthlySeries(ctx context.Context, months int) ([]MonthTotal, error) {
	if months <= 0 || months > 36 {
		months = 12
	}
	records, err := s.loadRecords(ctx)
	if err != nil {
		return nil, err
	}

	first := utils.BeginningOfMonth(s.now()).AddDate(0, -(months - 1), 0)
	series := make([]MonthTotal, months)
	index := map[string]int{}
	for i := 0; i < months; i++ {
		label := first.AddDate(0, i, 0).Format("2006-01")
		series[i] = MonthTotal{Month: label, Amount: decimal.Zero}
		index[label] = i
	}

	for _, rec := range records {
		for _, e := range rec.Entries() {
			if i, ok := index[e.PaidAt.In(first.Location()).Format("2006-01")]; ok {
				series[i].Amount = series[i].Amount.Add(e.Amount)
			}
		}
	}
	for i := 1; i < len(series); i++ {
		series[i].Growth = growthPercentage(series[i].Amount, series[i-1].Amount)
	}
	return series, nil
}

// RecentPayments lists the latest registry ledger entries across members.
func (s *RevenueService) RecentPayments(ctx context.Context, limit int) ([]RecentPayment, error) {
	if limit <= 0 {
		limit = 10
	}
	records, err := s.loadRecords(ctx)
	if err != nil {
		return nil, err
	}
	recent := []RecentPayment{}
	for _, rec := range records {
		for _, e := range rec.Entries() {
			recent = append(recent, RecentPayment{RecordID: rec.ID, Name: rec.Name, Entry: e})
		}
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].Entry.PaidAt.After(recent[j].Entry.PaidAt) })
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

func growthPercentage(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsZero() {
			return 0
		}
		return 100
	}
	g, _ := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return g
}
