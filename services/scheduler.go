// services/scheduler.go
package services

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron        *cron.Cron
	reconciler  *Reconciler
	memberships *MembershipService
}

func NewScheduler(reconciler *Reconciler, memberships *MembershipService) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		reconciler:  reconciler,
		memberships: memberships,
	}
}

// Start registers the nightly reconciliation and the expiry sweep.
func (s *Scheduler) Start(reconcileSpec, expirySpec string) error {
	if _, err := s.cron.AddFunc(reconcileSpec, s.RunReconciliation); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(expirySpec, s.RunExpiry); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[SCHEDULER] started (reconcile %q, expiry %q)", reconcileSpec, expirySpec)
	return nil
}

func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) RunReconciliation() {
	report, err := s.reconciler.Run(context.Background())
	if err != nil {
		log.Printf("[SCHEDULER] reconciliation aborted: %v", err)
		return
	}
	log.Printf("[SCHEDULER] reconciliation: created=%d updated=%d orphaned=%d failed=%d",
		report.Created, report.Updated, report.Orphaned, report.Failed)
}

func (s *Scheduler) RunExpiry() {
	n, err := s.memberships.ExpireMemberships(context.Background())
	if err != nil {
		log.Printf("[SCHEDULER] expiry sweep failed: %v", err)
		return
	}
	log.Printf("[SCHEDULER] expired %d memberships", n)
}
