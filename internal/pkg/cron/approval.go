package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PendingReminder re-notifies approvers of requests left pending too long.
type PendingReminder interface {
	RemindPending(ctx context.Context, olderThan time.Duration) (int, error)
}

type ApprovalJobs struct {
	reminder  PendingReminder
	olderThan time.Duration
	interval  time.Duration
}

func NewApprovalJobs(reminder PendingReminder, olderThan, interval time.Duration) *ApprovalJobs {
	return &ApprovalJobs{
		reminder:  reminder,
		olderThan: olderThan,
		interval:  interval,
	}
}

func (j *ApprovalJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("remind_pending_approvals", j.interval, j.RemindPendingApprovals)
}

func (j *ApprovalJobs) RemindPendingApprovals(ctx context.Context) error {
	reminded, err := j.reminder.RemindPending(ctx, j.olderThan)
	if err != nil {
		return fmt.Errorf("failed to remind pending approvals: %w", err)
	}
	if reminded > 0 {
		slog.Info("Cron: Reminded approvers of pending requests", "count", reminded, "older_than", j.olderThan)
	}
	return nil
}
