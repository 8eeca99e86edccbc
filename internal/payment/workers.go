package payment

import (
	"context"

	"github.com/riverqueue/river"
)

// ReminderArgs is the periodic job that sends payment reminders.
type ReminderArgs struct{}

func (ReminderArgs) Kind() string { return "payment_reminders" }

type ReminderWorker struct {
	river.WorkerDefaults[ReminderArgs]
	service *Service
}

func NewReminderWorker(service *Service) *ReminderWorker {
	return &ReminderWorker{service: service}
}

func (w *ReminderWorker) Work(ctx context.Context, _ *river.Job[ReminderArgs]) error {
	_, err := w.service.SendReminders(ctx)
	return err
}

// StatusPollArgs is the periodic job that settles pushes whose callback
// never arrived.
type StatusPollArgs struct{}

func (StatusPollArgs) Kind() string { return "payment_status_poll" }

type StatusPollWorker struct {
	river.WorkerDefaults[StatusPollArgs]
	service *Service
}

func NewStatusPollWorker(service *Service) *StatusPollWorker {
	return &StatusPollWorker{service: service}
}

func (w *StatusPollWorker) Work(ctx context.Context, _ *river.Job[StatusPollArgs]) error {
	_, err := w.service.PollPending(ctx)
	return err
}
