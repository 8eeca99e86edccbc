package fund

import (
	"context"

	"github.com/riverqueue/river"
)

// InstallmentArgs is the periodic job that materializes due installments
// for active payment schedules.
type InstallmentArgs struct{}

func (InstallmentArgs) Kind() string { return "fund_installments" }

type InstallmentWorker struct {
	river.WorkerDefaults[InstallmentArgs]
	service *Service
}

func NewInstallmentWorker(service *Service) *InstallmentWorker {
	return &InstallmentWorker{service: service}
}

func (w *InstallmentWorker) Work(ctx context.Context, _ *river.Job[InstallmentArgs]) error {
	_, err := w.service.GenerateDueInstallments(ctx)
	return err
}
