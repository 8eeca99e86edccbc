package comms

import (
	"context"

	"github.com/riverqueue/river"

	id "kayo/pkg/domain"
)

// SendArgs delivers one queued announcement.
type SendArgs struct {
	AnnouncementID id.AnnouncementID `json:"announcement_id"`
}

func (SendArgs) Kind() string { return "announcement_send" }

type SendWorker struct {
	river.WorkerDefaults[SendArgs]
	service *Service
}

func NewSendWorker(service *Service) *SendWorker {
	return &SendWorker{service: service}
}

func (w *SendWorker) Work(ctx context.Context, job *river.Job[SendArgs]) error {
	return w.service.Deliver(ctx, job.Args.AnnouncementID)
}
