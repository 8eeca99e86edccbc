package audit

import (
	"context"
	"log/slog"
	"time"

	"kayo/internal/platform/metrics"
)

// Publisher mirrors audit entries to an external stream.
type Publisher interface {
	Publish(ctx context.Context, entry Entry) error
}

// Service buffers entries on a channel and drains them to the store (and
// optional publisher) from a single background goroutine.
type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	entries chan Entry
	done    chan struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher mirrors entries to an external stream after they are
// stored.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithBufferSize overrides the default channel capacity.
func WithBufferSize(n int) Option {
	return func(s *Service) { s.entries = make(chan Entry, n) }
}

// NewService starts the background writer. Call Close on shutdown to
// flush buffered entries.
func NewService(store Store, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  logger,
		metrics: m,
		entries: make(chan Entry, 1024),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

var _ Recorder = (*Service)(nil)

// Record enqueues an entry without blocking. When the buffer is full the
// entry is dropped and counted; auditing must never stall a request.
func (s *Service) Record(ctx context.Context, entry Entry) {
	entry = FromContext(ctx, entry)
	select {
	case s.entries <- entry:
	default:
		if s.metrics != nil {
			s.metrics.AuditEventsDropped.Inc()
		}
		s.logger.Warn("audit buffer full, entry dropped",
			"action", entry.Action,
			"resource_type", entry.ResourceType,
		)
	}
}

// Close flushes buffered entries and stops the writer.
func (s *Service) Close() {
	close(s.entries)
	<-s.done
}

func (s *Service) run() {
	defer close(s.done)
	for entry := range s.entries {
		s.write(entry)
	}
}

func (s *Service) write(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.Insert(ctx, entry); err != nil {
		s.logger.Error("failed to persist audit entry",
			"error", err,
			"action", entry.Action,
			"resource_type", entry.ResourceType,
		)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, entry); err != nil {
			s.logger.Error("failed to publish audit entry",
				"error", err,
				"action", entry.Action,
			)
		}
	}
}

// List exposes stored entries for the admin endpoint.
func (s *Service) List(ctx context.Context, filter Filter) ([]Entry, error) {
	return s.store.List(ctx, filter)
}
