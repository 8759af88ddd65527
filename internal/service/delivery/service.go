package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/notifier/internal/jobs"
	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
	"github.com/jwalitptl/notifier/pkg/logger"
	"github.com/jwalitptl/notifier/pkg/metrics"
	"github.com/jwalitptl/notifier/pkg/transport"
)

const (
	PhaseGathering  = "Gathering up Items to deliver"
	PhaseDelivering = "Delivering Items"
)

// Service drains the delivery queue.
type Service interface {
	// Run sends every pending item once, in queue order. Failures are recorded
	// on the item and never stop the run.
	Run(ctx context.Context, progress jobs.Progress) (RunStats, error)
	// Dispatch sends a single pending item and records the outcome. A failed
	// send is recorded on the item and then returned with code ErrTransport.
	Dispatch(ctx context.Context, item *model.DeliveryItem) error
}

type RunStats struct {
	Pending     int  `json:"pending"`
	Completed   int  `json:"completed"`
	Failed      int  `json:"failed"`
	Skipped     int  `json:"skipped"`
	Interrupted bool `json:"interrupted"`
}

type Options struct {
	// Rate limits sends per second; zero disables throttling.
	Rate  float64
	Burst int
}

type service struct {
	queue    *Queue
	systems  repository.DeliverySystemRepository
	registry *transport.Registry
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

func NewService(
	queue *Queue,
	systems repository.DeliverySystemRepository,
	registry *transport.Registry,
	m *metrics.Metrics,
	log *logger.Logger,
	opts Options,
) Service {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}
	return &service{
		queue:    queue,
		systems:  systems,
		registry: registry,
		limiter:  limiter,
		metrics:  m,
		logger:   log,
	}
}

func (s *service) Run(ctx context.Context, progress jobs.Progress) (RunStats, error) {
	var stats RunStats
	if progress == nil {
		progress = jobs.NopProgress
	}

	progress.SetPhase(PhaseGathering)
	items, err := s.queue.ListPending(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list pending delivery items: %w", err)
	}
	stats.Pending = len(items)
	s.metrics.DeliveryQueueSize.Set(float64(len(items)))

	progress.SetPhase(PhaseDelivering)
	systems := make(map[uuid.UUID]*model.DeliverySystem)
	for i, item := range items {
		if err := s.limiter.Wait(ctx); err != nil {
			stats.Interrupted = true
			break
		}

		s.attachSystem(ctx, systems, item)

		// The item in hand is always finished; interruption is honored between items.
		err := s.Dispatch(context.WithoutCancel(ctx), item)
		switch {
		case apperrors.Is(err, apperrors.ErrConflict):
			stats.Skipped++
			s.logger.Warn("delivery item changed underneath dispatcher", "delivery_item_id", item.ID.String(), "error", err.Error())
		case apperrors.Is(err, apperrors.ErrTransport):
			stats.Failed++
			s.logger.Warn("delivery failed", "delivery_item_id", item.ID.String(), "error", err.Error())
		case err != nil:
			stats.Failed++
			s.logger.Error(err, "failed to record delivery outcome", "delivery_item_id", item.ID.String())
		case item.Status == model.DeliveryStatusCompleted:
			stats.Completed++
		default:
			stats.Failed++
		}

		progress.SetProgress(100 * float64(i+1) / float64(len(items)))
		if ctx.Err() != nil {
			stats.Interrupted = true
			break
		}
	}

	if stats.Interrupted {
		s.logger.Warn("delivery run interrupted", "remaining", stats.Pending-stats.Completed-stats.Failed-stats.Skipped)
	}
	s.logger.Info("delivery run finished",
		"pending", stats.Pending,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// attachSystem loads the item's delivery system once per run. A lookup failure
// leaves the system unset so Dispatch records it on the item.
func (s *service) attachSystem(ctx context.Context, cache map[uuid.UUID]*model.DeliverySystem, item *model.DeliveryItem) {
	if item.DeliverySystem != nil {
		return
	}
	if sys, ok := cache[item.DeliverySystemID]; ok {
		item.DeliverySystem = sys
		return
	}
	if sys, err := s.systems.Get(ctx, item.DeliverySystemID); err == nil {
		cache[item.DeliverySystemID] = sys
		item.DeliverySystem = sys
	}
}

func (s *service) Dispatch(ctx context.Context, item *model.DeliveryItem) error {
	if err := s.queue.MarkInProcess(ctx, item); err != nil {
		return err
	}

	sys := item.DeliverySystem
	if sys == nil {
		loaded, err := s.systems.Get(ctx, item.DeliverySystemID)
		if err != nil {
			s.count("unknown", model.DeliveryStatusError)
			return s.queue.MarkError(ctx, item, fmt.Sprintf("delivery system unavailable: %v", err))
		}
		sys = loaded
		item.DeliverySystem = sys
	}

	sender, ok := s.registry.Lookup(string(sys.SystemType))
	if !ok {
		s.logger.Warn("unknown delivery system type",
			"delivery_item_id", item.ID.String(),
			"system_type", string(sys.SystemType),
		)
		s.count(string(sys.SystemType), model.DeliveryStatusError)
		return s.queue.MarkError(ctx, item, "")
	}

	start := time.Now()
	sendErr := sender.Send(ctx, serverFor(sys), messageFor(item, sys))
	s.metrics.DeliveryLatency.WithLabelValues(string(sys.SystemType)).Observe(time.Since(start).Seconds())

	if sendErr != nil {
		s.count(string(sys.SystemType), model.DeliveryStatusError)
		failure := apperrors.Transport(fmt.Sprintf("%s send failed", sys.SystemType), sendErr)
		if err := s.queue.MarkError(ctx, item, failure.Error()); err != nil {
			return err
		}
		return failure
	}

	s.count(string(sys.SystemType), model.DeliveryStatusCompleted)
	return s.queue.MarkCompleted(ctx, item)
}

func (s *service) count(system string, status model.DeliveryStatus) {
	s.metrics.DeliveriesProcessed.WithLabelValues(system, string(status)).Inc()
}

func serverFor(sys *model.DeliverySystem) transport.Server {
	return transport.Server{
		Address:  sys.ServerAddress,
		Port:     sys.Port,
		UserName: sys.UserName,
		Domain:   sys.UserDomain,
		Password: sys.Password,
		TLS:      sys.EnableSSL,
		From:     sys.EmailAddress,
	}
}

// messageFor splits targets by type. Type names are matched case-insensitively
// because older producers stored "TO".
func messageFor(item *model.DeliveryItem, sys *model.DeliverySystem) transport.Message {
	msg := transport.Message{
		Subject: item.Subject,
		Body:    item.Body,
		HTML:    sys.BodyIsHTML,
	}
	for _, t := range item.Targets {
		switch {
		case strings.EqualFold(string(t.Type), string(model.TargetTo)):
			msg.To = append(msg.To, t.Address)
		case strings.EqualFold(string(t.Type), string(model.TargetCc)):
			msg.Cc = append(msg.Cc, t.Address)
		case strings.EqualFold(string(t.Type), string(model.TargetBcc)):
			msg.Bcc = append(msg.Bcc, t.Address)
		case strings.EqualFold(string(t.Type), string(model.TargetReplyTo)):
			msg.ReplyTo = append(msg.ReplyTo, t.Address)
		}
	}
	return msg
}
