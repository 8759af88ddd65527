package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/notifier/internal/jobs"
	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
	"github.com/jwalitptl/notifier/pkg/logger"
	"github.com/jwalitptl/notifier/pkg/metrics"
)

const (
	PhaseSelecting  = "Selecting due rules"
	PhaseEvaluating = "Evaluating rules"
)

// Enqueuer persists a pending delivery item together with all of its targets.
type Enqueuer interface {
	Enqueue(ctx context.Context, item *model.DeliveryItem) error
}

// Service runs rule evaluation cycles.
type Service interface {
	// Run evaluates every due rule once. Failures are contained per rule; the
	// returned error is only set when the due rules cannot be selected.
	Run(ctx context.Context, progress jobs.Progress) (RunStats, error)
	// Evaluate queries, builds and reschedules a single rule and returns the
	// number of delivery items created.
	Evaluate(ctx context.Context, rule *model.NotificationRule, now time.Time) (int, error)
}

type RunStats struct {
	Selected    int  `json:"selected"`
	Succeeded   int  `json:"succeeded"`
	Failed      int  `json:"failed"`
	Messages    int  `json:"messages"`
	Interrupted bool `json:"interrupted"`
}

type Options struct {
	// Location is used for Daily schedules. Defaults to UTC.
	Location *time.Location
	Clock    func() time.Time
}

type service struct {
	rules     repository.RuleRepository
	records   repository.RecordQuerier
	queue     Enqueuer
	directory *Directory
	validate  *validator.Validate
	metrics   *metrics.Metrics
	logger    *logger.Logger
	loc       *time.Location
	clock     func() time.Time
}

func NewService(
	rules repository.RuleRepository,
	records repository.RecordQuerier,
	queue Enqueuer,
	directory *Directory,
	m *metrics.Metrics,
	log *logger.Logger,
	opts Options,
) Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &service{
		rules:     rules,
		records:   records,
		queue:     queue,
		directory: directory,
		validate:  validator.New(),
		metrics:   m,
		logger:    log,
		loc:       opts.Location,
		clock:     opts.Clock,
	}
}

func (s *service) Run(ctx context.Context, progress jobs.Progress) (RunStats, error) {
	var stats RunStats
	if progress == nil {
		progress = jobs.NopProgress
	}

	now := s.clock().In(s.loc)
	progress.SetPhase(PhaseSelecting)
	rules, err := s.rules.ListDue(ctx, now)
	if err != nil {
		return stats, fmt.Errorf("failed to select due rules: %w", err)
	}

	progress.SetPhase(PhaseEvaluating)
	for i, rule := range rules {
		if !rule.IsDue(now) {
			continue
		}
		stats.Selected++

		// The rule in hand is always finished; interruption is honored between rules.
		created, err := s.Evaluate(context.WithoutCancel(ctx), rule, now)
		stats.Messages += created
		if err != nil {
			stats.Failed++
			s.logger.Error(err, "rule evaluation failed",
				"rule_id", rule.ID.String(),
				"rule", rule.Name,
				"messages_created", created,
			)
		} else {
			stats.Succeeded++
		}

		progress.SetProgress(100 * float64(i+1) / float64(len(rules)))
		if ctx.Err() != nil {
			stats.Interrupted = true
			s.logger.Warn("rule evaluation interrupted", "remaining", len(rules)-i-1)
			break
		}
	}

	s.logger.Info("rule evaluation cycle finished",
		"selected", stats.Selected,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"messages", stats.Messages,
	)
	return stats, nil
}

func (s *service) Evaluate(ctx context.Context, rule *model.NotificationRule, now time.Time) (int, error) {
	if err := s.validateRule(rule); err != nil {
		s.observe("config_error")
		return 0, err
	}

	next, err := NextRun(rule, now)
	if err != nil {
		s.observe("config_error")
		return 0, err
	}

	query := Parameterize(rule.Query, rule.LastChecked, now)
	records, err := s.records.Query(ctx, query)
	if err != nil {
		s.observe("query_error")
		return 0, err
	}

	created := 0
	if len(records) > 0 {
		items, err := s.build(ctx, rule, records, now)
		if err != nil {
			s.observe("build_error")
			return 0, err
		}
		for _, item := range items {
			if err := s.queue.Enqueue(ctx, item); err != nil {
				s.observe("enqueue_error")
				s.metrics.MessagesCreated.Add(float64(created))
				return created, fmt.Errorf("failed to enqueue delivery item: %w", err)
			}
			created++
		}
		s.metrics.MessagesCreated.Add(float64(created))
	}

	if err := s.rules.UpdateSchedule(ctx, rule.ID, now, next); err != nil {
		s.observe("reschedule_error")
		return created, fmt.Errorf("failed to reschedule rule: %w", err)
	}
	checked := now
	rule.LastChecked = &checked
	rule.NextCheck = next

	if len(records) == 0 {
		s.observe("empty")
	} else {
		s.observe("success")
	}
	s.logger.Debug("rule evaluated",
		"rule_id", rule.ID.String(),
		"records", len(records),
		"messages", created,
		"next_check", next.Format(time.RFC3339),
	)
	return created, nil
}

func (s *service) validateRule(rule *model.NotificationRule) error {
	if err := s.validate.Struct(rule); err != nil {
		return apperrors.Configuration(fmt.Sprintf("rule %s is misconfigured", rule.ID), err)
	}
	if rule.DeliverySystemID == uuid.Nil {
		return apperrors.Configuration(fmt.Sprintf("rule %s has no delivery system", rule.ID), nil)
	}
	return nil
}

func (s *service) observe(result string) {
	s.metrics.RuleEvaluations.WithLabelValues(result).Inc()
}
