package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
	"github.com/jwalitptl/notifier/pkg/logger"
	"github.com/jwalitptl/notifier/pkg/metrics"
)

// Queue owns the delivery item lifecycle. Every transition is a single
// compare-and-set commit against the stored status.
type Queue struct {
	repo    repository.DeliveryRepository
	metrics *metrics.Metrics
	logger  *logger.Logger
	clock   func() time.Time
}

func NewQueue(repo repository.DeliveryRepository, m *metrics.Metrics, log *logger.Logger) *Queue {
	return &Queue{repo: repo, metrics: m, logger: log, clock: time.Now}
}

// Bulletin is a pre-rendered message for a list of subscribers.
type Bulletin struct {
	Subject          string    `json:"subject"`
	Body             string    `json:"body" binding:"required"`
	DeliverySystemID uuid.UUID `json:"delivery_system_id" binding:"required"`
	Subscribers      []string  `json:"subscribers" binding:"required,min=1,dive,required"`
}

// Enqueue stores a new pending item with all of its targets.
func (q *Queue) Enqueue(ctx context.Context, item *model.DeliveryItem) error {
	if item.Status == "" {
		item.Status = model.DeliveryStatusToBeProcessed
	}
	if item.Status != model.DeliveryStatusToBeProcessed {
		return apperrors.BadRequest(fmt.Sprintf("new delivery items must be %q", model.DeliveryStatusToBeProcessed), nil)
	}
	if item.DeliverySystemID == uuid.Nil {
		return apperrors.BadRequest("delivery item has no delivery system", nil)
	}

	err := q.repo.Create(ctx, item)
	q.observe("enqueue", err)
	return err
}

// Publish enqueues one item addressed to every subscriber.
func (q *Queue) Publish(ctx context.Context, b Bulletin) (*model.DeliveryItem, error) {
	if len(b.Subscribers) == 0 {
		return nil, apperrors.BadRequest("bulletin has no subscribers", nil)
	}
	item := &model.DeliveryItem{
		Subject:          b.Subject,
		Body:             b.Body,
		DeliverySystemID: b.DeliverySystemID,
	}
	seen := make(map[string]struct{}, len(b.Subscribers))
	for _, s := range b.Subscribers {
		if _, dup := seen[s]; dup || s == "" {
			continue
		}
		seen[s] = struct{}{}
		item.AddTargets(model.TargetTo, s)
	}
	if err := q.Enqueue(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// ListPending returns all items waiting to be sent, oldest first.
func (q *Queue) ListPending(ctx context.Context) ([]*model.DeliveryItem, error) {
	items, err := q.repo.ListByStatus(ctx, model.DeliveryStatusToBeProcessed)
	q.observe("list_pending", err)
	return items, err
}

func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*model.DeliveryItem, error) {
	return q.repo.Get(ctx, id)
}

func (q *Queue) List(ctx context.Context, filter repository.DeliveryFilter) ([]*model.DeliveryItem, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown status %q", filter.Status), nil)
	}
	return q.repo.List(ctx, filter)
}

func (q *Queue) MarkInProcess(ctx context.Context, item *model.DeliveryItem) error {
	return q.transition(ctx, item, repository.StatusUpdate{Status: model.DeliveryStatusInProcess})
}

func (q *Queue) MarkCompleted(ctx context.Context, item *model.DeliveryItem) error {
	now := q.clock().UTC()
	return q.transition(ctx, item, repository.StatusUpdate{
		Status:        model.DeliveryStatusCompleted,
		CompletedDate: &now,
	})
}

// MarkError records a failed send. An empty message stores no error text.
func (q *Queue) MarkError(ctx context.Context, item *model.DeliveryItem, message string) error {
	update := repository.StatusUpdate{Status: model.DeliveryStatusError}
	if message != "" {
		update.ErrorText = &message
	}
	return q.transition(ctx, item, update)
}

func (q *Queue) transition(ctx context.Context, item *model.DeliveryItem, update repository.StatusUpdate) error {
	if !item.Status.CanTransition(update.Status) {
		return apperrors.Conflict(fmt.Sprintf("delivery item %s cannot move from %q to %q", item.ID, item.Status, update.Status), nil)
	}

	err := q.repo.UpdateStatus(ctx, item.ID, item.Status, update)
	q.observe("update_status", err)
	if err != nil {
		return err
	}

	item.Status = update.Status
	item.ErrorText = update.ErrorText
	item.CompletedDate = update.CompletedDate
	return nil
}

// Reset returns a failed or stuck item to the pending state. It is an operator
// action; the dispatcher never calls it.
func (q *Queue) Reset(ctx context.Context, id uuid.UUID) (*model.DeliveryItem, error) {
	item, err := q.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != model.DeliveryStatusError && item.Status != model.DeliveryStatusInProcess {
		return nil, apperrors.Conflict(fmt.Sprintf("delivery item %s is %q and cannot be reset", id, item.Status), nil)
	}

	err = q.repo.UpdateStatus(ctx, id, item.Status, repository.StatusUpdate{Status: model.DeliveryStatusToBeProcessed})
	q.observe("reset", err)
	if err != nil {
		return nil, err
	}

	q.logger.Info("delivery item reset", "delivery_item_id", id.String(), "previous_status", string(item.Status))
	item.Status = model.DeliveryStatusToBeProcessed
	item.ErrorText = nil
	item.CompletedDate = nil
	return item, nil
}

func (q *Queue) observe(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	q.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
}
