package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/notifier/internal/model"
)

// All repository interfaces in one file
type (
	// RuleRepository reads due rules and persists their schedule after a cycle.
	RuleRepository interface {
		ListDue(ctx context.Context, now time.Time) ([]*model.NotificationRule, error)
		Get(ctx context.Context, id uuid.UUID) (*model.NotificationRule, error)
		UpdateSchedule(ctx context.Context, id uuid.UUID, lastChecked, nextCheck time.Time) error
	}

	// RecordQuerier runs a rule's parameterized query against the data source.
	RecordQuerier interface {
		Query(ctx context.Context, query string) ([]model.Record, error)
	}

	// DirectoryRepository resolves principals referenced by rules and records.
	DirectoryRepository interface {
		GetPerson(ctx context.Context, id string) (*model.Person, error)
		GetGroup(ctx context.Context, id string) (*model.Group, error)
		// Resolve finds a principal whose kind is not known up front.
		Resolve(ctx context.Context, id string) (model.Principal, error)
	}

	DeliveryRepository interface {
		// Create stores the item and all of its targets atomically.
		Create(ctx context.Context, item *model.DeliveryItem) error
		Get(ctx context.Context, id uuid.UUID) (*model.DeliveryItem, error)
		List(ctx context.Context, filter DeliveryFilter) ([]*model.DeliveryItem, error)
		ListByStatus(ctx context.Context, status model.DeliveryStatus) ([]*model.DeliveryItem, error)
		CountByStatus(ctx context.Context, status model.DeliveryStatus) (int, error)
		// UpdateStatus applies a transition only if the stored status equals from.
		UpdateStatus(ctx context.Context, id uuid.UUID, from model.DeliveryStatus, update StatusUpdate) error
	}

	DeliverySystemRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.DeliverySystem, error)
	}
)

type StatusUpdate struct {
	Status        model.DeliveryStatus
	ErrorText     *string
	CompletedDate *time.Time
}

type DeliveryFilter struct {
	Status model.DeliveryStatus `form:"status"`
	Limit  int                  `form:"limit"`
	Offset int                  `form:"offset"`
}
