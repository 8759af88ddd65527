package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

// memRepo is an in-memory DeliveryRepository with the same compare-and-set
// semantics as the postgres implementation.
type memRepo struct {
	mu    sync.Mutex
	order []uuid.UUID
	items map[uuid.UUID]*model.DeliveryItem
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[uuid.UUID]*model.DeliveryItem)}
}

func clone(item *model.DeliveryItem) *model.DeliveryItem {
	c := *item
	c.Targets = append([]model.DeliveryTarget(nil), item.Targets...)
	c.DeliverySystem = nil
	return &c
}

func (r *memRepo) Create(_ context.Context, item *model.DeliveryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now()
	r.items[item.ID] = clone(item)
	r.order = append(r.order, item.ID)
	return nil
}

func (r *memRepo) Get(_ context.Context, id uuid.UUID) (*model.DeliveryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, apperrors.NotFound("delivery item", nil)
	}
	return clone(item), nil
}

func (r *memRepo) List(_ context.Context, filter repository.DeliveryFilter) ([]*model.DeliveryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.DeliveryItem
	for _, id := range r.order {
		item := r.items[id]
		if filter.Status == "" || item.Status == filter.Status {
			out = append(out, clone(item))
		}
	}
	return out, nil
}

func (r *memRepo) ListByStatus(ctx context.Context, status model.DeliveryStatus) ([]*model.DeliveryItem, error) {
	return r.List(ctx, repository.DeliveryFilter{Status: status})
}

func (r *memRepo) CountByStatus(ctx context.Context, status model.DeliveryStatus) (int, error) {
	items, err := r.ListByStatus(ctx, status)
	return len(items), err
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from model.DeliveryStatus, update repository.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok || item.Status != from {
		return apperrors.Conflict("delivery item status changed", nil)
	}
	item.Status = update.Status
	item.ErrorText = update.ErrorText
	item.CompletedDate = update.CompletedDate
	return nil
}

// status reads the stored status, bypassing any in-memory copy the caller holds.
func (r *memRepo) status(id uuid.UUID) model.DeliveryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].Status
}

func (r *memRepo) stored(id uuid.UUID) *model.DeliveryItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return clone(r.items[id])
}

type memSystems struct {
	systems map[uuid.UUID]*model.DeliverySystem
	lookups int
}

func (m *memSystems) Get(_ context.Context, id uuid.UUID) (*model.DeliverySystem, error) {
	m.lookups++
	if sys, ok := m.systems[id]; ok {
		return sys, nil
	}
	return nil, apperrors.NotFound("delivery system", nil)
}
