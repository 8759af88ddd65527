package delivery

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
	"github.com/jwalitptl/notifier/pkg/logger"
	"github.com/jwalitptl/notifier/pkg/metrics"
)

func newTestQueue() (*Queue, *memRepo) {
	repo := newMemRepo()
	return NewQueue(repo, metrics.New("test"), logger.Nop()), repo
}

func pendingItem(systemID uuid.UUID, to ...string) *model.DeliveryItem {
	item := &model.DeliveryItem{Subject: "s", Body: "b", DeliverySystemID: systemID}
	item.AddTargets(model.TargetTo, to...)
	return item
}

func TestEnqueueDefaultsToPending(t *testing.T) {
	q, repo := newTestQueue()
	item := pendingItem(uuid.New(), "a@example.com")

	require.NoError(t, q.Enqueue(context.Background(), item))
	assert.NotEqual(t, uuid.Nil, item.ID)
	assert.Equal(t, model.DeliveryStatusToBeProcessed, repo.status(item.ID))
}

func TestEnqueueRejectsInvalidItems(t *testing.T) {
	q, _ := newTestQueue()

	err := q.Enqueue(context.Background(), &model.DeliveryItem{Status: model.DeliveryStatusCompleted, DeliverySystemID: uuid.New()})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	err = q.Enqueue(context.Background(), &model.DeliveryItem{})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestPublishDedupesSubscribers(t *testing.T) {
	q, repo := newTestQueue()

	item, err := q.Publish(context.Background(), Bulletin{
		Subject:          "Maintenance",
		Body:             "Tonight",
		DeliverySystemID: uuid.New(),
		Subscribers:      []string{"a@example.com", "b@example.com", "a@example.com", ""},
	})
	require.NoError(t, err)

	stored := repo.stored(item.ID)
	require.Len(t, stored.Targets, 2)
	assert.Equal(t, "a@example.com", stored.Targets[0].Address)
	assert.Equal(t, "b@example.com", stored.Targets[1].Address)

	_, err = q.Publish(context.Background(), Bulletin{Body: "x", DeliverySystemID: uuid.New()})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestTransitionsFollowLifecycle(t *testing.T) {
	ctx := context.Background()
	q, repo := newTestQueue()
	item := pendingItem(uuid.New(), "a@example.com")
	require.NoError(t, q.Enqueue(ctx, item))

	err := q.MarkCompleted(ctx, item)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "pending items cannot complete directly")

	require.NoError(t, q.MarkInProcess(ctx, item))
	require.NoError(t, q.MarkCompleted(ctx, item))
	assert.Equal(t, model.DeliveryStatusCompleted, repo.status(item.ID))
	assert.NotNil(t, repo.stored(item.ID).CompletedDate)

	err = q.MarkInProcess(ctx, item)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, model.DeliveryStatusCompleted, repo.status(item.ID))
}

func TestStaleCopyCannotOverwrite(t *testing.T) {
	ctx := context.Background()
	q, repo := newTestQueue()
	item := pendingItem(uuid.New(), "a@example.com")
	require.NoError(t, q.Enqueue(ctx, item))

	stale := repo.stored(item.ID)
	require.NoError(t, q.MarkInProcess(ctx, item))

	err := q.MarkInProcess(ctx, stale)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Equal(t, model.DeliveryStatusToBeProcessed, stale.Status)
}

func TestMarkErrorWithoutMessageStoresNoText(t *testing.T) {
	ctx := context.Background()
	q, repo := newTestQueue()
	item := pendingItem(uuid.New())
	require.NoError(t, q.Enqueue(ctx, item))
	require.NoError(t, q.MarkInProcess(ctx, item))

	require.NoError(t, q.MarkError(ctx, item, ""))
	stored := repo.stored(item.ID)
	assert.Equal(t, model.DeliveryStatusError, stored.Status)
	assert.Nil(t, stored.ErrorText)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	q, repo := newTestQueue()
	item := pendingItem(uuid.New(), "a@example.com")
	require.NoError(t, q.Enqueue(ctx, item))

	_, err := q.Reset(ctx, item.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "pending items are already pending")

	require.NoError(t, q.MarkInProcess(ctx, item))
	require.NoError(t, q.MarkError(ctx, item, "SMTP send failed: boom"))

	reset, err := q.Reset(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusToBeProcessed, reset.Status)
	assert.Nil(t, reset.ErrorText)
	assert.Equal(t, model.DeliveryStatusToBeProcessed, repo.status(item.ID))

	_, err = q.Reset(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestListRejectsUnknownStatus(t *testing.T) {
	q, _ := newTestQueue()
	_, err := q.List(context.Background(), repository.DeliveryFilter{Status: "Sent"})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}
