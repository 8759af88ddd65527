package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

const defaultListLimit = 100

const deliveryItemColumns = `id, subject, body, status, delivery_system_id, error_text, completed_date, created_at, updated_at`

type deliveryRepository struct {
	BaseRepository
}

func NewDeliveryRepository(base BaseRepository) repository.DeliveryRepository {
	return &deliveryRepository{base}
}

func (r *deliveryRepository) Create(ctx context.Context, item *model.DeliveryItem) error {
	if item == nil {
		return fmt.Errorf("delivery item cannot be nil")
	}

	now := time.Now().UTC()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Status == "" {
		item.Status = model.DeliveryStatusToBeProcessed
	}
	item.CreatedAt = now
	item.UpdatedAt = now

	itemQuery := `
		INSERT INTO delivery_items (
			id, subject, body, status, delivery_system_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	targetQuery := `
		INSERT INTO delivery_targets (id, delivery_item_id, type, address, position)
		VALUES ($1, $2, $3, $4, $5)
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, itemQuery,
			item.ID,
			item.Subject,
			item.Body,
			item.Status,
			item.DeliverySystemID,
			item.CreatedAt,
			item.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create delivery item: %w", err)
		}

		for i := range item.Targets {
			t := &item.Targets[i]
			if t.ID == uuid.Nil {
				t.ID = uuid.New()
			}
			t.DeliveryItemID = item.ID
			if _, err := tx.ExecContext(ctx, targetQuery, t.ID, t.DeliveryItemID, t.Type, t.Address, i); err != nil {
				return fmt.Errorf("failed to create delivery target: %w", err)
			}
		}
		return nil
	})
}

func (r *deliveryRepository) Get(ctx context.Context, id uuid.UUID) (*model.DeliveryItem, error) {
	query := `SELECT ` + deliveryItemColumns + ` FROM delivery_items WHERE id = $1`

	var item model.DeliveryItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("delivery item", err)
		}
		return nil, fmt.Errorf("failed to get delivery item: %w", err)
	}

	items := []*model.DeliveryItem{&item}
	if err := r.attachTargets(ctx, items); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *deliveryRepository) List(ctx context.Context, filter repository.DeliveryFilter) ([]*model.DeliveryItem, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	query := `SELECT ` + deliveryItemColumns + ` FROM delivery_items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var items []*model.DeliveryItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list delivery items: %w", err)
	}
	if err := r.attachTargets(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListByStatus returns items oldest first; ties break on id so the order is stable.
func (r *deliveryRepository) ListByStatus(ctx context.Context, status model.DeliveryStatus) ([]*model.DeliveryItem, error) {
	query := `
		SELECT ` + deliveryItemColumns + `
		FROM delivery_items
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`

	var items []*model.DeliveryItem
	if err := r.db.SelectContext(ctx, &items, query, status); err != nil {
		return nil, fmt.Errorf("failed to list %s delivery items: %w", status, err)
	}
	if err := r.attachTargets(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *deliveryRepository) CountByStatus(ctx context.Context, status model.DeliveryStatus) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM delivery_items WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("failed to count delivery items: %w", err)
	}
	return n, nil
}

func (r *deliveryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from model.DeliveryStatus, update repository.StatusUpdate) error {
	query := `
		UPDATE delivery_items
		SET status = $1,
			error_text = $2,
			completed_date = $3,
			updated_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := r.db.ExecContext(ctx, query,
		update.Status,
		update.ErrorText,
		update.CompletedDate,
		time.Now().UTC(),
		id,
		from,
	)
	if err != nil {
		return fmt.Errorf("failed to update delivery item status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict(fmt.Sprintf("delivery item %s is no longer %q", id, from), nil)
	}
	return nil
}

func (r *deliveryRepository) attachTargets(ctx context.Context, items []*model.DeliveryItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(items))
	byID := make(map[uuid.UUID]*model.DeliveryItem, len(items))
	for i, it := range items {
		ids[i] = it.ID
		byID[it.ID] = it
	}

	query, args, err := sqlx.In(`
		SELECT id, delivery_item_id, type, address
		FROM delivery_targets
		WHERE delivery_item_id IN (?)
		ORDER BY delivery_item_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to build target query: %w", err)
	}

	var targets []model.DeliveryTarget
	if err := r.db.SelectContext(ctx, &targets, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load delivery targets: %w", err)
	}
	for _, t := range targets {
		if it, ok := byID[t.DeliveryItemID]; ok {
			it.Targets = append(it.Targets, t)
		}
	}
	return nil
}
