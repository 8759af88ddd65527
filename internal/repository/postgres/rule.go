package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

const ruleColumns = `
	id, name, query, entity_name, digest, dynamic_targeting, dynamic_field,
	interval_kind, interval_minutes, time_of_day, days_of_week,
	subject_template, body_template, delivery_system_id, enabled,
	last_checked, next_check, created_at, updated_at`

type ruleRepository struct {
	BaseRepository
}

func NewRuleRepository(base BaseRepository) repository.RuleRepository {
	return &ruleRepository{base}
}

func (r *ruleRepository) ListDue(ctx context.Context, now time.Time) ([]*model.NotificationRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM notification_rules
		WHERE enabled = TRUE AND next_check <= $1
		ORDER BY next_check ASC, id ASC
	`

	var rules []*model.NotificationRule
	if err := r.db.SelectContext(ctx, &rules, query, now); err != nil {
		return nil, fmt.Errorf("failed to list due rules: %w", err)
	}
	if err := r.attachTargets(ctx, rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *ruleRepository) Get(ctx context.Context, id uuid.UUID) (*model.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE id = $1`

	var rule model.NotificationRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("notification rule", err)
		}
		return nil, fmt.Errorf("failed to get notification rule: %w", err)
	}
	if err := r.attachTargets(ctx, []*model.NotificationRule{&rule}); err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateSchedule refuses to move next_check backwards.
func (r *ruleRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, lastChecked, nextCheck time.Time) error {
	query := `
		UPDATE notification_rules
		SET last_checked = $1, next_check = $2, updated_at = $3
		WHERE id = $4 AND next_check <= $2
	`

	result, err := r.db.ExecContext(ctx, query, lastChecked, nextCheck, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update rule schedule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.Conflict(fmt.Sprintf("rule %s was rescheduled concurrently or no longer exists", id), nil)
	}
	return nil
}

func (r *ruleRepository) attachTargets(ctx context.Context, rules []*model.NotificationRule) error {
	if len(rules) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(rules))
	byID := make(map[uuid.UUID]*model.NotificationRule, len(rules))
	for i, rule := range rules {
		ids[i] = rule.ID
		byID[rule.ID] = rule
	}

	query, args, err := sqlx.In(`
		SELECT id, rule_id, owner_id, owner_type
		FROM notification_targets
		WHERE rule_id IN (?)
		ORDER BY rule_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to build target query: %w", err)
	}

	var targets []model.NotificationTarget
	if err := r.db.SelectContext(ctx, &targets, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load notification targets: %w", err)
	}
	for _, t := range targets {
		if rule, ok := byID[t.RuleID]; ok {
			rule.Targets = append(rule.Targets, t)
		}
	}
	return nil
}
