package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

type directoryRepository struct {
	BaseRepository
}

func NewDirectoryRepository(base BaseRepository) repository.DirectoryRepository {
	return &directoryRepository{base}
}

// GetPerson looks up users first, then contacts.
func (r *directoryRepository) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	query := `
		SELECT id, name, email FROM (
			SELECT id, user_name AS name, COALESCE(email, '') AS email, 0 AS rank FROM users WHERE id = $1
			UNION ALL
			SELECT id, full_name AS name, COALESCE(email, '') AS email, 1 AS rank FROM contacts WHERE id = $1
		) p
		ORDER BY rank
		LIMIT 1
	`

	var p model.Person
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("person "+id, err)
		}
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return &p, nil
}

// GetGroup loads a team or department with its direct user members. Nested
// groups are not expanded.
func (r *directoryRepository) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	var g struct {
		ID          string          `db:"id"`
		Type        model.OwnerType `db:"type"`
		Description string          `db:"description"`
	}
	err := r.db.GetContext(ctx, &g, `SELECT id, type, description FROM owners WHERE id = $1 AND type <> $2`, id, model.OwnerUser)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("group "+id, err)
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	membersQuery := `
		SELECT u.id, u.user_name AS name, COALESCE(u.email, '') AS email
		FROM owner_members m
		JOIN users u ON u.id = m.member_id
		WHERE m.owner_id = $1 AND m.member_type = $2
		ORDER BY m.position, u.id
	`
	var members []*model.Person
	if err := r.db.SelectContext(ctx, &members, membersQuery, id, model.OwnerUser); err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}

	group := &model.Group{ID: g.ID, Type: g.Type, Description: g.Description}
	for _, m := range members {
		group.Direct = append(group.Direct, m)
	}
	return group, nil
}

func (r *directoryRepository) Resolve(ctx context.Context, id string) (model.Principal, error) {
	var ownerType model.OwnerType
	err := r.db.GetContext(ctx, &ownerType, `SELECT type FROM owners WHERE id = $1`, id)
	switch {
	case err == nil && ownerType != model.OwnerUser:
		return r.GetGroup(ctx, id)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to resolve principal: %w", err)
	}
	return r.GetPerson(ctx, id)
}
