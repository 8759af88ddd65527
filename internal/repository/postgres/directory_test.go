package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/notifier/internal/model"
)

func TestDirectoryResolveGroupExpandsFirstLevelUsers(t *testing.T) {
	base, mock := newMockBase(t)
	dir := NewDirectoryRepository(base)

	mock.ExpectQuery("SELECT type FROM owners").
		WithArgs("T001").
		WillReturnRows(sqlmock.NewRows([]string{"type"}).AddRow("Team"))
	mock.ExpectQuery("SELECT id, type, description FROM owners").
		WithArgs("T001", model.OwnerUser).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "description"}).AddRow("T001", "Team", "Support"))
	mock.ExpectQuery("FROM owner_members").
		WithArgs("T001", model.OwnerUser).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow("U001", "ann", "ann@example.com").
			AddRow("U002", "bob", ""))

	p, err := dir.Resolve(context.Background(), "T001")
	require.NoError(t, err)

	group, ok := p.(model.ExpandsToMembers)
	require.True(t, ok)
	assert.Equal(t, "Support", group.DisplayName())
	assert.Len(t, group.Members(), 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryResolveFallsBackToPerson(t *testing.T) {
	base, mock := newMockBase(t)
	dir := NewDirectoryRepository(base)

	mock.ExpectQuery("SELECT type FROM owners").
		WithArgs("C042").
		WillReturnRows(sqlmock.NewRows([]string{"type"}))
	mock.ExpectQuery("FROM users WHERE id").
		WithArgs("C042").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow("C042", "Cara Contact", "cara@example.com"))

	p, err := dir.Resolve(context.Background(), "C042")
	require.NoError(t, err)

	person, ok := p.(model.HasAddress)
	require.True(t, ok)
	assert.Equal(t, "cara@example.com", person.Address())
	assert.NoError(t, mock.ExpectationsWereMet())
}
