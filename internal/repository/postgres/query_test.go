package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/notifier/internal/model"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

func TestRecordQuerierReturnsRowsInOrder(t *testing.T) {
	base, mock := newMockBase(t)
	q := NewRecordQuerier(base)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT subject, owner FROM ticket").
		WillReturnRows(sqlmock.NewRows([]string{"subject", "owner"}).
			AddRow([]byte("Printer on fire"), "U001").
			AddRow([]byte("Coffee empty"), nil))
	mock.ExpectCommit()

	records, err := q.Query(context.Background(), "SELECT subject, owner FROM ticket")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.Record{"subject": "Printer on fire", "owner": "U001"}, records[0])
	assert.Equal(t, "Coffee empty", records[1]["subject"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordQuerierWrapsFailuresAsQueryErrors(t *testing.T) {
	base, mock := newMockBase(t)
	q := NewRecordQuerier(base)

	mock.ExpectBegin()
	mock.ExpectQuery("SELEC").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := q.Query(context.Background(), "SELEC broken")
	assert.True(t, apperrors.Is(err, apperrors.ErrQuery))
	assert.ErrorIs(t, err, assert.AnError)
}
