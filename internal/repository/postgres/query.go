package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
)

type recordQuerier struct {
	BaseRepository
}

// NewRecordQuerier runs rule queries inside read-only transactions.
func NewRecordQuerier(base BaseRepository) repository.RecordQuerier {
	return &recordQuerier{base}
}

func (r *recordQuerier) Query(ctx context.Context, query string) ([]model.Record, error) {
	var records []model.Record

	err := r.WithReadOnlyTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := tx.QueryxContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			row := make(map[string]interface{})
			if err := rows.MapScan(row); err != nil {
				return err
			}
			records = append(records, normalize(row))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, apperrors.Query("rule query failed", err)
	}
	return records, nil
}

// normalize turns driver byte slices into strings so templates print text.
func normalize(row map[string]interface{}) model.Record {
	rec := make(model.Record, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			rec[k] = string(b)
			continue
		}
		rec[k] = v
	}
	return rec
}
