package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository"
	apperrors "github.com/jwalitptl/notifier/pkg/errors"
	"github.com/jwalitptl/notifier/pkg/security"
)

type deliverySystemRepository struct {
	BaseRepository
	encryptor security.Encryptor
}

// NewDeliverySystemRepository decrypts stored passwords with enc.
func NewDeliverySystemRepository(base BaseRepository, enc security.Encryptor) repository.DeliverySystemRepository {
	return &deliverySystemRepository{BaseRepository: base, encryptor: enc}
}

func (r *deliverySystemRepository) Get(ctx context.Context, id uuid.UUID) (*model.DeliverySystem, error) {
	query := `
		SELECT id, name, system_type, server_address, port, user_name, user_domain,
			password_encrypted, enable_ssl, email_address, body_is_html
		FROM delivery_systems
		WHERE id = $1
	`

	var ds model.DeliverySystem
	if err := r.db.GetContext(ctx, &ds, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("delivery system", err)
		}
		return nil, fmt.Errorf("failed to get delivery system: %w", err)
	}

	if ds.PasswordEncrypted != "" {
		plain, err := security.DecryptString(r.encryptor, ds.PasswordEncrypted)
		if err != nil {
			return nil, apperrors.Configuration(fmt.Sprintf("delivery system %s credentials cannot be decrypted", ds.Name), err)
		}
		ds.Password = plain
	}
	return &ds, nil
}
