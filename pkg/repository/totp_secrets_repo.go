package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/qr-handoff/pkg/domain"
)

// TOTPSecretsRepository reads per-user TOTP secrets provisioned by the
// primary identity service. Secrets are AES-GCM encrypted at rest; this
// service only ever decrypts them transiently for code validation.
type TOTPSecretsRepository struct {
	db *sql.DB
}

// NewTOTPSecretsRepository creates a new TOTP secrets repository.
func NewTOTPSecretsRepository(db *sql.DB) *TOTPSecretsRepository {
	return &TOTPSecretsRepository{db: db}
}

// GetSecret returns the encrypted TOTP secret for a user.
func (r *TOTPSecretsRepository) GetSecret(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `
		SELECT secret_encrypted
		FROM mfa_secrets
		WHERE user_id = $1 AND method = 'totp'
	`
	var encrypted string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrTOTPNotEnabled
	}
	if err != nil {
		return "", err
	}
	return encrypted, nil
}
