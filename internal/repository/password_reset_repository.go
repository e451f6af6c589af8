package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"accounts/internal/models"
)

type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	Consume(ctx context.Context, tokenHash string, userID string, passwordHash string) error
}

type passwordResetRepository struct {
	db *sql.DB
}

func NewPasswordResetRepository(db *sql.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return r.db.QueryRowContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt,
	).Scan(&token.CreatedAt)
}

// Consume claims an unused, unexpired token row and applies the new password
// hash in one transaction. The `used_at IS NULL` guard makes the claim
// single-use even under concurrent requests for the same token.
func (r *passwordResetRepository) Consume(ctx context.Context, tokenHash string, userID string, passwordHash string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	claim := `
		UPDATE password_reset_tokens
		SET used_at = $1
		WHERE token_hash = $2
		AND user_id = $3
		AND used_at IS NULL
		AND expires_at > $1
	`
	res, err := tx.ExecContext(ctx, claim, time.Now().UTC(), tokenHash, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrResetTokenNotFound
	}

	update := `
		UPDATE users
		SET password_hash = $1, reset_code = NULL, reset_code_expires_at = NULL
		WHERE id = $2
	`
	res, err = tx.ExecContext(ctx, update, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}
