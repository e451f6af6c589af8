package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"accounts/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, req *models.UpdateProfileRequest) error
	UpdatePasswordHash(ctx context.Context, userID string, passwordHash string) error
	UpdateProfilePhoto(ctx context.Context, userID string, filename string) error
	SetResetCode(ctx context.Context, userID string, code string, expiresAt time.Time) error
	ClearResetCode(ctx context.Context, userID string) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, firstname, lastname, location, profile_photo, password_hash, reset_code, reset_code_expires_at, joined_on`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, firstname, lastname, location, password_hash, joined_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING joined_on
	`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.Firstname, user.Lastname, user.Location, user.PasswordHash, user.JoinedOn,
	).Scan(&user.JoinedOn)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "email") {
				return ErrDuplicateEmail
			}
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *userRepository) scanOne(row *sql.Row) (*models.User, error) {
	var u models.User
	var firstname, lastname, location, photo sql.NullString
	var resetCode sql.NullString
	var resetExpires sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.Email, &firstname, &lastname, &location, &photo, &u.PasswordHash, &resetCode, &resetExpires, &u.JoinedOn)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Firstname = firstname.String
	u.Lastname = lastname.String
	u.Location = location.String
	u.ProfilePhoto = photo.String
	if resetCode.Valid && resetExpires.Valid {
		u.ResetCode = &resetCode.String
		u.ResetCodeExpiresAt = &resetExpires.Time
	}
	return &u, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id string, req *models.UpdateProfileRequest) error {
	query := `
		UPDATE users
		SET firstname = COALESCE($1, firstname),
			lastname = COALESCE($2, lastname),
			location = COALESCE($3, location)
		WHERE id = $4
		RETURNING id
	`

	var outID string
	err := r.db.QueryRowContext(ctx, query, req.Firstname, req.Lastname, req.Location, id).Scan(&outID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (r *userRepository) UpdatePasswordHash(ctx context.Context, userID string, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2`
	return r.execExpectingRow(ctx, query, passwordHash, userID)
}

func (r *userRepository) UpdateProfilePhoto(ctx context.Context, userID string, filename string) error {
	query := `UPDATE users SET profile_photo = $1 WHERE id = $2`
	return r.execExpectingRow(ctx, query, filename, userID)
}

// SetResetCode overwrites any previously issued code in a single UPDATE, so
// the newest code is always the only valid one.
func (r *userRepository) SetResetCode(ctx context.Context, userID string, code string, expiresAt time.Time) error {
	query := `UPDATE users SET reset_code = $1, reset_code_expires_at = $2 WHERE id = $3`
	return r.execExpectingRow(ctx, query, code, expiresAt, userID)
}

func (r *userRepository) ClearResetCode(ctx context.Context, userID string) error {
	query := `UPDATE users SET reset_code = NULL, reset_code_expires_at = NULL WHERE id = $1`
	return r.execExpectingRow(ctx, query, userID)
}

func (r *userRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
