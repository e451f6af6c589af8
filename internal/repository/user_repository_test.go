package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"accounts/internal/models"
)

func userRow(u *models.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "firstname", "lastname", "location",
		"profile_photo", "password_hash", "reset_code", "reset_code_expires_at", "joined_on",
	}).AddRow(u.ID, u.Username, u.Email, u.Firstname, u.Lastname, u.Location,
		u.ProfilePhoto, u.PasswordHash, nil, nil, u.JoinedOn)
}

func TestUserRepositoryCreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	repo := NewUserRepository(db)
	err = repo.Create(context.Background(), &models.User{ID: "u1", Username: "alice", Email: "a@x.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUserRepositoryCreateDuplicateUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

	repo := NewUserRepository(db)
	err = repo.Create(context.Background(), &models.User{ID: "u1", Username: "alice", Email: "a@x.com"})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestUserRepositoryGetByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	joined := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, username, email, .+ FROM users\s+WHERE LOWER\(email\) = LOWER\(\$1\)`).
		WithArgs("a@x.com").
		WillReturnRows(userRow(&models.User{
			ID: "u1", Username: "alice", Email: "a@x.com", PasswordHash: "hash", JoinedOn: joined,
		}))

	repo := NewUserRepository(db)
	u, err := repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u.ID != "u1" || u.Username != "alice" || !u.JoinedOn.Equal(joined) {
		t.Fatalf("unexpected user %+v", u)
	}
	if u.ResetCode != nil || u.ResetCodeExpiresAt != nil {
		t.Fatalf("expected no reset code on fresh user, got %+v", u)
	}
}

func TestUserRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, username, email").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	repo := NewUserRepository(db)
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepositorySetResetCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	expires := time.Now().Add(15 * time.Minute).UTC()
	mock.ExpectExec(`UPDATE users SET reset_code = \$1, reset_code_expires_at = \$2 WHERE id = \$3`).
		WithArgs("1234", expires, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewUserRepository(db)
	if err := repo.SetResetCode(context.Background(), "u1", "1234", expires); err != nil {
		t.Fatalf("SetResetCode: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUserRepositoryClearResetCodeUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE users SET reset_code = NULL`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewUserRepository(db)
	if err := repo.ClearResetCode(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepositoryUpdateProfilePartial(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	first := "Alice"
	mock.ExpectQuery(`UPDATE users\s+SET firstname = COALESCE\(\$1, firstname\)`).
		WithArgs("Alice", nil, nil, "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))

	repo := NewUserRepository(db)
	err = repo.UpdateProfile(context.Background(), "u1", &models.UpdateProfileRequest{Firstname: &first})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
}
