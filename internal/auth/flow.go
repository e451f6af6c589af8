package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"accounts/internal/models"
	"accounts/internal/repository"
	"accounts/internal/services"
)

// Service orchestrates login, logout and the three-step password reset
// sequence over the user store, the reset-token store and the mailer.
type Service struct {
	users  repository.UserRepository
	resets repository.PasswordResetRepository
	tokens *TokenService
	codes  *ResetCodes
	hasher PasswordHasher
	mailer services.EmailSender

	// dummyHash is compared against when login hits an unknown email, so
	// missing-user and wrong-password take comparable time.
	dummyHash string

	now func() time.Time
}

// fallbackDummyHash is a valid encoded hash of a throwaway string. It keeps
// the dummy compare on the full PBKDF2 path even if hashing a fresh dummy
// fails at construction time.
const fallbackDummyHash = "pbkdf2:sha256:600000$3b1f8a2c9d4e5f60718293a4b5c6d7e8$f00284d0735329b06a3b55b8e8c3b1e7621ee867d1bf1766ec505aaa4c539f86"

func NewService(users repository.UserRepository, resets repository.PasswordResetRepository, tokens *TokenService, mailer services.EmailSender) *Service {
	s := &Service{
		users:  users,
		resets: resets,
		tokens: tokens,
		codes:  NewResetCodes(),
		mailer: mailer,
		now:    time.Now,
	}
	dummy, err := s.hasher.Hash(uuid.NewString())
	if err != nil {
		dummy = fallbackDummyHash
	}
	s.dummyHash = dummy
	return s
}

type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	Firstname string
	Lastname  string
	Location  string
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		Firstname:    input.Firstname,
		Lastname:     input.Lastname,
		Location:     input.Location,
		PasswordHash: hash,
		JoinedOn:     s.now().UTC(),
	}

	if err := s.users.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, ErrUsernameTaken
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

type LoginResult struct {
	Token        string
	RefreshToken string
	ExpiresIn    int64
	User         *models.User
}

// Login verifies credentials and issues a session and a refresh token.
// Missing user and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.IssueSession(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &LoginResult{
		Token:        token,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.SessionTTL().Seconds()),
		User:         u,
	}, nil
}

// Refresh exchanges a valid refresh token for a new session token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (token string, expiresIn int64, err error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", 0, err
	}
	token, err = s.tokens.IssueSession(userID)
	if err != nil {
		return "", 0, fmt.Errorf("issue session token: %w", err)
	}
	return token, int64(s.tokens.SessionTTL().Seconds()), nil
}

// RequestPasswordReset starts the reset flow. An unknown email succeeds
// silently so the response never reveals whether an account exists, and a
// mail dispatch failure is logged rather than surfaced for the same reason.
// The generated code is returned for the development echo flag only.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return "", err
	}

	expiresAt := s.now().UTC().Add(ResetCodeTTL)
	if err := s.users.SetResetCode(ctx, u.ID, code, expiresAt); err != nil {
		return "", fmt.Errorf("store reset code: %w", err)
	}

	subject := "Your password reset code"
	body := fmt.Sprintf("Hi %s,\n\nYour password reset code is: %s\n\nIt expires in %d minutes. If you did not request this, you can ignore this email.",
		u.Username, code, int(ResetCodeTTL.Minutes()))
	if err := s.mailer.Send(u.Email, subject, body); err != nil {
		log.Printf("Failed to send reset code to user %s: %v", u.ID, err)
	}

	return code, nil
}

// VerifyResetCode exchanges a valid emailed code for a short-lived reset
// token. On success the code is cleared from the user row; from here on only
// the reset token's own expiry and single-use record gate the flow.
func (s *Service) VerifyResetCode(ctx context.Context, email, code string) (string, time.Time, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", time.Time{}, ErrUserNotFound
		}
		return "", time.Time{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.codes.Validate(u, code); err != nil {
		return "", time.Time{}, err
	}

	token, jti, expiresAt, err := s.tokens.IssueReset(u.ID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.resets.Create(ctx, &models.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: hashResetJTI(jti),
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return "", time.Time{}, fmt.Errorf("store reset token: %w", err)
	}

	if err := s.users.ClearResetCode(ctx, u.ID); err != nil {
		return "", time.Time{}, fmt.Errorf("clear reset code: %w", err)
	}

	return token, expiresAt, nil
}

// ResetPassword consumes a reset token and sets the new password. The token
// row is claimed and the hash overwritten in a single transaction, so the
// same token can never complete two password changes.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	userID, jti, err := s.tokens.VerifyReset(token)
	if err != nil {
		return ErrResetTokenInvalid
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.resets.Consume(ctx, hashResetJTI(jti), userID, hash); err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("consume reset token: %w", err)
	}
	return nil
}

func hashResetJTI(jti string) string {
	sum := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(sum[:])
}
