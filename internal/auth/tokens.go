package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Purpose claim values. Session tokens carry no purpose claim; a token
	// with any purpose claim never verifies as a session token.
	purposePasswordReset = "password_reset"
	purposeRefresh       = "refresh"

	resetTokenTTL   = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenMalformed = errors.New("token malformed")
)

// TokenService issues and verifies HS256 JWTs for sessions, the password
// reset flow, and refresh. Verification is a pure local signature check.
type TokenService struct {
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, sessionTTL time.Duration) *TokenService {
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	return &TokenService{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

func (s *TokenService) IssueSession(userID string) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.sessionTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifySession returns the user id a session token was issued for. Reset
// and refresh tokens are rejected here regardless of validity.
func (s *TokenService) VerifySession(token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	if _, hasPurpose := claims["purpose"]; hasPurpose {
		return "", ErrTokenMalformed
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrTokenMalformed
	}
	return sub, nil
}

// IssueReset mints a single-purpose token for the final password reset step.
// The jti is returned so the caller can persist it for single-use tracking.
func (s *TokenService) IssueReset(userID string) (token string, jti string, expiresAt time.Time, err error) {
	now := s.now().UTC()
	jti = uuid.NewString()
	expiresAt = now.Add(resetTokenTTL)
	claims := jwt.MapClaims{
		"sub":     userID,
		"jti":     jti,
		"purpose": purposePasswordReset,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token, jti, expiresAt, err
}

func (s *TokenService) VerifyReset(token string) (userID string, jti string, err error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", "", err
	}
	if purpose, _ := claims["purpose"].(string); purpose != purposePasswordReset {
		return "", "", ErrTokenMalformed
	}
	sub, _ := claims["sub"].(string)
	jti, _ = claims["jti"].(string)
	if sub == "" || jti == "" {
		return "", "", ErrTokenMalformed
	}
	return sub, jti, nil
}

func (s *TokenService) IssueRefresh(userID string) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub":     userID,
		"jti":     uuid.NewString(),
		"purpose": purposeRefresh,
		"iat":     now.Unix(),
		"exp":     now.Add(refreshTokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) VerifyRefresh(token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}
	if purpose, _ := claims["purpose"].(string); purpose != purposeRefresh {
		return "", ErrTokenMalformed
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrTokenMalformed
	}
	return sub, nil
}

// SessionTTL reports how long issued session tokens live.
func (s *TokenService) SessionTTL() time.Duration {
	return s.sessionTTL
}

func (s *TokenService) parse(token string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
