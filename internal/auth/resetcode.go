package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"accounts/internal/models"
)

// ResetCodeTTL is how long an emailed reset code stays valid.
const ResetCodeTTL = 15 * time.Minute

const resetCodeDigits = 4

var (
	ErrCodeNotRequested = errors.New("no reset code requested")
	ErrCodeMismatch     = errors.New("reset code mismatch")
	ErrCodeExpired      = errors.New("reset code expired")
)

// ResetCodes generates and checks the short numeric codes emailed during the
// password reset flow. Persistence of the code on the user row is the
// repository's job; issuing a new code overwrites any earlier one.
type ResetCodes struct {
	now func() time.Time
}

func NewResetCodes() *ResetCodes {
	return &ResetCodes{now: time.Now}
}

// Generate returns a uniformly random 4-digit code.
func (c *ResetCodes) Generate() (string, error) {
	code := ""
	for i := 0; i < resetCodeDigits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate reset code: %w", err)
		}
		code += n.String()
	}
	return code, nil
}

// Validate checks a submitted code against the one stored on the user row.
// The stored code is not cleared here; the caller clears it once the code
// has been exchanged for a reset token.
func (c *ResetCodes) Validate(u *models.User, submitted string) error {
	if u.ResetCode == nil || u.ResetCodeExpiresAt == nil {
		return ErrCodeNotRequested
	}
	if subtle.ConstantTimeCompare([]byte(*u.ResetCode), []byte(submitted)) != 1 {
		return ErrCodeMismatch
	}
	if u.ResetCodeExpiresAt.Before(c.now().UTC()) {
		return ErrCodeExpired
	}
	return nil
}
