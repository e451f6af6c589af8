package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hashMethod     = "pbkdf2:sha256"
	hashIterations = 600000
	saltBytes      = 16
	keyBytes       = 32
)

// PasswordHasher derives and verifies PBKDF2-SHA256 password hashes encoded
// as "pbkdf2:sha256:<iterations>$<salt>$<hexdigest>". The iteration count is
// stored in the hash itself, so it can be raised later without invalidating
// rows written with the old cost.
type PasswordHasher struct{}

func (PasswordHasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)
	key := pbkdf2.Key([]byte(plaintext), []byte(saltHex), hashIterations, keyBytes, sha256.New)
	return fmt.Sprintf("%s:%d$%s$%s", hashMethod, hashIterations, saltHex, hex.EncodeToString(key)), nil
}

func (PasswordHasher) Verify(plaintext, encoded string) bool {
	parts := strings.SplitN(encoded, "$", 3)
	if len(parts) != 3 {
		return false
	}
	method, salt, digest := parts[0], parts[1], parts[2]

	if !strings.HasPrefix(method, hashMethod+":") {
		return false
	}
	iterations, err := strconv.Atoi(strings.TrimPrefix(method, hashMethod+":"))
	if err != nil || iterations <= 0 {
		return false
	}

	want, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}

	got := pbkdf2.Key([]byte(plaintext), []byte(salt), iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
