package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const machineTokenPrefix = "rio_"

// TokenService validates machine tokens against a configured allow
// list. Tokens are held as sha256 hashes only; the plaintext never
// stays in memory past construction. With no tokens configured the
// service accepts everything, for development setups.
type TokenService struct {
	hashes [][]byte
	logger *zap.Logger
}

func NewTokenService(tokens []string, logger *zap.Logger) *TokenService {
	s := &TokenService{logger: logger}
	for _, token := range tokens {
		if token == "" {
			continue
		}
		hash := HashToken(token)
		raw, _ := hex.DecodeString(hash)
		s.hashes = append(s.hashes, raw)
	}
	if len(s.hashes) == 0 {
		logger.Warn("No machine tokens configured, API authentication is disabled")
	}
	return s
}

// Enabled reports whether any token is configured.
func (s *TokenService) Enabled() bool {
	return len(s.hashes) > 0
}

// Validate checks a presented token against the allow list.
func (s *TokenService) Validate(token string) bool {
	if !s.Enabled() {
		return true
	}
	hash := sha256.Sum256([]byte(token))
	for _, known := range s.hashes {
		if subtle.ConstantTimeCompare(hash[:], known) == 1 {
			return true
		}
	}
	return false
}

// GenerateToken creates a new machine token and its storage hash.
// Format: rio_<uuid>_<random_secret>
func GenerateToken() (string, string, error) {
	id := uuid.New()

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	token := fmt.Sprintf("%s%s_%s", machineTokenPrefix, id.String(), secret)
	return token, HashToken(token), nil
}

// HashToken hashes a machine token for storage or comparison.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidTokenFormat checks the rio_<uuid>_<secret> shape.
func ValidTokenFormat(token string) bool {
	if len(token) < len(machineTokenPrefix)+36+1+64 {
		return false
	}
	return token[:len(machineTokenPrefix)] == machineTokenPrefix
}
