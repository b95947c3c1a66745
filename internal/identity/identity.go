// Package identity covers password verification and JWT issuance. The rest
// of the application treats it as a black box: it takes credentials in and
// hands a signed bearer token out.
package identity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword returns "salt:digest" with a random salt. Stable format so
// the verify side can split it back apart.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	sum := sha256.Sum256(append(salt, []byte(password)...))
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(sum[:]), nil
}

// VerifyPassword checks password against a stored "salt:digest" hash.
func VerifyPassword(stored, password string) bool {
	parts := strings.SplitN(stored, ":", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	sum := sha256.Sum256(append(salt, []byte(password)...))
	want, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	return hmac.Equal(sum[:], want)
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

type Claims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"display_name,omitempty"`
}

func (s TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create signs a token for username. Subject carries the username; the
// display name rides along so the server never needs a user lookup just
// to label a principal.
func (s TokenService) Create(username, displayName string) (string, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	ttl := s.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		DisplayName: displayName,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.Secret))
}

// Parse verifies a token and returns its claims.
func (s TokenService) Parse(token string) (Claims, error) {
	if strings.TrimSpace(s.Secret) == "" {
		return Claims{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.Secret), nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("subject claim required")
	}
	return *claims, nil
}

// Ensure fails fast when the token service is not usable.
func (s TokenService) Ensure() error {
	if strings.TrimSpace(s.Secret) == "" {
		return fmt.Errorf("jwt secret is required")
	}
	return nil
}
