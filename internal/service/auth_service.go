package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/melodiemoment/api/internal/config"

	"golang.org/x/crypto/bcrypt"
)

const defaultSessionTTL = 24 * time.Hour

// AuthService single admin login with an HMAC signed session cookie.
// The token is "<issuedUnix>.<hex hmac-sha256(secret, issuedUnix)>".
type AuthService struct {
	cfg config.AdminConfig
	now func() time.Time
}

// NewAuthService creates the admin auth service.
func NewAuthService(cfg config.AdminConfig) *AuthService {
	return &AuthService{cfg: cfg, now: time.Now}
}

// HashPassword hashes password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Configured reports whether a login is possible at all.
func (s *AuthService) Configured() bool {
	return strings.TrimSpace(s.cfg.PasswordHash) != "" && strings.TrimSpace(s.cfg.SessionSecret) != ""
}

// SessionTTL lifetime of an issued token.
func (s *AuthService) SessionTTL() time.Duration {
	if s.cfg.SessionTTLHours <= 0 {
		return defaultSessionTTL
	}
	return time.Duration(s.cfg.SessionTTLHours) * time.Hour
}

// CookieSecure whether the session cookie is https only.
func (s *AuthService) CookieSecure() bool {
	return s.cfg.CookieSecure
}

// Login checks password and returns a fresh session token.
func (s *AuthService) Login(password string) (string, time.Time, error) {
	if !s.Configured() {
		return "", time.Time{}, ErrAdminNotConfigured
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidPassword
	}
	issuedAt := s.now()
	return s.IssueToken(issuedAt), issuedAt.Add(s.SessionTTL()), nil
}

// IssueToken signs issuedAt.
func (s *AuthService) IssueToken(issuedAt time.Time) string {
	issued := strconv.FormatInt(issuedAt.Unix(), 10)
	return issued + "." + s.sign(issued)
}

// VerifyToken checks format, signature and age of token. Every failure is
// the same ErrUnauthorized.
func (s *AuthService) VerifyToken(token string) error {
	if strings.TrimSpace(s.cfg.SessionSecret) == "" {
		return ErrUnauthorized
	}
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ErrUnauthorized
	}
	issuedUnix, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || issuedUnix <= 0 {
		return ErrUnauthorized
	}
	if !hmac.Equal([]byte(strings.ToLower(parts[1])), []byte(s.sign(parts[0]))) {
		return ErrUnauthorized
	}
	issuedAt := time.Unix(issuedUnix, 0)
	now := s.now()
	if issuedAt.After(now.Add(time.Minute)) || now.Sub(issuedAt) > s.SessionTTL() {
		return ErrUnauthorized
	}
	return nil
}

func (s *AuthService) sign(issued string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.SessionSecret))
	_, _ = mac.Write([]byte(issued))
	return hex.EncodeToString(mac.Sum(nil))
}
