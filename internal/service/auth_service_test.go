package service

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/melodiemoment/api/internal/config"
)

func newAuthForTest(t *testing.T, now time.Time) *AuthService {
	t.Helper()
	hash, err := HashPassword("geheim-123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	svc := NewAuthService(config.AdminConfig{
		PasswordHash:    hash,
		SessionSecret:   "a-long-session-secret-for-tests-only",
		SessionTTLHours: 2,
	})
	svc.now = func() time.Time { return now }
	return svc
}

func TestAuthLoginIssuesVerifiableToken(t *testing.T) {
	now := time.Unix(1760000000, 0)
	svc := newAuthForTest(t, now)

	if _, _, err := svc.Login("falsch"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected invalid password, got %v", err)
	}
	token, expiresAt, err := svc.Login("geheim-123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !expiresAt.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] != strconv.FormatInt(now.Unix(), 10) || len(parts[1]) != 64 {
		t.Fatalf("unexpected token format: %s", token)
	}
	if err := svc.VerifyToken(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
}

func TestAuthVerifyRejectsTamperedAndExpiredTokens(t *testing.T) {
	now := time.Unix(1760000000, 0)
	svc := newAuthForTest(t, now)
	token := svc.IssueToken(now)

	cases := []string{
		"",
		"abc",
		"1760000000",
		"1760000000.",
		"x." + strings.Split(token, ".")[1],
		strconv.FormatInt(now.Unix()+1, 10) + "." + strings.Split(token, ".")[1],
		token + "00",
	}
	for _, bad := range cases {
		if err := svc.VerifyToken(bad); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("token %q should be rejected, got %v", bad, err)
		}
	}
	svc.now = func() time.Time { return now.Add(3 * time.Hour) }
	if err := svc.VerifyToken(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired token should be rejected, got %v", err)
	}
}

func TestAuthWithoutConfiguration(t *testing.T) {
	svc := NewAuthService(config.AdminConfig{})
	if svc.Configured() {
		t.Fatalf("empty config must not be configured")
	}
	if _, _, err := svc.Login("x"); !errors.Is(err, ErrAdminNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	if err := svc.VerifyToken("1.2"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
