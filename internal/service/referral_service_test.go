package service

import (
	"errors"
	"regexp"
	"testing"

	"github.com/melodiemoment/api/internal/config"
)

func TestReferralGetOrCreateReusesCodePerEmail(t *testing.T) {
	env := newServiceTestEnv(t)
	svc := NewReferralService(env.referrals, config.SiteConfig{BaseURL: "https://melodiemoment.de", ReferralPath: "/empfehlung"})

	first, err := svc.GetOrCreate("Jonas@Example.com", "order-1")
	if err != nil {
		t.Fatalf("create referral failed: %v", err)
	}
	if !regexp.MustCompile(`^MELODIE[A-Z2-9]{6}$`).MatchString(first.Code) {
		t.Fatalf("unexpected code %s", first.Code)
	}
	second, err := svc.GetOrCreate(" jonas@example.com ", "order-2")
	if err != nil {
		t.Fatalf("second lookup failed: %v", err)
	}
	if second.Code != first.Code || second.OrderID != "order-1" {
		t.Fatalf("code should be reused: %+v vs %+v", second, first)
	}
	if got := svc.URL(first.Code); got != "https://melodiemoment.de/empfehlung/"+first.Code {
		t.Fatalf("unexpected url %s", got)
	}
	if _, err := svc.GetOrCreate("  ", "order-3"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCaptchaDisabledAcceptsEverything(t *testing.T) {
	var nilCaptcha *CaptchaService
	if nilCaptcha.Enabled() || nilCaptcha.Verify(CaptchaVerifyPayload{}) != nil {
		t.Fatalf("nil captcha must be disabled")
	}
	svc := NewCaptchaService(config.CaptchaConfig{Provider: "none"})
	if err := svc.Verify(CaptchaVerifyPayload{}); err != nil {
		t.Fatalf("disabled captcha rejected: %v", err)
	}
	if _, err := svc.GenerateImageChallenge(); !errors.Is(err, ErrCaptchaRequired) {
		t.Fatalf("disabled captcha must not issue challenges, got %v", err)
	}
}
