package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/melodiemoment/api/internal/config"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/repository"
)

const (
	referralCodePrefix   = "MELODIE"
	referralCodeLength   = 6
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCreateTries  = 3
)

// ReferralService hands out one referral code per customer email.
type ReferralService struct {
	repo repository.ReferralRepository
	site config.SiteConfig
}

// NewReferralService creates the referral service.
func NewReferralService(repo repository.ReferralRepository, site config.SiteConfig) *ReferralService {
	return &ReferralService{repo: repo, site: site}
}

// GetOrCreate returns the customer's code, creating it on first delivery.
func (s *ReferralService) GetOrCreate(email, orderID string) (*models.ReferralCode, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrInvalidInput
	}
	existing, err := s.repo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var lastErr error
	for i := 0; i < referralCreateTries; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, err
		}
		record := &models.ReferralCode{Code: code, Email: email, OrderID: orderID}
		if lastErr = s.repo.Create(record); lastErr == nil {
			return record, nil
		}
		// a parallel delivery for the same customer may have won
		if existing, err := s.repo.GetByEmail(email); err == nil && existing != nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("create referral code: %w", lastErr)
}

// URL returns the public referral link for code.
func (s *ReferralService) URL(code string) string {
	return s.site.BaseURL + s.site.ReferralPath + "/" + code
}

func generateReferralCode() (string, error) {
	var b strings.Builder
	b.WriteString(referralCodePrefix)
	limit := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(referralCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
