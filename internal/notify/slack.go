package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SlackAlerter posts to a Slack incoming webhook.
type SlackAlerter struct {
	webhookURL string
	httpClient *http.Client
}

// NewSlackAlerter returns nil when webhookURL is empty.
func NewSlackAlerter(webhookURL string) *SlackAlerter {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil
	}
	return &SlackAlerter{webhookURL: webhookURL, httpClient: &http.Client{Timeout: defaultHTTPTimeout}}
}

func (a *SlackAlerter) Name() string { return "slack" }

func (a *SlackAlerter) Alert(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: slack status=%d", ErrRequestFailed, resp.StatusCode)
	}
	return nil
}

// MailAlerter sends ops notices to a fixed mailbox when Slack is not set up.
type MailAlerter struct {
	mailer Mailer
	to     string
}

// NewMailAlerter returns nil unless both mailer and address are set.
func NewMailAlerter(mailer Mailer, to string) *MailAlerter {
	to = strings.TrimSpace(to)
	if mailer == nil || to == "" {
		return nil
	}
	return &MailAlerter{mailer: mailer, to: to}
}

func (a *MailAlerter) Name() string { return "mail:" + a.mailer.Name() }

func (a *MailAlerter) Alert(ctx context.Context, text string) error {
	subject := text
	if idx := strings.Index(subject, "\n"); idx >= 0 {
		subject = subject[:idx]
	}
	return a.mailer.Send(ctx, Message{To: a.to, Subject: "[Ops] " + subject, Text: text})
}
