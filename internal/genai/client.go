package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/melodiemoment/api/internal/logger"
)

var (
	ErrConfigInvalid   = errors.New("genai config invalid")
	ErrRequestFailed   = errors.New("genai request failed")
	ErrResponseInvalid = errors.New("genai response invalid")
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 45 * time.Second
)

// Config Gemini and Imagen settings
type Config struct {
	APIKey             string
	BaseURL            string
	TextModel          string
	FallbackTextModel  string
	ImageModel         string
	FallbackImageModel string
	Timeout            time.Duration
}

// TextOptions per call generation options
type TextOptions struct {
	JSON        bool
	Temperature *float64
}

// Image generated image bytes
type Image struct {
	Data     []byte
	MimeType string
	Model    string
}

// Client calls the Generative Language REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a client. A client without API key reports
// Enabled() == false and fails every call with ErrConfigInvalid.
func NewClient(cfg Config) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{cfg: cfg, httpClient: &http.Client{}}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.APIKey != ""
}

// GenerateText runs prompt against the text model, retrying once on the
// fallback model.
func (c *Client) GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, error) {
	if !c.Enabled() {
		return "", ErrConfigInvalid
	}
	var lastErr error
	for _, model := range modelChain(c.cfg.TextModel, c.cfg.FallbackTextModel) {
		text, err := c.generateContent(ctx, model, prompt, opts)
		if err == nil {
			return text, nil
		}
		logger.Warnw("genai_text_model_failed", "model", model, "error", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no text model configured", ErrConfigInvalid)
	}
	return "", lastErr
}

// GenerateImage renders prompt with the image model, retrying once on the
// fallback model.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	if !c.Enabled() {
		return nil, ErrConfigInvalid
	}
	var lastErr error
	for _, model := range modelChain(c.cfg.ImageModel, c.cfg.FallbackImageModel) {
		image, err := c.predictImage(ctx, model, prompt)
		if err == nil {
			return image, nil
		}
		logger.Warnw("genai_image_model_failed", "model", model, "error", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no image model configured", ErrConfigInvalid)
	}
	return nil, lastErr
}

func modelChain(primary, fallback string) []string {
	chain := make([]string, 0, 2)
	if primary = strings.TrimSpace(primary); primary != "" {
		chain = append(chain, primary)
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" && fallback != primary {
		chain = append(chain, fallback)
	}
	return chain
}

type contentPart struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type generateContentRequest struct {
	Contents         []content               `json:"contents"`
	GenerationConfig *generationConfigFields `json:"generationConfig,omitempty"`
}

type generationConfigFields struct {
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

func (c *Client) generateContent(ctx context.Context, model, prompt string, opts TextOptions) (string, error) {
	payload := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []contentPart{{Text: prompt}}}},
	}
	if opts.JSON || opts.Temperature != nil {
		payload.GenerationConfig = &generationConfigFields{Temperature: opts.Temperature}
		if opts.JSON {
			payload.GenerationConfig.ResponseMimeType = "application/json"
		}
	}
	respBody, err := c.post(ctx, model, "generateContent", payload)
	if err != nil {
		return "", err
	}

	var resp generateContentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	var builder strings.Builder
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			builder.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty candidate", ErrResponseInvalid)
	}
	return text, nil
}

type predictRequest struct {
	Instances  []map[string]string    `json:"instances"`
	Parameters map[string]interface{} `json:"parameters"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

func (c *Client) predictImage(ctx context.Context, model, prompt string) (*Image, error) {
	payload := predictRequest{
		Instances: []map[string]string{{"prompt": prompt}},
		Parameters: map[string]interface{}{
			"sampleCount": 1,
			"aspectRatio": "1:1",
		},
	}
	respBody, err := c.post(ctx, model, "predict", payload)
	if err != nil {
		return nil, err
	}

	var resp predictResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if len(resp.Predictions) == 0 || resp.Predictions[0].BytesBase64Encoded == "" {
		return nil, fmt.Errorf("%w: no image returned", ErrResponseInvalid)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: image not base64", ErrResponseInvalid)
	}
	mimeType := resp.Predictions[0].MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &Image{Data: data, MimeType: mimeType, Model: model}, nil
}

func (c *Client) post(ctx context.Context, model, method string, payload interface{}) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request", ErrRequestFailed)
	}
	endpoint := fmt.Sprintf("%s/models/%s:%s?key=%s", c.cfg.BaseURL, url.PathEscape(model), method, url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d model=%s", ErrRequestFailed, resp.StatusCode, model)
	}
	return respBody, nil
}
