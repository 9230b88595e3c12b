package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/genai"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/metrics"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/repository"

	"github.com/go-pdf/fpdf"
)

type occasionStyle struct {
	label string
	style string
}

var occasionStyles = map[string]occasionStyle{
	constants.OccasionHochzeit:   {label: "Hochzeit", style: "romantic, heartfelt wedding ballad, warm and celebratory"},
	constants.OccasionGeburtstag: {label: "Geburtstag", style: "joyful, upbeat birthday song, playful and warm"},
	constants.OccasionJubilaeum:  {label: "Jubiläum", style: "nostalgic, grateful anniversary song, tender"},
	constants.OccasionFirma:      {label: "Firmenfeier", style: "motivating, confident team anthem, polished"},
	constants.OccasionTaufe:      {label: "Taufe", style: "gentle, soft lullaby-like song, hopeful"},
	constants.OccasionAndere:     {label: "Besonderer Anlass", style: "personal, emotional song, sincere"},
}

var genreStyles = map[string]string{
	"pop":        "modern German pop, catchy chorus, clean production",
	"rock":       "German rock, driving guitars, live drums",
	"schlager":   "German Schlager, sing-along chorus, bright synths",
	"akustik":    "acoustic singer-songwriter, guitar and piano, intimate vocals",
	"ballade":    "piano ballad, strings, emotional build-up",
	"hiphop":     "German hip-hop, laid-back beat, melodic hook",
	"country":    "country pop, acoustic guitar, warm harmonies",
	"jazz":       "smooth jazz, brushed drums, upright bass",
	"kinderlied": "children's song, simple melody, cheerful",
}

var moodStyles = map[int]string{
	1: "calm, melancholic, slow tempo",
	2: "tender, reflective, moderate tempo",
	3: "warm, balanced, mid tempo",
	4: "happy, uplifting, lively tempo",
	5: "euphoric, energetic, fast tempo",
}

const (
	defaultGenreStyle = "contemporary German pop, emotional vocals"
	coverStylePrompt  = "square album cover, painterly illustration, soft light, no text, no letters"
)

// IsValidOccasion reports whether occasion is offered.
func IsValidOccasion(occasion string) bool {
	_, ok := occasionStyles[occasion]
	return ok
}

func occasionLabel(occasion string) string {
	if s, ok := occasionStyles[occasion]; ok {
		return s.label
	}
	return occasion
}

func occasionStyleOf(occasion string) string {
	if s, ok := occasionStyles[occasion]; ok {
		return s.style
	}
	return occasionStyles[constants.OccasionAndere].style
}

func genreStyleOf(genre string) string {
	if s, ok := genreStyles[strings.ToLower(strings.TrimSpace(genre))]; ok {
		return s
	}
	return defaultGenreStyle
}

func moodStyleOf(mood int) string {
	if s, ok := moodStyles[mood]; ok {
		return s
	}
	return moodStyles[3]
}

// BuildSongPrompt renders the model instruction for a song style prompt.
func BuildSongPrompt(order *models.Order) string {
	var b strings.Builder
	b.WriteString("Write a prompt for an AI music generator (Suno style) for a personalized German song.\n")
	b.WriteString("Return only the prompt text, at most 1000 characters, English style tags followed by German lyric guidance.\n\n")
	fmt.Fprintf(&b, "Style: %s; %s; %s\n", genreStyleOf(order.Genre), occasionStyleOf(order.Occasion), moodStyleOf(order.Mood))
	fmt.Fprintf(&b, "Occasion: %s\n", occasionLabel(order.Occasion))
	fmt.Fprintf(&b, "Recipient: %s\n", strings.TrimSpace(order.RecipientName))
	if rel := strings.TrimSpace(order.Relationship); rel != "" {
		fmt.Fprintf(&b, "Relationship: %s\n", rel)
	}
	fmt.Fprintf(&b, "Story:\n%s\n", strings.TrimSpace(order.Story))
	return b.String()
}

// BuildCoverPrompt renders the image prompt for a cover.
func BuildCoverPrompt(order *models.Order) string {
	return fmt.Sprintf("%s. Mood: %s. Theme: %s. Colors matching %s.",
		coverStylePrompt,
		moodStyleOf(order.Mood),
		occasionStyleOf(order.Occasion),
		genreStyleOf(order.Genre),
	)
}

// BuildLyricsPrompt renders the instruction for full German lyrics.
func BuildLyricsPrompt(order *models.Order) string {
	var b strings.Builder
	b.WriteString("Schreibe einen deutschen Songtext mit zwei Strophen, Refrain und Bridge.\n")
	b.WriteString("Gib nur den Songtext zurück, Abschnitte mit [Strophe 1], [Refrain], [Strophe 2], [Bridge] markiert.\n\n")
	fmt.Fprintf(&b, "Anlass: %s\n", occasionLabel(order.Occasion))
	fmt.Fprintf(&b, "Für: %s\n", strings.TrimSpace(order.RecipientName))
	fmt.Fprintf(&b, "Stimmung: %s\n", moodStyleOf(order.Mood))
	fmt.Fprintf(&b, "Geschichte:\n%s\n", strings.TrimSpace(order.Story))
	return b.String()
}

// Generator text and image generation used by the admin tools.
type Generator interface {
	Enabled() bool
	GenerateText(ctx context.Context, prompt string, opts genai.TextOptions) (string, error)
	GenerateImage(ctx context.Context, prompt string) (*genai.Image, error)
}

// SongPromptResult generated prompt text
type SongPromptResult struct {
	OrderNumber string `json:"orderNumber"`
	Prompt      string `json:"prompt"`
	Style       string `json:"style"`
}

// GenerationService wraps the generative API for admin production tools.
type GenerationService struct {
	orderRepo    repository.OrderRepository
	deliverables *DeliverableService
	generator    Generator
	metrics      *metrics.ShopMetrics
}

// NewGenerationService creates the generation service.
func NewGenerationService(orderRepo repository.OrderRepository, deliverables *DeliverableService, generator Generator, m *metrics.ShopMetrics) *GenerationService {
	return &GenerationService{
		orderRepo:    orderRepo,
		deliverables: deliverables,
		generator:    generator,
		metrics:      m,
	}
}

// GenerateSongPrompt asks the text model for a music generator prompt.
func (s *GenerationService) GenerateSongPrompt(ctx context.Context, orderNumber string) (*SongPromptResult, error) {
	order, err := s.load(orderNumber)
	if err != nil {
		return nil, err
	}
	text, err := s.text(ctx, "song_prompt", BuildSongPrompt(order))
	if err != nil {
		return nil, err
	}
	return &SongPromptResult{
		OrderNumber: order.OrderNumber,
		Prompt:      text,
		Style:       strings.Join([]string{genreStyleOf(order.Genre), moodStyleOf(order.Mood)}, "; "),
	}, nil
}

// GenerateCover creates a cover image and stores it as png deliverable.
func (s *GenerationService) GenerateCover(ctx context.Context, orderNumber string) (*models.Deliverable, error) {
	order, err := s.load(orderNumber)
	if err != nil {
		return nil, err
	}
	if !s.enabled() {
		return nil, ErrGenerationUnavailable
	}
	started := time.Now()
	img, err := s.generator.GenerateImage(ctx, BuildCoverPrompt(order))
	s.metrics.ObserveGeneration("cover", err == nil, time.Since(started))
	if err != nil {
		logger.FromContext(ctx).Warnw("generation_cover_failed", "order_number", order.OrderNumber, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return s.deliverables.AttachBytes(ctx, order, constants.DeliverablePNG, "cover.png", img.Data)
}

// GenerateLyricsPDF renders a lyric sheet. Lyrics come from the argument,
// then the customer's own lyrics, then the text model.
func (s *GenerationService) GenerateLyricsPDF(ctx context.Context, orderNumber, lyrics string) (*models.Deliverable, error) {
	order, err := s.load(orderNumber)
	if err != nil {
		return nil, err
	}
	lyrics = strings.TrimSpace(lyrics)
	if lyrics == "" && order.HasCustomLyrics {
		lyrics = strings.TrimSpace(order.CustomLyrics)
	}
	if lyrics == "" {
		lyrics, err = s.text(ctx, "lyrics", BuildLyricsPrompt(order))
		if err != nil {
			return nil, err
		}
	}
	data, err := RenderLyricsPDF(order, lyrics)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return s.deliverables.AttachBytes(ctx, order, constants.DeliverablePDF, "songtext.pdf", data)
}

func (s *GenerationService) text(ctx context.Context, kind, prompt string) (string, error) {
	if !s.enabled() {
		return "", ErrGenerationUnavailable
	}
	started := time.Now()
	text, err := s.generator.GenerateText(ctx, prompt, genai.TextOptions{})
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = errors.New("empty response")
	}
	s.metrics.ObserveGeneration(kind, err == nil, time.Since(started))
	if err != nil {
		logger.FromContext(ctx).Warnw("generation_text_failed", "kind", kind, "error", err)
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return text, nil
}

func (s *GenerationService) enabled() bool {
	return s.generator != nil && s.generator.Enabled()
}

func (s *GenerationService) load(orderNumber string) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderNumber(strings.TrimSpace(orderNumber))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFetchFailed, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// RenderLyricsPDF lays out a one-column A4 lyric sheet.
func RenderLyricsPDF(order *models.Order, lyrics string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Songtext "+order.OrderNumber, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, tr("Ein Lied für "+strings.TrimSpace(order.RecipientName)), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "I", 11)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 7, tr(occasionLabel(order.Occasion)+" · "+order.OrderNumber), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetTextColor(30, 30, 30)
	for _, line := range strings.Split(strings.ReplaceAll(lyrics, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			pdf.Ln(4)
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			pdf.SetFont("Helvetica", "B", 12)
			pdf.MultiCell(0, 7, tr(strings.Trim(line, "[]")), "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", 12)
			pdf.MultiCell(0, 6, tr(line), "", "L", false)
		}
	}

	pdf.SetY(-25)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 5, "Melodie Moment", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
