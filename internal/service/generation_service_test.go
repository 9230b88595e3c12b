package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/melodiemoment/api/internal/constants"
	"github.com/melodiemoment/api/internal/models"
)

func TestBuildSongPromptUsesLookupTables(t *testing.T) {
	order := &models.Order{
		RecipientName: "Lena",
		Occasion:      constants.OccasionHochzeit,
		Genre:         "Schlager",
		Mood:          5,
		Story:         "Wir haben uns beim Tanzen kennengelernt.",
	}
	first := BuildSongPrompt(order)
	if first != BuildSongPrompt(order) {
		t.Fatalf("prompt must be deterministic")
	}
	for _, fragment := range []string{occasionStyleOf(order.Occasion), genreStyleOf("schlager"), moodStyleOf(5), "Lena"} {
		if !strings.Contains(first, fragment) {
			t.Fatalf("prompt misses %q:\n%s", fragment, first)
		}
	}
	if genreStyleOf("polka-metal") == "" || moodStyleOf(9) == "" {
		t.Fatalf("unknown lookups need a neutral descriptor")
	}
}

func TestGenerateCoverStoresPNG(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.createOrder(t, "MM-TEST-GEN1", constants.OrderStatusInProduction, nil)
	store := newMemoryObjectStore()
	deliverables := NewDeliverableService(env.orders, env.deliverables, store, 0, nil)
	svc := NewGenerationService(env.orders, deliverables, &stubGenerator{image: tinyPNG(t)}, nil)

	d, err := svc.GenerateCover(context.Background(), order.OrderNumber)
	if err != nil {
		t.Fatalf("generate cover failed: %v", err)
	}
	if d.Type != constants.DeliverablePNG || !store.has(d.StorageKey) {
		t.Fatalf("cover not stored: %+v", d)
	}
}

func TestGenerationFailuresAreExplicit(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.createOrder(t, "MM-TEST-GEN2", constants.OrderStatusInProduction, nil)
	deliverables := NewDeliverableService(env.orders, env.deliverables, newMemoryObjectStore(), 0, nil)

	failing := NewGenerationService(env.orders, deliverables, &stubGenerator{textErr: errors.New("429"), imageErr: errors.New("429")}, nil)
	if _, err := failing.GenerateSongPrompt(context.Background(), order.OrderNumber); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected generation failure, got %v", err)
	}
	if _, err := failing.GenerateCover(context.Background(), order.OrderNumber); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected cover failure, got %v", err)
	}
	disabled := NewGenerationService(env.orders, deliverables, &stubGenerator{disabled: true}, nil)
	if _, err := disabled.GenerateSongPrompt(context.Background(), order.OrderNumber); !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	list, _ := env.deliverables.ListByOrder(order.ID)
	if len(list) != 0 {
		t.Fatalf("failed generation must not leave deliverables")
	}
}

func TestGenerateLyricsPDFPrefersCustomLyrics(t *testing.T) {
	env := newServiceTestEnv(t)
	order := env.createOrder(t, "MM-TEST-GEN3", constants.OrderStatusInProduction, func(o *models.Order) {
		o.HasCustomLyrics = true
		o.CustomLyrics = "Strophe eins\nÜber den Dächern der Stadt\n\nRefrain\nWir tanzen"
	})
	store := newMemoryObjectStore()
	deliverables := NewDeliverableService(env.orders, env.deliverables, store, 0, nil)
	generator := &stubGenerator{textErr: errors.New("must not be called")}
	svc := NewGenerationService(env.orders, deliverables, generator, nil)

	d, err := svc.GenerateLyricsPDF(context.Background(), order.OrderNumber, "")
	if err != nil {
		t.Fatalf("generate pdf failed: %v", err)
	}
	if d.Type != constants.DeliverablePDF {
		t.Fatalf("unexpected type %s", d.Type)
	}
	data := store.objects[d.StorageKey]
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("stored object is not a pdf")
	}
}
