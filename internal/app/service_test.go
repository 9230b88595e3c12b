package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/melodiemoment/api/internal/config"
)

type fakeService struct {
	name     string
	startErr error
	block    bool

	mu      sync.Mutex
	stopped bool
	order   *[]string
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.startErr
}

func (s *fakeService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.order != nil {
		*s.order = append(*s.order, "stop:"+s.name)
	}
	return nil
}

func TestRunnerStopsAllWhenOneFails(t *testing.T) {
	var order []string
	api := &fakeService{name: "http", block: true, order: &order}
	worker := &fakeService{name: "worker", startErr: errors.New("redis down"), order: &order}
	runner := NewRunner(api, worker)
	runner.OnClose(func() { order = append(order, "close:db") })
	runner.OnClose(func() { order = append(order, "close:container") })

	err := runner.Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "redis down" {
		t.Fatalf("expected worker error, got %v", err)
	}
	if !api.stopped || !worker.stopped {
		t.Fatalf("every service must be stopped")
	}
	want := []string{"stop:worker", "stop:http", "close:container", "close:db"}
	if len(order) != len(want) {
		t.Fatalf("unexpected shutdown order %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected shutdown order %v", order)
		}
	}
}

func TestRunnerCancelIsCleanShutdown(t *testing.T) {
	api := &fakeService{name: "http", block: true}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := NewRunner(api).Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancelled run should return nil, got %v", err)
	}
	if !api.stopped {
		t.Fatalf("service must be stopped")
	}
}

func TestRunnerWithoutServices(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error without services")
	}
}

func TestBuildRunnerRejectsUnknownMode(t *testing.T) {
	if _, err := BuildRunner(&config.Config{}, "batch"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if _, err := BuildRunner(nil, ModeAPI); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestNormalizeOptions(t *testing.T) {
	opts := normalizeOptions(Options{Mode: " Worker "})
	if opts.Mode != ModeWorker || opts.ShutdownTimeout != defaultShutdownTimeout || opts.Logger == nil {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if normalizeOptions(Options{}).Mode != ModeAll {
		t.Fatalf("empty mode should default to all")
	}
}
