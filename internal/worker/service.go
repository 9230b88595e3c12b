package worker

import (
	"context"
	"errors"
	"time"

	"github.com/melodiemoment/api/internal/config"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	interval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	s := &Service{
		name:     "worker",
		consumer: consumer,
		interval: time.Duration(cfg.Priority.AutoIntervalMinutes) * time.Minute,
	}
	if cfg.Queue.Enabled {
		opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
		s.server = asynq.NewServer(opt, serverCfg)
		s.mux = asynq.NewServeMux()
		consumer.Register(s.mux)
	} else if s.interval <= 0 {
		return nil, errors.New("worker has nothing to do: queue disabled and auto prioritize off")
	}
	return s, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	if s.interval > 0 && s.consumer.PriorityService != nil {
		go s.runAutoPrioritizeLoop(ctx)
	}
	if s.server == nil {
		<-ctx.Done()
		return nil
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

func (s *Service) runAutoPrioritizeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prioritizeOnce(ctx)
		}
	}
}

func (s *Service) prioritizeOnce(ctx context.Context) {
	started := time.Now()
	results, err := s.consumer.PriorityService.AnalyzeUnprioritized(ctx)
	s.consumer.Metrics.ObserveJob("auto_prioritize", time.Since(started))
	if err != nil {
		logger.Warnw("worker_auto_prioritize_failed", "error", err)
		return
	}
	if len(results) > 0 {
		logger.Infow("worker_auto_prioritize_done", "count", len(results))
	}
}
