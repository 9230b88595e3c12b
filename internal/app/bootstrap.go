package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/melodiemoment/api/internal/config"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/models"
	"github.com/melodiemoment/api/internal/provider"
	"github.com/melodiemoment/api/internal/router"
	"github.com/melodiemoment/api/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if mode != ModeAll && mode != ModeAPI && mode != ModeWorker {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	db, err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, strings.EqualFold(cfg.Server.Mode, "debug"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		_ = models.CloseDB(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	container, err := provider.NewContainer(cfg, db)
	if err != nil {
		_ = models.CloseDB(db)
		return nil, err
	}
	closeAll := func() {
		container.Close()
		if err := models.CloseDB(db); err != nil {
			logger.Warnw("app_close_db_failed", "error", err)
		}
	}

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
	}

	// 初始化 Worker 服务；all 模式下 worker 无事可做时只跑 API
	if mode == ModeAll || mode == ModeWorker {
		workerService, err := worker.NewService(cfg, worker.NewConsumer(container))
		switch {
		case err == nil:
			services = append(services, workerService)
		case mode == ModeAll:
			logger.Infow("app_worker_skipped", "reason", err.Error())
		default:
			closeAll()
			return nil, err
		}
	}

	runner := NewRunner(services...)
	runner.OnClose(closeAll)
	return runner, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode, "database", opts.Config.Database.Driver)
	return RunWithOptions(runner, opts)
}
