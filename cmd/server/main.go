package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/melodiemoment/api/internal/app"
	"github.com/melodiemoment/api/internal/config"
	"github.com/melodiemoment/api/internal/logger"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset     = "\033[0m"
	ansiBold      = "\033[1m"
	ansiDim       = "\033[2m"
	ansiGreen     = "\033[32m"
	ansiCyan      = "\033[36m"
	ansiBrightMag = "\033[95m"
)

func main() {
	// 解析命令行参数
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	printStartupBanner(mode)

	// 加载配置
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if cfg.Server.Mode == "release" {
		if config.IsWeakSecret(cfg.Admin.SessionSecret) {
			stdLog.Fatalf("admin.session_secret 过弱或仍为默认值，请在生产环境中配置强随机密钥")
		}
		if cfg.Admin.PasswordHash == "" {
			stdLog.Printf("警告: 未配置 admin.password_hash，管理后台登录不可用")
		}
		if cfg.Stripe.WebhookSecret == "" {
			stdLog.Printf("警告: 未配置 stripe.webhook_secret，所有支付回调都会被拒绝")
		}
	} else if config.IsWeakSecret(cfg.Admin.SessionSecret) {
		stdLog.Printf("警告: admin.session_secret 过弱或仍为默认值，建议在生产环境中更换")
	}

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	}); err != nil {
		stdLog.Fatalf("服务运行失败: %v", err)
	}
}

func printStartupBanner(mode string) {
	fmt.Println(ansiBrightMag + "╔══════════════════════════════════════════════════════╗" + ansiReset)
	fmt.Println(ansiBrightMag + "║              ♪ MelodieMoment API startet             ║" + ansiReset)
	fmt.Println(ansiBrightMag + "╚══════════════════════════════════════════════════════╝" + ansiReset)
	fmt.Println(ansiCyan + "  Persönliche Lieder für besondere Momente" + ansiReset)
	fmt.Println(ansiGreen + ansiBold + "Mode: " + mode + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------" + ansiReset)
}
