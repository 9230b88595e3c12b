package provider

import (
	"time"

	"github.com/melodiemoment/api/internal/cache"
	"github.com/melodiemoment/api/internal/config"
	"github.com/melodiemoment/api/internal/genai"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/metrics"
	"github.com/melodiemoment/api/internal/notify"
	"github.com/melodiemoment/api/internal/payment/stripe"
	"github.com/melodiemoment/api/internal/queue"
	"github.com/melodiemoment/api/internal/repository"
	"github.com/melodiemoment/api/internal/service"
	"github.com/melodiemoment/api/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

const (
	webhookEventScope       = "stripe_event"
	defaultEventTTLHours    = 72
	defaultBatchConcurrency = 4
)

// Container is the dependency container built once at startup.
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	Cache       *cache.Client
	QueueClient *queue.Client
	Registry    *prometheus.Registry
	Metrics     *metrics.ShopMetrics
	Notifier    notify.Notifier
	ObjectStore storage.ObjectStore
	GenAI       *genai.Client
	Stripe      *stripe.Client

	// Repositories
	OrderRepo       repository.OrderRepository
	DeliverableRepo repository.DeliverableRepository
	ReferralRepo    repository.ReferralRepository
	CampaignRepo    repository.CampaignRepository

	// Services
	AuthService        *service.AuthService
	CaptchaService     *service.CaptchaService
	OrderService       *service.OrderService
	OrderStateService  *service.OrderStateService
	ReferralService    *service.ReferralService
	OrderEmailService  *service.OrderEmailService
	CampaignService    *service.CampaignService
	PriorityService    *service.PriorityService
	DeliverableService *service.DeliverableService
	GenerationService  *service.GenerationService
	FulfillmentService *service.FulfillmentService
	WebhookService     *service.WebhookService
}

// NewContainer wires every collaborator on top of an open database.
func NewContainer(cfg *config.Config, db *gorm.DB) (*Container, error) {
	c := &Container{
		Config: cfg,
		DB:     db,
		Cache:  cache.NewClient(&cfg.Redis),
	}

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		return nil, err
	}
	c.QueueClient = queueClient

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = metrics.NewShopMetrics(c.Registry)

	c.Notifier = buildNotifier(cfg.Notify)

	store, err := storage.New(storage.Config{
		Provider:      cfg.Storage.Provider,
		SupabaseURL:   cfg.Storage.SupabaseURL,
		ServiceKey:    cfg.Storage.ServiceKey,
		Bucket:        cfg.Storage.Bucket,
		LocalDir:      cfg.Storage.LocalDir,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		logger.Errorw("provider_init_storage_failed", "provider", cfg.Storage.Provider, "error", err)
		return nil, err
	}
	c.ObjectStore = store

	c.GenAI = genai.NewClient(genai.Config{
		APIKey:             cfg.GenAI.APIKey,
		BaseURL:            cfg.GenAI.BaseURL,
		TextModel:          cfg.GenAI.TextModel,
		FallbackTextModel:  cfg.GenAI.FallbackTextModel,
		ImageModel:         cfg.GenAI.ImageModel,
		FallbackImageModel: cfg.GenAI.FallbackImageModel,
		Timeout:            time.Duration(cfg.GenAI.TimeoutSeconds) * time.Second,
	})
	if !c.GenAI.Enabled() {
		logger.Warnw("provider_genai_disabled", "reason", "api_key_missing")
	}

	stripeCfg := stripe.Config{
		SecretKey:               cfg.Stripe.SecretKey,
		WebhookSecret:           cfg.Stripe.WebhookSecret,
		SuccessURL:              cfg.Stripe.SuccessURL,
		CancelURL:               cfg.Stripe.CancelURL,
		APIBaseURL:              cfg.Stripe.APIBaseURL,
		Currency:                cfg.Stripe.Currency,
		WebhookToleranceSeconds: cfg.Stripe.WebhookToleranceSeconds,
		PaymentMethodTypes:      cfg.Stripe.PaymentMethodTypes,
	}
	c.Stripe = stripe.NewClient(stripeCfg)
	if err := stripe.ValidateCheckoutConfig(c.Stripe.Config()); err != nil {
		logger.Warnw("provider_stripe_checkout_config_invalid", "error", err)
	}

	c.initRepositories()
	c.initServices()
	return c, nil
}

func (c *Container) initRepositories() {
	c.OrderRepo = repository.NewOrderRepository(c.DB)
	c.DeliverableRepo = repository.NewDeliverableRepository(c.DB)
	c.ReferralRepo = repository.NewReferralRepository(c.DB)
	c.CampaignRepo = repository.NewCampaignRepository(c.DB)
}

func (c *Container) initServices() {
	cfg := c.Config

	c.AuthService = service.NewAuthService(cfg.Admin)
	if !c.AuthService.Configured() {
		logger.Warnw("provider_admin_login_disabled", "reason", "password_hash_or_secret_missing")
	}
	c.CaptchaService = service.NewCaptchaService(cfg.Captcha)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.Stripe, c.CaptchaService)
	c.OrderStateService = service.NewOrderStateService(c.OrderRepo)
	c.ReferralService = service.NewReferralService(c.ReferralRepo, cfg.Site)
	c.OrderEmailService = service.NewOrderEmailService(c.OrderRepo, c.ReferralService, c.Notifier, c.QueueClient)
	c.CampaignService = service.NewCampaignService(c.CampaignRepo, c.OrderRepo, c.Notifier, c.QueueClient)

	var classifier service.Classifier
	if c.GenAI.Enabled() {
		classifier = c.GenAI
	}
	c.PriorityService = service.NewPriorityService(c.OrderRepo, classifier, c.Metrics)
	c.DeliverableService = service.NewDeliverableService(c.OrderRepo, c.DeliverableRepo, c.ObjectStore, cfg.Storage.MaxSize, c.Metrics)
	c.GenerationService = service.NewGenerationService(c.OrderRepo, c.DeliverableService, c.GenAI, c.Metrics)
	c.FulfillmentService = service.NewFulfillmentService(service.FulfillmentOptions{
		OrderRepo:   c.OrderRepo,
		State:       c.OrderStateService,
		Referrals:   c.ReferralService,
		Emails:      c.OrderEmailService,
		Campaigns:   c.CampaignService,
		Notifier:    c.Notifier,
		Site:        cfg.Site,
		Metrics:     c.Metrics,
		Concurrency: defaultBatchConcurrency,
	})
	c.WebhookService = service.NewWebhookService(service.WebhookOptions{
		Verifier:  c.Stripe,
		Guard:     c.eventGuard(),
		State:     c.OrderStateService,
		Emails:    c.OrderEmailService,
		Campaigns: c.CampaignService,
		Notifier:  c.Notifier,
		Metrics:   c.Metrics,
	})
}

// eventGuard returns nil without redis; the status gate still holds.
func (c *Container) eventGuard() service.EventGuard {
	if !c.Cache.Enabled() {
		return nil
	}
	hours := c.Config.Stripe.EventTTLHours
	if hours <= 0 {
		hours = defaultEventTTLHours
	}
	guard, err := cache.NewIdempotencyGuard(c.Cache, time.Duration(hours)*time.Hour, webhookEventScope)
	if err != nil {
		logger.Warnw("provider_init_event_guard_failed", "error", err)
		return nil
	}
	return guard
}

// Close releases network clients. The database is closed by its owner.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_failed", "error", err)
	}
	if err := c.Cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}

// buildNotifier prefers Resend and falls back to SMTP. Ops notices go to
// Slack, or by mail to the ops address.
func buildNotifier(cfg config.NotifyConfig) notify.Notifier {
	var mailer notify.Mailer
	if resend := notify.NewResendMailer(cfg.ResendAPIKey, cfg.ResendBaseURL, cfg.From, cfg.FromName); resend != nil {
		mailer = resend
	} else if cfg.SMTP.Enabled {
		if smtpMailer := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.From,
			FromName: cfg.FromName,
			UseTLS:   cfg.SMTP.UseTLS,
			UseSSL:   cfg.SMTP.UseSSL,
		}); smtpMailer != nil {
			mailer = smtpMailer
		}
	}

	var ops notify.OpsAlerter
	if slack := notify.NewSlackAlerter(cfg.SlackWebhookURL); slack != nil {
		ops = slack
	} else if mailer != nil {
		if mailOps := notify.NewMailAlerter(mailer, cfg.OpsEmail); mailOps != nil {
			ops = mailOps
		}
	}
	return notify.New(mailer, ops)
}
