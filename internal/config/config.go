package config

import (
	"fmt"
	"strings"

	"github.com/melodiemoment/api/internal/logger"

	"github.com/spf13/viper"
)

// Config holds every runtime setting, loaded from config.yml and env.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Storage  StorageConfig  `mapstructure:"storage"`
	GenAI    GenAIConfig    `mapstructure:"genai"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Site     SiteConfig     `mapstructure:"site"`
	Priority PriorityConfig `mapstructure:"priority"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig HTTP listener settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig file log rotation
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions converts to logger options.
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig connection pool
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig sqlite for local runs, postgres (Supabase) in production.
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"`
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig cache, rate limit and webhook dedupe store
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig asynq connection
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// AdminConfig single shared admin login
type AdminConfig struct {
	PasswordHash    string `mapstructure:"password_hash"`
	SessionSecret   string `mapstructure:"session_secret"`
	SessionTTLHours int    `mapstructure:"session_ttl_hours"`
	CookieSecure    bool   `mapstructure:"cookie_secure"`
}

// StripeConfig checkout and webhook credentials
type StripeConfig struct {
	SecretKey               string   `mapstructure:"secret_key"`
	WebhookSecret           string   `mapstructure:"webhook_secret"`
	SuccessURL              string   `mapstructure:"success_url"`
	CancelURL               string   `mapstructure:"cancel_url"`
	APIBaseURL              string   `mapstructure:"api_base_url"`
	Currency                string   `mapstructure:"currency"`
	WebhookToleranceSeconds int      `mapstructure:"webhook_tolerance_seconds"`
	PaymentMethodTypes      []string `mapstructure:"payment_method_types"`
	EventTTLHours           int      `mapstructure:"event_ttl_hours"`
}

// StorageConfig deliverable object storage
type StorageConfig struct {
	Provider      string `mapstructure:"provider"` // supabase / local
	SupabaseURL   string `mapstructure:"supabase_url"`
	ServiceKey    string `mapstructure:"service_key"`
	Bucket        string `mapstructure:"bucket"`
	LocalDir      string `mapstructure:"local_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxSize       int64  `mapstructure:"max_size"`
}

// GenAIConfig Gemini / Imagen settings
type GenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	TextModel          string `mapstructure:"text_model"`
	FallbackTextModel  string `mapstructure:"fallback_text_model"`
	ImageModel         string `mapstructure:"image_model"`
	FallbackImageModel string `mapstructure:"fallback_image_model"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
}

// NotifyConfig customer mail and ops alerts
type NotifyConfig struct {
	ResendAPIKey    string     `mapstructure:"resend_api_key"`
	ResendBaseURL   string     `mapstructure:"resend_base_url"`
	From            string     `mapstructure:"from"`
	FromName        string     `mapstructure:"from_name"`
	OpsEmail        string     `mapstructure:"ops_email"`
	SlackWebhookURL string     `mapstructure:"slack_webhook_url"`
	SMTP            SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig fallback mail transport
type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
	UseSSL   bool   `mapstructure:"use_ssl"`
}

// SiteConfig public site addressing
type SiteConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	DeliveryPath string `mapstructure:"delivery_path"`
	ReferralPath string `mapstructure:"referral_path"`
}

// PriorityConfig triage scheduling
type PriorityConfig struct {
	AutoIntervalMinutes int `mapstructure:"auto_interval_minutes"`
}

// CaptchaConfig image captcha on order intake
type CaptchaConfig struct {
	Provider      string `mapstructure:"provider"`
	Length        int    `mapstructure:"length"`
	Width         int    `mapstructure:"width"`
	Height        int    `mapstructure:"height"`
	NoiseCount    int    `mapstructure:"noise_count"`
	ShowLine      int    `mapstructure:"show_line"`
	ExpireSeconds int    `mapstructure:"expire_seconds"`
	MaxStore      int    `mapstructure:"max_store"`
}

// CORSConfig cross origin settings
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig request throttling
type SecurityConfig struct {
	LoginRateLimit RateLimitConfig `mapstructure:"login_rate_limit"`
	OrderRateLimit RateLimitConfig `mapstructure:"order_rate_limit"`
}

// RateLimitConfig fixed window limit
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/melodie.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "mm")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.session_secret", "change-me-in-production")
	v.SetDefault("admin.session_ttl_hours", 24)
	v.SetDefault("admin.cookie_secure", true)
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.success_url", "http://localhost:3000/danke?session_id={CHECKOUT_SESSION_ID}")
	v.SetDefault("stripe.cancel_url", "http://localhost:3000/bestellen")
	v.SetDefault("stripe.api_base_url", "https://api.stripe.com")
	v.SetDefault("stripe.currency", "EUR")
	v.SetDefault("stripe.webhook_tolerance_seconds", 300)
	v.SetDefault("stripe.payment_method_types", []string{"card"})
	v.SetDefault("stripe.event_ttl_hours", 72)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.supabase_url", "")
	v.SetDefault("storage.service_key", "")
	v.SetDefault("storage.bucket", "deliverables")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.public_base_url", "http://localhost:8080/uploads")
	v.SetDefault("storage.max_size", 200*1024*1024)
	v.SetDefault("genai.api_key", "")
	v.SetDefault("genai.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("genai.text_model", "gemini-2.0-flash")
	v.SetDefault("genai.fallback_text_model", "gemini-1.5-flash")
	v.SetDefault("genai.image_model", "imagen-3.0-generate-002")
	v.SetDefault("genai.fallback_image_model", "imagen-3.0-fast-generate-001")
	v.SetDefault("genai.timeout_seconds", 45)
	v.SetDefault("notify.resend_api_key", "")
	v.SetDefault("notify.resend_base_url", "https://api.resend.com")
	v.SetDefault("notify.from", "hallo@melodiemoment.de")
	v.SetDefault("notify.from_name", "Melodie Moment")
	v.SetDefault("notify.ops_email", "")
	v.SetDefault("notify.slack_webhook_url", "")
	v.SetDefault("notify.smtp.enabled", false)
	v.SetDefault("notify.smtp.host", "")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.use_tls", true)
	v.SetDefault("notify.smtp.use_ssl", false)
	v.SetDefault("site.base_url", "http://localhost:3000")
	v.SetDefault("site.delivery_path", "/song")
	v.SetDefault("site.referral_path", "/r")
	v.SetDefault("priority.auto_interval_minutes", 30)
	v.SetDefault("captcha.provider", "none")
	v.SetDefault("captcha.length", 5)
	v.SetDefault("captcha.width", 240)
	v.SetDefault("captcha.height", 80)
	v.SetDefault("captcha.noise_count", 2)
	v.SetDefault("captcha.show_line", 2)
	v.SetDefault("captcha.expire_seconds", 300)
	v.SetDefault("captcha.max_store", 10240)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.login_rate_limit.window_seconds", 300)
	v.SetDefault("security.login_rate_limit.max_attempts", 5)
	v.SetDefault("security.order_rate_limit.window_seconds", 600)
	v.SetDefault("security.order_rate_limit.max_attempts", 10)
}

// Load reads config.yml (., ../, ./etc) and applies env overrides
// such as STRIPE_WEBHOOK_SECRET or SERVER_PORT.
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")
	v.AddConfigPath("./etc")

	SetDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	cfg, err := Unmarshal(v)
	if err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(err)
	}
	return cfg
}

// Unmarshal decodes v into a normalized Config.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Konfiguration konnte nicht gelesen werden: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	if c.Site.DeliveryPath == "" {
		c.Site.DeliveryPath = "/song"
	}
	if !strings.HasPrefix(c.Site.DeliveryPath, "/") {
		c.Site.DeliveryPath = "/" + c.Site.DeliveryPath
	}
	c.Stripe.Currency = strings.ToUpper(strings.TrimSpace(c.Stripe.Currency))
	if c.Stripe.Currency == "" {
		c.Stripe.Currency = "EUR"
	}
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	c.Captcha.Provider = strings.ToLower(strings.TrimSpace(c.Captcha.Provider))
}

// IsWeakSecret reports whether a signing secret is unfit for release mode.
func IsWeakSecret(secret string) bool {
	if len(secret) < 32 {
		return true
	}
	normalized := strings.ToLower(secret)
	return strings.Contains(normalized, "change-me") ||
		strings.Contains(normalized, "change-in-production") ||
		strings.Contains(normalized, "your-secret-key")
}
