package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/currency"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	JWTSecret   string `envconfig:"JWT_SECRET"`
	JWTIssuer   string `envconfig:"JWT_ISSUER" default:"voicehub"`
	RedisURL    string `envconfig:"REDIS_URL"`
	GeoIPDBPath string `envconfig:"GEOIP_DB_PATH"`

	DefaultLocale      string   `envconfig:"DEFAULT_LOCALE" default:"ru"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	WalletCurrency     string `envconfig:"WALLET_CURRENCY" default:"RUB"`
	PlanCatalog        string `envconfig:"PLAN_CATALOG"`
	HistoryDefault     int    `envconfig:"TRANSACTION_HISTORY_DEFAULT" default:"10"`
	HistoryMax         int    `envconfig:"TRANSACTION_HISTORY_MAX" default:"100"`
	YooKassaWebhookKey string `envconfig:"YOOKASSA_WEBHOOK_TOKEN"`
	StripeWebhookKey   string `envconfig:"STRIPE_WEBHOOK_SECRET"`

	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	HTTPIdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	RateLimitPerMin  int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "8080"
	}
	code := strings.ToUpper(strings.TrimSpace(cfg.WalletCurrency))
	if code == "" {
		code = "RUB"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("WALLET_CURRENCY: %w", err)
	}
	cfg.WalletCurrency = unit.String()

	if cfg.HistoryDefault <= 0 {
		cfg.HistoryDefault = 10
	}
	if cfg.HistoryMax < cfg.HistoryDefault {
		cfg.HistoryMax = cfg.HistoryDefault
	}
	cfg.CORSAllowedOrigins = trimList(cfg.CORSAllowedOrigins)

	return &cfg, nil
}

func trimList(in []string) []string {
	out := in[:0]
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
