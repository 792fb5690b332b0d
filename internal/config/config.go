package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from environment variables.
type Config struct {
	// Mode selects the runtime mode: "api" (HTTP health/metrics surface only)
	// or "worker" (runs the queue consumer and sweep loop).
	Mode string `env:"BRIDGE_MODE" envDefault:"api"`

	// Server
	Host string `env:"BRIDGE_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"BRIDGE_PORT" envDefault:"8080"`

	// Durable tier (C3). Required.
	PostgresURL string `env:"POSTGRES_URL"`

	// Distributed cache tier (C2). Required.
	PlatformRedisURL string `env:"PLATFORM_REDIS_URL"`

	// Webhook consumer queue backend (C7). Required. May be the same
	// instance as PlatformRedisURL or a dedicated one.
	WebhookRedisURL string `env:"WEBHOOK_REDIS_URL"`

	// DatabaseSSLValidate controls TLS policy for the durable tier:
	// ""     platform-aware default (strict unless a dev host is detected)
	// "true"  strict certificate validation
	// "false" TLS on, certificate validation off
	// "full"  SSL disabled entirely (dev only)
	DatabaseSSLValidate string `env:"DATABASE_SSL_VALIDATE"`

	// DatabaseSSLCA is an optional PEM-encoded CA bundle added to the TLS config.
	DatabaseSSLCA string `env:"DATABASE_SSL_CA"`

	// DebugMode enables engine-level cache metrics counting.
	DebugMode bool `env:"DEBUG_MODE" envDefault:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	// Queue consumer tuning (C7).
	QueueName         string `env:"BRIDGE_QUEUE_NAME" envDefault:"webhook:events"`
	QueuePollInterval string `env:"BRIDGE_QUEUE_POLL_INTERVAL" envDefault:"1s"`
	QueueBlockTimeout string `env:"BRIDGE_QUEUE_BLOCK_TIMEOUT" envDefault:"2s"`
	QueueDrainTimeout string `env:"BRIDGE_QUEUE_DRAIN_TIMEOUT" envDefault:"30s"`

	// Durable-tier sweep scheduling (supplemental feature, SPEC_FULL.md §C).
	SweepInterval string `env:"BRIDGE_SWEEP_INTERVAL" envDefault:"5m"`

	// In-memory tier sizing and default TTL (C1 / C4).
	L1MaxEntries int    `env:"BRIDGE_L1_MAX_ENTRIES" envDefault:"10000"`
	DefaultTTL   string `env:"BRIDGE_DEFAULT_CACHE_TTL" envDefault:"10m"`

	// Thread-lookup retry tuning (C8).
	LookupMaxAttempts int    `env:"BRIDGE_LOOKUP_MAX_ATTEMPTS" envDefault:"3"`
	LookupWindow      string `env:"BRIDGE_LOOKUP_WINDOW" envDefault:"10s"`
	LookupBaseDelay   string `env:"BRIDGE_LOOKUP_BASE_DELAY" envDefault:"1s"`
	LookupMaxDelay    string `env:"BRIDGE_LOOKUP_MAX_DELAY" envDefault:"5s"`

	// Chat-platform capability adapter (§9 narrow interface), Slack REST only.
	// Empty disables the adapter; callers get a no-op implementation.
	SlackBotToken string `env:"SLACK_BOT_TOKEN"`

	// CORS for the ambient HTTP surface.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate enforces the required environment contract keys (spec §6),
// reporting every missing or malformed key in a single error so a fatal
// startup failure (spec §7) doesn't require multiple restart cycles.
func (c *Config) Validate() error {
	var problems []string

	if c.PostgresURL == "" {
		problems = append(problems, "POSTGRES_URL is required")
	}
	if c.PlatformRedisURL == "" {
		problems = append(problems, "PLATFORM_REDIS_URL is required")
	}
	if c.WebhookRedisURL == "" {
		problems = append(problems, "WEBHOOK_REDIS_URL is required")
	}

	switch c.DatabaseSSLValidate {
	case "", "true", "false", "full":
	default:
		problems = append(problems, fmt.Sprintf("DATABASE_SSL_VALIDATE must be one of \"\", \"true\", \"false\", \"full\", got %q", c.DatabaseSSLValidate))
	}

	switch c.Mode {
	case "api", "worker":
	default:
		problems = append(problems, fmt.Sprintf("unknown mode %q, must be \"api\" or \"worker\"", c.Mode))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
