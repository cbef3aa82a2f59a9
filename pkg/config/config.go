package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL string `koanf:"database_url"`
	JWTSecret   string `koanf:"jwt_secret"`
	Port        string `koanf:"port"`
	Environment string `koanf:"env"`

	// Logging
	LogLevel string `koanf:"log_level"`
	LogFile  string `koanf:"log_file"`

	// Security configuration
	AllowedOrigins  string `koanf:"allowed_origins"`
	TrustedProxies  string `koanf:"trusted_proxies"`
	EnableRateLimit bool   `koanf:"enable_rate_limit"`
	EnableSecurity  bool   `koanf:"enable_security"`
	MaxRequestSize  int64  `koanf:"max_request_size"`

	// Lead events; empty disables publishing
	AMQPURL string `koanf:"amqp_url"`

	// Notifications; empty host disables e-mail
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPFrom     string `koanf:"smtp_from"`

	// Website enrichment
	EnrichmentEnabled       bool          `koanf:"enrichment_enabled"`
	EnrichmentRatePerMinute int           `koanf:"enrichment_rate_per_minute"`
	EnrichmentTimeout       time.Duration `koanf:"enrichment_timeout"`
	EnrichmentUserAgent     string        `koanf:"enrichment_user_agent"`

	// Background rescoring
	RescoreBatchSize       int `koanf:"rescore_batch_size"`
	RescoreIntervalMinutes int `koanf:"rescore_interval_minutes"`
	RescoreMaxConcurrent   int `koanf:"rescore_max_concurrent"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Port:                    "8080",
		Environment:             "development",
		LogLevel:                "info",
		EnableRateLimit:         true,
		MaxRequestSize:          10 * 1024 * 1024, // 10MB
		SMTPPort:                587,
		SMTPFrom:                "crm@localhost",
		EnrichmentEnabled:       true,
		EnrichmentRatePerMinute: 30,
		EnrichmentTimeout:       15 * time.Second,
		EnrichmentUserAgent:     "crm-pipeline-enricher/1.0",
		RescoreBatchSize:        100,
		RescoreIntervalMinutes:  60,
		RescoreMaxConcurrent:    4,
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required in production")
	}
	if c.RescoreBatchSize <= 0 {
		return fmt.Errorf("rescore_batch_size must be positive, got %d", c.RescoreBatchSize)
	}
	if c.RescoreMaxConcurrent <= 0 {
		return fmt.Errorf("rescore_max_concurrent must be positive, got %d", c.RescoreMaxConcurrent)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasAMQP reports whether lead events should be published to a broker.
func (c *Config) HasAMQP() bool {
	return c.AMQPURL != ""
}

// HasSMTP reports whether e-mail notifications are configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != ""
}

// GetAllowedOrigins returns a slice of allowed CORS origins
func (c *Config) GetAllowedOrigins() []string {
	if c.AllowedOrigins == "" {
		return []string{}
	}
	return splitAndTrim(c.AllowedOrigins)
}

// GetTrustedProxies returns a slice of trusted proxy IPs
func (c *Config) GetTrustedProxies() []string {
	if c.TrustedProxies == "" {
		return []string{}
	}
	return splitAndTrim(c.TrustedProxies)
}

// IsSecurityEnabled returns true if security features should be enabled
func (c *Config) IsSecurityEnabled() bool {
	return c.IsProduction() || c.EnableSecurity
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
