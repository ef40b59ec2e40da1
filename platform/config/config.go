// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthConfig provides the single operator account and token lifetime.
type AuthConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
	GetOperatorEmail() string
	GetOperatorPasswordHash() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides the Redis/asynq connection settings.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// GeminiConfig provides settings for the Gemini discovery/enrichment models.
type GeminiConfig interface {
	GetGeminiAPIKey() string
	GetGeminiDiscoveryModel() string
	GetGeminiResearchModel() string
	GetGeminiExtractionModel() string
	IsGeminiEnabled() bool
}

// MoonshotConfig provides settings for the Moonshot (Kimi) extraction fallback.
type MoonshotConfig interface {
	GetMoonshotAPIKey() string
	GetMoonshotModel() string
	IsMoonshotEnabled() bool
}

// GHLConfig provides GoHighLevel CRM settings.
type GHLConfig interface {
	GetGHLBaseURL() string
	GetGHLAPIKey() string
	GetGHLLocationID() string
	IsGHLEnabled() bool
}

// InstantlyConfig provides Instantly cold-email platform settings.
type InstantlyConfig interface {
	GetInstantlyBaseURL() string
	GetInstantlyAPIKey() string
	GetInstantlyCampaignID() string
	IsInstantlyEnabled() bool
}

// SMSGatewayConfig provides the message gateway used for the SMS channel.
type SMSGatewayConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayToken() string
	IsSMSGatewayEnabled() bool
}

// SMTPConfig provides settings for the cold email channel.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsSMTPEnabled() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketExports() string
	IsMinIOEnabled() bool
}

// WorkerConfig provides the prospecting worker loop cooldowns.
type WorkerConfig interface {
	GetDiscoveryCooldown() time.Duration
	GetEnrichmentCooldown() time.Duration
}

// OutboundConfig provides dispatch pacing and retry settings.
type OutboundConfig interface {
	GetDispatchSpacing() time.Duration
	GetDispatchMaxRetries() int
	GetScheduleHorizonDays() int
}

// TemplatesConfig provides the optional message template library file.
type TemplatesConfig interface {
	GetTemplatesPath() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	AccessTokenTTL        time.Duration
	OperatorEmail         string
	OperatorPasswordHash  string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	GeminiAPIKey          string
	GeminiDiscoveryModel  string
	GeminiResearchModel   string
	GeminiExtractionModel string
	MoonshotAPIKey        string
	MoonshotModel         string
	GHLBaseURL            string
	GHLAPIKey             string
	GHLLocationID         string
	InstantlyBaseURL      string
	InstantlyAPIKey       string
	InstantlyCampaignID   string
	SMSGatewayURL         string
	SMSGatewayToken       string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	MinioBucketExports    string
	DiscoveryCooldown     time.Duration
	EnrichmentCooldown    time.Duration
	DispatchSpacing       time.Duration
	DispatchMaxRetries    int
	ScheduleHorizonDays   int
	TemplatesPath         string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// AuthConfig implementation
func (c *Config) GetJWTAccessSecret() string       { return c.JWTAccessSecret }
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }
func (c *Config) GetOperatorEmail() string         { return c.OperatorEmail }
func (c *Config) GetOperatorPasswordHash() string  { return c.OperatorPasswordHash }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// GeminiConfig implementation
func (c *Config) GetGeminiAPIKey() string          { return c.GeminiAPIKey }
func (c *Config) GetGeminiDiscoveryModel() string  { return c.GeminiDiscoveryModel }
func (c *Config) GetGeminiResearchModel() string   { return c.GeminiResearchModel }
func (c *Config) GetGeminiExtractionModel() string { return c.GeminiExtractionModel }
func (c *Config) IsGeminiEnabled() bool            { return c.GeminiAPIKey != "" }

// MoonshotConfig implementation
func (c *Config) GetMoonshotAPIKey() string { return c.MoonshotAPIKey }
func (c *Config) GetMoonshotModel() string  { return c.MoonshotModel }
func (c *Config) IsMoonshotEnabled() bool   { return c.MoonshotAPIKey != "" }

// GHLConfig implementation
func (c *Config) GetGHLBaseURL() string    { return c.GHLBaseURL }
func (c *Config) GetGHLAPIKey() string     { return c.GHLAPIKey }
func (c *Config) GetGHLLocationID() string { return c.GHLLocationID }
func (c *Config) IsGHLEnabled() bool       { return c.GHLAPIKey != "" }

// InstantlyConfig implementation
func (c *Config) GetInstantlyBaseURL() string    { return c.InstantlyBaseURL }
func (c *Config) GetInstantlyAPIKey() string     { return c.InstantlyAPIKey }
func (c *Config) GetInstantlyCampaignID() string { return c.InstantlyCampaignID }
func (c *Config) IsInstantlyEnabled() bool       { return c.InstantlyAPIKey != "" }

// SMSGatewayConfig implementation
func (c *Config) GetSMSGatewayURL() string   { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayToken() string { return c.SMSGatewayToken }
func (c *Config) IsSMSGatewayEnabled() bool  { return c.SMSGatewayURL != "" }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsSMTPEnabled() bool         { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string      { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string     { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string     { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool          { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketExports() string { return c.MinioBucketExports }
func (c *Config) IsMinIOEnabled() bool          { return c.MinIOEndpoint != "" }

// WorkerConfig implementation
func (c *Config) GetDiscoveryCooldown() time.Duration  { return c.DiscoveryCooldown }
func (c *Config) GetEnrichmentCooldown() time.Duration { return c.EnrichmentCooldown }

// OutboundConfig implementation
func (c *Config) GetDispatchSpacing() time.Duration { return c.DispatchSpacing }
func (c *Config) GetDispatchMaxRetries() int        { return c.DispatchMaxRetries }
func (c *Config) GetScheduleHorizonDays() int       { return c.ScheduleHorizonDays }

// TemplatesConfig implementation
func (c *Config) GetTemplatesPath() string { return c.TemplatesPath }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:        mustDuration(getEnv("JWT_ACCESS_TTL", "12h")),
		OperatorEmail:         strings.ToLower(strings.TrimSpace(getEnv("OPERATOR_EMAIL", ""))),
		OperatorPasswordHash:  getEnv("OPERATOR_PASSWORD_HASH", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "crescoflow"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "4")),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiDiscoveryModel:  getEnv("GEMINI_DISCOVERY_MODEL", "gemini-2.5-flash"),
		GeminiResearchModel:   getEnv("GEMINI_RESEARCH_MODEL", "gemini-2.5-pro"),
		GeminiExtractionModel: getEnv("GEMINI_EXTRACTION_MODEL", "gemini-2.5-flash"),
		MoonshotAPIKey:        getEnv("MOONSHOT_API_KEY", ""),
		MoonshotModel:         getEnv("MOONSHOT_MODEL", "kimi-k2-turbo-preview"),
		GHLBaseURL:            getEnv("GHL_BASE_URL", "https://services.leadconnectorhq.com"),
		GHLAPIKey:             getEnv("GHL_API_KEY", ""),
		GHLLocationID:         getEnv("GHL_LOCATION_ID", ""),
		InstantlyBaseURL:      getEnv("INSTANTLY_BASE_URL", "https://api.instantly.ai"),
		InstantlyAPIKey:       getEnv("INSTANTLY_API_KEY", ""),
		InstantlyCampaignID:   getEnv("INSTANTLY_CAMPAIGN_ID", ""),
		SMSGatewayURL:         getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayToken:       getEnv("SMS_GATEWAY_TOKEN", ""),
		SMTPHost:              getEnv("SMTP_HOST", ""),
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "CrescoFlow"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketExports:    getEnv("MINIO_BUCKET_EXPORTS", "lead-exports"),
		DiscoveryCooldown:     mustDuration(getEnv("WORKER_DISCOVERY_COOLDOWN", "10s")),
		EnrichmentCooldown:    mustDuration(getEnv("WORKER_ENRICHMENT_COOLDOWN", "12s")),
		DispatchSpacing:       mustDuration(getEnv("DISPATCH_SPACING", "2s")),
		DispatchMaxRetries:    mustInt(getEnv("DISPATCH_MAX_RETRIES", "3")),
		ScheduleHorizonDays:   mustInt(getEnv("SCHEDULE_HORIZON_DAYS", "30")),
		TemplatesPath:         getEnv("TEMPLATES_PATH", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.GHLAPIKey != "" && cfg.GHLLocationID == "" {
		return nil, fmt.Errorf("GHL_LOCATION_ID is required when GHL_API_KEY is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
