package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "dunning/pkg/platform/strings"
)

// Config is the immutable process configuration, built once by FromEnv.
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Compliance  ComplianceConfig
	Voice       VoiceConfig
	SMS         TwilioConfig
	Calendar    GoogleCalendarConfig
	Outreach    OutreachConfig
	Security    SecurityConfig
	Logging     LoggingConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
	// ToolRateLimit is requests per minute per client on tool routes. Zero disables it.
	ToolRateLimit int
}

// DatabaseConfig selects the Postgres store. An empty URL uses in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
}

// RedisConfig configures the booking lock. An empty URL uses an in-process lock.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig configures the call-completed hook. No brokers means a no-op hook.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ComplianceConfig defines the permitted contact window.
type ComplianceConfig struct {
	Zone      string
	StartHour int
	EndHour   int
	// ResolveByAreaCode maps recipient phone numbers to a local zone when known.
	ResolveByAreaCode bool
}

// VoiceConfig selects and configures the outbound voice agent.
type VoiceConfig struct {
	Provider       string
	PollWait       time.Duration
	RequestTimeout time.Duration
	Vapi           VapiConfig
	Retell         RetellConfig
}

type VapiConfig struct {
	BaseURL       string
	APIKey        string
	WorkflowID    string
	PhoneNumberID string
}

type RetellConfig struct {
	BaseURL    string
	APIKey     string
	AgentID    string
	WorkflowID string
	FromNumber string
}

type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	FromNumber string
}

type GoogleCalendarConfig struct {
	BaseURL     string
	CalendarID  string
	AccessToken string
	TimeZone    string
}

// OutreachConfig is the organization named in outbound messages.
type OutreachConfig struct {
	OrgName    string
	PaymentURL string
}

// SecurityConfig holds secrets. PHIKey is 32 bytes hex encoded.
type SecurityConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	WebhookSecret string
	PHIKey        string
}

type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	VoiceProviderVapi   = "vapi"
	VoiceProviderRetell = "retell"
)

// IsProduction reports whether secrets and storage are mandatory.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// FromEnv builds the configuration from environment variables.
func FromEnv() (Config, error) {
	var errs []error
	e := &envReader{errs: &errs}

	cfg := Config{
		Environment: e.str("APP_ENV", "development"),
		Server: ServerConfig{
			Addr:              e.str("DUNNING_ADDR", ":8080"),
			ReadHeaderTimeout: e.dur("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			RequestTimeout:    e.dur("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout:   e.dur("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			ToolRateLimit:     e.int("TOOL_RATE_LIMIT_PER_MINUTE", 120),
		},
		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.int("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    e.int("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.dur("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			TxTimeout:       e.dur("DATABASE_TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.dur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.dur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.dur("REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      e.dur("BOOKING_LOCK_TTL", 15*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: e.list("KAFKA_BROKERS"),
			Topic:   e.str("KAFKA_CALL_EVENTS_TOPIC", "dunning.call-events"),
		},
		Compliance: ComplianceConfig{
			Zone:              e.str("COMPLIANCE_TIMEZONE", "America/Denver"),
			StartHour:         e.int("COMPLIANCE_START_HOUR", 8),
			EndHour:           e.int("COMPLIANCE_END_HOUR", 21),
			ResolveByAreaCode: e.bool("COMPLIANCE_RESOLVE_AREA_CODE", true),
		},
		Voice: VoiceConfig{
			Provider:       strings.ToLower(e.str("VOICE_PROVIDER", VoiceProviderVapi)),
			PollWait:       e.dur("VOICE_POLL_WAIT", 10*time.Second),
			RequestTimeout: e.dur("VOICE_REQUEST_TIMEOUT", 15*time.Second),
			Vapi: VapiConfig{
				BaseURL:       e.str("VAPI_BASE_URL", "https://api.vapi.ai"),
				APIKey:        e.str("VAPI_API_KEY", ""),
				WorkflowID:    e.str("VAPI_WORKFLOW_ID", ""),
				PhoneNumberID: e.str("VAPI_PHONE_NUMBER_ID", ""),
			},
			Retell: RetellConfig{
				BaseURL:    e.str("RETELL_BASE_URL", "https://api.retellai.com"),
				APIKey:     e.str("RETELL_API_KEY", ""),
				AgentID:    e.str("RETELL_AGENT_ID", ""),
				WorkflowID: e.str("RETELL_WORKFLOW_ID", ""),
				FromNumber: e.str("RETELL_FROM_NUMBER", ""),
			},
		},
		SMS: TwilioConfig{
			BaseURL:    e.str("TWILIO_BASE_URL", "https://api.twilio.com"),
			AccountSID: e.str("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  e.str("TWILIO_AUTH_TOKEN", ""),
			FromNumber: e.str("TWILIO_PHONE_NUMBER", ""),
		},
		Calendar: GoogleCalendarConfig{
			BaseURL:     e.str("GOOGLE_CALENDAR_BASE_URL", "https://www.googleapis.com/calendar/v3"),
			CalendarID:  e.str("GOOGLE_CALENDAR_ID", "primary"),
			AccessToken: e.str("GOOGLE_CALENDAR_TOKEN", ""),
			TimeZone:    e.str("GOOGLE_CALENDAR_TIMEZONE", "America/Denver"),
		},
		Outreach: OutreachConfig{
			OrgName:    e.str("OUTREACH_ORG_NAME", "Healthcare Corporation"),
			PaymentURL: e.str("OUTREACH_PAYMENT_URL", "www.hcprovo.com"),
		},
		Security: SecurityConfig{
			JWTSigningKey: e.str("JWT_SIGNING_KEY", ""),
			JWTIssuer:     e.str("JWT_ISSUER", "dunning"),
			WebhookSecret: e.str("WEBHOOK_SECRET", ""),
			PHIKey:        e.str("PHI_ENCRYPTION_KEY", ""),
		},
		Logging: LoggingConfig{
			Level:      e.str("LOG_LEVEL", "info"),
			Format:     e.str("LOG_FORMAT", "auto"),
			File:       e.str("LOG_FILE", ""),
			MaxSizeMB:  e.int("LOG_MAX_SIZE_MB", 100),
			MaxBackups: e.int("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: e.int("LOG_MAX_AGE_DAYS", 30),
		},
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Compliance.Zone); err != nil {
		errs = append(errs, fmt.Errorf("COMPLIANCE_TIMEZONE: %w", err))
	}
	if c.Compliance.StartHour < 0 || c.Compliance.EndHour > 24 || c.Compliance.StartHour >= c.Compliance.EndHour {
		errs = append(errs, fmt.Errorf("compliance window %d-%d is invalid", c.Compliance.StartHour, c.Compliance.EndHour))
	}
	switch c.Voice.Provider {
	case VoiceProviderVapi, VoiceProviderRetell:
	default:
		errs = append(errs, fmt.Errorf("VOICE_PROVIDER must be %q or %q, got %q", VoiceProviderVapi, VoiceProviderRetell, c.Voice.Provider))
	}
	if c.Server.ToolRateLimit < 0 {
		errs = append(errs, errors.New("TOOL_RATE_LIMIT_PER_MINUTE must not be negative"))
	}
	if c.Security.PHIKey != "" && len(c.Security.PHIKey) != 64 {
		errs = append(errs, errors.New("PHI_ENCRYPTION_KEY must be 64 hex characters"))
	}
	if c.IsProduction() {
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required in production"))
		}
		if c.Security.JWTSigningKey == "" {
			errs = append(errs, errors.New("JWT_SIGNING_KEY is required in production"))
		}
		if c.Security.WebhookSecret == "" {
			errs = append(errs, errors.New("WEBHOOK_SECRET is required in production"))
		}
		if c.Security.PHIKey == "" {
			errs = append(errs, errors.New("PHI_ENCRYPTION_KEY is required in production"))
		}
	}
	return errors.Join(errs...)
}

type envReader struct {
	errs *[]error
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *envReader) dur(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *envReader) list(key string) []string {
	v := e.str(key, "")
	if v == "" {
		return nil
	}
	return strutil.DedupeAndTrim(strings.Split(v, ","))
}
