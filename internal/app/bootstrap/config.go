package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the identity core.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	KafkaBrokers     []string
	KafkaTopicPrefix string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	Argon2MemoryKiB uint32
	Argon2Time      uint32
	Argon2Threads   uint8

	TokenTTL           time.Duration
	SessionTTL         time.Duration
	MaxSessionsPerUser int
	LockoutDuration    time.Duration
	FailedThreshold    int

	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	DeviceTrustTTL       time.Duration
	MaxDeviceTrusts      int
	SMSMaxSendsPerWindow int
	SMSSendWindow        time.Duration
	SMSResendCooldown    time.Duration
	CodeReplayTTL        time.Duration

	SigninRatePerSecond float64
	SigninBurst         int

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Events struct {
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"events"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "identity-core",
		HTTPPort:             8080,
		GRPCPort:             9090,
		JWTKeyID:             "identity-core-key-1",
		AllowEphemeralJWT:    true,
		Argon2MemoryKiB:      64 * 1024,
		Argon2Time:           1,
		Argon2Threads:        4,
		TokenTTL:             15 * time.Minute,
		SessionTTL:           30 * 24 * time.Hour,
		MaxSessionsPerUser:   5,
		LockoutDuration:      15 * time.Minute,
		FailedThreshold:      5,
		ChallengeTTL:         5 * time.Minute,
		ChallengeMaxAttempts: 3,
		DeviceTrustTTL:       30 * 24 * time.Hour,
		MaxDeviceTrusts:      10,
		SMSMaxSendsPerWindow: 3,
		SMSSendWindow:        time.Hour,
		SMSResendCooldown:    60 * time.Second,
		CodeReplayTTL:        90 * time.Second,
		SigninRatePerSecond:  2,
		SigninBurst:          10,
		MaxDBConns:           20,
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      100,
		OutboxClaimTTL:       30 * time.Second,
		OutboxMaxRetries:     5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Events.TopicPrefix != "" {
			cfg.KafkaTopicPrefix = f.Events.TopicPrefix
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopicPrefix = envOrDefault("KAFKA_TOPIC_PREFIX", cfg.KafkaTopicPrefix)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.FailedThreshold = envInt("FAILED_LOGIN_THRESHOLD", cfg.FailedThreshold)
	cfg.MaxSessionsPerUser = envInt("MAX_SESSIONS_PER_USER", cfg.MaxSessionsPerUser)
	cfg.MaxDeviceTrusts = envInt("MAX_DEVICE_TRUSTS_PER_USER", cfg.MaxDeviceTrusts)
	cfg.ChallengeMaxAttempts = envInt("MFA_CHALLENGE_MAX_ATTEMPTS", cfg.ChallengeMaxAttempts)
	cfg.SMSMaxSendsPerWindow = envInt("SMS_MAX_SENDS_PER_WINDOW", cfg.SMSMaxSendsPerWindow)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.Argon2MemoryKiB = uint32(envInt("ARGON2_MEMORY_KIB", int(cfg.Argon2MemoryKiB)))
	cfg.Argon2Time = uint32(envInt("ARGON2_TIME", int(cfg.Argon2Time)))
	cfg.Argon2Threads = uint8(envInt("ARGON2_THREADS", int(cfg.Argon2Threads)))
	cfg.SigninBurst = envInt("SIGNIN_RATE_BURST", cfg.SigninBurst)
	if raw := os.Getenv("SIGNIN_RATE_PER_SECOND"); raw != "" {
		if v, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil {
			cfg.SigninRatePerSecond = v
		}
	}

	cfg.TokenTTL = time.Duration(envInt("TOKEN_EXPIRY_MINUTES", int(cfg.TokenTTL.Minutes()))) * time.Minute
	cfg.SessionTTL = time.Duration(envInt("SESSION_EXPIRY_DAYS", int(cfg.SessionTTL.Hours()/24))) * 24 * time.Hour
	cfg.LockoutDuration = time.Duration(envInt("ACCOUNT_LOCKOUT_MINUTES", int(cfg.LockoutDuration.Minutes()))) * time.Minute
	cfg.ChallengeTTL = time.Duration(envInt("MFA_CHALLENGE_TTL_SECONDS", int(cfg.ChallengeTTL.Seconds()))) * time.Second
	cfg.DeviceTrustTTL = time.Duration(envInt("DEVICE_TRUST_DAYS", int(cfg.DeviceTrustTTL.Hours()/24))) * 24 * time.Hour
	cfg.SMSSendWindow = time.Duration(envInt("SMS_SEND_WINDOW_SECONDS", int(cfg.SMSSendWindow.Seconds()))) * time.Second
	cfg.SMSResendCooldown = time.Duration(envInt("SMS_RESEND_COOLDOWN_SECONDS", int(cfg.SMSResendCooldown.Seconds()))) * time.Second
	cfg.CodeReplayTTL = time.Duration(envInt("MFA_CODE_REPLAY_TTL_SECONDS", int(cfg.CodeReplayTTL.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
