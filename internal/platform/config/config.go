package config

import (
	"os"
	"time"
)

// Defaults for the attestation validity window. An attestation must season
// for MinDelay before it is acceptable and goes stale after MaxAge.
var (
	DefaultAttestationMinDelay = 1 * time.Hour
	DefaultAttestationMaxAge   = 24 * time.Hour
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	AdminToken    string
	JWTSigningKey string
	ChainSalt     string

	PostgresURL  string
	RedisURL     string
	KafkaBrokers string

	AttestationMinDelay time.Duration
	AttestationMaxAge   time.Duration

	CredentialTTL time.Duration

	SweepInterval   time.Duration
	RequestDeadline time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                envOr("SCOREPASS_ADDR", ":8080"),
		AdminToken:          envOr("SCOREPASS_ADMIN_TOKEN", ""),
		JWTSigningKey:       envOr("SCOREPASS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		ChainSalt:           envOr("SCOREPASS_CHAIN_SALT", "scorepass-dev"),
		PostgresURL:         os.Getenv("SCOREPASS_POSTGRES_URL"),
		RedisURL:            os.Getenv("SCOREPASS_REDIS_URL"),
		KafkaBrokers:        os.Getenv("SCOREPASS_KAFKA_BROKERS"),
		AttestationMinDelay: durationOr("SCOREPASS_ATTESTATION_MIN_DELAY", DefaultAttestationMinDelay),
		AttestationMaxAge:   durationOr("SCOREPASS_ATTESTATION_MAX_AGE", DefaultAttestationMaxAge),
		CredentialTTL:       durationOr("SCOREPASS_CREDENTIAL_TTL", 365*24*time.Hour),
		SweepInterval:       durationOr("SCOREPASS_SWEEP_INTERVAL", 5*time.Minute),
		RequestDeadline:     durationOr("SCOREPASS_REQUEST_DEADLINE", 7*24*time.Hour),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
