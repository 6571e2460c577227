package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	LogLevel      slog.Level
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	// AdminAPIToken guards the internal OCG ingestion endpoint.
	AdminAPIToken string

	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Extraction ExtractionConfig
	Pipeline   PipelineConfig
	Notify     NotifyConfig
	AWS        AWSConfig
	RateLimit  RateLimitConfig
}

// DatabaseConfig selects the Postgres stores. Empty URL selects in-memory stores.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig selects the Redis phase lock. Empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig selects the Kafka event bus. No brokers selects the in-process bus.
type KafkaConfig struct {
	Brokers       []string
	PhaseTopic    string
	AuditTopic    string
	ConsumerGroup string
}

// ExtractionConfig points at the document extraction service. Empty URL selects the fake.
type ExtractionConfig struct {
	URL     string
	Timeout time.Duration
}

// PipelineConfig bounds phase execution.
type PipelineConfig struct {
	PhaseTimeout time.Duration
	StaleAfter   time.Duration
	LockTTL      time.Duration
	Workers      int
}

// NotifyConfig drives the failure-notification sweep.
type NotifyConfig struct {
	Schedule         string
	FollowUpSchedule string
	FromAddress      string
}

// AWSConfig selects S3 documents and SES delivery. Empty bucket or sender selects local adapters.
type AWSConfig struct {
	Region         string
	DocumentBucket string
}

// RateLimitConfig bounds request rates per minute. Zero disables a limit.
type RateLimitConfig struct {
	CandidatePerMinute int
	InboundPerMinute   int
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	var errs []string
	dur := func(key string, def time.Duration) time.Duration {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", key, v))
			return def
		}
		return d
	}
	num := func(key string, def int) int {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid integer %q", key, v))
			return def
		}
		return n
	}

	level := slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Sprintf("LOG_LEVEL: %v", err))
		}
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	cfg := Server{
		Addr:          getenv("CARECHECK_ADDR", ":8080"),
		LogLevel:      level,
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     getenv("JWT_ISSUER", "carecheck"),
		JWTAudience:   getenv("JWT_AUDIENCE", "carecheck-api"),
		AdminAPIToken: os.Getenv("ADMIN_API_TOKEN"),
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: num("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: num("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     num("REDIS_POOL_SIZE", 10),
			MinIdleConns: num("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  dur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  dur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: dur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			PhaseTopic:    getenv("KAFKA_PHASE_TOPIC", "verification.phase-completed"),
			AuditTopic:    getenv("KAFKA_AUDIT_TOPIC", "verification.audit"),
			ConsumerGroup: getenv("KAFKA_CONSUMER_GROUP", "carecheck-dispatcher"),
		},
		Extraction: ExtractionConfig{
			URL:     os.Getenv("EXTRACTION_URL"),
			Timeout: dur("EXTRACTION_TIMEOUT", 45*time.Second),
		},
		Pipeline: PipelineConfig{
			PhaseTimeout: dur("PHASE_TIMEOUT", 60*time.Second),
			StaleAfter:   dur("STALE_AFTER", 3*time.Minute),
			LockTTL:      dur("PHASE_LOCK_TTL", 90*time.Second),
			Workers:      num("PHASE_WORKERS", 4),
		},
		Notify: NotifyConfig{
			Schedule:         getenv("NOTIFY_SCHEDULE", "@every 1m"),
			FollowUpSchedule: getenv("FOLLOW_UP_SCHEDULE", "@every 1m"),
			FromAddress:      os.Getenv("NOTIFY_FROM_ADDRESS"),
		},
		AWS: AWSConfig{
			Region:         getenv("AWS_REGION", "ap-southeast-2"),
			DocumentBucket: os.Getenv("DOCUMENT_BUCKET"),
		},
		RateLimit: RateLimitConfig{
			CandidatePerMinute: num("RATE_LIMIT_CANDIDATE_PER_MINUTE", 60),
			InboundPerMinute:   num("RATE_LIMIT_INBOUND_PER_MINUTE", 120),
		},
	}

	if len(errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
