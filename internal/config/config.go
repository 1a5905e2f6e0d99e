// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type DB struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

type Redis struct {
	URL string // e.g. redis://redis:6379/0
}

type NSQ struct {
	NsqdTCPAddr    string // e.g. nsqd:4150
	LookupHTTPAddr string // e.g. http://nsqlookupd:4161

	TopicIngest   string
	TopicEvaluate string
	TopicFanout   string
	TopicDeliver  string
	DLQTopic      string
	WorkerChannel string
}

type Worker struct {
	MaxAttempts       int // max delivery attempts (spec: 8)
	BackoffBaseSecs   int // loaded only; delivery backoff uses a fixed base of 5 (5 * 2^r)
	BackoffCapSecs    int // loaded only; delivery backoff uses a fixed cap of 1800s
	BackoffJitterCap  int // loaded only; delivery backoff uses a fixed jitter cap of 30s
	PublishDLQ        bool
	StaleSendingAfter time.Duration // loaded only; store.TryMarkSending uses a fixed 120s (sendingStaleAfter)
	HTTPConnectTO     time.Duration
	HTTPReadTO        time.Duration
	HTTPWriteTO       time.Duration
	HTTPPoolTO        time.Duration
	HTTPPort          string
}

type Breaker struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

type RateLimit struct {
	IngestPerMinute int
	IngestPerHour   int
	WebhookPerHour  int
	APIKeyPerHour   int
	RulePerHour     int
	RuleBindPerHour int
	DevicePerHour   int
}

type FakeReceiver struct {
	FailFirstN      int
	ResponseDelayMS int
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

type Config struct {
	AppName  string
	HTTPPort string // :8080

	DB           DB
	Redis        Redis
	NSQ          NSQ
	Worker       Worker
	Breaker      Breaker
	RateLimit    RateLimit
	FakeReceiver FakeReceiver

	LogLevel string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// FromEnv builds a Config from the process environment, falling back to
// development defaults for anything unset.
func FromEnv() Config {
	return Config{
		AppName:  getenv("APP_NAME", "ridgeline"),
		HTTPPort: ":" + strings.TrimPrefix(getenv("HTTP_PORT", ":8080"), ":"),

		DB: DB{
			User: getenv("DB_USER", "postgres"),
			Pass: getenv("DB_PASS", "postgres"),
			Host: getenv("DB_HOST", "postgres"),
			Port: getenv("DB_PORT", "5432"),
			Name: getenv("DB_NAME", "ridgeline"),
		},
		Redis: Redis{
			// REDIS_URL is also the spec-mandated env var name (§6).
			URL: getenv("REDIS_URL", "redis://redis:6379/0"),
		},
		NSQ: NSQ{
			// CELERY_BROKER_URL / CELERY_RESULT_BACKEND are accepted for
			// config parity with the spec's environment contract (§6); when
			// set they are ignored in favor of NSQD_TCP_ADDR /
			// NSQ_LOOKUP_HTTP_ADDR, since our queue is NSQ, not Celery.
			NsqdTCPAddr:    getenv("NSQD_TCP_ADDR", "nsqd:4150"),
			LookupHTTPAddr: getenv("NSQ_LOOKUP_HTTP_ADDR", "http://nsqlookupd:4161"),
			TopicIngest:    getenv("NSQ_TOPIC_INGEST", "ridgeline.ingest"),
			TopicEvaluate:  getenv("NSQ_TOPIC_EVALUATE", "ridgeline.evaluate"),
			TopicFanout:    getenv("NSQ_TOPIC_FANOUT", "ridgeline.fanout"),
			TopicDeliver:   getenv("NSQ_TOPIC_DELIVER", "ridgeline.deliver"),
			DLQTopic:       getenv("NSQ_TOPIC_DLQ", "ridgeline.deliver.dlq"),
			WorkerChannel:  getenv("NSQ_WORKER_CHANNEL", "workers"),
		},
		Worker: Worker{
			MaxAttempts:       getenvInt("MAX_ATTEMPTS", 8),
			BackoffBaseSecs:   getenvInt("BACKOFF_BASE_SECONDS", 5),
			BackoffCapSecs:    getenvInt("BACKOFF_CAP_SECONDS", 1800),
			BackoffJitterCap:  getenvInt("BACKOFF_JITTER_CAP_SECONDS", 30),
			PublishDLQ:        getenvBool("PUBLISH_DLQ_TOPIC", true),
			StaleSendingAfter: getenvDuration("STALE_SENDING_AFTER", 120*time.Second),
			HTTPConnectTO:     getenvDuration("WEBHOOK_CONNECT_TIMEOUT", 2*time.Second),
			HTTPReadTO:        getenvDuration("WEBHOOK_READ_TIMEOUT", 5*time.Second),
			HTTPWriteTO:       getenvDuration("WEBHOOK_WRITE_TIMEOUT", 5*time.Second),
			HTTPPoolTO:        getenvDuration("WEBHOOK_POOL_TIMEOUT", 5*time.Second),
			HTTPPort:          ":" + getenv("WORKER_HTTP_PORT", "8083"),
		},
		Breaker: Breaker{
			FailureThreshold: getenvInt("BREAKER_FAILURE_THRESHOLD", 5),
			RecoveryTimeout:  getenvDuration("BREAKER_RECOVERY_TIMEOUT", 60*time.Second),
		},
		RateLimit: RateLimit{
			IngestPerMinute: getenvInt("RATE_LIMIT_INGEST_PER_MINUTE", 1000),
			IngestPerHour:   getenvInt("RATE_LIMIT_INGEST_PER_HOUR", 10000),
			WebhookPerHour:  getenvInt("RATE_LIMIT_WEBHOOK_PER_HOUR", 50),
			APIKeyPerHour:   getenvInt("RATE_LIMIT_APIKEY_PER_HOUR", 10),
			RulePerHour:     getenvInt("RATE_LIMIT_RULE_PER_HOUR", 100),
			RuleBindPerHour: getenvInt("RATE_LIMIT_RULE_BIND_PER_HOUR", 200),
			DevicePerHour:   getenvInt("RATE_LIMIT_DEVICE_PER_HOUR", 100),
		},
		FakeReceiver: FakeReceiver{
			FailFirstN:      getenvInt("FAIL_FIRST_N", 0),
			ResponseDelayMS: getenvInt("RESPONSE_DELAY_MS", 0),
			Port:            ":" + getenv("FAKE_RECEIVER_PORT", "8081"),
			ReadTimeout:     getenvDuration("FAKE_RECEIVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getenvDuration("FAKE_RECEIVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getenvDuration("FAKE_RECEIVER_IDLE_TIMEOUT", 60*time.Second),
		},
		LogLevel: getenv("LOG_LEVEL", "info"),
	}
}

func (c Config) DSN() string {
	return "postgres://" + c.DB.User + ":" + c.DB.Pass + "@" + c.DB.Host + ":" + c.DB.Port + "/" + c.DB.Name + "?sslmode=disable"
}

// IsProduction matches the spec's "substring match on the database URL" rule (§6).
func (c Config) IsProduction() bool {
	dsn := c.DSN()
	return strings.Contains(dsn, "prod") && !strings.Contains(dsn, "localhost")
}
