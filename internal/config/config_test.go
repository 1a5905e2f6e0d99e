package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetenv(t *testing.T) {
	os.Setenv("TEST_KEY_1", "env_value")
	defer os.Unsetenv("TEST_KEY_1")
	assert.Equal(t, "env_value", getenv("TEST_KEY_1", "default"))
	assert.Equal(t, "default", getenv("TEST_KEY_NOT_SET", "default"))
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, "ridgeline", cfg.AppName)
	assert.Equal(t, ":8080", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.DB.Name)
	assert.Equal(t, "nsqd:4150", cfg.NSQ.NsqdTCPAddr)
	assert.Equal(t, "ridgeline.deliver", cfg.NSQ.TopicDeliver)
	assert.Equal(t, 8, cfg.Worker.MaxAttempts)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Breaker.RecoveryTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	os.Setenv("DB_NAME", "custom")
	os.Setenv("MAX_ATTEMPTS", "3")
	os.Setenv("BREAKER_FAILURE_THRESHOLD", "9")
	defer func() {
		os.Unsetenv("DB_NAME")
		os.Unsetenv("MAX_ATTEMPTS")
		os.Unsetenv("BREAKER_FAILURE_THRESHOLD")
	}()

	cfg := FromEnv()
	assert.Equal(t, "custom", cfg.DB.Name)
	assert.Equal(t, 3, cfg.Worker.MaxAttempts)
	assert.Equal(t, 9, cfg.Breaker.FailureThreshold)
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{DB: DB{User: "u", Pass: "p", Host: "h", Port: "5432", Name: "d"}}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", cfg.DSN())
}

func TestIsProduction(t *testing.T) {
	cfg := Config{DB: DB{User: "u", Pass: "p", Host: "prod-db.internal", Port: "5432", Name: "d"}}
	assert.True(t, cfg.IsProduction())

	dev := Config{DB: DB{User: "u", Pass: "p", Host: "localhost", Port: "5432", Name: "d"}}
	assert.False(t, dev.IsProduction())
}

func TestGetenvIntInvalid(t *testing.T) {
	os.Setenv("TEST_INT_VAR", "not-an-int")
	defer os.Unsetenv("TEST_INT_VAR")
	assert.Equal(t, 10, getenvInt("TEST_INT_VAR", 10))
}

func TestGetenvDurationInvalid(t *testing.T) {
	os.Setenv("TEST_DUR_VAR", "nonsense")
	defer os.Unsetenv("TEST_DUR_VAR")
	assert.Equal(t, 10*time.Second, getenvDuration("TEST_DUR_VAR", 10*time.Second))
}
