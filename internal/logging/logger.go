// Package logging provides a small structured JSON logger with trace
// correlation, in the style of the rest of the ingestion/delivery pipeline.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ridgeline-io/ridgeline/internal/tracing"
)

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
)

// LogEntry is a single structured log line.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      LogLevel       `json:"level"`
	Message    string         `json:"msg"`
	Service    string         `json:"service,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	OrgID      string         `json:"org_id,omitempty"`
	ProjectID  string         `json:"project_id,omitempty"`
	DeviceID   string         `json:"device_id,omitempty"`
	RuleID     string         `json:"rule_id,omitempty"`
	AlertID    string         `json:"alert_id,omitempty"`
	WebhookID  string         `json:"webhook_id,omitempty"`
	DeliveryID string         `json:"delivery_id,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Logger produces LogEntry values tagged with a service name.
type Logger struct {
	service string
}

func New(service string) *Logger {
	return &Logger{service: service}
}

func (l *Logger) WithContext(ctx context.Context) *LogEntry {
	entry := &LogEntry{Time: time.Now().UTC(), Service: l.service, Fields: make(map[string]any)}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		entry.TraceID = traceID
	}
	return entry
}

func (l *Logger) WithFields(fields map[string]any) *LogEntry {
	return &LogEntry{Time: time.Now().UTC(), Service: l.service, Fields: fields}
}

func (l *Logger) Plain() *LogEntry {
	return &LogEntry{Time: time.Now().UTC(), Service: l.service, Fields: make(map[string]any)}
}

func (e *LogEntry) WithOrg(id string) *LogEntry { e.OrgID = id; return e }

func (e *LogEntry) WithProject(id string) *LogEntry { e.ProjectID = id; return e }

func (e *LogEntry) WithDevice(id string) *LogEntry { e.DeviceID = id; return e }

func (e *LogEntry) WithRule(id string) *LogEntry { e.RuleID = id; return e }

func (e *LogEntry) WithAlert(id string) *LogEntry { e.AlertID = id; return e }

func (e *LogEntry) WithWebhook(id string) *LogEntry { e.WebhookID = id; return e }

func (e *LogEntry) WithDelivery(id string) *LogEntry { e.DeliveryID = id; return e }

func (e *LogEntry) WithField(key string, value any) *LogEntry {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

func (e *LogEntry) WithFields(fields map[string]any) *LogEntry {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	for k, v := range fields {
		e.Fields[k] = v
	}
	return e
}

func (e *LogEntry) WithError(err error) *LogEntry {
	if err != nil {
		return e.WithField("error", err.Error())
	}
	return e
}

func (e *LogEntry) Debug(message string) { e.Level = LevelDebug; e.Message = message; e.output() }

func (e *LogEntry) Debugf(format string, args ...any) {
	e.Level = LevelDebug
	e.Message = fmt.Sprintf(format, args...)
	e.output()
}

func (e *LogEntry) Info(message string) { e.Level = LevelInfo; e.Message = message; e.output() }

func (e *LogEntry) Infof(format string, args ...any) {
	e.Level = LevelInfo
	e.Message = fmt.Sprintf(format, args...)
	e.output()
}

func (e *LogEntry) Warn(message string) { e.Level = LevelWarn; e.Message = message; e.output() }

func (e *LogEntry) Warnf(format string, args ...any) {
	e.Level = LevelWarn
	e.Message = fmt.Sprintf(format, args...)
	e.output()
}

func (e *LogEntry) Error(message string) { e.Level = LevelError; e.Message = message; e.output() }

func (e *LogEntry) Errorf(format string, args ...any) {
	e.Level = LevelError
	e.Message = fmt.Sprintf(format, args...)
	e.output()
}

func (e *LogEntry) Fatal(message string) {
	e.Level = LevelFatal
	e.Message = message
	e.output()
	os.Exit(1)
}

func (e *LogEntry) Fatalf(format string, args ...any) {
	e.Level = LevelFatal
	e.Message = fmt.Sprintf(format, args...)
	e.output()
	os.Exit(1)
}

func (e *LogEntry) output() {
	if len(e.Fields) == 0 {
		e.Fields = nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		fmt.Printf("%s [%s] %s\n", e.Time.Format(time.RFC3339), e.Level, e.Message)
		return
	}
	fmt.Println(string(data))
}

var defaultLogger = New("ridgeline")

func WithContext(ctx context.Context) *LogEntry { return defaultLogger.WithContext(ctx) }

func WithFields(fields map[string]any) *LogEntry { return defaultLogger.WithFields(fields) }

func Plain() *LogEntry { return defaultLogger.Plain() }

func SetDefaultService(service string) { defaultLogger.service = service }
