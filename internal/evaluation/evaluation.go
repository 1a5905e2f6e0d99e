// Package evaluation implements the k-of-n windowed threshold engine:
// for each device, load its applicable enabled rules, check the last
// window_n telemetry events for at least required_k matches, and create
// an alert (subject to per-rule cooldown) when one is found.
//
// Grounded on app/services/evaluation_service.py in original_source.
package evaluation

import (
	"context"

	"github.com/ridgeline-io/ridgeline/internal/logging"
	"github.com/ridgeline-io/ridgeline/internal/metrics"
	"github.com/ridgeline-io/ridgeline/internal/store"
)

var allowedOperators = map[string]bool{">": true, ">=": true, "<": true, "<=": true}

func compare(op string, value, threshold float64) bool {
	switch op {
	case ">":
		return value > threshold
	case ">=":
		return value >= threshold
	case "<":
		return value < threshold
	case "<=":
		return value <= threshold
	default:
		return false
	}
}

// Repository is the subset of *store.Store the engine depends on.
type Repository interface {
	GetDevice(ctx context.Context, id int64) (store.Device, error)
	ApplicableRules(ctx context.Context, projectID, deviceID int64, deviceTags []string) ([]store.Rule, error)
	LastNEvents(ctx context.Context, deviceID int64, n int) ([]store.TelemetryEvent, error)
	CreateAlertUnderLock(ctx context.Context, rule store.Rule, deviceID int64, details map[string]any) (store.Alert, bool, error)
}

type Engine struct {
	repo   Repository
	logger *logging.Logger
}

func NewEngine(repo Repository, logger *logging.Logger) *Engine {
	return &Engine{repo: repo, logger: logger}
}

// EvaluateDevice checks every applicable rule for deviceID and returns the
// alerts created (rules skipped by validation, window underflow, missing
// metric, insufficient matches, or cooldown produce no entry and no error).
// A repository error on any rule aborts the remaining rules in this
// invocation and is returned alongside whatever alerts already fired,
// rather than being swallowed so the loop can keep going.
func (e *Engine) EvaluateDevice(ctx context.Context, deviceID int64) ([]store.Alert, error) {
	device, err := e.repo.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	rules, err := e.repo.ApplicableRules(ctx, device.ProjectID, deviceID, device.Tags)
	if err != nil {
		return nil, err
	}

	var created []store.Alert
	for _, rule := range rules {
		alert, ok, err := e.evaluateRule(ctx, device, rule)
		if err != nil {
			e.logger.Plain().WithError(err).WithField("rule_id", rule.ID).
				WithField("device_id", deviceID).Error("rule evaluation failed")
			metrics.EvaluationsTotal.WithLabelValues("error").Inc()
			return created, err
		}
		if !ok {
			metrics.EvaluationsTotal.WithLabelValues("no_match").Inc()
			continue
		}
		metrics.EvaluationsTotal.WithLabelValues("alert_created").Inc()
		metrics.AlertsCreatedTotal.Inc()
		created = append(created, alert)
	}
	return created, nil
}

func (e *Engine) evaluateRule(ctx context.Context, device store.Device, rule store.Rule) (store.Alert, bool, error) {
	if !allowedOperators[rule.Operator] {
		return store.Alert{}, false, nil
	}
	if rule.RequiredK > rule.WindowN {
		return store.Alert{}, false, nil
	}

	events, err := e.repo.LastNEvents(ctx, device.ID, rule.WindowN)
	if err != nil {
		return store.Alert{}, false, err
	}
	if len(events) < rule.WindowN {
		return store.Alert{}, false, nil
	}

	var (
		matchCount  int
		considered  int
		latestValue *float64
		latestTS    string
	)

	for _, ev := range events {
		raw, ok := ev.Payload[rule.Metric]
		if !ok {
			continue
		}
		value, ok := asFloat(raw)
		if !ok {
			continue
		}
		considered++
		if latestValue == nil {
			v := value
			latestValue = &v
			latestTS = ev.TS.Format("2006-01-02T15:04:05.999999999Z07:00")
		}
		if compare(rule.Operator, value, rule.Threshold) {
			matchCount++
		}
	}

	if considered == 0 {
		return store.Alert{}, false, nil
	}
	if matchCount < rule.RequiredK {
		return store.Alert{}, false, nil
	}

	details := map[string]any{
		"rule": map[string]any{
			"id":               rule.ID,
			"name":             rule.Name,
			"metric":           rule.Metric,
			"operator":         rule.Operator,
			"threshold":        rule.Threshold,
			"window_n":         rule.WindowN,
			"required_k":       rule.RequiredK,
			"cooldown_seconds": rule.CooldownSeconds,
			"scope":            rule.Scope,
			"tag":              rule.Tag,
		},
		"evaluation": map[string]any{
			"device_id":    device.ID,
			"match_count":  matchCount,
			"considered":   considered,
			"latest_value": latestValue,
			"latest_ts":    latestTS,
		},
	}

	alert, created, err := e.repo.CreateAlertUnderLock(ctx, rule, device.ID, details)
	if err != nil {
		return store.Alert{}, false, err
	}
	return alert, created, nil
}

// asFloat reports whether raw (decoded from JSON) holds a numeric value,
// matching the original's isinstance(raw, (int, float)) check — JSON
// numbers always decode to float64 via encoding/json, so bools (which
// Go's json package never confuses with numbers) are correctly excluded.
func asFloat(raw any) (float64, bool) {
	v, ok := raw.(float64)
	return v, ok
}
