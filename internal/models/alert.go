package models

import (
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ConditionType string

const (
	ConditionGreaterThan ConditionType = "greater_than"
	ConditionLessThan    ConditionType = "less_than"
	ConditionEquals      ConditionType = "equals"
	ConditionNotEquals   ConditionType = "not_equals"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusInactive     AlertStatus = "inactive"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

const (
	// DefaultDurationSeconds is the confirm window applied when a rule
	// does not specify one.
	DefaultDurationSeconds = 60

	// floatTolerance is the epsilon used for equals/not_equals comparisons.
	floatTolerance = 0.001
)

// ValidationError reports a malformed rule field at construction time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert rule: %s %s", e.Field, e.Reason)
}

// Alert is a threshold rule over one metric type, owned by a project.
type Alert struct {
	gorm.Model
	ProjectID            uint                        `json:"project_id" gorm:"not null;index"`
	Name                 string                      `json:"name" gorm:"not null"`
	Description          string                      `json:"description"`
	MetricType           string                      `json:"metric_type" gorm:"not null"`
	Condition            ConditionType               `json:"condition" gorm:"not null"`
	Threshold            float64                     `json:"threshold" gorm:"not null"`
	DurationSeconds      int                         `json:"duration_seconds" gorm:"default:60"`
	Severity             Severity                    `json:"severity" gorm:"not null"`
	CooldownMinutes      int                         `json:"cooldown_minutes"`
	Enabled              bool                        `json:"enabled" gorm:"default:true"`
	Status               AlertStatus                 `json:"status" gorm:"default:inactive"`
	NotificationChannels datatypes.JSONSlice[string] `json:"notification_channels"`
	NotificationConfig   *ChannelConfig              `json:"notification_config,omitempty" gorm:"serializer:json"`
	TriggeredAt          *time.Time                  `json:"triggered_at,omitempty"`
	AcknowledgedAt       *time.Time                  `json:"acknowledged_at,omitempty"`
	AcknowledgedBy       string                      `json:"acknowledged_by,omitempty"`
	ResolvedAt           *time.Time                  `json:"resolved_at,omitempty"`
}

// NewAlert builds a validated rule. No partially-built invalid rule is
// ever returned: any violation fails construction with a ValidationError.
func NewAlert(projectID uint, name, metricType string, condition ConditionType, threshold float64, severity Severity) (*Alert, error) {
	a := &Alert{
		ProjectID:       projectID,
		Name:            name,
		MetricType:      metricType,
		Condition:       condition,
		Threshold:       threshold,
		DurationSeconds: DefaultDurationSeconds,
		Severity:        NormalizeSeverity(severity),
		Enabled:         true,
		Status:          AlertStatusInactive,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// NormalizeSeverity maps accepted input aliases onto the canonical set.
func NormalizeSeverity(s Severity) Severity {
	if s == "warning" {
		return SeverityHigh
	}
	return s
}

// Validate checks the enumerated fields and the non-empty name invariant.
func (a *Alert) Validate() error {
	if a.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	switch a.Condition {
	case ConditionGreaterThan, ConditionLessThan, ConditionEquals, ConditionNotEquals:
	default:
		return &ValidationError{Field: "condition", Reason: fmt.Sprintf("unknown kind %q", a.Condition)}
	}
	switch a.Severity {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
	default:
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown value %q", a.Severity)}
	}
	return nil
}

// Evaluate applies the rule condition to a metric value.
func (a *Alert) Evaluate(value float64) bool {
	switch a.Condition {
	case ConditionGreaterThan:
		return value > a.Threshold
	case ConditionLessThan:
		return value < a.Threshold
	case ConditionEquals:
		return math.Abs(value-a.Threshold) <= floatTolerance
	case ConditionNotEquals:
		return math.Abs(value-a.Threshold) > floatTolerance
	default:
		return false
	}
}

// ShouldTrigger reports whether a firing notification may go out right now.
// A disabled rule or a mismatched metric type never triggers, and cooldown
// suppression takes priority over a fresh positive evaluation.
func (a *Alert) ShouldTrigger(metricType string, value float64, now time.Time) bool {
	if !a.Enabled {
		return false
	}
	if metricType != a.MetricType {
		return false
	}
	if !a.Evaluate(value) {
		return false
	}
	if a.TriggeredAt != nil && a.CooldownMinutes > 0 {
		if now.Sub(*a.TriggeredAt) < a.Cooldown() {
			return false
		}
	}
	return true
}

// ConfirmDuration is the debounce window a condition must hold before firing.
func (a *Alert) ConfirmDuration() time.Duration {
	if a.DurationSeconds <= 0 {
		return DefaultDurationSeconds * time.Second
	}
	return time.Duration(a.DurationSeconds) * time.Second
}

// Cooldown is the minimum time between triggers of the same rule.
func (a *Alert) Cooldown() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

func (a *Alert) touch(now time.Time) {
	if !now.After(a.UpdatedAt) {
		now = a.UpdatedAt.Add(time.Nanosecond)
	}
	a.UpdatedAt = now
}

// MarkTriggered stamps a confirmed trigger.
func (a *Alert) MarkTriggered(now time.Time) {
	a.Status = AlertStatusActive
	t := now
	a.TriggeredAt = &t
	a.ResolvedAt = nil
	a.touch(now)
}

// MarkResolved stamps a recovery.
func (a *Alert) MarkResolved(now time.Time) {
	a.Status = AlertStatusResolved
	t := now
	a.ResolvedAt = &t
	a.touch(now)
}

// MarkAcknowledged stamps an operator acknowledgement.
func (a *Alert) MarkAcknowledged(now time.Time, actor string) {
	a.Status = AlertStatusAcknowledged
	t := now
	a.AcknowledgedAt = &t
	a.AcknowledgedBy = actor
	a.touch(now)
}

func (a *Alert) Enable() {
	a.Enabled = true
	a.touch(time.Now())
}

func (a *Alert) Disable() {
	a.Enabled = false
	a.touch(time.Now())
}

func (a *Alert) UpdateThreshold(v float64) {
	a.Threshold = v
	a.touch(time.Now())
}

func (a *Alert) UpdateSeverity(s Severity) error {
	s = NormalizeSeverity(s)
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
	default:
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown value %q", s)}
	}
	a.Severity = s
	a.touch(time.Now())
	return nil
}
