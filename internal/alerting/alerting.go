// Package alerting grades the nearest predicted pass into an alert stage
// and renders the status text shown to observers.
package alerting

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/overflight.report/internal/cpa"
)

// Stage is the alert level for the nearest pass.
type Stage string

const (
	StageIdle     Stage = "idle"
	StageMonitor  Stage = "monitor"
	StageWarning  Stage = "warning"
	StageCritical Stage = "critical"
	StageActive   Stage = "active"
)

// Thresholds are lead times before entry at which the stage escalates.
type Thresholds struct {
	Warning  time.Duration
	Critical time.Duration
}

// DefaultThresholds is used when the caller supplies none.
var DefaultThresholds = Thresholds{
	Warning:  30 * time.Second,
	Critical: 10 * time.Second,
}

// InversionPolicy says how Normalize reconciles a warning threshold that is
// shorter than the critical one.
type InversionPolicy string

const (
	// RaiseWarning lifts the warning threshold to the critical one, so the
	// warning band disappears.
	RaiseWarning InversionPolicy = "raise_warning"
	// Swap exchanges the two thresholds.
	Swap InversionPolicy = "swap"
)

// DefaultInversionPolicy applies when no policy is configured.
const DefaultInversionPolicy = RaiseWarning

// ParseInversionPolicy accepts the configured policy name. An empty name
// selects DefaultInversionPolicy.
func ParseInversionPolicy(s string) (InversionPolicy, error) {
	switch InversionPolicy(s) {
	case "":
		return DefaultInversionPolicy, nil
	case RaiseWarning, Swap:
		return InversionPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown alert inversion policy %q (want %s or %s)", s, RaiseWarning, Swap)
	}
}

// Normalize clamps both thresholds at zero and then resolves an inversion
// according to policy. The result always has Warning >= Critical >= 0.
func Normalize(t Thresholds, policy InversionPolicy) Thresholds {
	if t.Warning < 0 {
		t.Warning = 0
	}
	if t.Critical < 0 {
		t.Critical = 0
	}
	if t.Warning >= t.Critical {
		return t
	}
	if policy == Swap {
		return Thresholds{Warning: t.Critical, Critical: t.Warning}
	}
	return Thresholds{Warning: t.Critical, Critical: t.Critical}
}

// DetermineStage classifies event against already normalized thresholds.
func DetermineStage(event *cpa.PassEvent, t Thresholds) Stage {
	if event == nil {
		return StageIdle
	}
	switch {
	case event.ETA <= 0:
		return StageActive
	case event.ETA <= t.Critical.Seconds():
		return StageCritical
	case event.ETA <= t.Warning.Seconds():
		return StageWarning
	default:
		return StageMonitor
	}
}

// Status is the rendered alert for one poll cycle.
type Status struct {
	Stage   Stage          `json:"stage"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Event   *cpa.PassEvent `json:"-"`
}

// Evaluate normalizes the thresholds, stages the event and renders the
// observer-facing text.
func Evaluate(event *cpa.PassEvent, t Thresholds, policy InversionPolicy) Status {
	t = Normalize(t, policy)
	stage := DetermineStage(event, t)
	title, message := describe(stage, event, t)
	return Status{Stage: stage, Title: title, Message: message, Event: event}
}

// Nearest returns the first event of a list ranked by ETA, or nil.
func Nearest(events []cpa.PassEvent) *cpa.PassEvent {
	if len(events) == 0 {
		return nil
	}
	ev := events[0]
	return &ev
}

func describe(stage Stage, event *cpa.PassEvent, t Thresholds) (string, string) {
	if event == nil {
		return "No aircraft approaching", "Waiting for the next feed update."
	}

	name := event.Plane.Name()
	eta := FormatSeconds(event.ETA)
	duration := FormatSeconds(event.Duration)
	level := LevelLabel(event.Level)

	switch stage {
	case StageActive:
		return "Aircraft overhead now",
			fmt.Sprintf("%s leaves the radius in about %s, noise level: %s.", name, FormatSeconds(event.Remaining()), level)
	case StageCritical:
		return fmt.Sprintf("Critical: arrival within T-%s", FormatSeconds(t.Critical.Seconds())),
			fmt.Sprintf("%s enters the radius within %s, expected to stay %s, noise level: %s.", name, eta, duration, level)
	case StageWarning:
		return fmt.Sprintf("Warning: aircraft within T-%s", FormatSeconds(t.Warning.Seconds())),
			fmt.Sprintf("%s approaches in about %s, expected pass %s, noise level: %s.", name, eta, duration, level)
	default:
		return "Aircraft approaching the observation radius",
			fmt.Sprintf("%s enters in about %s, expected pass %s, noise level: %s.", name, eta, duration, level)
	}
}

// FormatSeconds renders a time in whole seconds, floored at zero.
// Non-finite values render as "--".
func FormatSeconds(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "--"
	}
	return fmt.Sprintf("%d s", int64(math.Round(math.Max(0, v))))
}

// LevelLabel returns the display label for a noise level.
func LevelLabel(l cpa.NoiseLevel) string {
	if l == cpa.NoiseUnknown {
		return "estimating"
	}
	return string(l)
}
