package device

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rivaltray-io/rivaltray/internal/logging"
	"github.com/rivaltray-io/rivaltray/internal/models"
)

// ActionKind identifies one of the closed set of setting changes the
// menu can trigger.
type ActionKind int

const (
	ActionSetSensitivity ActionKind = iota
	ActionSetPollingRate
	ActionSetSleepTimer
	ActionSetDimTimer
	ActionSetTheme
)

func (k ActionKind) String() string {
	switch k {
	case ActionSetSensitivity:
		return "set-sensitivity"
	case ActionSetPollingRate:
		return "set-polling-rate"
	case ActionSetSleepTimer:
		return "set-sleep-timer"
	case ActionSetDimTimer:
		return "set-dim-timer"
	case ActionSetTheme:
		return "set-theme"
	default:
		return "unknown"
	}
}

// SettingAction is a single validated setting change.
type SettingAction struct {
	Kind  ActionKind
	Value string
}

// ErrInvalidValue marks a value rejected before any tool invocation.
var ErrInvalidValue = fmt.Errorf("invalid setting value")

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// actionSpec drives the dispatch table: how to validate a value and,
// for device-backed actions, which tool flag carries it. Theme changes
// are local (icon recolor + settings write) and spawn nothing.
type actionSpec struct {
	flag     string
	validate func(string) error
}

var actionTable = map[ActionKind]actionSpec{
	ActionSetSensitivity: {flag: "--sensitivity", validate: ValidateSensitivity},
	ActionSetPollingRate: {flag: "--polling-rate", validate: ValidatePollingRate},
	ActionSetSleepTimer:  {flag: "--sleep-timer", validate: func(v string) error { return ValidateTimer(v, "sleep timer") }},
	ActionSetDimTimer:    {flag: "--dim-timer", validate: func(v string) error { return ValidateTimer(v, "dim timer") }},
	ActionSetTheme:       {validate: ValidateTheme},
}

// ValidateSensitivity accepts a CPI value in 100-16000. Empty means
// "leave unchanged" and is accepted.
func ValidateSensitivity(value string) error {
	if value == "" {
		return nil
	}
	cpi, err := strconv.Atoi(value)
	if err != nil || cpi < 100 || cpi > 16000 {
		return fmt.Errorf("%w: sensitivity %q (want 100-16000 CPI)", ErrInvalidValue, value)
	}
	return nil
}

// ValidatePollingRate accepts one of the rates the hardware supports.
func ValidatePollingRate(value string) error {
	switch value {
	case "", "125", "250", "500", "1000":
		return nil
	default:
		return fmt.Errorf("%w: polling rate %q (want 125, 250, 500 or 1000)", ErrInvalidValue, value)
	}
}

// ValidateTimer accepts a non-negative integer duration value.
func ValidateTimer(value, label string) error {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("%w: %s %q (want a non-negative integer)", ErrInvalidValue, label, value)
	}
	return nil
}

// ValidateTheme accepts a known theme style, plus an optional accent
// suffix for the custom style ("custom:#rrggbb").
func ValidateTheme(value string) error {
	style, accent, hasAccent := strings.Cut(value, ":")
	switch models.ThemeStyle(style) {
	case models.ThemeLight, models.ThemeDark:
		if hasAccent {
			return fmt.Errorf("%w: theme %q takes no accent color", ErrInvalidValue, style)
		}
		return nil
	case models.ThemeCustom:
		if hasAccent && !hexColorRe.MatchString(accent) {
			return fmt.Errorf("%w: accent color %q (want #rrggbb)", ErrInvalidValue, accent)
		}
		return nil
	default:
		return fmt.Errorf("%w: theme %q", ErrInvalidValue, value)
	}
}

// Actions applies menu setting changes through the external tool.
// Failures here never touch tray state or the last known battery
// sample; the caller only reports them.
type Actions struct {
	runner Runner
	log    *logrus.Entry
}

// NewActions creates an Actions bridge backed by the given runner.
func NewActions(runner Runner) *Actions {
	return &Actions{
		runner: runner,
		log:    logging.NewLogger("actions"),
	}
}

// Apply validates and executes a single setting change. Theme changes
// validate only; persisting and republishing is the caller's job since
// no device communication is involved.
func (a *Actions) Apply(ctx context.Context, action SettingAction) error {
	spec, ok := actionTable[action.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown action %d", ErrInvalidValue, action.Kind)
	}
	if err := spec.validate(action.Value); err != nil {
		return err
	}
	if spec.flag == "" {
		return nil
	}

	a.log.WithFields(logrus.Fields{
		"action": action.Kind.String(),
		"value":  action.Value,
	}).Info("applying setting")

	out, err := a.runner.Run(ctx, ToolName, spec.flag, action.Value)
	if err != nil {
		return fmt.Errorf("%s: %w", action.Kind, err)
	}
	if !out.Success() {
		return fmt.Errorf("%s: %s exited %d: %s",
			action.Kind, ToolName, out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return nil
}

// Reset restores the device's factory settings (`rivalcfg -r`).
func (a *Actions) Reset(ctx context.Context) error {
	a.log.Info("resetting device settings")
	out, err := a.runner.Run(ctx, ToolName, "-r")
	if err != nil {
		return err
	}
	if !out.Success() {
		return fmt.Errorf("reset: %s exited %d: %s",
			ToolName, out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return nil
}

// ApplyAll pushes every non-empty stored mouse setting to the device
// in one invocation.
func (a *Actions) ApplyAll(ctx context.Context, mouse models.MouseConfig) error {
	args := BuildArgs(mouse)
	if len(args) == 0 {
		return nil
	}
	a.log.WithField("args", strings.Join(args, " ")).Info("applying stored settings")
	out, err := a.runner.Run(ctx, ToolName, args...)
	if err != nil {
		return err
	}
	if !out.Success() {
		return fmt.Errorf("apply settings: %s exited %d: %s",
			ToolName, out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return nil
}

// BuildArgs builds the combined rivalcfg argument list for the stored
// mouse settings. Empty fields are skipped; order is stable.
func BuildArgs(mouse models.MouseConfig) []string {
	var args []string
	if mouse.Sensitivity != "" {
		args = append(args, "--sensitivity", mouse.Sensitivity)
	}
	if mouse.PollingRate != "" {
		args = append(args, "--polling-rate", mouse.PollingRate)
	}
	if mouse.SleepTimer != "" {
		args = append(args, "--sleep-timer", mouse.SleepTimer)
	}
	if mouse.DimTimer != "" {
		args = append(args, "--dim-timer", mouse.DimTimer)
	}
	return args
}
