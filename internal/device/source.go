package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rivaltray-io/rivaltray/internal/logging"
	"github.com/rivaltray-io/rivaltray/internal/models"
)

// ToolName is the external configuration tool rivaltray delegates to.
const ToolName = "rivalcfg"

// Source errors. ErrDeviceAbsent means the tool ran but found no
// paired device; downstream that maps to the disconnected bucket, not
// a failure.
var (
	ErrToolNotFound = fmt.Errorf("%s not found in PATH", ToolName)
	ErrTimeout      = fmt.Errorf("%s invocation timed out", ToolName)
	ErrParse        = fmt.Errorf("unrecognized %s output", ToolName)
	ErrDeviceAbsent = fmt.Errorf("no paired device")
)

// Source samples battery state by invoking the external tool. It
// spawns exactly one subprocess per call and never retries internally;
// retry and backoff policy belongs to the poll loop.
type Source struct {
	runner Runner
	log    *logrus.Entry
}

// NewSource creates a Source backed by the given runner.
func NewSource(runner Runner) *Source {
	return &Source{
		runner: runner,
		log:    logging.NewLogger("device"),
	}
}

// Sample invokes `rivalcfg --battery-level` and parses a DeviceStatus
// from its stdout.
func (s *Source) Sample(ctx context.Context) (models.DeviceStatus, error) {
	out, err := s.runner.Run(ctx, ToolName, "--battery-level")
	if err != nil {
		return models.DeviceStatus{}, err
	}
	if !out.Success() {
		if indicatesNoDevice(out.Stdout) || indicatesNoDevice(out.Stderr) {
			return models.DeviceStatus{}, ErrDeviceAbsent
		}
		return models.DeviceStatus{}, fmt.Errorf("%w: exit %d: %s",
			ErrParse, out.ExitCode, strings.TrimSpace(out.Stderr))
	}

	status, err := ParseBatteryOutput(out.Stdout)
	if err != nil {
		return models.DeviceStatus{}, err
	}
	s.log.WithFields(logrus.Fields{
		"percent":  status.Percent,
		"charging": status.Charging,
	}).Debug("sampled battery")
	return status, nil
}

// MouseName discovers the paired device's name from the line ending in
// "Options:" in `rivalcfg --help` output.
func (s *Source) MouseName(ctx context.Context) (string, error) {
	out, err := s.runner.Run(ctx, ToolName, "--help")
	if err != nil {
		return "", err
	}
	if !out.Success() {
		return "", fmt.Errorf("%w: exit %d", ErrParse, out.ExitCode)
	}

	for _, line := range strings.Split(out.Stdout, "\n") {
		trimmed := strings.TrimRight(line, " \r")
		if strings.HasSuffix(trimmed, "Options:") {
			name := strings.TrimSpace(strings.TrimSuffix(trimmed, "Options:"))
			if name != "" {
				return name, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no device line in help output", ErrParse)
}

// ParseBatteryOutput extracts a DeviceStatus from battery-level
// output such as "Mouse battery: 75% Discharging". The charging flag
// comes from the Charging/Discharging keyword; the percentage is the
// second-to-last whitespace token with a trailing '%' trimmed. A
// readable charging state with an unparsable percentage yields
// PercentUnknown rather than an error.
func ParseBatteryOutput(stdout string) (models.DeviceStatus, error) {
	status := models.DeviceStatus{
		Connected: true,
		Percent:   models.PercentUnknown,
		SampledAt: time.Now(),
	}

	switch {
	case strings.Contains(stdout, "Discharging"):
		status.Charging = false
	case strings.Contains(stdout, "Charging"):
		status.Charging = true
	default:
		return models.DeviceStatus{}, fmt.Errorf("%w: no charging indicator in %q",
			ErrParse, strings.TrimSpace(stdout))
	}

	fields := strings.Fields(stdout)
	if len(fields) >= 2 {
		raw := strings.TrimSuffix(fields[len(fields)-2], "%")
		if pct, err := strconv.Atoi(raw); err == nil && pct >= 0 && pct <= 100 {
			status.Percent = pct
		}
	}
	return status, nil
}

// indicatesNoDevice recognizes the tool's "nothing paired" complaints,
// which are a normal condition rather than a parse failure.
func indicatesNoDevice(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "no device") ||
		strings.Contains(lower, "no compatible device") ||
		strings.Contains(lower, "device not found")
}
