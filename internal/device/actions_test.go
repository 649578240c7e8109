package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivaltray-io/rivaltray/internal/models"
)

func TestValidateSensitivity(t *testing.T) {
	assert.NoError(t, ValidateSensitivity(""))
	assert.NoError(t, ValidateSensitivity("100"))
	assert.NoError(t, ValidateSensitivity("800"))
	assert.NoError(t, ValidateSensitivity("16000"))
	assert.ErrorIs(t, ValidateSensitivity("99"), ErrInvalidValue)
	assert.ErrorIs(t, ValidateSensitivity("16001"), ErrInvalidValue)
	assert.ErrorIs(t, ValidateSensitivity("abc"), ErrInvalidValue)
}

func TestValidatePollingRate(t *testing.T) {
	for _, rate := range []string{"", "125", "250", "500", "1000"} {
		assert.NoError(t, ValidatePollingRate(rate), "rate %q", rate)
	}
	assert.ErrorIs(t, ValidatePollingRate("42"), ErrInvalidValue)
	assert.ErrorIs(t, ValidatePollingRate("2000"), ErrInvalidValue)
}

func TestValidateTimer(t *testing.T) {
	assert.NoError(t, ValidateTimer("", "sleep timer"))
	assert.NoError(t, ValidateTimer("0", "sleep timer"))
	assert.NoError(t, ValidateTimer("10", "sleep timer"))
	assert.ErrorIs(t, ValidateTimer("-1", "sleep timer"), ErrInvalidValue)
	assert.ErrorIs(t, ValidateTimer("abc", "dim timer"), ErrInvalidValue)
}

func TestValidateTheme(t *testing.T) {
	assert.NoError(t, ValidateTheme("light"))
	assert.NoError(t, ValidateTheme("dark"))
	assert.NoError(t, ValidateTheme("custom"))
	assert.NoError(t, ValidateTheme("custom:#ff8800"))
	assert.ErrorIs(t, ValidateTheme("sepia"), ErrInvalidValue)
	assert.ErrorIs(t, ValidateTheme("custom:#zzz"), ErrInvalidValue)
	assert.ErrorIs(t, ValidateTheme("dark:#ff8800"), ErrInvalidValue)
}

func TestBuildArgs(t *testing.T) {
	t.Run("all settings in stable order", func(t *testing.T) {
		args := BuildArgs(models.MouseConfig{
			Sensitivity: "800",
			PollingRate: "500",
			SleepTimer:  "10",
			DimTimer:    "3",
		})
		assert.Equal(t, []string{
			"--sensitivity", "800",
			"--polling-rate", "500",
			"--sleep-timer", "10",
			"--dim-timer", "3",
		}, args)
	})

	t.Run("empty fields skipped", func(t *testing.T) {
		args := BuildArgs(models.MouseConfig{PollingRate: "1000"})
		assert.Equal(t, []string{"--polling-rate", "1000"}, args)
	})

	t.Run("nothing stored means no invocation", func(t *testing.T) {
		assert.Empty(t, BuildArgs(models.MouseConfig{}))
	})
}

func TestApplyRejectsBeforeSpawning(t *testing.T) {
	runner := newMockRunner()
	actions := NewActions(runner)

	err := actions.Apply(context.Background(), SettingAction{
		Kind:  ActionSetSensitivity,
		Value: "abc",
	})
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, 0, runner.callCount(), "invalid values must never reach the tool")
}

func TestApplyInvokesToolWithFlag(t *testing.T) {
	runner := newMockRunner()
	runner.set(Output{Stdout: "ok"}, nil, ToolName, "--polling-rate", "500")
	actions := NewActions(runner)

	err := actions.Apply(context.Background(), SettingAction{
		Kind:  ActionSetPollingRate,
		Value: "500",
	})
	require.NoError(t, err)
	require.Equal(t, 1, runner.callCount())
	assert.Equal(t, []string{ToolName, "--polling-rate", "500"}, runner.calls[0])
}

func TestApplyDimTimer(t *testing.T) {
	runner := newMockRunner()
	runner.set(Output{Stdout: "ok"}, nil, ToolName, "--dim-timer", "30")
	actions := NewActions(runner)

	err := actions.Apply(context.Background(), SettingAction{
		Kind:  ActionSetDimTimer,
		Value: "30",
	})
	require.NoError(t, err)
	require.Equal(t, 1, runner.callCount())
	assert.Equal(t, []string{ToolName, "--dim-timer", "30"}, runner.calls[0])

	err = actions.Apply(context.Background(), SettingAction{
		Kind:  ActionSetDimTimer,
		Value: "-1",
	})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestApplyThemeIsLocal(t *testing.T) {
	runner := newMockRunner()
	actions := NewActions(runner)

	err := actions.Apply(context.Background(), SettingAction{
		Kind:  ActionSetTheme,
		Value: "light",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, runner.callCount(), "theme changes must not spawn the tool")
}

func TestApplyReportsToolFailure(t *testing.T) {
	runner := newMockRunner()
	runner.set(Output{Stderr: "device busy", ExitCode: 1}, nil, ToolName, "--sleep-timer", "5")
	actions := NewActions(runner)

	err := actions.Apply(context.Background(), SettingAction{
		Kind:  ActionSetSleepTimer,
		Value: "5",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
}
