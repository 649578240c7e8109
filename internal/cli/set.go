package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rivaltray-io/rivaltray/internal/config"
	"github.com/rivaltray-io/rivaltray/internal/device"
	"github.com/rivaltray-io/rivaltray/internal/models"
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Change a mouse setting",
	Long: `Change a mouse setting through rivalcfg and persist it so the
daemon's menu reflects it. Values are validated before the tool runs.`,
}

var setSensitivityCmd = &cobra.Command{
	Use:   "sensitivity <cpi>",
	Short: "Set sensitivity (100-16000 CPI)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applySetting(cmd, device.SettingAction{
			Kind:  device.ActionSetSensitivity,
			Value: args[0],
		})
	},
}

var setPollingRateCmd = &cobra.Command{
	Use:   "polling-rate <hz>",
	Short: "Set polling rate (125, 250, 500 or 1000 Hz)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applySetting(cmd, device.SettingAction{
			Kind:  device.ActionSetPollingRate,
			Value: args[0],
		})
	},
}

var setSleepTimerCmd = &cobra.Command{
	Use:   "sleep-timer <minutes>",
	Short: "Set the idle sleep timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applySetting(cmd, device.SettingAction{
			Kind:  device.ActionSetSleepTimer,
			Value: args[0],
		})
	},
}

var setDimTimerCmd = &cobra.Command{
	Use:   "dim-timer <seconds>",
	Short: "Set the idle illumination dim timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applySetting(cmd, device.SettingAction{
			Kind:  device.ActionSetDimTimer,
			Value: args[0],
		})
	},
}

var setThemeCmd = &cobra.Command{
	Use:   "theme <light|dark|custom:#rrggbb>",
	Short: "Set the tray icon theme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applySetting(cmd, device.SettingAction{
			Kind:  device.ActionSetTheme,
			Value: args[0],
		})
	},
}

var setAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Push every persisted mouse setting to the device",
	RunE:  runSetAll,
}

func init() {
	setCmd.AddCommand(setAllCmd)
	setCmd.AddCommand(setDimTimerCmd)
	setCmd.AddCommand(setPollingRateCmd)
	setCmd.AddCommand(setSensitivityCmd)
	setCmd.AddCommand(setSleepTimerCmd)
	setCmd.AddCommand(setThemeCmd)
}

// applySetting validates and applies one action, then saves it to the
// settings file. A running daemon picks the file change up through its
// watcher.
func applySetting(cmd *cobra.Command, action device.SettingAction) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	actions := device.NewActions(device.NewRunner(settings.SampleTimeout()))
	if err := actions.Apply(cmd.Context(), action); err != nil {
		return err
	}

	switch action.Kind {
	case device.ActionSetSensitivity:
		settings.Mouse.Sensitivity = action.Value
	case device.ActionSetPollingRate:
		settings.Mouse.PollingRate = action.Value
	case device.ActionSetSleepTimer:
		settings.Mouse.SleepTimer = action.Value
	case device.ActionSetDimTimer:
		settings.Mouse.DimTimer = action.Value
	case device.ActionSetTheme:
		style, accent := models.SplitTheme(action.Value)
		settings.Appearance.Theme = string(style)
		if style == models.ThemeCustom {
			settings.Appearance.CustomColor = accent
		}
	}

	if err := config.SaveSettings(settings); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	fmt.Printf("%s set to %s\n", action.Kind, action.Value)
	return nil
}

func runSetAll(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	args2 := device.BuildArgs(settings.Mouse)
	if len(args2) == 0 {
		fmt.Println("No persisted mouse settings to apply")
		return nil
	}

	actions := device.NewActions(device.NewRunner(settings.SampleTimeout()))
	if err := actions.ApplyAll(cmd.Context(), settings.Mouse); err != nil {
		return fmt.Errorf("applying settings: %w", err)
	}

	fmt.Printf("Applied %d setting(s)\n", len(args2)/2)
	return nil
}
