package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rivaltray-io/rivaltray/internal/config"
	"github.com/rivaltray-io/rivaltray/internal/device"
	"github.com/rivaltray-io/rivaltray/internal/models"
)

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Print the current battery level and exit",
	RunE:  runBattery,
}

func runBattery(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	source := device.NewSource(device.NewRunner(settings.SampleTimeout()))
	status, err := source.Sample(cmd.Context())
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceAbsent):
			fmt.Println("No mouse connected")
			return nil
		case errors.Is(err, device.ErrToolNotFound):
			return fmt.Errorf("rivalcfg not found; install it and try again")
		default:
			return fmt.Errorf("reading battery level: %w", err)
		}
	}

	if name, err := source.MouseName(cmd.Context()); err == nil && name != "" {
		fmt.Printf("Device: %s\n", name)
	}

	if status.Percent == models.PercentUnknown {
		fmt.Println("Battery: unknown")
	} else {
		fmt.Printf("Battery: %d%%\n", status.Percent)
	}
	if status.Charging {
		fmt.Println("Charging: yes")
	}
	return nil
}
