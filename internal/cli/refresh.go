package cli

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/rivaltray-io/rivaltray/internal/tray"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Ask a running daemon to poll the battery now",
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connecting to session bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(tray.ControlName, tray.ControlPath)
	call := obj.CallWithContext(cmd.Context(), tray.ControlInterface+".Refresh", 0)
	if call.Err != nil {
		return fmt.Errorf("is the daemon running? %w", call.Err)
	}

	fmt.Println("Refresh requested")
	return nil
}
