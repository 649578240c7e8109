package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rivaltray-io/rivaltray/internal/config"
	"github.com/rivaltray-io/rivaltray/internal/daemon"
	"github.com/rivaltray-io/rivaltray/internal/device"
	"github.com/rivaltray-io/rivaltray/internal/icon"
	"github.com/rivaltray-io/rivaltray/internal/logging"
	"github.com/rivaltray-io/rivaltray/internal/models"
	"github.com/rivaltray-io/rivaltray/internal/notify"
	"github.com/rivaltray-io/rivaltray/internal/tray"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tray daemon",
	Long: `Run the battery tray daemon. It registers a status notifier item
on the session bus, polls the battery through rivalcfg, and serves the
settings menu until Quit is chosen or the process receives SIGTERM.`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log := logging.NewLogger("run")

	if err := config.EnsureDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	sessionID := uuid.NewString()
	iconDir := config.SessionRuntimeDir(sessionID)

	runner := device.NewRunner(settings.SampleTimeout())
	source := device.NewSource(runner)
	actions := device.NewActions(runner)

	cache, err := icon.NewCache(iconDir, icon.NewRasterizer(runner, iconDir))
	if err != nil {
		return fmt.Errorf("creating icon cache: %w", err)
	}
	defer cache.Close()
	if err := config.WritePIDFile(iconDir); err != nil {
		log.WithError(err).Warn("pid marker not written, sweeps may reclaim this session's icons")
	}
	if settings.Style() == models.ThemeCustom {
		cache.SetAccent(settings.Appearance.CustomColor)
	}

	t := tray.New(nil, settings)
	d := daemon.New(daemon.Options{
		Settings:      settings,
		Source:        source,
		Cache:         cache,
		Tray:          t,
		Actions:       actions,
		Notifier:      notify.New(settings.Notifications),
		SessionID:     sessionID,
		WatchSettings: true,
	})

	backend, err := tray.NewDBusBackend(tray.DBusOptions{
		Menu:      t.Menu(),
		OnRefresh: d.RequestRefresh,
		OnLost:    t.RegistrationLost,
	})
	if err != nil {
		if !errors.Is(err, tray.ErrBackendUnavailable) {
			return fmt.Errorf("setting up tray backend: %w", err)
		}
		log.WithError(err).Warn("no session bus, running without a tray icon")
	} else {
		t.AttachBackend(backend)
	}

	if err := t.Start(); err != nil {
		return fmt.Errorf("starting tray: %w", err)
	}
	defer t.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithField("session", sessionID).Info("daemon starting")
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("daemon stopped")
	return nil
}
