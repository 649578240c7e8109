// Package daemon runs the battery poll loop and owns every side
// effect: sampling the device, rendering and publishing icons,
// notifications, and applying menu actions.
package daemon

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/rivaltray-io/rivaltray/internal/config"
	"github.com/rivaltray-io/rivaltray/internal/device"
	"github.com/rivaltray-io/rivaltray/internal/icon"
	"github.com/rivaltray-io/rivaltray/internal/logging"
	"github.com/rivaltray-io/rivaltray/internal/models"
	"github.com/rivaltray-io/rivaltray/internal/tray"
)

// batterySource reads battery state from the device tool.
type batterySource interface {
	Sample(ctx context.Context) (models.DeviceStatus, error)
	MouseName(ctx context.Context) (string, error)
}

// iconCache renders and caches icon files by key.
type iconCache interface {
	Ensure(ctx context.Context, key models.IconKey) (string, error)
	SetAccent(color string)
}

// publisher is the tray surface the daemon drives.
type publisher interface {
	Publish(path string, key models.IconKey) error
	UpdateStatus(status models.DeviceStatus, bucket models.Bucket)
	ReportIconFailure()
	UpdateDeviceName(name string)
	MarkSelection(kind device.ActionKind, value string)
	Events() <-chan tray.Event
}

// settingsApplier pushes setting changes to the device.
type settingsApplier interface {
	Apply(ctx context.Context, action device.SettingAction) error
	Reset(ctx context.Context) error
}

// observer consumes battery samples for notifications.
type observer interface {
	Observe(status models.DeviceStatus) bool
}

type sampleResult struct {
	status models.DeviceStatus
	err    error
}

// Options wires the daemon's collaborators.
type Options struct {
	Settings *models.Settings
	Source   batterySource
	Cache    iconCache
	Tray     publisher
	Actions  settingsApplier
	Notifier observer

	// SessionID identifies this run's icon directory so the startup
	// sweep spares it.
	SessionID string

	// WatchSettings enables reloading the settings file on change.
	WatchSettings bool
}

// Daemon is the poll scheduler. All state lives on the loop goroutine;
// only refreshCh is touched from outside.
type Daemon struct {
	settings *models.Settings
	source   batterySource
	cache    iconCache
	tray     publisher
	actions  settingsApplier
	notifier observer
	log      *logrus.Entry

	sessionID     string
	watchSettings bool
	refreshCh     chan struct{}
	quitCh        chan struct{}

	inFlight bool
	pending  bool
	results  chan sampleResult
	retry    *backoff.ExponentialBackOff

	lastStatus models.DeviceStatus
	hasStatus  bool
}

// New assembles a daemon around its collaborators.
func New(opts Options) *Daemon {
	d := &Daemon{
		settings:      opts.Settings,
		source:        opts.Source,
		cache:         opts.Cache,
		tray:          opts.Tray,
		actions:       opts.Actions,
		notifier:      opts.Notifier,
		log:           logging.NewLogger("daemon"),
		sessionID:     opts.SessionID,
		watchSettings: opts.WatchSettings,
		refreshCh:     make(chan struct{}, 1),
		quitCh:        make(chan struct{}, 1),
		results:       make(chan sampleResult, 1),
		retry:         newRetry(opts.Settings.PollInterval()),
	}
	return d
}

// retryCeilingFactor caps the failure backoff at this multiple of the
// base poll interval.
const retryCeilingFactor = 8

// newRetry builds the failure backoff: start at the base poll interval
// and double on each consecutive tool failure, so a missing or hung
// tool is polled less often than a healthy one, never more.
func newRetry(base time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.MaxInterval = retryCeilingFactor * base
	b.MaxElapsedTime = 0
	return b
}

// RequestRefresh asks for an immediate poll. Safe from any goroutine;
// requests collapse into one pending refresh.
func (d *Daemon) RequestRefresh() {
	select {
	case d.refreshCh <- struct{}{}:
	default:
	}
}

// RequestQuit asks the daemon loop to exit.
func (d *Daemon) RequestQuit() {
	select {
	case d.quitCh <- struct{}{}:
	default:
	}
}

// Run drives the poll loop until ctx is cancelled or Quit is chosen
// from the menu.
func (d *Daemon) Run(ctx context.Context) error {
	sweepStaleRuntimeDirs(d.sessionID, d.log)

	go d.fetchDeviceName(ctx)

	var watcher *settingsWatcher
	if d.watchSettings {
		var err error
		watcher, err = newSettingsWatcher()
		if err != nil {
			d.log.WithError(err).Warn("settings reload disabled")
		} else {
			defer watcher.Stop()
		}
	}
	var watcherCh <-chan struct{}
	if watcher != nil {
		watcherCh = watcher.Changed()
	}

	timer := time.NewTimer(0) // immediate first poll
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-d.quitCh:
			d.log.Info("quit requested")
			return nil

		case <-timer.C:
			d.trigger(ctx)

		case <-d.refreshCh:
			d.trigger(ctx)

		case result := <-d.results:
			d.inFlight = false
			delay := d.handleResult(ctx, result)
			if d.pending {
				d.pending = false
				d.trigger(ctx)
			} else {
				resetTimer(timer, delay)
			}

		case ev := <-d.tray.Events():
			if quit := d.handleEvent(ctx, ev); quit {
				return nil
			}

		case <-watcherCh:
			d.reloadSettings(ctx)
		}
	}
}

// trigger starts a sample unless one is already running, in which
// case a single follow-up poll is queued.
func (d *Daemon) trigger(ctx context.Context) {
	if d.inFlight {
		d.pending = true
		return
	}
	d.inFlight = true
	go func() {
		status, err := d.source.Sample(ctx)
		d.results <- sampleResult{status: status, err: err}
	}()
}

// handleResult publishes the sample and returns the delay until the
// next scheduled poll.
func (d *Daemon) handleResult(ctx context.Context, result sampleResult) time.Duration {
	status := result.status
	if result.err != nil {
		status = models.DeviceStatus{Connected: false, SampledAt: time.Now()}
		switch {
		case errors.Is(result.err, device.ErrDeviceAbsent):
			d.log.Debug("no device connected")
		case errors.Is(result.err, device.ErrToolNotFound), errors.Is(result.err, device.ErrTimeout):
			d.log.WithError(result.err).Warn("battery sample failed, backing off")
			d.publish(ctx, status)
			return d.retry.NextBackOff()
		default:
			d.log.WithError(result.err).Warn("battery sample failed")
		}
	}

	d.retry.Reset()
	d.publish(ctx, status)
	return d.settings.PollInterval()
}

// publish maps the sample to an icon, ensures the file exists, and
// points the tray at it.
func (d *Daemon) publish(ctx context.Context, status models.DeviceStatus) {
	d.lastStatus = status
	d.hasStatus = true

	key := icon.MapStatus(status, d.settings.Style(), d.settings.Fallback())
	path, err := d.cache.Ensure(ctx, key)
	if err != nil {
		d.log.WithError(err).WithField("icon", key.Name()).
			Warn("icon render failed, showing error state")
		d.publishErrorState(ctx, key)
	} else if err := d.tray.Publish(path, key); err != nil {
		d.log.WithError(err).Warn("tray publish failed")
	}

	d.tray.UpdateStatus(status, key.Bucket)
	if err != nil {
		d.tray.ReportIconFailure()
	}
	if d.notifier != nil {
		d.notifier.Observe(status)
	}
}

// publishErrorState points the tray at the disconnected asset when the
// wanted icon cannot be rendered, so the failure is visible instead of
// leaving a stale or missing icon.
func (d *Daemon) publishErrorState(ctx context.Context, failed models.IconKey) {
	sentinel := models.IconKey{Bucket: models.BucketDisconnected, Style: failed.Style}
	if sentinel == failed {
		return
	}
	path, err := d.cache.Ensure(ctx, sentinel)
	if err != nil {
		d.log.WithError(err).Warn("error state icon unavailable")
		return
	}
	if err := d.tray.Publish(path, sentinel); err != nil {
		d.log.WithError(err).Warn("tray publish failed")
	}
}

// handleEvent dispatches one tray menu interaction. Returns true on
// quit.
func (d *Daemon) handleEvent(ctx context.Context, ev tray.Event) bool {
	switch ev.Kind {
	case tray.EventQuit:
		d.log.Info("quit selected from menu")
		return true

	case tray.EventRefresh:
		d.trigger(ctx)

	case tray.EventReset:
		if err := d.actions.Reset(ctx); err != nil {
			d.log.WithError(err).Warn("device reset failed")
			return false
		}
		d.settings.Mouse = models.MouseConfig{}
		d.saveSettings()
		d.log.Info("device reset to factory defaults")

	case tray.EventAction:
		d.applyAction(ctx, ev.Action)
	}
	return false
}

// applyAction validates and applies a menu action, then persists the
// new value so it survives restarts.
func (d *Daemon) applyAction(ctx context.Context, action device.SettingAction) {
	if err := d.actions.Apply(ctx, action); err != nil {
		d.log.WithFields(logrus.Fields{
			"action": action.Kind.String(),
			"value":  action.Value,
		}).WithError(err).Warn("setting change failed")
		return
	}

	switch action.Kind {
	case device.ActionSetSensitivity:
		d.settings.Mouse.Sensitivity = action.Value
	case device.ActionSetPollingRate:
		d.settings.Mouse.PollingRate = action.Value
	case device.ActionSetSleepTimer:
		d.settings.Mouse.SleepTimer = action.Value
	case device.ActionSetDimTimer:
		d.settings.Mouse.DimTimer = action.Value
	case device.ActionSetTheme:
		d.applyTheme(ctx, action.Value)
	}
	d.saveSettings()
	d.tray.MarkSelection(action.Kind, action.Value)
}

// applyTheme swaps the icon style and republishes the current sample
// without waiting for the next poll.
func (d *Daemon) applyTheme(ctx context.Context, value string) {
	style, accent := models.SplitTheme(value)
	d.settings.Appearance.Theme = string(style)
	if style == models.ThemeCustom {
		d.settings.Appearance.CustomColor = accent
		d.cache.SetAccent(accent)
	}

	if d.hasStatus {
		d.publish(ctx, d.lastStatus)
	}
}

func (d *Daemon) saveSettings() {
	if err := config.SaveSettings(d.settings); err != nil {
		d.log.WithError(err).Warn("settings save failed")
	}
}

// reloadSettings re-reads the settings file after an on-disk change
// and republishes with the new appearance.
func (d *Daemon) reloadSettings(ctx context.Context) {
	fresh, err := config.LoadSettings()
	if err != nil {
		d.log.WithError(err).Warn("settings reload failed, keeping current")
		return
	}
	*d.settings = *fresh
	d.retry = newRetry(d.settings.PollInterval())
	d.cache.SetAccent(d.settings.Appearance.CustomColor)
	d.log.Info("settings reloaded")

	if d.hasStatus {
		d.publish(ctx, d.lastStatus)
	}
	d.RequestRefresh()
}

// fetchDeviceName asks the tool for the mouse model once at startup.
func (d *Daemon) fetchDeviceName(ctx context.Context) {
	name, err := d.source.MouseName(ctx)
	if err != nil {
		d.log.WithError(err).Debug("device name unavailable")
		return
	}
	d.tray.UpdateDeviceName(name)
}

// sweepStaleRuntimeDirs removes icon directories abandoned by
// earlier sessions that crashed before cleanup.
func sweepStaleRuntimeDirs(sessionID string, log *logrus.Entry) {
	stale, err := config.StaleRuntimeDirs(sessionID)
	if err != nil {
		log.WithError(err).Debug("stale runtime sweep skipped")
		return
	}
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("stale runtime dir not removed")
			continue
		}
		log.WithField("dir", dir).Debug("removed stale runtime dir")
	}
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
