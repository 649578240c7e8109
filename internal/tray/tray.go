package tray

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rivaltray-io/rivaltray/internal/device"
	"github.com/rivaltray-io/rivaltray/internal/logging"
	"github.com/rivaltray-io/rivaltray/internal/models"
)

var (
	// ErrBackendUnavailable means no session bus or no StatusNotifier
	// host exists. The daemon keeps polling without a visible icon.
	ErrBackendUnavailable = errors.New("tray backend unavailable")

	// ErrRegistrationLost means the StatusNotifier host dropped our
	// registration. The next publish re-registers.
	ErrRegistrationLost = errors.New("tray registration lost")
)

// Backend is the host-facing half of the tray: registration and the
// icon/title/tooltip properties. The production backend speaks the
// StatusNotifierItem protocol over the session bus.
type Backend interface {
	// Register announces the item to the StatusNotifier watcher.
	Register() error
	// SetIcon points the host at a theme directory and a bare icon
	// name inside it. Implementations never receive absolute file
	// paths as icon names.
	SetIcon(themePath, iconName string) error
	SetTitle(title string) error
	SetTooltip(tooltip string) error
	Close() error
}

// EventKind identifies a user interaction delivered by the tray.
type EventKind int

const (
	EventRefresh EventKind = iota
	EventQuit
	EventReset
	EventAction
)

// Event is a single user interaction from the tray menu. Action is set
// only for EventAction.
type Event struct {
	Kind   EventKind
	Action device.SettingAction
}

// Tray owns the menu model and the backend registration state. Publish
// is idempotent per icon key so an unchanged battery level costs no
// bus traffic.
type Tray struct {
	mu         sync.Mutex
	backend    Backend
	menu       *Menu
	log        *logrus.Entry
	events     chan Event
	registered bool
	headless   bool
	hasKey     bool
	current    models.IconKey

	batteryItem *MenuItem
	statusItem  *MenuItem
	deviceItem  *MenuItem

	sensitivityMenu *MenuItem
	pollingMenu     *MenuItem
	sleepMenu       *MenuItem
	themeMenu       *MenuItem
}

// New builds the tray model and menu around a backend. A nil backend
// (or one that fails registration with ErrBackendUnavailable) puts the
// tray into headless mode: events still flow from nowhere, publishes
// become no-ops, and the daemon stays alive.
func New(backend Backend, settings *models.Settings) *Tray {
	t := &Tray{
		backend: backend,
		menu:    NewMenu(),
		log:     logging.NewLogger("tray"),
		events:  make(chan Event, 8),
	}
	t.buildMenu(settings)
	return t
}

// Menu exposes the menu model for the backend export.
func (t *Tray) Menu() *Menu { return t.menu }

// AttachBackend sets the backend before Start. The session bus backend
// needs the menu model, which only exists after New, so wiring happens
// in two steps.
func (t *Tray) AttachBackend(backend Backend) {
	t.mu.Lock()
	t.backend = backend
	t.mu.Unlock()
}

// Events delivers menu interactions to the daemon loop.
func (t *Tray) Events() <-chan Event { return t.events }

func (t *Tray) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		t.log.Warn("dropping tray event, consumer is behind")
	}
}

func (t *Tray) buildMenu(settings *models.Settings) {
	t.batteryItem = t.menu.AddLabel("Battery: unknown")
	t.statusItem = t.menu.AddLabel("Status: starting")
	t.deviceItem = t.menu.AddLabel("Device: detecting")
	t.menu.AddSeparator()

	t.menu.AddItem("Refresh Now", func() { t.emit(Event{Kind: EventRefresh}) })
	t.menu.AddSeparator()

	t.sensitivityMenu = t.menu.AddSubmenu("Sensitivity")
	for _, dpi := range []string{"400", "800", "1600", "3200"} {
		value := dpi
		t.menu.AddRadioChild(t.sensitivityMenu, value+" DPI", settings.Mouse.Sensitivity == value, func() {
			t.emit(Event{Kind: EventAction, Action: device.SettingAction{
				Kind:  device.ActionSetSensitivity,
				Value: value,
			}})
		})
	}

	t.pollingMenu = t.menu.AddSubmenu("Polling Rate")
	for _, rate := range []string{"125", "250", "500", "1000"} {
		value := rate
		t.menu.AddRadioChild(t.pollingMenu, value+" Hz", settings.Mouse.PollingRate == value, func() {
			t.emit(Event{Kind: EventAction, Action: device.SettingAction{
				Kind:  device.ActionSetPollingRate,
				Value: value,
			}})
		})
	}

	t.sleepMenu = t.menu.AddSubmenu("Sleep Timer")
	for _, entry := range []struct{ label, value string }{
		{"1 minute", "1"},
		{"5 minutes", "5"},
		{"10 minutes", "10"},
		{"20 minutes", "20"},
	} {
		value := entry.value
		t.menu.AddRadioChild(t.sleepMenu, entry.label, settings.Mouse.SleepTimer == value, func() {
			t.emit(Event{Kind: EventAction, Action: device.SettingAction{
				Kind:  device.ActionSetSleepTimer,
				Value: value,
			}})
		})
	}

	t.themeMenu = t.menu.AddSubmenu("Icon Theme")
	for _, entry := range []struct{ label, value string }{
		{"Light", string(models.ThemeLight)},
		{"Dark", string(models.ThemeDark)},
	} {
		value := entry.value
		t.menu.AddRadioChild(t.themeMenu, entry.label, settings.Appearance.Theme == value, func() {
			t.emit(Event{Kind: EventAction, Action: device.SettingAction{
				Kind:  device.ActionSetTheme,
				Value: value,
			}})
		})
	}

	t.menu.AddSeparator()
	t.menu.AddItem("Reset to Defaults", func() { t.emit(Event{Kind: EventReset}) })
	t.menu.AddItem("Quit", func() { t.emit(Event{Kind: EventQuit}) })
}

// Start performs the initial registration. An unavailable backend is
// not fatal.
func (t *Tray) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.backend == nil {
		t.headless = true
		t.log.Warn("no tray backend, running headless")
		return nil
	}
	if err := t.backend.Register(); err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			t.headless = true
			t.log.WithError(err).Warn("status notifier host unavailable, running headless")
			return nil
		}
		return fmt.Errorf("registering tray item: %w", err)
	}
	t.registered = true
	return nil
}

// Publish points the host at the rendered icon file. The host is given
// the cache directory as a theme search path and the file's stem as
// the icon name. Repeating the same key while registered is a no-op.
func (t *Tray) Publish(path string, key models.IconKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.headless {
		return nil
	}
	if t.hasKey && t.current == key && t.registered {
		return nil
	}

	if !t.registered {
		if err := t.backend.Register(); err != nil {
			if errors.Is(err, ErrBackendUnavailable) {
				t.log.WithError(err).Warn("re-registration failed, staying hidden")
				return nil
			}
			return fmt.Errorf("re-registering tray item: %w", err)
		}
		t.registered = true
	}

	themePath := filepath.Dir(path)
	iconName := strings.TrimSuffix(filepath.Base(path), ".png")
	if err := t.backend.SetIcon(themePath, iconName); err != nil {
		if errors.Is(err, ErrRegistrationLost) {
			t.registered = false
			t.log.Warn("status notifier host went away, will re-register")
			return nil
		}
		return fmt.Errorf("publishing tray icon: %w", err)
	}

	t.hasKey = true
	t.current = key
	return nil
}

// RegistrationLost flags the item as unregistered so the next Publish
// re-registers. The backend calls this when the watcher owner changes.
func (t *Tray) RegistrationLost() {
	t.mu.Lock()
	t.registered = false
	t.hasKey = false
	t.mu.Unlock()
	t.log.Info("status notifier watcher restarted")
}

// UpdateStatus refreshes the informational menu labels and the
// tooltip.
func (t *Tray) UpdateStatus(status models.DeviceStatus, bucket models.Bucket) {
	battery := "Battery: unknown"
	if status.Connected && status.Percent != models.PercentUnknown {
		battery = fmt.Sprintf("Battery: %d%%", status.Percent)
	}
	t.menu.SetLabel(t.batteryItem, battery)

	state := "Disconnected"
	switch {
	case status.Connected && status.Charging:
		state = "Charging"
	case status.Connected:
		state = bucket.String()
	}
	t.menu.SetLabel(t.statusItem, "Status: "+state)

	t.mu.Lock()
	headless := t.headless
	t.mu.Unlock()
	if headless {
		return
	}
	tooltip := battery + " (" + state + ")"
	if err := t.backend.SetTooltip(tooltip); err != nil && !errors.Is(err, ErrRegistrationLost) {
		t.log.WithError(err).Debug("tooltip update failed")
	}
}

// ReportIconFailure surfaces a failed icon render on the status line
// and tooltip so the user sees why the icon is stale or missing.
func (t *Tray) ReportIconFailure() {
	t.menu.SetLabel(t.statusItem, "Status: icon render failed")

	t.mu.Lock()
	headless := t.headless
	t.mu.Unlock()
	if headless {
		return
	}
	if err := t.backend.SetTooltip("Icon render failed"); err != nil && !errors.Is(err, ErrRegistrationLost) {
		t.log.WithError(err).Debug("tooltip update failed")
	}
}

// UpdateDeviceName sets the device label once the model is known.
func (t *Tray) UpdateDeviceName(name string) {
	if name == "" {
		name = "unknown"
	}
	t.menu.SetLabel(t.deviceItem, "Device: "+name)

	t.mu.Lock()
	headless := t.headless
	t.mu.Unlock()
	if headless {
		return
	}
	if err := t.backend.SetTitle(name); err != nil && !errors.Is(err, ErrRegistrationLost) {
		t.log.WithError(err).Debug("title update failed")
	}
}

// MarkSelection re-checks the radio children of a settings submenu
// after an action is applied.
func (t *Tray) MarkSelection(kind device.ActionKind, value string) {
	var parent *MenuItem
	var suffix string
	switch kind {
	case device.ActionSetSensitivity:
		parent, suffix = t.sensitivityMenu, " DPI"
	case device.ActionSetPollingRate:
		parent, suffix = t.pollingMenu, " Hz"
	case device.ActionSetTheme:
		parent = t.themeMenu
	case device.ActionSetSleepTimer:
		parent = t.sleepMenu
	default:
		return
	}

	t.menu.mu.Lock()
	var selected *MenuItem
	for _, child := range parent.children {
		label := child.label
		switch kind {
		case device.ActionSetTheme:
			if strings.EqualFold(label, value) {
				selected = child
			}
		case device.ActionSetSleepTimer:
			if strings.HasPrefix(label, value+" ") {
				selected = child
			}
		default:
			if label == value+suffix {
				selected = child
			}
		}
	}
	t.menu.mu.Unlock()

	if selected != nil {
		t.menu.CheckRadio(parent, selected)
	}
}

// Close tears down the backend registration.
func (t *Tray) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.headless || t.backend == nil {
		return nil
	}
	t.registered = false
	return t.backend.Close()
}
