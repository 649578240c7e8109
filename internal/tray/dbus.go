package tray

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/sirupsen/logrus"

	"github.com/rivaltray-io/rivaltray/internal/logging"
)

const (
	itemInterface = "org.kde.StatusNotifierItem"
	itemPath      = "/StatusNotifierItem"
	menuPath      = "/MenuBar"
	menuInterface = "com.canonical.dbusmenu"

	watcherName      = "org.kde.StatusNotifierWatcher"
	watcherPath      = "/StatusNotifierWatcher"
	watcherInterface = "org.kde.StatusNotifierWatcher"

	// ControlName is the well-known bus name exposing the daemon's
	// control interface for the command line client.
	ControlName      = "io.rivaltray.Tray"
	ControlPath      = "/io/rivaltray/Tray"
	ControlInterface = "io.rivaltray.Tray1"
)

// DBusBackend exports a StatusNotifierItem and its dbusmenu on the
// session bus and keeps the registration with the watcher alive across
// host restarts.
type DBusBackend struct {
	mu    sync.Mutex
	conn  *dbus.Conn
	props *prop.Properties
	menu  *Menu
	log   *logrus.Entry

	itemName  string
	onRefresh func()
	onLost    func()

	signals chan *dbus.Signal
	done    chan struct{}
}

// DBusOptions configures the session bus backend.
type DBusOptions struct {
	// Menu is the menu model to export at /MenuBar.
	Menu *Menu
	// OnRefresh handles the control interface's Refresh call.
	OnRefresh func()
	// OnLost is invoked when the StatusNotifierWatcher changes owner,
	// meaning our registration is gone.
	OnLost func()
}

// NewDBusBackend connects to the session bus and exports the item,
// menu, and control objects. Registration with the watcher happens in
// Register. ErrBackendUnavailable is returned when there is no session
// bus at all.
func NewDBusBackend(opts DBusOptions) (*DBusBackend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	b := &DBusBackend{
		conn:      conn,
		menu:      opts.Menu,
		log:       logging.NewLogger("dbus"),
		itemName:  fmt.Sprintf("org.kde.StatusNotifierItem-%d-1", os.Getpid()),
		onRefresh: opts.OnRefresh,
		onLost:    opts.OnLost,
		signals:   make(chan *dbus.Signal, 16),
		done:      make(chan struct{}),
	}

	if err := b.export(); err != nil {
		conn.Close()
		return nil, err
	}
	b.watchWatcher()
	return b, nil
}

func (b *DBusBackend) export() error {
	reply, err := b.conn.RequestName(b.itemName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("requesting item name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("item name %s already taken", b.itemName)
	}

	reply, err = b.conn.RequestName(ControlName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("requesting control name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("control name %s already taken, is another instance running", ControlName)
	}

	propSpec := map[string]map[string]*prop.Prop{
		itemInterface: {
			"Category":      {Value: "Hardware", Emit: prop.EmitTrue},
			"Id":            {Value: "rivaltray", Emit: prop.EmitTrue},
			"Title":         {Value: "RivalTray", Emit: prop.EmitTrue, Writable: true},
			"Status":        {Value: "Active", Emit: prop.EmitTrue},
			"WindowId":      {Value: uint32(0), Emit: prop.EmitTrue},
			"IconName":      {Value: "", Emit: prop.EmitTrue, Writable: true},
			"IconThemePath": {Value: "", Emit: prop.EmitTrue, Writable: true},
			"ToolTip": {
				Value:    tooltipValue(""),
				Emit:     prop.EmitTrue,
				Writable: true,
			},
			"ItemIsMenu": {Value: true, Emit: prop.EmitTrue},
			"Menu":       {Value: dbus.ObjectPath(menuPath), Emit: prop.EmitTrue},
		},
	}
	props, err := prop.Export(b.conn, itemPath, propSpec)
	if err != nil {
		return fmt.Errorf("exporting item properties: %w", err)
	}
	b.props = props

	item := &itemExport{backend: b}
	if err := b.conn.Export(item, itemPath, itemInterface); err != nil {
		return fmt.Errorf("exporting item methods: %w", err)
	}

	menuExp := &menuExport{backend: b}
	if err := b.conn.Export(menuExp, menuPath, menuInterface); err != nil {
		return fmt.Errorf("exporting menu: %w", err)
	}
	menuProps := map[string]map[string]*prop.Prop{
		menuInterface: {
			"Version":       {Value: uint32(3), Emit: prop.EmitTrue},
			"Status":        {Value: "normal", Emit: prop.EmitTrue},
			"TextDirection": {Value: "ltr", Emit: prop.EmitTrue},
			"IconThemePath": {Value: []string{}, Emit: prop.EmitTrue},
		},
	}
	if _, err := prop.Export(b.conn, menuPath, menuProps); err != nil {
		return fmt.Errorf("exporting menu properties: %w", err)
	}

	ctl := &controlExport{backend: b}
	if err := b.conn.Export(ctl, ControlPath, ControlInterface); err != nil {
		return fmt.Errorf("exporting control interface: %w", err)
	}

	if b.menu != nil {
		b.menu.onChange = b.emitLayoutUpdated
	}
	return nil
}

// watchWatcher subscribes to NameOwnerChanged for the StatusNotifier
// watcher so a host restart triggers re-registration.
func (b *DBusBackend) watchWatcher() {
	err := b.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, watcherName),
	)
	if err != nil {
		b.log.WithError(err).Warn("cannot watch status notifier host restarts")
		return
	}
	b.conn.Signal(b.signals)

	go func() {
		for {
			select {
			case sig, ok := <-b.signals:
				if !ok {
					return
				}
				if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) < 3 {
					continue
				}
				newOwner, _ := sig.Body[2].(string)
				if newOwner == "" {
					b.log.Debug("status notifier watcher left the bus")
					continue
				}
				b.log.Info("status notifier watcher came up, re-registering")
				if b.onLost != nil {
					b.onLost()
				}
			case <-b.done:
				return
			}
		}
	}()
}

// Register announces the item to the watcher by well-known name.
func (b *DBusBackend) Register() error {
	obj := b.conn.Object(watcherName, watcherPath)
	call := obj.Call(watcherInterface+".RegisterStatusNotifierItem", 0, b.itemName)
	if call.Err != nil {
		var dbusErr dbus.Error
		if errors.As(call.Err, &dbusErr) && dbusErr.Name == "org.freedesktop.DBus.Error.ServiceUnknown" {
			return fmt.Errorf("%w: no status notifier watcher on the bus", ErrBackendUnavailable)
		}
		return fmt.Errorf("registering with status notifier watcher: %w", call.Err)
	}
	return nil
}

// SetIcon publishes the theme directory and the bare icon name, then
// signals NewIcon so hosts re-read both properties.
func (b *DBusBackend) SetIcon(themePath, iconName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.props.Set(itemInterface, "IconThemePath", dbus.MakeVariant(themePath)); err != nil {
		return fmt.Errorf("setting icon theme path: %w", err)
	}
	if err := b.props.Set(itemInterface, "IconName", dbus.MakeVariant(iconName)); err != nil {
		return fmt.Errorf("setting icon name: %w", err)
	}
	return b.conn.Emit(itemPath, itemInterface+".NewIcon")
}

func (b *DBusBackend) SetTitle(title string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.props.Set(itemInterface, "Title", dbus.MakeVariant(title)); err != nil {
		return fmt.Errorf("setting title: %w", err)
	}
	return b.conn.Emit(itemPath, itemInterface+".NewTitle")
}

func (b *DBusBackend) SetTooltip(tooltip string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.props.Set(itemInterface, "ToolTip", dbus.MakeVariant(tooltipValue(tooltip))); err != nil {
		return fmt.Errorf("setting tooltip: %w", err)
	}
	return b.conn.Emit(itemPath, itemInterface+".NewToolTip")
}

func (b *DBusBackend) emitLayoutUpdated(revision uint32) {
	if err := b.conn.Emit(menuPath, menuInterface+".LayoutUpdated", revision, int32(0)); err != nil {
		b.log.WithError(err).Debug("layout update signal failed")
	}
}

// Close releases the bus names and the connection.
func (b *DBusBackend) Close() error {
	close(b.done)
	b.conn.RemoveSignal(b.signals)
	b.conn.ReleaseName(ControlName)
	b.conn.ReleaseName(b.itemName)
	return b.conn.Close()
}

// tooltipValue builds the (sa(iiay)ss) tooltip structure with only the
// text field populated.
func tooltipValue(text string) tooltipStruct {
	return tooltipStruct{Title: text}
}

type tooltipStruct struct {
	IconName string
	Pixmaps  []pixmapStruct
	Title    string
	Text     string
}

type pixmapStruct struct {
	Width  int32
	Height int32
	Data   []byte
}

// itemExport implements the StatusNotifierItem activation methods.
// The item is menu-only, so activations pop the menu on the host side
// and the methods here are acknowledgements.
type itemExport struct {
	backend *DBusBackend
}

func (i *itemExport) Activate(x, y int32) *dbus.Error          { return nil }
func (i *itemExport) SecondaryActivate(x, y int32) *dbus.Error { return nil }
func (i *itemExport) ContextMenu(x, y int32) *dbus.Error       { return nil }

func (i *itemExport) Scroll(delta int32, orientation string) *dbus.Error {
	return nil
}

// menuExport implements com.canonical.dbusmenu backed by the Menu
// model.
type menuExport struct {
	backend *DBusBackend
}

func (m *menuExport) GetLayout(parentID int32, recursionDepth int32, propertyNames []string) (uint32, layoutNode, *dbus.Error) {
	revision, node, ok := m.backend.menu.Layout(parentID, recursionDepth)
	if !ok {
		return revision, layoutNode{}, dbus.MakeFailedError(fmt.Errorf("unknown menu item %d", parentID))
	}
	return revision, node, nil
}

func (m *menuExport) GetGroupProperties(ids []int32, propertyNames []string) ([]idProps, *dbus.Error) {
	return m.backend.menu.GroupProperties(ids), nil
}

func (m *menuExport) GetProperty(id int32, name string) (dbus.Variant, *dbus.Error) {
	value, ok := m.backend.menu.Property(id, name)
	if !ok {
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown property %s on item %d", name, id))
	}
	return value, nil
}

func (m *menuExport) Event(id int32, eventID string, data dbus.Variant, timestamp uint32) *dbus.Error {
	if eventID == "clicked" {
		m.backend.menu.Click(id)
	}
	return nil
}

func (m *menuExport) EventGroup(events []struct {
	ID        int32
	EventID   string
	Data      dbus.Variant
	Timestamp uint32
}) ([]int32, *dbus.Error) {
	for _, ev := range events {
		if ev.EventID == "clicked" {
			m.backend.menu.Click(ev.ID)
		}
	}
	return nil, nil
}

func (m *menuExport) AboutToShow(id int32) (bool, *dbus.Error) {
	return false, nil
}

func (m *menuExport) AboutToShowGroup(ids []int32) ([]int32, []int32, *dbus.Error) {
	return nil, nil, nil
}

// controlExport is the daemon's command interface for the CLI client.
type controlExport struct {
	backend *DBusBackend
}

// Refresh asks the daemon to sample the battery immediately.
func (c *controlExport) Refresh() *dbus.Error {
	if c.backend.onRefresh != nil {
		c.backend.onRefresh()
	}
	return nil
}
