package tray

import (
	"sync"

	"github.com/godbus/dbus/v5"
)

// MenuItem is one entry in the tray menu tree. Items are created once
// at startup; only labels change afterwards.
type MenuItem struct {
	id        int32
	label     string
	enabled   bool
	separator bool
	checked   bool
	radio     bool
	children  []*MenuItem
	onClick   func()
}

// Menu is the com.canonical.dbusmenu model: a fixed tree of items with
// a revision counter bumped on every visible change.
type Menu struct {
	mu       sync.Mutex
	root     *MenuItem
	index    map[int32]*MenuItem
	nextID   int32
	revision uint32

	// onChange is called (unlocked) after a label or check change so
	// the backend can emit LayoutUpdated.
	onChange func(revision uint32)
}

// NewMenu creates an empty menu.
func NewMenu() *Menu {
	m := &Menu{
		index:  make(map[int32]*MenuItem),
		nextID: 1,
	}
	m.root = &MenuItem{id: 0, enabled: true}
	m.index[0] = m.root
	return m
}

func (m *Menu) newItem(parent *MenuItem) *MenuItem {
	item := &MenuItem{id: m.nextID, enabled: true}
	m.nextID++
	m.index[item.id] = item
	parent.children = append(parent.children, item)
	return item
}

// AddItem appends a clickable item to the top level.
func (m *Menu) AddItem(label string, onClick func()) *MenuItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.newItem(m.root)
	item.label = label
	item.onClick = onClick
	return item
}

// AddLabel appends a disabled, informational item to the top level.
func (m *Menu) AddLabel(label string) *MenuItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.newItem(m.root)
	item.label = label
	item.enabled = false
	return item
}

// AddSeparator appends a separator to the top level.
func (m *Menu) AddSeparator() {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.newItem(m.root)
	item.separator = true
}

// AddSubmenu appends a top-level item holding child entries.
func (m *Menu) AddSubmenu(label string) *MenuItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.newItem(m.root)
	item.label = label
	return item
}

// AddChild appends a clickable child under a submenu item.
func (m *Menu) AddChild(parent *MenuItem, label string, onClick func()) *MenuItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.newItem(parent)
	item.label = label
	item.onClick = onClick
	return item
}

// AddRadioChild appends a radio-style child under a submenu item.
func (m *Menu) AddRadioChild(parent *MenuItem, label string, checked bool, onClick func()) *MenuItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.newItem(parent)
	item.label = label
	item.radio = true
	item.checked = checked
	item.onClick = onClick
	return item
}

// SetLabel updates an item's label and bumps the menu revision.
func (m *Menu) SetLabel(item *MenuItem, label string) {
	m.mu.Lock()
	if item.label == label {
		m.mu.Unlock()
		return
	}
	item.label = label
	m.revision++
	revision := m.revision
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(revision)
	}
}

// CheckRadio marks one child of a submenu checked and its siblings
// unchecked.
func (m *Menu) CheckRadio(parent, selected *MenuItem) {
	m.mu.Lock()
	for _, child := range parent.children {
		child.checked = child == selected
	}
	m.revision++
	revision := m.revision
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(revision)
	}
}

// Click dispatches a host click event to the item's handler.
func (m *Menu) Click(id int32) {
	m.mu.Lock()
	item, ok := m.index[id]
	var handler func()
	if ok && item.enabled && !item.separator {
		handler = item.onClick
	}
	m.mu.Unlock()

	if handler != nil {
		handler()
	}
}

// Revision returns the current layout revision.
func (m *Menu) Revision() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revision
}

// layoutNode matches the dbusmenu layout signature (ia{sv}av).
type layoutNode struct {
	ID         int32
	Properties map[string]dbus.Variant
	Children   []dbus.Variant
}

// Layout builds the dbusmenu layout subtree rooted at parentID.
// recursionDepth of -1 means the full subtree.
func (m *Menu) Layout(parentID int32, recursionDepth int32) (uint32, layoutNode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.index[parentID]
	if !ok {
		return m.revision, layoutNode{}, false
	}
	return m.revision, m.nodeLocked(item, recursionDepth), true
}

func (m *Menu) nodeLocked(item *MenuItem, depth int32) layoutNode {
	node := layoutNode{
		ID:         item.id,
		Properties: m.propsLocked(item),
	}
	if depth == 0 {
		return node
	}
	next := depth - 1
	if depth < 0 {
		next = -1
	}
	for _, child := range item.children {
		node.Children = append(node.Children, dbus.MakeVariant(m.nodeLocked(child, next)))
	}
	return node
}

func (m *Menu) propsLocked(item *MenuItem) map[string]dbus.Variant {
	props := make(map[string]dbus.Variant)
	if item.separator {
		props["type"] = dbus.MakeVariant("separator")
		return props
	}
	props["label"] = dbus.MakeVariant(item.label)
	props["enabled"] = dbus.MakeVariant(item.enabled)
	props["visible"] = dbus.MakeVariant(true)
	if len(item.children) > 0 {
		props["children-display"] = dbus.MakeVariant("submenu")
	}
	if item.radio {
		props["toggle-type"] = dbus.MakeVariant("radio")
		state := int32(0)
		if item.checked {
			state = 1
		}
		props["toggle-state"] = dbus.MakeVariant(state)
	}
	return props
}

// idProps pairs an item ID with its properties, per the dbusmenu
// GetGroupProperties signature a(ia{sv}).
type idProps struct {
	ID         int32
	Properties map[string]dbus.Variant
}

// GroupProperties returns properties for the requested item IDs,
// silently skipping unknown ones.
func (m *Menu) GroupProperties(ids []int32) []idProps {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ids) == 0 {
		for id := range m.index {
			ids = append(ids, id)
		}
	}

	out := make([]idProps, 0, len(ids))
	for _, id := range ids {
		item, ok := m.index[id]
		if !ok {
			continue
		}
		out = append(out, idProps{ID: id, Properties: m.propsLocked(item)})
	}
	return out
}

// Property returns a single property of a single item.
func (m *Menu) Property(id int32, name string) (dbus.Variant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.index[id]
	if !ok {
		return dbus.Variant{}, false
	}
	value, ok := m.propsLocked(item)[name]
	return value, ok
}
