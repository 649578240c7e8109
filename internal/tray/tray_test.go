package tray

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivaltray-io/rivaltray/internal/device"
	"github.com/rivaltray-io/rivaltray/internal/models"
)

type fakeBackend struct {
	registerErr error
	setIconErr  error
	registers   int
	iconCalls   []string
	themePaths  []string
	titles      []string
	tooltips    []string
	closed      bool
}

func (f *fakeBackend) Register() error {
	f.registers++
	return f.registerErr
}

func (f *fakeBackend) SetIcon(themePath, iconName string) error {
	if f.setIconErr != nil {
		return f.setIconErr
	}
	f.themePaths = append(f.themePaths, themePath)
	f.iconCalls = append(f.iconCalls, iconName)
	return nil
}

func (f *fakeBackend) SetTitle(title string) error {
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeBackend) SetTooltip(tooltip string) error {
	f.tooltips = append(f.tooltips, tooltip)
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func newTestTray(backend Backend) *Tray {
	return New(backend, models.NewSettings())
}

func TestPublishSameKeyOnce(t *testing.T) {
	backend := &fakeBackend{}
	tr := newTestTray(backend)
	require.NoError(t, tr.Start())

	key := models.IconKey{Bucket: models.BucketHigh, Style: models.ThemeDark}
	path := filepath.Join("/run/user/1000/rivaltray-abc", key.Name()+".png")

	for i := 0; i < 5; i++ {
		require.NoError(t, tr.Publish(path, key))
	}

	assert.Len(t, backend.iconCalls, 1, "repeated key should publish once")
}

func TestPublishBareIconName(t *testing.T) {
	backend := &fakeBackend{}
	tr := newTestTray(backend)
	require.NoError(t, tr.Start())

	key := models.IconKey{Bucket: models.BucketLow, Style: models.ThemeLight}
	dir := "/run/user/1000/rivaltray-abc"
	require.NoError(t, tr.Publish(filepath.Join(dir, key.Name()+".png"), key))

	require.Len(t, backend.iconCalls, 1)
	name := backend.iconCalls[0]
	assert.False(t, strings.ContainsRune(name, filepath.Separator), "icon name must not be a path: %q", name)
	assert.False(t, strings.HasSuffix(name, ".png"), "icon name must omit the extension: %q", name)
	assert.Equal(t, key.Name(), name)
	assert.Equal(t, dir, backend.themePaths[0])
}

func TestPublishNewKeyUpdates(t *testing.T) {
	backend := &fakeBackend{}
	tr := newTestTray(backend)
	require.NoError(t, tr.Start())

	dir := t.TempDir()
	low := models.IconKey{Bucket: models.BucketLow, Style: models.ThemeDark}
	high := models.IconKey{Bucket: models.BucketHigh, Style: models.ThemeDark}

	require.NoError(t, tr.Publish(filepath.Join(dir, low.Name()+".png"), low))
	require.NoError(t, tr.Publish(filepath.Join(dir, high.Name()+".png"), high))
	require.NoError(t, tr.Publish(filepath.Join(dir, high.Name()+".png"), high))

	assert.Equal(t, []string{low.Name(), high.Name()}, backend.iconCalls)
}

func TestStartHeadlessWhenUnavailable(t *testing.T) {
	backend := &fakeBackend{registerErr: ErrBackendUnavailable}
	tr := newTestTray(backend)

	require.NoError(t, tr.Start(), "missing host must not be fatal")

	key := models.IconKey{Bucket: models.BucketFull, Style: models.ThemeDark}
	require.NoError(t, tr.Publish("/tmp/x/"+key.Name()+".png", key))
	assert.Empty(t, backend.iconCalls, "headless tray publishes nothing")
}

func TestStartHeadlessWithNilBackend(t *testing.T) {
	tr := newTestTray(nil)
	require.NoError(t, tr.Start())

	key := models.IconKey{Bucket: models.BucketFull, Style: models.ThemeDark}
	assert.NoError(t, tr.Publish("/tmp/x/"+key.Name()+".png", key))
}

func TestRegistrationLostReregisters(t *testing.T) {
	backend := &fakeBackend{}
	tr := newTestTray(backend)
	require.NoError(t, tr.Start())
	require.Equal(t, 1, backend.registers)

	key := models.IconKey{Bucket: models.BucketMedium, Style: models.ThemeDark}
	path := "/tmp/x/" + key.Name() + ".png"
	require.NoError(t, tr.Publish(path, key))

	tr.RegistrationLost()
	require.NoError(t, tr.Publish(path, key))

	assert.Equal(t, 2, backend.registers, "publish after a lost registration must re-register")
	assert.Len(t, backend.iconCalls, 2, "icon must be republished after re-registration")
}

func TestSetIconLostClearsRegistration(t *testing.T) {
	backend := &fakeBackend{setIconErr: ErrRegistrationLost}
	tr := newTestTray(backend)
	require.NoError(t, tr.Start())

	key := models.IconKey{Bucket: models.BucketMedium, Style: models.ThemeDark}
	require.NoError(t, tr.Publish("/tmp/x/"+key.Name()+".png", key))

	backend.setIconErr = nil
	require.NoError(t, tr.Publish("/tmp/x/"+key.Name()+".png", key))
	assert.Equal(t, 2, backend.registers)
	assert.Len(t, backend.iconCalls, 1)
}

func TestMenuClickEmitsEvents(t *testing.T) {
	backend := &fakeBackend{}
	tr := newTestTray(backend)

	menu := tr.Menu()
	clickByLabel(t, menu, "Refresh Now")

	select {
	case ev := <-tr.Events():
		assert.Equal(t, EventRefresh, ev.Kind)
	default:
		t.Fatal("expected a refresh event")
	}
}

func TestMenuActionEvents(t *testing.T) {
	tr := newTestTray(&fakeBackend{})
	menu := tr.Menu()

	clickByLabel(t, menu, "1600 DPI")

	select {
	case ev := <-tr.Events():
		require.Equal(t, EventAction, ev.Kind)
		assert.Equal(t, device.ActionSetSensitivity, ev.Action.Kind)
		assert.Equal(t, "1600", ev.Action.Value)
	default:
		t.Fatal("expected an action event")
	}
}

func TestDisabledItemsIgnoreClicks(t *testing.T) {
	tr := newTestTray(&fakeBackend{})
	menu := tr.Menu()

	clickByLabel(t, menu, "Battery: unknown")

	select {
	case ev := <-tr.Events():
		t.Fatalf("informational item produced event %v", ev.Kind)
	default:
	}
}

func TestUpdateStatusLabels(t *testing.T) {
	backend := &fakeBackend{}
	tr := newTestTray(backend)
	require.NoError(t, tr.Start())

	before := tr.Menu().Revision()
	tr.UpdateStatus(models.DeviceStatus{Connected: true, Percent: 42}, models.BucketMedium)

	assert.Greater(t, tr.Menu().Revision(), before)
	assert.Equal(t, "Battery: 42%", findLabel(t, tr.Menu(), "Battery:"))
	assert.Equal(t, "Status: Medium", findLabel(t, tr.Menu(), "Status:"))
	require.NotEmpty(t, backend.tooltips)
	assert.Equal(t, "Battery: 42% (Medium)", backend.tooltips[len(backend.tooltips)-1])
}

func TestUpdateStatusDisconnected(t *testing.T) {
	tr := newTestTray(&fakeBackend{})
	require.NoError(t, tr.Start())

	tr.UpdateStatus(models.DeviceStatus{Connected: false}, models.BucketDisconnected)
	assert.Equal(t, "Battery: unknown", findLabel(t, tr.Menu(), "Battery:"))
	assert.Equal(t, "Status: Disconnected", findLabel(t, tr.Menu(), "Status:"))
}

func TestReportIconFailure(t *testing.T) {
	backend := &fakeBackend{}
	tr := newTestTray(backend)
	require.NoError(t, tr.Start())

	tr.ReportIconFailure()

	assert.Equal(t, "Status: icon render failed", findLabel(t, tr.Menu(), "Status:"))
	require.NotEmpty(t, backend.tooltips)
	assert.Equal(t, "Icon render failed", backend.tooltips[len(backend.tooltips)-1])
}

func TestCloseReleasesBackend(t *testing.T) {
	backend := &fakeBackend{}
	tr := newTestTray(backend)
	require.NoError(t, tr.Start())

	require.NoError(t, tr.Close())
	assert.True(t, backend.closed)
}

func TestMarkSelection(t *testing.T) {
	tr := newTestTray(&fakeBackend{})

	tr.MarkSelection(device.ActionSetPollingRate, "500")

	menu := tr.Menu()
	menu.mu.Lock()
	defer menu.mu.Unlock()
	var checked []string
	for _, child := range tr.pollingMenu.children {
		if child.checked {
			checked = append(checked, child.label)
		}
	}
	assert.Equal(t, []string{"500 Hz"}, checked)
}

func TestLayoutStructure(t *testing.T) {
	tr := newTestTray(&fakeBackend{})
	menu := tr.Menu()

	_, node, ok := menu.Layout(0, -1)
	require.True(t, ok)
	assert.Equal(t, int32(0), node.ID)
	assert.NotEmpty(t, node.Children)

	_, _, ok = menu.Layout(9999, -1)
	assert.False(t, ok)
}

func TestGroupPropertiesSkipsUnknown(t *testing.T) {
	tr := newTestTray(&fakeBackend{})

	props := tr.Menu().GroupProperties([]int32{1, 9999})
	require.Len(t, props, 1)
	assert.Equal(t, int32(1), props[0].ID)
}

// clickByLabel finds a menu item by label anywhere in the tree and
// dispatches a click to it.
func clickByLabel(t *testing.T, menu *Menu, label string) {
	t.Helper()
	menu.mu.Lock()
	var id int32 = -1
	for itemID, item := range menu.index {
		if item.label == label {
			id = itemID
			break
		}
	}
	menu.mu.Unlock()
	require.NotEqual(t, int32(-1), id, "menu item %q not found", label)
	menu.Click(id)
}

func findLabel(t *testing.T, menu *Menu, prefix string) string {
	t.Helper()
	menu.mu.Lock()
	defer menu.mu.Unlock()
	for _, item := range menu.index {
		if strings.HasPrefix(item.label, prefix) {
			return item.label
		}
	}
	t.Fatalf("no menu item with prefix %q", prefix)
	return ""
}
