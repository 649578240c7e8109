package icon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/rivaltray-io/rivaltray/internal/logging"
	"github.com/rivaltray-io/rivaltray/internal/models"
)

// DefaultIconSize is the raster edge length in pixels.
const DefaultIconSize = 64

type cachedIcon struct {
	path       string
	renderedAt time.Time
}

// Cache keeps one rendered PNG per icon key in a private runtime
// directory. Lookups revalidate the backing file with a stat before
// trusting it, and an fsnotify watcher drops entries whose files are
// removed behind our back so the next lookup re-renders immediately.
type Cache struct {
	mu       sync.Mutex
	dir      string
	size     int
	ras      Rasterizer
	accent   string
	entries  map[models.IconKey]cachedIcon
	lastGood string
	watcher  *fsnotify.Watcher
	done     chan struct{}
	log      *logrus.Entry
}

// NewCache creates the runtime directory (owner-only permissions),
// sweeps leftovers from any prior use of it, and starts the external
// deletion watcher.
func NewCache(dir string, ras Rasterizer) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create icon cache dir: %w", err)
	}

	c := &Cache{
		dir:     dir,
		size:    DefaultIconSize,
		ras:     ras,
		entries: make(map[models.IconKey]cachedIcon),
		done:    make(chan struct{}),
		log:     logging.NewLogger("icon-cache"),
	}
	c.sweep()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Stat revalidation in Ensure still catches external
		// deletions, just one lookup later.
		c.log.WithError(err).Warn("fsnotify unavailable, relying on stat revalidation only")
	} else if err := watcher.Add(dir); err != nil {
		c.log.WithError(err).Warn("cannot watch icon cache dir")
		watcher.Close()
	} else {
		c.watcher = watcher
		go c.watchLoop()
	}

	return c, nil
}

// Dir returns the cache directory, which doubles as the icon theme
// path declared to the tray host.
func (c *Cache) Dir() string {
	return c.dir
}

// SetAccent updates the accent color used for custom-style renders.
// A change invalidates existing custom-style entries so they re-render
// in the new color.
func (c *Cache) SetAccent(color string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accent == color {
		return
	}
	c.accent = color
	for key, entry := range c.entries {
		if key.Style == models.ThemeCustom {
			c.dropLocked(key, entry, true)
		}
	}
}

// Ensure returns the path of a rendered PNG for the key, rendering on
// first use and whenever the cached file has vanished. On render
// failure it serves the most recent successfully cached file for any
// key, if there is one, so the tray can keep showing something.
func (c *Cache) Ensure(ctx context.Context, key models.IconKey) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		if _, err := os.Stat(entry.path); err == nil {
			return entry.path, nil
		}
		c.log.WithField("icon", key.Name()).Warn("cached icon vanished, re-rendering")
		delete(c.entries, key)
	}

	svg, err := VectorFor(key, c.accent)
	if err != nil {
		return c.fallbackLocked(key, err)
	}
	png, err := c.ras.Rasterize(ctx, svg, c.size)
	if err != nil {
		return c.fallbackLocked(key, err)
	}

	path := filepath.Join(c.dir, key.Name()+".png")
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return c.fallbackLocked(key, fmt.Errorf("write icon file: %w", err))
	}

	// One file per bucket: a superseded style variant for this bucket
	// is removed so the directory stays bounded.
	for other, entry := range c.entries {
		if other.Bucket == key.Bucket && other != key {
			c.dropLocked(other, entry, true)
		}
	}

	c.entries[key] = cachedIcon{path: path, renderedAt: time.Now()}
	c.lastGood = path
	c.log.WithField("icon", key.Name()).Debug("rendered icon")
	return path, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the watcher and removes the runtime directory with
// everything in it.
func (c *Cache) Close() error {
	close(c.done)
	if c.watcher != nil {
		c.watcher.Close()
	}
	return os.RemoveAll(c.dir)
}

func (c *Cache) fallbackLocked(key models.IconKey, cause error) (string, error) {
	if c.lastGood != "" {
		if _, err := os.Stat(c.lastGood); err == nil {
			c.log.WithError(cause).WithField("icon", key.Name()).
				Warn("render failed, serving last good icon")
			return c.lastGood, nil
		}
	}
	return "", fmt.Errorf("icon %s: %w", key.Name(), cause)
}

func (c *Cache) dropLocked(key models.IconKey, entry cachedIcon, removeFile bool) {
	delete(c.entries, key)
	if removeFile {
		if err := os.Remove(entry.path); err != nil && !os.IsNotExist(err) {
			c.log.WithError(err).WithField("icon", key.Name()).Warn("evicting icon file failed")
		}
	}
	if c.lastGood == entry.path {
		c.lastGood = ""
	}
}

// sweep removes icon files in the directory that this session doesn't
// reference, orphans from a previous ungraceful exit. Non-icon files,
// like the session pid marker, are left alone.
func (c *Cache) sweep() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.WithError(err).Warn("orphan sweep failed")
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		if err := os.Remove(path); err != nil {
			c.log.WithError(err).WithField("file", e.Name()).Warn("removing orphan failed")
		}
	}
}

// watchLoop drops cache entries whose backing files are deleted or
// renamed by something outside the process.
func (c *Cache) watchLoop() {
	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			c.invalidatePath(event.Name)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.log.WithError(err).Warn("icon cache watcher error")
		}
	}
}

func (c *Cache) invalidatePath(path string) {
	if !strings.HasSuffix(path, ".png") {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.path == path {
			c.log.WithField("icon", key.Name()).Info("icon removed externally, invalidating")
			c.dropLocked(key, entry, false)
			return
		}
	}
}
