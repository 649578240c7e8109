// Package models defines the shared value types used across rivaltray.
package models

import "time"

// PercentUnknown marks a connected device whose charge level could not
// be read (firmware still booting, transient link drop, etc.).
const PercentUnknown = -1

// Bucket is one of a small fixed set of severity levels derived from
// the battery percentage. It drives icon selection; everything past the
// mapper works in buckets, never raw percentages.
type Bucket int

const (
	BucketDisconnected Bucket = iota
	BucketCritical
	BucketLow
	BucketMedium
	BucketHigh
	BucketFull
	BucketCharging
)

var bucketNames = map[Bucket]string{
	BucketDisconnected: "disconnected",
	BucketCritical:     "critical",
	BucketLow:          "low",
	BucketMedium:       "medium",
	BucketHigh:         "high",
	BucketFull:         "full",
	BucketCharging:     "charging",
}

func (b Bucket) String() string {
	if name, ok := bucketNames[b]; ok {
		return name
	}
	return "unknown"
}

// ParseBucket resolves a bucket from its settings-file name. Unknown
// names fall back to BucketMedium, the conservative default.
func ParseBucket(name string) Bucket {
	for b, n := range bucketNames {
		if n == name {
			return b
		}
	}
	return BucketMedium
}

// ThemeStyle selects the icon color variant.
type ThemeStyle string

// Supported theme styles. ThemeCustom recolors icons with the accent
// color from settings.
const (
	ThemeLight  ThemeStyle = "light"
	ThemeDark   ThemeStyle = "dark"
	ThemeCustom ThemeStyle = "custom"
)

// ParseThemeStyle resolves a style name, defaulting to dark.
func ParseThemeStyle(name string) ThemeStyle {
	switch ThemeStyle(name) {
	case ThemeLight, ThemeDark, ThemeCustom:
		return ThemeStyle(name)
	default:
		return ThemeDark
	}
}

// SplitTheme parses a theme selector. Plain names map to their style;
// "custom:#rrggbb" yields ThemeCustom plus the accent color.
func SplitTheme(value string) (ThemeStyle, string) {
	const prefix = "custom:"
	if len(value) > len(prefix) && value[:len(prefix)] == prefix {
		return ThemeCustom, value[len(prefix):]
	}
	return ParseThemeStyle(value), ""
}

// DeviceStatus is one battery sample. It is produced fresh on every
// poll and superseded, never mutated, by the next one.
type DeviceStatus struct {
	Connected bool
	Percent   int // 0-100, or PercentUnknown
	Charging  bool
	SampledAt time.Time
}

// IconKey identifies one renderable icon: a bucket plus the theme
// variant it is drawn in. Key equality is the sole trigger for disk and
// tray writes; consecutive identical keys must not re-render or
// re-register.
type IconKey struct {
	Bucket Bucket
	Style  ThemeStyle
}

// Name returns the bare icon name (the file stem, no extension). The
// status-notifier host resolves this name through the declared theme
// path, so it must stay a plain name, never an absolute path.
func (k IconKey) Name() string {
	return "rivaltray-" + k.Bucket.String() + "-" + string(k.Style)
}
