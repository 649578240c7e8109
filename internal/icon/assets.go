package icon

import (
	"embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/rivaltray-io/rivaltray/internal/models"
)

//go:embed assets/*.svg
var assetsFS embed.FS

// Style colors. Assets are drawn in assetBaseColor and recolored per
// theme variant at render time.
const (
	assetBaseColor = "#e6e6e6"
	lightColor     = "#3a3a3a"
	darkColor      = "#e6e6e6"
)

var hexFillRe = regexp.MustCompile(`#[0-9a-fA-F]{6}`)

var bucketAssets = map[models.Bucket]string{
	models.BucketDisconnected: "assets/battery-disconnected.svg",
	models.BucketCritical:     "assets/battery-critical.svg",
	models.BucketLow:          "assets/battery-low.svg",
	models.BucketMedium:       "assets/battery-medium.svg",
	models.BucketHigh:         "assets/battery-high.svg",
	models.BucketFull:         "assets/battery-full.svg",
}

// VectorFor assembles the SVG source for a key. The charging icon is a
// full battery with a bolt overlay composited in; custom style recolors
// with the given accent, light/dark with their fixed colors.
func VectorFor(key models.IconKey, accent string) ([]byte, error) {
	bucket := key.Bucket
	if bucket == models.BucketCharging {
		bucket = models.BucketFull
	}
	asset, ok := bucketAssets[bucket]
	if !ok {
		return nil, fmt.Errorf("no vector source for bucket %s", key.Bucket)
	}

	svg, err := assetsFS.ReadFile(asset)
	if err != nil {
		return nil, fmt.Errorf("read vector source %s: %w", asset, err)
	}

	if key.Bucket == models.BucketCharging {
		bolt, err := assetsFS.ReadFile("assets/bolt.svg")
		if err != nil {
			return nil, fmt.Errorf("read bolt overlay: %w", err)
		}
		svg = CompositeOverlay(svg, bolt)
	}

	return Recolor(svg, styleColor(key.Style, accent)), nil
}

// CompositeOverlay inserts the drawing elements of overlay into base,
// before base's closing tag, so both render in one document.
func CompositeOverlay(base, overlay []byte) []byte {
	content := string(overlay)
	if i := strings.Index(content, "<path"); i >= 0 {
		content = content[i:]
	}
	if i := strings.LastIndex(content, "</svg>"); i >= 0 {
		content = content[:i]
	}

	composed := strings.Replace(string(base), "</svg>",
		strings.TrimSpace(content)+"\n</svg>", 1)
	return []byte(composed)
}

// Recolor replaces every hex fill/stroke color in the SVG with the
// target color. Empty or malformed targets leave the source untouched.
func Recolor(svg []byte, color string) []byte {
	if !hexFillRe.MatchString(color) {
		return svg
	}
	return hexFillRe.ReplaceAll(svg, []byte(color))
}

func styleColor(style models.ThemeStyle, accent string) string {
	switch style {
	case models.ThemeLight:
		return lightColor
	case models.ThemeCustom:
		if accent != "" {
			return accent
		}
		return darkColor
	default:
		return darkColor
	}
}
