package icon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivaltray-io/rivaltray/internal/models"
)

func TestVectorForEveryBucket(t *testing.T) {
	for _, bucket := range []models.Bucket{
		models.BucketDisconnected, models.BucketCritical, models.BucketLow,
		models.BucketMedium, models.BucketHigh, models.BucketFull,
		models.BucketCharging,
	} {
		svg, err := VectorFor(models.IconKey{Bucket: bucket, Style: models.ThemeDark}, "")
		require.NoError(t, err, "bucket %s", bucket)
		assert.Contains(t, string(svg), "<svg", "bucket %s", bucket)
		assert.Contains(t, string(svg), "</svg>", "bucket %s", bucket)
	}
}

func TestChargingCompositesBoltOverlay(t *testing.T) {
	charging, err := VectorFor(models.IconKey{Bucket: models.BucketCharging, Style: models.ThemeDark}, "")
	require.NoError(t, err)
	full, err := VectorFor(models.IconKey{Bucket: models.BucketFull, Style: models.ThemeDark}, "")
	require.NoError(t, err)

	assert.Greater(t, len(charging), len(full), "charging icon should carry the bolt overlay")
	assert.Contains(t, string(charging), "<path")
}

func TestRecolor(t *testing.T) {
	svg := []byte(`<rect fill="#e6e6e6" stroke="#e6e6e6"/>`)

	recolored := string(Recolor(svg, "#ff8800"))
	assert.NotContains(t, recolored, "#e6e6e6")
	assert.Contains(t, recolored, "#ff8800")

	// Malformed targets leave the source untouched.
	assert.Equal(t, string(svg), string(Recolor(svg, "red")))
	assert.Equal(t, string(svg), string(Recolor(svg, "")))
}

func TestCustomStyleUsesAccent(t *testing.T) {
	svg, err := VectorFor(models.IconKey{Bucket: models.BucketLow, Style: models.ThemeCustom}, "#12ab34")
	require.NoError(t, err)
	assert.Contains(t, string(svg), "#12ab34")
}
