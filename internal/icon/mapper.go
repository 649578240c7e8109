// Package icon maps battery samples to icons and keeps their rendered
// PNG files cached in the session runtime directory.
package icon

import "github.com/rivaltray-io/rivaltray/internal/models"

// BucketForPercent maps a battery percentage to its severity bucket.
// Edges are inclusive on the lower bound: 0-10 critical, 11-30 low,
// 31-60 medium, 61-90 high, 91-100 full.
func BucketForPercent(percent int) models.Bucket {
	switch {
	case percent <= 10:
		return models.BucketCritical
	case percent <= 30:
		return models.BucketLow
	case percent <= 60:
		return models.BucketMedium
	case percent <= 90:
		return models.BucketHigh
	default:
		return models.BucketFull
	}
}

// MapStatus derives the icon key for a sample. Pure and total: the
// same (status, style, fallback) always yields the same key, which is
// what lets callers dedup renders and tray writes on key equality.
// Disconnection wins over everything, charging over percentage, and an
// unreadable percentage on a connected device maps to the configured
// fallback bucket.
func MapStatus(status models.DeviceStatus, style models.ThemeStyle, fallback models.Bucket) models.IconKey {
	key := models.IconKey{Style: style}
	switch {
	case !status.Connected:
		key.Bucket = models.BucketDisconnected
	case status.Charging:
		key.Bucket = models.BucketCharging
	case status.Percent == models.PercentUnknown:
		key.Bucket = fallback
	default:
		key.Bucket = BucketForPercent(status.Percent)
	}
	return key
}
