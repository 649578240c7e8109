package icon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rivaltray-io/rivaltray/internal/models"
)

func TestBucketForPercentThresholds(t *testing.T) {
	tests := []struct {
		percent int
		want    models.Bucket
	}{
		{0, models.BucketCritical},
		{5, models.BucketCritical},
		{10, models.BucketCritical},
		{11, models.BucketLow},
		{30, models.BucketLow},
		{31, models.BucketMedium},
		{60, models.BucketMedium},
		{61, models.BucketHigh},
		{90, models.BucketHigh},
		{91, models.BucketFull},
		{100, models.BucketFull},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketForPercent(tt.percent), "percent %d", tt.percent)
	}
}

// Severity must never decrease as the percentage climbs, and every
// percentage must land in exactly one of the five connected buckets.
func TestBucketMappingIsMonotonic(t *testing.T) {
	prev := models.BucketCritical
	for p := 0; p <= 100; p++ {
		b := BucketForPercent(p)
		assert.GreaterOrEqual(t, int(b), int(prev), "severity regressed at %d%%", p)
		assert.Contains(t, []models.Bucket{
			models.BucketCritical, models.BucketLow, models.BucketMedium,
			models.BucketHigh, models.BucketFull,
		}, b, "percent %d landed outside the battery buckets", p)
		prev = b
	}
}

func TestMapStatus(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		status models.DeviceStatus
		want   models.Bucket
	}{
		{
			name:   "disconnected wins over everything",
			status: models.DeviceStatus{Connected: false, Percent: 80, Charging: true, SampledAt: now},
			want:   models.BucketDisconnected,
		},
		{
			name:   "charging wins over percentage",
			status: models.DeviceStatus{Connected: true, Percent: 3, Charging: true, SampledAt: now},
			want:   models.BucketCharging,
		},
		{
			name:   "critical at five percent",
			status: models.DeviceStatus{Connected: true, Percent: 5, SampledAt: now},
			want:   models.BucketCritical,
		},
		{
			name:   "unknown percent uses fallback",
			status: models.DeviceStatus{Connected: true, Percent: models.PercentUnknown, SampledAt: now},
			want:   models.BucketMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := MapStatus(tt.status, models.ThemeDark, models.BucketMedium)
			assert.Equal(t, tt.want, key.Bucket)
			assert.Equal(t, models.ThemeDark, key.Style)
		})
	}
}

func TestMapStatusIsPure(t *testing.T) {
	status := models.DeviceStatus{Connected: true, Percent: 42, SampledAt: time.Now()}
	first := MapStatus(status, models.ThemeLight, models.BucketMedium)
	second := MapStatus(status, models.ThemeLight, models.BucketMedium)
	assert.Equal(t, first, second)
}

func TestMapStatusRespectsConfiguredFallback(t *testing.T) {
	status := models.DeviceStatus{Connected: true, Percent: models.PercentUnknown}
	key := MapStatus(status, models.ThemeDark, models.BucketLow)
	assert.Equal(t, models.BucketLow, key.Bucket)
}
