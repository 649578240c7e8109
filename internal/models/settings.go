package models

import "time"

// MouseConfig holds the rivalcfg-backed device settings. Values are
// kept as strings because rivalcfg accepts them verbatim on the
// command line; empty means "leave the device setting alone".
type MouseConfig struct {
	Sensitivity string `yaml:"sensitivity,omitempty"`  // CPI, 100-16000
	PollingRate string `yaml:"polling_rate,omitempty"` // Hz: 125|250|500|1000
	SleepTimer  string `yaml:"sleep_timer,omitempty"`  // minutes
	DimTimer    string `yaml:"dim_timer,omitempty"`    // seconds
}

// AppearanceConfig holds icon theming settings.
type AppearanceConfig struct {
	Theme       string `yaml:"theme"`                  // "light" | "dark" | "custom"
	CustomColor string `yaml:"custom_color,omitempty"` // "#rrggbb", used with "custom"
}

// PollingConfig controls the battery poll loop.
type PollingConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	TimeoutSeconds  int `yaml:"timeout_seconds"`

	// FallbackBucket is shown when the device is connected but reports
	// no readable percentage. The true device behavior in that state is
	// unconfirmed, so this stays configurable rather than hard-baked.
	FallbackBucket string `yaml:"fallback_bucket"`
}

// NotificationsConfig controls desktop notifications on battery
// threshold crossings.
type NotificationsConfig struct {
	Enabled           bool `yaml:"enabled"`
	LowThreshold      int  `yaml:"low_threshold"`
	CriticalThreshold int  `yaml:"critical_threshold"`
}

// Settings represents the application settings persisted at
// ~/.config/rivaltray/settings.yaml.
type Settings struct {
	Version       int                 `yaml:"version"`
	Mouse         MouseConfig         `yaml:"mouse"`
	Appearance    AppearanceConfig    `yaml:"appearance"`
	Polling       PollingConfig       `yaml:"polling"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Appearance: AppearanceConfig{
			Theme: string(ThemeDark),
		},
		Polling: PollingConfig{
			IntervalSeconds: 30,
			TimeoutSeconds:  4,
			FallbackBucket:  BucketMedium.String(),
		},
		Notifications: NotificationsConfig{
			Enabled:           true,
			LowThreshold:      30,
			CriticalThreshold: 10,
		},
	}
}

// Style returns the configured theme style.
func (s *Settings) Style() ThemeStyle {
	return ParseThemeStyle(s.Appearance.Theme)
}

// Fallback returns the bucket published for unknown-percent samples.
func (s *Settings) Fallback() Bucket {
	return ParseBucket(s.Polling.FallbackBucket)
}

// PollInterval returns the configured base poll interval, clamped to a
// sane floor so a corrupt settings file can't spin the loop.
func (s *Settings) PollInterval() time.Duration {
	secs := s.Polling.IntervalSeconds
	if secs < 5 {
		secs = 5
	}
	return time.Duration(secs) * time.Second
}

// SampleTimeout returns the per-invocation subprocess timeout.
func (s *Settings) SampleTimeout() time.Duration {
	secs := s.Polling.TimeoutSeconds
	if secs < 1 || secs > 30 {
		secs = 4
	}
	return time.Duration(secs) * time.Second
}
