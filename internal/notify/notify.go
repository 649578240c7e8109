// Package notify sends desktop notifications on battery threshold
// crossings. Notifications fire on edges only, with a cooloff so a
// level hovering around a threshold does not spam the user.
package notify

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/sirupsen/logrus"

	"github.com/rivaltray-io/rivaltray/internal/logging"
	"github.com/rivaltray-io/rivaltray/internal/models"
)

// Cooloff is how long the same notification state stays silent after
// firing.
const Cooloff = 5 * time.Minute

// State is the notification-relevant condition of the battery.
type State int

const (
	StateNone State = iota
	StateLow
	StateCritical
	StateFull
)

// Sender delivers a single notification. The default uses beeep.
type Sender func(title, message string) error

// Notifier tracks state transitions between samples and sends
// notifications on meaningful edges.
type Notifier struct {
	cfg      models.NotificationsConfig
	send     Sender
	log      *logrus.Entry
	now      func() time.Time
	state    State
	lastSent time.Time
}

// New creates a Notifier with the beeep sender.
func New(cfg models.NotificationsConfig) *Notifier {
	return &Notifier{
		cfg:  cfg,
		send: func(title, message string) error { return beeep.Notify(title, message, "") },
		log:  logging.NewLogger("notify"),
		now:  time.Now,
	}
}

// classify maps a sample to its notification state. Charging clears
// low and critical; reaching full while plugged in is its own state.
func (n *Notifier) classify(status models.DeviceStatus) State {
	if !status.Connected || status.Percent == models.PercentUnknown {
		return StateNone
	}
	if status.Charging {
		if status.Percent >= 100 {
			return StateFull
		}
		return StateNone
	}
	switch {
	case status.Percent <= n.cfg.CriticalThreshold:
		return StateCritical
	case status.Percent <= n.cfg.LowThreshold:
		return StateLow
	default:
		return StateNone
	}
}

// Observe processes one battery sample. Returns true when a
// notification was sent.
func (n *Notifier) Observe(status models.DeviceStatus) bool {
	if !n.cfg.Enabled {
		return false
	}

	next := n.classify(status)
	prev := n.state
	n.state = next

	if next == StateNone || next == prev {
		return false
	}
	// Low after critical is recovery, not a new alert.
	if next == StateLow && prev == StateCritical {
		return false
	}
	if !n.lastSent.IsZero() && n.now().Sub(n.lastSent) < Cooloff {
		return false
	}

	var title, message string
	switch next {
	case StateCritical:
		title = "Critical Battery"
		message = fmt.Sprintf("Mouse battery is critically low at %d%%", status.Percent)
	case StateLow:
		title = "Low Battery"
		message = fmt.Sprintf("Mouse battery is low at %d%%", status.Percent)
	case StateFull:
		title = "Battery Full"
		message = "Mouse battery is fully charged"
	}

	if err := n.send(title, message); err != nil {
		n.log.WithError(err).Warn("notification delivery failed")
		return false
	}
	n.lastSent = n.now()
	n.log.WithFields(logrus.Fields{"title": title, "percent": status.Percent}).Debug("notification sent")
	return true
}
