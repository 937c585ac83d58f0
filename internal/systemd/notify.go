// Package systemd reports run state to the service manager when
// proclaunch runs as a Type=notify unit. Outside systemd every call is a
// no-op.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a notifier logging send failures to logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready tells systemd startup has finished.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd shutdown has begun.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	n.send("STATUS=" + fmt.Sprintf(format, args...))
}

// StartWatchdog pings the watchdog at half the configured interval until
// ctx is done. It returns false when no watchdog is configured.
func (n *Notifier) StartWatchdog(ctx context.Context) bool {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return false
	}
	if interval == 0 {
		return false
	}

	go func() {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.send(daemon.SdNotifyWatchdog)
			}
		}
	}()
	n.logger.Debug("Watchdog enabled", "interval", interval)
	return true
}

func (n *Notifier) send(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("Failed to notify systemd", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("Notified systemd", "state", state)
	}
}
