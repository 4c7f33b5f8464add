// Package systemd reports service state to systemd (sd_notify) and drives the
// watchdog keep-alive. Outside systemd every call is a no-op.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "pagewatch/pkg/logx"
)

// Notifier sends sd_notify states.
type Notifier struct {
	log logx.Logger

	send            func(unsetEnvironment bool, state string) (bool, error)
	watchdogEnabled func(unsetEnvironment bool) (time.Duration, error)
}

func New(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		log:             log,
		send:            daemon.SdNotify,
		watchdogEnabled: daemon.SdWatchdogEnabled,
	}
}

// Ready reports READY=1. It returns false when not running under systemd.
func (n *Notifier) Ready() bool { return n.notify(daemon.SdNotifyReady) }

// Stopping reports STOPPING=1.
func (n *Notifier) Stopping() bool { return n.notify(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) bool { return n.notify("STATUS=" + msg) }

func (n *Notifier) notify(state string) bool {
	ok, err := n.send(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return ok
}

// WatchdogInterval returns the configured WatchdogSec, or 0 when the watchdog is off.
func (n *Notifier) WatchdogInterval() time.Duration {
	d, err := n.watchdogEnabled(false)
	if err != nil {
		n.log.Warn("watchdog config invalid", logx.Err(err))
		return 0
	}
	return d
}

// RunWatchdog pings WATCHDOG=1 at half the watchdog interval while healthy
// reports true, until ctx is done. It returns immediately when the watchdog is off.
func (n *Notifier) RunWatchdog(ctx context.Context, healthy func() bool) {
	interval := n.WatchdogInterval()
	if interval <= 0 {
		return
	}
	every := interval / 2
	n.log.Info("watchdog enabled", logx.Duration("interval", interval), logx.Duration("ping_every", every))

	t := time.NewTicker(every)
	defer t.Stop()
	withheld := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if healthy != nil && !healthy() {
				if !withheld {
					n.log.Error("check cycle stuck; withholding watchdog ping")
					withheld = true
				}
				continue
			}
			if withheld {
				n.log.Info("check cycle progressing again; watchdog pings resumed")
				withheld = false
			}
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}
