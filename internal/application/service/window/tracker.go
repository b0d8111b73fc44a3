package window

import (
	"time"

	marketdata "obsnapshots/internal/domain/entity/marketdata"
)

// Window is a connected span [Connect, Disconnect). Connect is nil when no
// usable connect event exists. Disconnect falls back to the run cutoff.
type Window struct {
	Connect    *time.Time
	Disconnect time.Time
}

// OpenEnded reports whether no disconnect bounds the window before cutoff.
func (w Window) OpenEnded(cutoff time.Time) bool {
	return w.Disconnect.Equal(cutoff)
}

// Resolve derives the connection window of one market from its ordered
// events.
//
// With a last snapshot time, the window is the connection segment covering
// or following it: the latest connect at or before last, closed by the first
// disconnect after last.
//
// Without one, the window opens at the first connect ever seen and closes at
// the last disconnect following it, not the first.
func Resolve(events []marketdata.ConnectionEvent, last *time.Time, cutoff time.Time) Window {
	var (
		connect    time.Time
		hasConnect bool
	)
	disconnect := cutoff
	for _, e := range events {
		if last != nil {
			if e.Kind == marketdata.ConnectionConnect && !e.Timestamp.After(*last) {
				connect, hasConnect = e.Timestamp, true
			} else if e.Kind == marketdata.ConnectionDisconnect && e.Timestamp.After(*last) {
				disconnect = e.Timestamp
				break
			}
			continue
		}
		if !hasConnect && e.Kind == marketdata.ConnectionConnect {
			connect, hasConnect = e.Timestamp, true
		} else if hasConnect && e.Kind == marketdata.ConnectionDisconnect {
			disconnect = e.Timestamp
		}
	}

	w := Window{Disconnect: disconnect}
	if hasConnect {
		w.Connect = &connect
	}
	return w
}

// After returns the first connection segment opening at or after from,
// closed by the first disconnect following its connect. Connect is nil when
// the feed never reconnected.
func After(events []marketdata.ConnectionEvent, from, cutoff time.Time) Window {
	w := Window{Disconnect: cutoff}
	for _, e := range events {
		if w.Connect == nil {
			if e.Kind == marketdata.ConnectionConnect && !e.Timestamp.Before(from) {
				connect := e.Timestamp
				w.Connect = &connect
			}
			continue
		}
		if e.Kind == marketdata.ConnectionDisconnect && e.Timestamp.After(*w.Connect) {
			w.Disconnect = e.Timestamp
			break
		}
	}
	return w
}
