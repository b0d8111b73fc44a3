package marketdata

import (
	"fmt"
	"time"
)

// ConnectionKind is the connection_event column of the events table.
type ConnectionKind string

const (
	ConnectionConnect    ConnectionKind = "connect"
	ConnectionDisconnect ConnectionKind = "disconnect"
)

func (k ConnectionKind) IsValid() bool {
	switch k {
	case ConnectionConnect, ConnectionDisconnect:
		return true
	default:
		return false
	}
}

func ParseConnectionKind(s string) (ConnectionKind, error) {
	k := ConnectionKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid connection event: %q", s)
	}
	return k, nil
}

// ConnectionEvent is a feed connect or disconnect. An event with empty
// symbols applies to every market of its exchange.
type ConnectionEvent struct {
	ID        int64
	Market    MarketKey
	Timestamp time.Time
	Kind      ConnectionKind
}

// ExchangeWide reports whether the event is not bound to a single market.
func (e ConnectionEvent) ExchangeWide() bool {
	return e.Market.BuySymbol == "" && e.Market.SellSymbol == ""
}
