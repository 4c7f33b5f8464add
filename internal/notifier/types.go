package notifier

import (
	"errors"
	"time"
)

var (
	ErrDestinationUnresolvable = errors.New("destination unresolvable")
	ErrNotTextCapable          = errors.New("destination does not accept text from this bot")
	ErrEmptyToken              = errors.New("telegram token is empty")
)

// Config controls the Telegram notifier.
type Config struct {
	Token string
	// Destination is a numeric chat ID (e.g. -1001234567890) or "@channelname".
	Destination string
	// APIURL overrides the Bot API base URL (telebot default when empty).
	APIURL string
	// RatePerSec paces outgoing messages. Sends wait for a token; nothing is dropped.
	RatePerSec float64
	// Timeout is the HTTP timeout of a single Bot API call.
	Timeout time.Duration
}

const (
	DefaultRatePerSec = 1.0
	DefaultTimeout    = 10 * time.Second
)
