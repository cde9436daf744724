package client

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/AlverezYari/suscam/pkg/camera"
)

// Defaults for a new Session.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultQueryTimeout   = 2 * time.Second
	// DefaultFrameInterval polls the local device at about 20 fps.
	DefaultFrameInterval = 50 * time.Millisecond
)

// Option configures a Session.
type Option func(*Session)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dial = d }
}

// WithLogger sets the logger. Sessions log nothing by default.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock sets the clock that drives the fallback loop.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLocalDevice sets how the fallback device is opened. Without it the
// fallback loop runs but produces no frames.
func WithLocalDevice(open func() (camera.Device, error)) Option {
	return func(s *Session) { s.openDevice = open }
}

// WithBounds sets the fallback axis limits.
func WithBounds(b camera.Bounds) Option {
	return func(s *Session) { s.bounds = b }
}

// WithConnectTimeout bounds the dial and handshake.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Session) { s.connectTimeout = d }
}

// WithQueryTimeout bounds each query round trip.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Session) { s.queryTimeout = d }
}

// WithFrameInterval sets the fallback polling cadence.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Session) { s.frameInterval = d }
}

// WithForcedFallback skips the websocket entirely.
func WithForcedFallback() Option {
	return func(s *Session) { s.forceFallback = true }
}
