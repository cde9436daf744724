package client

import "github.com/pkg/errors"

var (
	// ErrConnectFailure covers dial, timeout and handshake failures. Connect
	// recovers from it by switching to fallback.
	ErrConnectFailure = errors.New("camera connection failed")
	// ErrTransportClosed is returned once the websocket link is gone.
	ErrTransportClosed = errors.New("transport closed")
	// ErrQueryTimeout is returned when no correlated reply arrives in time.
	ErrQueryTimeout = errors.New("query timed out")
	// ErrSessionClosed is returned by every command after Close.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotConnected is returned by commands issued before Connect.
	ErrNotConnected = errors.New("session not connected")
	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("session already connected")
	// ErrUnexpectedReply is returned when a correlated reply has the wrong shape.
	ErrUnexpectedReply = errors.New("unexpected reply")
)
