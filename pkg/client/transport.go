package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// UnitKind tags an InboundUnit.
type UnitKind int

const (
	// UnitImage is a binary frame carrying encoded image bytes.
	UnitImage UnitKind = iota
	// UnitText is a text frame carrying a reply, a status or free text.
	UnitText
)

func (k UnitKind) String() string {
	if k == UnitImage {
		return "image"
	}
	return "text"
}

// InboundUnit is one frame read from the transport.
type InboundUnit struct {
	Kind UnitKind
	Data []byte
	Text string
}

// Transport is a persistent bidirectional link to the camera.
type Transport interface {
	SendText(ctx context.Context, text string) error
	SendJSON(ctx context.Context, v any) error
	// Receive blocks until the next binary or text unit arrives.
	Receive() (InboundUnit, error)
	// Close is idempotent.
	Close() error
}

// Dialer opens a Transport to url.
type Dialer func(ctx context.Context, url string) (Transport, error)

const closeGrace = time.Second

// DialWebsocket is the default Dialer.
func DialWebsocket(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrConnectFailure, "dial %s: %v", url, err)
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn

	// writeMu serializes writers; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	closedMu  sync.RWMutex
	closed    bool
}

func (t *wsTransport) isClosed() bool {
	t.closedMu.RLock()
	defer t.closedMu.RUnlock()
	return t.closed
}

func (t *wsTransport) write(ctx context.Context, messageType int, data []byte) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	// A zero deadline clears any earlier one.
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(ErrTransportClosed, err.Error())
	}
	if err := t.conn.WriteMessage(messageType, data); err != nil {
		return errors.Wrapf(ErrTransportClosed, "write: %v", err)
	}
	return nil
}

func (t *wsTransport) SendText(ctx context.Context, text string) error {
	return t.write(ctx, websocket.TextMessage, []byte(text))
}

func (t *wsTransport) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "error marshalling command")
	}
	return t.write(ctx, websocket.TextMessage, data)
}

func (t *wsTransport) Receive() (InboundUnit, error) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			return InboundUnit{}, errors.Wrapf(ErrTransportClosed, "read: %v", err)
		}
		switch messageType {
		case websocket.BinaryMessage:
			return InboundUnit{Kind: UnitImage, Data: data}, nil
		case websocket.TextMessage:
			return InboundUnit{Kind: UnitText, Text: string(data)}, nil
		}
	}
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closedMu.Lock()
		t.closed = true
		t.closedMu.Unlock()

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		// The peer may already be gone; the close frame is best effort.
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		if err := t.conn.Close(); err != nil {
			t.closeErr = errors.Wrap(err, "error closing websocket")
		}
	})
	return t.closeErr
}
