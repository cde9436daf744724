package client

import (
	"context"
	"image"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/AlverezYari/suscam/internal/server"
	"github.com/AlverezYari/suscam/pkg/camera"
)

// startSimulator serves a simulated camera and returns its address.
func startSimulator(t *testing.T) (*server.Server, string) {
	t.Helper()
	srv := server.New(server.Config{}, zap.NewNop().Sugar())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, strings.TrimPrefix(ts.URL, "http://")
}

// newSession creates a session that is closed when the test ends.
func newSession(t *testing.T, address string, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t).Sugar())}, opts...)
	s := New(address, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

// unreachableAddress returns an address nothing listens on.
func unreachableAddress(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(nil)
	addr := strings.TrimPrefix(ts.URL, "http://")
	ts.Close()
	return addr
}

// recorder keeps the first few frames and counts the rest.
type recorder struct {
	mu       sync.Mutex
	frames   int
	images   []image.Image
	messages []Message
}

func (r *recorder) onImage(img image.Image, _ *Session) {
	r.mu.Lock()
	r.frames++
	if len(r.images) < 8 {
		r.images = append(r.images, img)
	}
	r.mu.Unlock()
}

func (r *recorder) onMessage(msg Message, _ *Session) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
}

func (r *recorder) imageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *recorder) snapshotMessages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func (r *recorder) attach(s *Session) {
	s.SetImageHandler(r.onImage)
	s.SetMessageHandler(r.onMessage)
}

// fakeDevice serves a scripted sequence of reads; nil entries mean no frame.
type fakeDevice struct {
	mu     sync.Mutex
	script []image.Image
	reads  int
	closed int
}

func (d *fakeDevice) Read() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.reads
	d.reads++
	if i >= len(d.script) || d.script[i] == nil {
		return nil, camera.ErrNoFrame
	}
	return d.script[i], nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed++
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) readCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// countingTransport counts Close calls on a real transport.
type countingTransport struct {
	Transport
	mu     sync.Mutex
	closes int
}

func (c *countingTransport) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	return c.Transport.Close()
}

func (c *countingTransport) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// countingDialer dials the websocket and remembers the transport it made.
func countingDialer(out **countingTransport) Dialer {
	return func(ctx context.Context, url string) (Transport, error) {
		t, err := DialWebsocket(ctx, url)
		if err != nil {
			return nil, err
		}
		*out = &countingTransport{Transport: t}
		return *out, nil
	}
}
