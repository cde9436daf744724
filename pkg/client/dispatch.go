package client

import (
	"context"
	"image"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/AlverezYari/suscam/pkg/camera"
)

// listen is the connected-mode loop. It owns the read side of t.
func (s *Session) listen(t Transport, loopDone chan struct{}) {
	defer close(loopDone)

	events := s.startDelivery()
	defer close(events)

	for {
		unit, err := t.Receive()
		if err != nil {
			s.transportLost(t, err)
			return
		}
		if !s.dispatch(unit, events) {
			s.setLoopState(LoopStopped)
			return
		}
	}
}

// dispatch routes one inbound unit. A bad unit is skipped; only a cancelled
// session makes it return false.
func (s *Session) dispatch(unit InboundUnit, events chan<- event) bool {
	switch unit.Kind {
	case UnitImage:
		img, err := camera.Decode(unit.Data)
		if err != nil {
			s.framesDropped.Inc()
			s.logger.Debugw("skipping undecodable frame", "error", err)
			return true
		}
		return s.emitFrame(img, events)
	default:
		msg := parseMessage(unit.Text)
		if cmd, ok := replyKind(msg); ok && s.pending.resolve(cmd, msg) {
			s.repliesCorrelated.Inc()
			return true
		}
		return s.emit(event{msg: msg}, events)
	}
}

func (s *Session) transportLost(t Transport, err error) {
	s.mu.Lock()
	current := s.transport == t
	connected := current && s.mode == ModeConnected
	if connected {
		s.transport = nil
		s.markClosedLocked()
	}
	s.loopState = LoopStopped
	s.mu.Unlock()

	if !current {
		// Close or a failed handshake already took the transport away.
		return
	}
	if connected {
		s.logger.Warnw("camera closed the connection", "error", err)
		if cerr := t.Close(); cerr != nil {
			s.logger.Debugw("error closing lost transport", "error", cerr)
		}
		s.pending.failAll(ErrSessionClosed)
		return
	}
	// Still in the handshake; fail it so Connect falls back right away.
	s.pending.failAll(errors.Wrap(ErrConnectFailure, err.Error()))
}

// poll is the fallback loop. It reads dev once per tick.
func (s *Session) poll(dev camera.Device, ticker *clock.Ticker, loopDone chan struct{}) {
	defer close(loopDone)
	defer ticker.Stop()

	events := s.startDelivery()
	defer close(events)
	defer s.setLoopState(LoopStopped)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		if dev == nil {
			continue
		}
		img, err := dev.Read()
		if err != nil {
			if !errors.Is(err, camera.ErrNoFrame) {
				s.logger.Debugw("local camera read failed", "error", err)
			}
			continue
		}
		if !s.emitFrame(img, events) {
			return
		}
	}
}

func (s *Session) setLoopState(state LoopState) {
	s.mu.Lock()
	s.loopState = state
	s.mu.Unlock()
}

func (s *Session) emitFrame(img image.Image, events chan<- event) bool {
	s.wakeFrameWaiters(img)
	return s.emit(event{img: img}, events)
}

func (s *Session) emit(e event, events chan<- event) bool {
	select {
	case events <- e:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// startDelivery runs the handlers on their own goroutine so a slow handler
// never delays reply correlation. Handler calls keep their arrival order
// among themselves, but a query reply is not ordered against them: a query
// may return before a unit received ahead of its reply reaches a handler.
// The caller closes the returned channel to stop it.
func (s *Session) startDelivery() chan<- event {
	events := make(chan event, deliveryBuffer)
	go func() {
		for e := range events {
			if s.ctx.Err() != nil {
				continue
			}
			s.deliver(e)
		}
	}()
	return events
}

func (s *Session) deliver(e event) {
	s.mu.Lock()
	onImage, onMessage := s.onImage, s.onMessage
	s.mu.Unlock()

	if e.img != nil {
		if onImage != nil {
			onImage(e.img, s)
			s.framesDelivered.Inc()
		}
		return
	}
	if onMessage != nil {
		onMessage(e.msg, s)
		s.messagesDelivered.Inc()
	}
}

func (s *Session) wakeFrameWaiters(img image.Image) {
	s.mu.Lock()
	waiters := s.frameWaiters
	s.frameWaiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- img
	}
}

// NextFrame waits for the next frame the loop produces.
func (s *Session) NextFrame(ctx context.Context) (image.Image, error) {
	mode, _, err := s.active()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if mode == ModeFallback && s.device == nil {
		s.mu.Unlock()
		return nil, errors.Wrap(camera.ErrNoFrame, "no local camera")
	}
	ch := make(chan image.Image, 1)
	s.frameWaiters = append(s.frameWaiters, ch)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	select {
	case img := <-ch:
		return img, nil
	case <-s.done:
		s.removeFrameWaiter(ch)
		return nil, ErrSessionClosed
	case <-ctx.Done():
		s.removeFrameWaiter(ch)
		select {
		case img := <-ch:
			return img, nil
		default:
		}
		return nil, errors.Wrapf(camera.ErrNoFrame, "waiting for frame: %v", ctx.Err())
	}
}

func (s *Session) removeFrameWaiter(ch chan image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, other := range s.frameWaiters {
		if other == ch {
			s.frameWaiters = append(s.frameWaiters[:i:i], s.frameWaiters[i+1:]...)
			return
		}
	}
}
