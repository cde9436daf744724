package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/AlverezYari/suscam/pkg/camera"
)

// Up tilts the camera up one step.
func (s *Session) Up(ctx context.Context) error {
	return s.move(ctx, CmdUp, 0, -1)
}

// Down tilts the camera down one step.
func (s *Session) Down(ctx context.Context) error {
	return s.move(ctx, CmdDown, 0, 1)
}

// Left pans the camera left one step.
func (s *Session) Left(ctx context.Context) error {
	return s.move(ctx, CmdLeft, -1, 0)
}

// Right pans the camera right one step.
func (s *Session) Right(ctx context.Context) error {
	return s.move(ctx, CmdRight, 1, 0)
}

// Center returns the camera to its start position.
func (s *Session) Center(ctx context.Context) error {
	return s.command(ctx, CmdCenter, func() {
		p := s.position.center()
		s.logger.Debugw("[fallback] center", "x", p.X, "y", p.Y)
	})
}

// LightOn switches the camera light on. It only logs in fallback.
func (s *Session) LightOn(ctx context.Context) error {
	return s.command(ctx, CmdLightOn, func() {
		s.logger.Debug("[fallback] light_on")
	})
}

// LightOff switches the camera light off. It only logs in fallback.
func (s *Session) LightOff(ctx context.Context) error {
	return s.command(ctx, CmdLightOff, func() {
		s.logger.Debug("[fallback] light_off")
	})
}

// SetPosition moves the camera to (x, y). The camera clamps remote
// positions itself; in fallback the local model clamps them.
func (s *Session) SetPosition(ctx context.Context, x, y int) error {
	mode, t, err := s.active()
	if err != nil {
		return err
	}
	if mode == ModeFallback {
		p := s.position.set(camera.Position{X: x, Y: y})
		s.logger.Debugw("[fallback] set_position", "x", p.X, "y", p.Y)
		return nil
	}
	return t.SendJSON(ctx, camera.Position{X: x, Y: y})
}

// GetPos asks the camera for its position.
func (s *Session) GetPos(ctx context.Context) (camera.Position, error) {
	mode, t, err := s.active()
	if err != nil {
		return camera.Position{}, err
	}
	if mode == ModeFallback {
		return s.position.get(), nil
	}
	return s.queryPosition(ctx, t)
}

// GetLimits asks the camera for its axis limits.
func (s *Session) GetLimits(ctx context.Context) (camera.Bounds, error) {
	mode, t, err := s.active()
	if err != nil {
		return camera.Bounds{}, err
	}
	if mode == ModeFallback {
		return s.bounds, nil
	}
	limits, err := s.queryLimits(ctx, t)
	if err != nil {
		return camera.Bounds{}, err
	}
	s.mu.Lock()
	s.remoteLimits = &limits
	s.mu.Unlock()
	return limits, nil
}

// ClientCount asks the camera how many clients are connected to it. The
// fallback device only ever has this one.
func (s *Session) ClientCount(ctx context.Context) (int, error) {
	mode, t, err := s.active()
	if err != nil {
		return 0, err
	}
	if mode == ModeFallback {
		return 1, nil
	}
	msg, err := s.roundTrip(ctx, t, CmdClientCount)
	if err != nil {
		return 0, err
	}
	return parseClientCount(msg)
}

func (s *Session) move(ctx context.Context, cmd Command, dx, dy int) error {
	return s.command(ctx, cmd, func() {
		p := s.position.step(dx, dy)
		s.logger.Debugw("[fallback] "+string(cmd), "x", p.X, "y", p.Y)
	})
}

// command sends a fire-and-forget verb, or runs local in fallback.
func (s *Session) command(ctx context.Context, cmd Command, local func()) error {
	mode, t, err := s.active()
	if err != nil {
		return err
	}
	if mode == ModeFallback {
		local()
		return nil
	}
	return t.SendText(ctx, string(cmd))
}

func (s *Session) queryPosition(ctx context.Context, t Transport) (camera.Position, error) {
	msg, err := s.roundTrip(ctx, t, CmdGetPos)
	if err != nil {
		return camera.Position{}, err
	}
	return parsePosition(msg)
}

func (s *Session) queryLimits(ctx context.Context, t Transport) (camera.Bounds, error) {
	msg, err := s.roundTrip(ctx, t, CmdGetLimits)
	if err != nil {
		return camera.Bounds{}, err
	}
	return parseLimits(msg)
}

// roundTrip sends a query verb and waits for the reply correlated with it.
func (s *Session) roundTrip(ctx context.Context, t Transport, cmd Command) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	q := s.pending.add(cmd)
	if err := t.SendText(ctx, string(cmd)); err != nil {
		s.pending.remove(q)
		return Message{}, err
	}

	select {
	case r := <-q.reply:
		return r.msg, r.err
	case <-s.ctx.Done():
		s.pending.remove(q)
		return Message{}, ErrSessionClosed
	case <-ctx.Done():
		s.pending.remove(q)
		// The reply may have landed while the deadline fired.
		select {
		case r := <-q.reply:
			return r.msg, r.err
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Message{}, errors.Wrapf(ErrQueryTimeout, "%s", cmd)
		}
		return Message{}, ctx.Err()
	}
}

func parsePosition(msg Message) (camera.Position, error) {
	obj, ok := msg.Object()
	if !ok {
		return camera.Position{}, errors.Wrapf(ErrUnexpectedReply, "get_pos: %q", msg.Raw)
	}
	x, okX := intField(obj, "x")
	y, okY := intField(obj, "y")
	if !okX || !okY {
		return camera.Position{}, errors.Wrapf(ErrUnexpectedReply, "get_pos: %q", msg.Raw)
	}
	return camera.Position{X: x, Y: y}, nil
}

func parseLimits(msg Message) (camera.Bounds, error) {
	obj, ok := msg.Object()
	if !ok {
		return camera.Bounds{}, errors.Wrapf(ErrUnexpectedReply, "get_limits: %q", msg.Raw)
	}
	var b camera.Bounds
	fields := map[string]*int{"x_min": &b.XMin, "x_max": &b.XMax, "y_min": &b.YMin, "y_max": &b.YMax}
	for key, dst := range fields {
		v, ok := intField(obj, key)
		if !ok {
			return camera.Bounds{}, errors.Wrapf(ErrUnexpectedReply, "get_limits: missing %s", key)
		}
		*dst = v
	}
	return b, nil
}

func parseClientCount(msg Message) (int, error) {
	if n, ok := msg.Data.(float64); ok {
		return int(n), nil
	}
	if obj, ok := msg.Object(); ok {
		for _, key := range countKeys {
			if n, ok := intField(obj, key); ok {
				return n, nil
			}
		}
	}
	return 0, errors.Wrapf(ErrUnexpectedReply, "client_count: %q", msg.Raw)
}
