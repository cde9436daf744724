package client

import (
	"sync"

	"github.com/AlverezYari/suscam/pkg/camera"
)

// positionModel is the local stand-in for the pan/tilt head in fallback mode.
type positionModel struct {
	bounds camera.Bounds

	mu  sync.Mutex
	pos camera.Position
}

func newPositionModel(b camera.Bounds) *positionModel {
	return &positionModel{bounds: b, pos: b.Center()}
}

func (m *positionModel) get() camera.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *positionModel) step(dx, dy int) camera.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos = m.bounds.Clamp(camera.Position{X: m.pos.X + dx, Y: m.pos.Y + dy})
	return m.pos
}

func (m *positionModel) set(p camera.Position) camera.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos = m.bounds.Clamp(p)
	return m.pos
}

func (m *positionModel) center() camera.Position {
	return m.set(m.bounds.Center())
}
