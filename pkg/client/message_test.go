package client

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlverezYari/suscam/pkg/camera"
)

func TestReplyKind(t *testing.T) {
	for text, want := range map[string]Command{
		`{"x": 10, "y": 20}`: CmdGetPos,
		`{"x_min": 0, "x_max": 180, "y_min": 0, "y_max": 90}`: CmdGetLimits,
		`{"clients": 3}`: CmdClientCount,
		`{"client_count": 3}`: CmdClientCount,
		`2`: CmdClientCount,
	} {
		got, ok := replyKind(parseMessage(text))
		assert.Truef(t, ok, "%s", text)
		assert.Equalf(t, want, got, "%s", text)
	}

	for _, text := range []string{
		"hello",
		"",
		`{"event": "status", "x": 1, "y": 2}`,
		`{"x": 1}`,
		`{"x": "1", "y": "2"}`,
		`[1, 2]`,
	} {
		_, ok := replyKind(parseMessage(text))
		assert.Falsef(t, ok, "%q", text)
	}
}

func TestParseReplies(t *testing.T) {
	pos, err := parsePosition(parseMessage(`{"x": 12, "y": 34}`))
	require.NoError(t, err)
	assert.Equal(t, camera.Position{X: 12, Y: 34}, pos)

	limits, err := parseLimits(parseMessage(`{"x_min": 1, "x_max": 2, "y_min": 3, "y_max": 4}`))
	require.NoError(t, err)
	assert.Equal(t, camera.Bounds{XMin: 1, XMax: 2, YMin: 3, YMax: 4}, limits)

	n, err := parseClientCount(parseMessage(`5`))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = parseLimits(parseMessage(`{"x_min": 1}`))
	assert.True(t, errors.Is(err, ErrUnexpectedReply))
	_, err = parsePosition(parseMessage(`oops`))
	assert.True(t, errors.Is(err, ErrUnexpectedReply))
}

func TestPendingQueriesOrder(t *testing.T) {
	p := newPendingQueries()
	first := p.add(CmdGetPos)
	second := p.add(CmdGetPos)
	limits := p.add(CmdGetLimits)

	assert.False(t, p.resolve(CmdClientCount, parseMessage(`1`)))
	assert.True(t, p.resolve(CmdGetPos, parseMessage(`{"x": 1, "y": 1}`)))
	assert.True(t, p.resolve(CmdGetPos, parseMessage(`{"x": 2, "y": 2}`)))

	assert.Equal(t, `{"x": 1, "y": 1}`, (<-first.reply).msg.Raw)
	assert.Equal(t, `{"x": 2, "y": 2}`, (<-second.reply).msg.Raw)
	assert.False(t, p.resolve(CmdGetPos, parseMessage(`{"x": 3, "y": 3}`)), "stale reply has no taker")

	p.remove(limits)
	assert.Zero(t, p.size())
	assert.False(t, p.resolve(CmdGetLimits, parseMessage(`{"x_min": 0, "x_max": 1, "y_min": 0, "y_max": 1}`)))

	q := p.add(CmdClientCount)
	p.failAll(ErrSessionClosed)
	assert.ErrorIs(t, (<-q.reply).err, ErrSessionClosed)
}

func TestPositionModel(t *testing.T) {
	m := newPositionModel(camera.DefaultBounds)
	assert.Equal(t, camera.Position{X: 90, Y: 45}, m.get())

	for i := 0; i < 100; i++ {
		m.step(0, 1)
	}
	assert.Equal(t, 90, m.get().Y)

	assert.Equal(t, camera.Position{X: 180, Y: 0}, m.set(camera.Position{X: 999, Y: -1}))
	assert.Equal(t, camera.Position{X: 90, Y: 45}, m.center())
}
