package room

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kmacleod/hockey-draft-backend/internal/types"
)

// fakeConn records delivered messages; slow=true simulates a full outbox.
type fakeConn struct {
	id   string
	got  []types.ServerMessage
	slow bool
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(msg types.ServerMessage) bool {
	if f.slow {
		return false
	}
	f.got = append(f.got, msg)
	return true
}

func TestRegistry_BroadcastReachesRoomOnly(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	other := &fakeConn{id: "c"}

	r.Join("lg1", a)
	r.Join("lg1", b)
	r.Join("lg2", other)

	r.Broadcast("lg1", types.ServerMessage{Type: "x"})

	require.Len(t, a.got, 1)
	require.Len(t, b.got, 1)
	require.Empty(t, other.got)
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	a := &fakeConn{id: "a"}

	r.Join("lg1", a)
	r.Join("lg1", a)
	require.Equal(t, 1, r.Members("lg1"))

	r.Broadcast("lg1", types.ServerMessage{Type: "x"})
	require.Len(t, a.got, 1)
}

func TestRegistry_LeaveRemovesFromAllRooms(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	a := &fakeConn{id: "a"}

	r.Join("lg1", a)
	r.Join("lg2", a)
	r.Leave("a")

	require.Equal(t, 0, r.Members("lg1"))
	require.Equal(t, 0, r.Members("lg2"))

	r.Broadcast("lg1", types.ServerMessage{Type: "x"})
	require.Empty(t, a.got)
}

func TestRegistry_SlowMemberDroppedOthersStillDelivered(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	slow := &fakeConn{id: "slow", slow: true}
	ok := &fakeConn{id: "ok"}

	r.Join("lg1", slow)
	r.Join("lg1", ok)

	r.Broadcast("lg1", types.ServerMessage{Type: "x"})

	require.Len(t, ok.got, 1)
	require.Equal(t, 1, r.Members("lg1"))

	// The dropped member no longer receives anything.
	slow.slow = false
	r.Broadcast("lg1", types.ServerMessage{Type: "y"})
	require.Empty(t, slow.got)
	require.Len(t, ok.got, 2)
}

func TestRegistry_BroadcastToEmptyRoomIsNoop(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.Broadcast("nobody-home", types.ServerMessage{Type: "x"})
	require.Equal(t, 0, r.Members("nobody-home"))
}
