package signaling

import (
	"context"
	"testing"
	"time"

	"github.com/BioHazard786/roomcall/internal/coordinatortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openChannel(t *testing.T) (*Channel, *coordinatortest.Conn) {
	t.Helper()

	srv := coordinatortest.New(t)
	ch := NewChannel(srv.WebSocketURL())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ch.Connect(ctx))
	t.Cleanup(func() { ch.Close() })

	return ch, srv.Accept()
}

func nextInbound(t *testing.T, ch *Channel) Inbound {
	t.Helper()
	select {
	case ev, ok := <-ch.Incoming():
		require.True(t, ok, "incoming closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbound event")
		return nil
	}
}

func TestChannelSendBeforeOpen(t *testing.T) {
	ch := NewChannel("ws://127.0.0.1:1/ws")
	assert.Equal(t, StateIdle, ch.State())
	assert.ErrorIs(t, ch.Send(BroadcastChat{Message: "early"}), ErrChannelNotOpen)
}

func TestChannelRoundTrip(t *testing.T) {
	ch, conn := openChannel(t)
	assert.Equal(t, StateOpen, ch.State())

	require.NoError(t, ch.Send(JoinRoom{Username: "Alice", RoomID: "r1", AudioOn: true, VideoOn: true}))
	f := conn.Next()
	assert.Equal(t, "joinRoom", f["eventId"])
	assert.Equal(t, "Alice", f["username"])
	assert.Equal(t, "r1", f["roomId"])

	conn.Send(ActionNewUserJoined, map[string]any{"sessionId": "s2", "username": "Bob"})
	conn.Send(ActionExitRoom, map[string]any{"sessionId": "s2"})

	first := nextInbound(t, ch)
	require.IsType(t, &UserJoined{}, first)
	assert.Equal(t, "Bob", first.(*UserJoined).Username)

	second := nextInbound(t, ch)
	require.IsType(t, &UserLeft{}, second)
}

func TestChannelSkipsMalformedFrames(t *testing.T) {
	ch, conn := openChannel(t)

	conn.SendRaw([]byte(`{broken`))
	conn.Send(ActionVideoAnswer, map[string]any{"sessionId": "s2"})
	conn.Send(ActionLeaderChanged, map[string]any{"sessionId": "s2", "username": "Bob"})

	ev := nextInbound(t, ch)
	assert.Equal(t, ActionLeaderChanged, ev.Action())
}

func TestChannelRemoteClose(t *testing.T) {
	ch, conn := openChannel(t)

	conn.Close()

	select {
	case <-ch.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not notice remote close")
	}
	assert.Equal(t, StateClosed, ch.State())
	assert.ErrorIs(t, ch.Err(), ErrChannelClosed)
	assert.ErrorIs(t, ch.Send(BroadcastChat{Message: "late"}), ErrChannelNotOpen)

	_, ok := <-ch.Incoming()
	assert.False(t, ok)
}

func TestChannelLocalClose(t *testing.T) {
	ch, conn := openChannel(t)

	require.NoError(t, ch.Send(ExitRoom{SessionID: "s1"}))
	require.NoError(t, ch.Close())
	assert.Equal(t, "s1", conn.NextEvent(ActionExitRoom)["sessionId"])
	require.NoError(t, ch.Close())

	<-ch.Done()
	assert.NoError(t, ch.Err())
	assert.Error(t, ch.Connect(context.Background()))
}
