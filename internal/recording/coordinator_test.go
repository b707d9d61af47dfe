package recording

import (
	"errors"
	"testing"

	"github.com/BioHazard786/roomcall/internal/signaling"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEvents struct {
	events []signaling.Outbound
	err    error
}

func (s *sentEvents) Send(ev signaling.Outbound) error {
	s.events = append(s.events, ev)
	return s.err
}

func newCoordinator() (*Coordinator, *sentEvents) {
	sent := &sentEvents{}
	return NewCoordinator(sent, zerolog.Nop()), sent
}

func TestLeaderStartsDirectly(t *testing.T) {
	c, sent := newCoordinator()

	require.NoError(t, c.Toggle("s1", "s1"))
	assert.Equal(t, StateRecording, c.State())
	assert.Equal(t, "s1", c.View().OwnerID)
	assert.Equal(t, []signaling.Outbound{signaling.StartRecording{}}, sent.events)
}

func TestNonLeaderRequestsThenGranted(t *testing.T) {
	c, sent := newCoordinator()

	require.NoError(t, c.Toggle("s2", "s1"))
	assert.Equal(t, StateRequested, c.State())
	assert.True(t, c.View().Asked)
	assert.ErrorIs(t, c.Toggle("s2", "s1"), ErrAlreadyRequested)

	c.Granted("s1")
	assert.Equal(t, StateRecording, c.State())
	assert.Equal(t, "s1", c.View().OwnerID)
	assert.Equal(t, []signaling.Outbound{
		signaling.RequestRecordingPermission{},
		signaling.StartRecording{},
	}, sent.events)
}

func TestNonLeaderRequestDenied(t *testing.T) {
	c, sent := newCoordinator()

	require.NoError(t, c.Toggle("s2", "s1"))
	c.Denied()
	assert.Equal(t, StateIdle, c.State())
	assert.Len(t, sent.events, 1)
}

func TestUnexpectedGrantIgnored(t *testing.T) {
	c, sent := newCoordinator()

	c.Granted("s1")
	c.Denied()
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, sent.events)
}

func TestLeaderDeniesRequest(t *testing.T) {
	c, sent := newCoordinator()

	c.Requested(&signaling.RecordingRequested{SessionID: "s2", Username: "Bob"})
	require.NotNil(t, c.View().Pending)
	assert.Equal(t, "Bob", c.View().Pending.Name)
	assert.Equal(t, StateRequested, c.State())
	assert.False(t, c.View().Asked)

	require.NoError(t, c.Deny("s1", "s1"))
	assert.Nil(t, c.View().Pending)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, []signaling.Outbound{signaling.DenyRecordingPermission{TargetSessionID: "s2"}}, sent.events)
}

func TestLeaderGrantWaitsForStart(t *testing.T) {
	c, sent := newCoordinator()

	c.Requested(&signaling.RecordingRequested{SessionID: "s2", Username: "Bob"})
	assert.Equal(t, StateRequested, c.State())

	require.NoError(t, c.Grant("s1", "s1"))
	assert.Nil(t, c.View().Pending)
	assert.Equal(t, StateRequested, c.State())

	c.Granted("s1")
	assert.Equal(t, StateRequested, c.State())

	c.Started("s1")
	assert.Equal(t, StateRecording, c.State())
	assert.Equal(t, []signaling.Outbound{signaling.GrantRecordingPermission{TargetSessionID: "s2"}}, sent.events)
}

func TestRequestDuringRecordingWaitsForStop(t *testing.T) {
	c, _ := newCoordinator()

	c.Started("s1")
	c.Requested(&signaling.RecordingRequested{SessionID: "s2", Username: "Bob"})
	assert.Equal(t, StateRecording, c.State())

	c.Stopped("a.webm")
	assert.Equal(t, StateRequested, c.State())
	assert.Equal(t, "s2", c.View().Pending.SessionID)
}

func TestForgetDepartedRequester(t *testing.T) {
	c, sent := newCoordinator()

	c.Requested(&signaling.RecordingRequested{SessionID: "s2", Username: "Bob"})
	c.Forget("s3")
	assert.NotNil(t, c.View().Pending)

	c.Forget("s2")
	assert.Nil(t, c.View().Pending)
	assert.Equal(t, StateIdle, c.State())
	assert.ErrorIs(t, c.Grant("s1", "s1"), ErrNoPendingRequest)
	assert.Empty(t, sent.events)
}

func TestForgetGrantedRequester(t *testing.T) {
	c, _ := newCoordinator()

	c.Requested(&signaling.RecordingRequested{SessionID: "s2", Username: "Bob"})
	require.NoError(t, c.Grant("s1", "s1"))
	assert.Equal(t, StateRequested, c.State())

	c.Forget("s2")
	assert.Equal(t, StateIdle, c.State())
}

func TestLeaderToggleDropsPendingRequest(t *testing.T) {
	c, sent := newCoordinator()

	c.Requested(&signaling.RecordingRequested{SessionID: "s2", Username: "Bob"})
	require.NoError(t, c.Toggle("s1", "s1"))
	assert.Equal(t, StateRecording, c.State())
	assert.Nil(t, c.View().Pending)
	assert.Equal(t, []signaling.Outbound{signaling.StartRecording{}}, sent.events)
}

func TestLastRequestWins(t *testing.T) {
	c, sent := newCoordinator()

	c.Requested(&signaling.RecordingRequested{SessionID: "s2", Username: "Bob"})
	c.Requested(&signaling.RecordingRequested{SessionID: "s3", Username: "Carol"})

	require.NoError(t, c.Grant("s1", "s1"))
	assert.Equal(t, []signaling.Outbound{signaling.GrantRecordingPermission{TargetSessionID: "s3"}}, sent.events)

	assert.ErrorIs(t, c.Grant("s1", "s1"), ErrNoPendingRequest)
	assert.ErrorIs(t, c.Deny("s1", "s1"), ErrNoPendingRequest)
	assert.Len(t, sent.events, 1)
}

func TestOnlyLeaderAnswers(t *testing.T) {
	c, sent := newCoordinator()
	c.Requested(&signaling.RecordingRequested{SessionID: "s3"})

	assert.ErrorIs(t, c.Grant("s2", "s1"), ErrNotLeader)
	assert.NotNil(t, c.View().Pending)
	assert.Empty(t, sent.events)
}

func TestPauseResumeStop(t *testing.T) {
	c, sent := newCoordinator()

	assert.ErrorIs(t, c.Pause(), ErrNotRecording)
	assert.ErrorIs(t, c.Stop(), ErrNotRecording)

	require.NoError(t, c.Toggle("s1", "s1"))
	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.State())
	assert.ErrorIs(t, c.Pause(), ErrNotRecording)

	require.NoError(t, c.Resume())
	assert.Equal(t, StateRecording, c.State())

	require.NoError(t, c.Toggle("s1", "s1"))
	assert.Equal(t, StateStopped, c.State())

	c.Stopped("room-1.webm")
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, []string{"room-1.webm"}, c.View().Files)

	assert.Equal(t, []signaling.Outbound{
		signaling.StartRecording{},
		signaling.PauseRecording{},
		signaling.ResumeRecording{},
		signaling.StopRecording{},
	}, sent.events)
}

func TestBroadcastsAreIdempotent(t *testing.T) {
	c, sent := newCoordinator()

	c.Started("s1")
	c.Started("s9")
	assert.Equal(t, StateRecording, c.State())
	assert.Equal(t, "s1", c.View().OwnerID)

	c.Paused()
	c.Paused()
	assert.Equal(t, StatePaused, c.State())
	c.Resumed()
	c.Resumed()
	assert.Equal(t, StateRecording, c.State())

	c.Stopped("a.webm")
	c.Saved("a.webm")
	c.Saved("b.webm")
	c.Saved("")
	assert.Equal(t, []string{"a.webm", "b.webm"}, c.View().Files)
	assert.Empty(t, sent.events)
}

func TestSendFailureKeepsLocalState(t *testing.T) {
	c, sent := newCoordinator()
	sent.err = errors.New("closed")

	require.NoError(t, c.Toggle("s1", "s1"))
	assert.Equal(t, StateRecording, c.State())
}

func TestViewIsACopy(t *testing.T) {
	c, _ := newCoordinator()
	c.Saved("a.webm")
	c.Requested(&signaling.RecordingRequested{SessionID: "s2"})

	v := c.View()
	v.Files[0] = "changed"
	v.Pending.SessionID = "changed"

	assert.Equal(t, "a.webm", c.View().Files[0])
	assert.Equal(t, "s2", c.View().Pending.SessionID)
}
