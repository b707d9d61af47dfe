// Package recording arbitrates who may start a call recording and tracks the
// recording lifecycle and the artifacts it produced.
package recording

import (
	"errors"
	"slices"

	"github.com/BioHazard786/roomcall/internal/signaling"
	"github.com/rs/zerolog"
)

var (
	ErrNoPendingRequest = errors.New("no pending recording request")
	ErrNotLeader        = errors.New("only the room leader can answer recording requests")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrAlreadyRequested = errors.New("recording permission already requested")
)

// State is the recording lifecycle as seen by this client.
type State int

const (
	StateIdle State = iota
	StateRequested
	StateRecording
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// Requester is a participant waiting for the leader's answer.
type Requester struct {
	SessionID string
	Name      string
}

// Sender delivers control events to the coordinator.
type Sender interface {
	Send(ev signaling.Outbound) error
}

// View is an immutable copy of the recording state. Asked is set while this
// client waits for the leader to answer its own request.
type View struct {
	State   State
	OwnerID string
	Pending *Requester
	Asked   bool
	Files   []string
}

// Coordinator holds one client's view of the room recording. It is owned by
// the call loop and is not safe for concurrent use.
//
// Requested is reached from both sides: a participant that asked the leader,
// and a leader holding a request to answer. A granted request stays Requested
// until the coordinator broadcasts startRecording.
type Coordinator struct {
	send Sender
	log  zerolog.Logger

	state   State
	owner   string
	pending *Requester
	asked   bool
	granted string
	files   []string
}

func NewCoordinator(send Sender, log zerolog.Logger) *Coordinator {
	return &Coordinator{send: send, log: log}
}

func (c *Coordinator) State() State { return c.state }

// View copies the current state.
func (c *Coordinator) View() View {
	v := View{
		State:   c.state,
		OwnerID: c.owner,
		Asked:   c.asked,
		Files:   slices.Clone(c.files),
	}
	if c.pending != nil {
		p := *c.pending
		v.Pending = &p
	}
	return v
}

// Toggle is the local record button. The leader starts recording directly;
// anyone else asks the leader. While recording it stops.
func (c *Coordinator) Toggle(selfID, leaderID string) error {
	switch {
	case c.state == StateRecording || c.state == StatePaused:
		return c.Stop()

	case c.asked:
		return ErrAlreadyRequested

	case selfID != "" && selfID == leaderID:
		if c.pending != nil {
			c.log.Info().Str("session", c.pending.SessionID).Msg("pending recording request dropped, leader started recording")
			c.pending = nil
		}
		c.start(leaderID)
		return nil

	default:
		c.state = StateRequested
		c.asked = true
		c.emit(signaling.RequestRecordingPermission{})
		return nil
	}
}

func (c *Coordinator) start(owner string) {
	c.state = StateRecording
	c.owner = owner
	c.asked = false
	c.granted = ""
	c.emit(signaling.StartRecording{})
}

// Grant lets the most recent requester record. Only the leader may answer.
// The state moves on when the coordinator announces the recording started.
func (c *Coordinator) Grant(selfID, leaderID string) error {
	target, err := c.takePending(selfID, leaderID)
	if err != nil {
		return err
	}
	c.granted = target.SessionID
	c.emit(signaling.GrantRecordingPermission{TargetSessionID: target.SessionID})
	return nil
}

// Deny refuses the most recent requester.
func (c *Coordinator) Deny(selfID, leaderID string) error {
	target, err := c.takePending(selfID, leaderID)
	if err != nil {
		return err
	}
	c.emit(signaling.DenyRecordingPermission{TargetSessionID: target.SessionID})
	c.settle()
	return nil
}

func (c *Coordinator) takePending(selfID, leaderID string) (Requester, error) {
	if selfID == "" || selfID != leaderID {
		return Requester{}, ErrNotLeader
	}
	if c.pending == nil {
		c.log.Info().Msg("recording answer without a pending request ignored")
		return Requester{}, ErrNoPendingRequest
	}
	target := *c.pending
	c.pending = nil
	return target, nil
}

// settle returns to Idle once nothing keeps the request open.
func (c *Coordinator) settle() {
	if c.state == StateRequested && !c.asked && c.pending == nil && c.granted == "" {
		c.state = StateIdle
	}
}

// Forget drops a pending or granted request held by a participant who left.
func (c *Coordinator) Forget(sessionID string) {
	if c.pending != nil && c.pending.SessionID == sessionID {
		c.log.Info().Str("session", sessionID).Msg("pending recording request dropped, requester left")
		c.pending = nil
	}
	if c.granted == sessionID {
		c.granted = ""
	}
	c.settle()
}

func (c *Coordinator) Pause() error {
	if c.state != StateRecording {
		return ErrNotRecording
	}
	c.state = StatePaused
	c.emit(signaling.PauseRecording{})
	return nil
}

func (c *Coordinator) Resume() error {
	if c.state != StatePaused {
		return ErrNotRecording
	}
	c.state = StateRecording
	c.emit(signaling.ResumeRecording{})
	return nil
}

// Stop ends the recording. The artifact name arrives later with the
// coordinator's stopRecording event.
func (c *Coordinator) Stop() error {
	if c.state != StateRecording && c.state != StatePaused {
		return ErrNotRecording
	}
	c.state = StateStopped
	c.emit(signaling.StopRecording{})
	return nil
}

// Requested records an inbound permission request. A newer request replaces
// any pending one.
func (c *Coordinator) Requested(ev *signaling.RecordingRequested) {
	if c.pending != nil && c.pending.SessionID != ev.SessionID {
		c.log.Info().Str("replaced", c.pending.SessionID).Str("by", ev.SessionID).Msg("pending recording request replaced")
	}
	c.pending = &Requester{SessionID: ev.SessionID, Name: ev.Username}
	if c.state == StateIdle {
		c.state = StateRequested
	}
}

// Granted handles the leader's approval of our own request.
func (c *Coordinator) Granted(leaderID string) {
	if !c.asked {
		c.log.Debug().Str("state", c.state.String()).Msg("unexpected recording grant ignored")
		return
	}
	c.start(leaderID)
}

// Denied handles the leader's refusal of our own request.
func (c *Coordinator) Denied() {
	if !c.asked {
		c.log.Debug().Str("state", c.state.String()).Msg("unexpected recording denial ignored")
		return
	}
	c.asked = false
	c.settle()
}

// Started, Paused and Resumed apply coordinator broadcasts. Repeats are no-ops.
func (c *Coordinator) Started(leaderID string) {
	if c.state == StateRecording || c.state == StatePaused {
		return
	}
	c.state = StateRecording
	c.owner = leaderID
	c.asked = false
	c.granted = ""
}

func (c *Coordinator) Paused() {
	if c.state == StateRecording {
		c.state = StatePaused
	}
}

func (c *Coordinator) Resumed() {
	if c.state == StatePaused {
		c.state = StateRecording
	}
}

// Stopped closes the recording and remembers the produced artifact.
func (c *Coordinator) Stopped(fileName string) {
	c.state = StateIdle
	c.owner = ""
	if c.pending != nil {
		c.state = StateRequested
	}
	c.addFile(fileName)
}

// Saved remembers an artifact announced after the fact.
func (c *Coordinator) Saved(fileName string) {
	c.addFile(fileName)
}

func (c *Coordinator) addFile(name string) {
	if name == "" || slices.Contains(c.files, name) {
		return
	}
	c.files = append(c.files, name)
}

func (c *Coordinator) emit(ev signaling.Outbound) {
	if err := c.send.Send(ev); err != nil {
		c.log.Warn().Err(err).Str("event", ev.EventID()).Msg("recording event not sent")
	}
}
