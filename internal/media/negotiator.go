package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/BioHazard786/roomcall/internal/callerr"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

var (
	ErrDisposed           = errors.New("negotiator disposed")
	ErrNoLocalDescription = errors.New("no local description yet")
	ErrAlreadyStarted     = errors.New("negotiation already started")
	ErrRemoteApplied      = errors.New("remote description already applied")
	ErrFailed             = errors.New("negotiation failed")
)

// Role is the media direction of one negotiation.
type Role int

const (
	RoleSendOnly Role = iota
	RoleReceiveOnly
)

func (r Role) String() string {
	if r == RoleSendOnly {
		return "send-only"
	}
	return "receive-only"
}

// State is the negotiation lifecycle.
type State int

const (
	StateCreated State = iota
	StateLocalDescriptionReady
	StateRemoteDescriptionApplied
	StateConnected
	StateFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLocalDescriptionReady:
		return "local-description-ready"
	case StateRemoteDescriptionApplied:
		return "remote-description-applied"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "disposed"
	}
}

// Loop runs closures one at a time on the goroutine that owns call state.
type Loop interface {
	Post(fn func())
}

// Signaler carries negotiation messages to the coordinator.
type Signaler interface {
	SendOffer(sessionID, sdp string) error
	SendCandidate(sessionID string, candidate webrtc.ICECandidateInit) error
}

// Negotiator owns the peer connection for one participant session. Every
// method must be called from the loop; engine callbacks and offer generation
// report back through Loop.Post.
type Negotiator struct {
	sessionID string
	role      Role
	engine    Engine
	loop      Loop
	signaler  Signaler
	log       zerolog.Logger

	state     State
	started   bool
	pc        PeerConnection
	target    RenderTarget
	local     *webrtc.SessionDescription
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	cancel    context.CancelFunc
}

// NewNegotiator creates an idle negotiator for sessionID.
func NewNegotiator(sessionID string, role Role, engine Engine, loop Loop, signaler Signaler, log zerolog.Logger) *Negotiator {
	return &Negotiator{
		sessionID: sessionID,
		role:      role,
		engine:    engine,
		loop:      loop,
		signaler:  signaler,
		log:       log.With().Str("session", sessionID).Str("role", role.String()).Logger(),
		cancel:    func() {},
	}
}

func (n *Negotiator) SessionID() string { return n.sessionID }

func (n *Negotiator) Role() Role { return n.role }

func (n *Negotiator) State() State { return n.state }

// Pending returns how many remote candidates are buffered.
func (n *Negotiator) Pending() int { return len(n.pending) }

// BeginSend publishes tracks and sends an offer for the local session.
func (n *Negotiator) BeginSend(ctx context.Context, tracks []webrtc.TrackLocal) error {
	if err := n.begin(RoleSendOnly); err != nil {
		return err
	}

	ctx, n.cancel = context.WithCancel(ctx)
	n.start(ctx, tracks)
	return nil
}

// BeginReceive waits for target to attach, then offers to receive the
// remote session's media into it.
func (n *Negotiator) BeginReceive(ctx context.Context, target RenderTarget) error {
	if err := n.begin(RoleReceiveOnly); err != nil {
		return err
	}

	ctx, n.cancel = context.WithCancel(ctx)
	n.target = target

	go func() {
		select {
		case <-target.Attached():
			n.loop.Post(func() { n.start(ctx, nil) })
		case <-ctx.Done():
			n.loop.Post(func() {
				if n.state != StateDisposed {
					n.fail("await render target", ctx.Err())
				}
			})
		}
	}()
	return nil
}

func (n *Negotiator) begin(role Role) error {
	switch {
	case n.state == StateDisposed:
		return ErrDisposed
	case n.started:
		return ErrAlreadyStarted
	case n.role != role:
		return fmt.Errorf("negotiator is %s", n.role)
	}
	n.started = true
	return nil
}

func (n *Negotiator) start(ctx context.Context, tracks []webrtc.TrackLocal) {
	if n.state != StateCreated {
		return
	}

	pc, err := n.engine.NewPeerConnection(n.role, tracks)
	if err != nil {
		n.fail("create peer connection", err)
		return
	}
	n.pc = pc

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		cand := c.ToJSON()
		n.loop.Post(func() { n.sendCandidate(cand) })
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		n.loop.Post(func() { n.connectionStateChanged(s) })
	})
	if n.role == RoleReceiveOnly {
		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			n.loop.Post(func() {
				if n.state != StateDisposed && n.target != nil {
					n.target.Attach(track)
				}
			})
		})
	}

	go func() {
		offer, err := pc.CreateOffer(nil)
		if err == nil {
			err = pc.SetLocalDescription(offer)
		}
		if err == nil {
			err = ctx.Err()
		}
		n.loop.Post(func() { n.offerReady(offer, err) })
	}()
}

func (n *Negotiator) offerReady(offer webrtc.SessionDescription, err error) {
	if n.state != StateCreated {
		return
	}
	if err != nil {
		n.fail("create offer", err)
		return
	}

	n.local = &offer
	n.setState(StateLocalDescriptionReady)

	if err := n.signaler.SendOffer(n.sessionID, offer.SDP); err != nil {
		n.log.Warn().Err(err).Msg("offer not sent")
	}
}

func (n *Negotiator) sendCandidate(c webrtc.ICECandidateInit) {
	if n.state == StateDisposed {
		return
	}
	if err := n.signaler.SendCandidate(n.sessionID, c); err != nil {
		n.log.Debug().Err(err).Msg("local candidate not sent")
	}
}

func (n *Negotiator) connectionStateChanged(s webrtc.PeerConnectionState) {
	if n.state == StateDisposed || n.state == StateFailed {
		return
	}

	switch s {
	case webrtc.PeerConnectionStateConnected:
		n.setState(StateConnected)
	case webrtc.PeerConnectionStateFailed:
		n.log.Error().Msg("media connection failed")
		n.setState(StateFailed)
	default:
		n.log.Debug().Str("connection", s.String()).Msg("connection state")
	}
}

// ApplyRemoteDescription applies the coordinator's answer, then every buffered
// candidate in arrival order.
func (n *Negotiator) ApplyRemoteDescription(sdp string) error {
	switch {
	case n.state == StateDisposed:
		return ErrDisposed
	case n.state == StateFailed:
		return ErrFailed
	case n.local == nil:
		return ErrNoLocalDescription
	case n.remoteSet:
		return ErrRemoteApplied
	}

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := n.pc.SetRemoteDescription(answer); err != nil {
		n.fail("set remote description", err)
		return callerr.NewSessionError("set remote description", n.sessionID, err)
	}
	n.remoteSet = true
	n.setState(StateRemoteDescriptionApplied)

	pending := n.pending
	n.pending = nil
	for _, c := range pending {
		if err := n.pc.AddICECandidate(c); err != nil {
			n.log.Warn().Err(err).Msg("buffered candidate rejected")
		}
	}
	return nil
}

// ApplyCandidate adds a remote candidate, buffering it until the remote
// description is applied.
func (n *Negotiator) ApplyCandidate(c webrtc.ICECandidateInit) error {
	switch {
	case n.state == StateDisposed:
		return ErrDisposed
	case n.state == StateFailed:
		return ErrFailed
	case !n.remoteSet:
		n.pending = append(n.pending, c)
		return nil
	}

	if err := n.pc.AddICECandidate(c); err != nil {
		return callerr.NewSessionError("add candidate", n.sessionID, err)
	}
	return nil
}

// Fail marks the negotiation failed when media could not be set up at all.
func (n *Negotiator) Fail(op string, err error) {
	if n.state == StateDisposed || n.state == StateFailed {
		return
	}
	n.fail(op, err)
}

// Dispose closes the peer connection. Later calls return ErrDisposed.
func (n *Negotiator) Dispose() error {
	if n.state == StateDisposed {
		return ErrDisposed
	}

	n.cancel()
	n.state = StateDisposed
	n.pending = nil
	n.target = nil

	if n.pc == nil {
		return nil
	}
	pc := n.pc
	n.pc = nil
	if err := pc.Close(); err != nil {
		return callerr.NewSessionError("close peer connection", n.sessionID, err)
	}
	return nil
}

func (n *Negotiator) fail(op string, err error) {
	n.log.Error().Err(err).Str("op", op).Msg("negotiation failed")
	n.setState(StateFailed)
	n.pending = nil
	if n.pc != nil {
		n.pc.Close()
		n.pc = nil
	}
}

func (n *Negotiator) setState(s State) {
	if n.state == s {
		return
	}
	n.log.Debug().Str("from", n.state.String()).Str("to", s.String()).Msg("negotiation state")
	n.state = s
}
