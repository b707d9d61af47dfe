// Package room runs a call: it owns the participant registry and room state,
// dispatches control events, and turns local intents into control events.
package room

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/roomcall/internal/callerr"
	"github.com/BioHazard786/roomcall/internal/ephemeral"
	"github.com/BioHazard786/roomcall/internal/media"
	"github.com/BioHazard786/roomcall/internal/recording"
	"github.com/BioHazard786/roomcall/internal/signaling"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

var ErrStopped = errors.New("controller stopped")

// Channel is the control connection the controller drives.
type Channel interface {
	Send(ev signaling.Outbound) error
	Incoming() <-chan signaling.Inbound
	Err() error
}

// Options describe the local participant and how to join.
type Options struct {
	Username         string
	RoomID           string
	AudioOn          bool
	VideoOn          bool
	ReactionLifetime time.Duration
}

// Deps are the controller's collaborators. Renderer, Acquirer and Clock
// default to a SinkRenderer, a SilentSource and the system clock.
type Deps struct {
	Channel  Channel
	Engine   media.Engine
	Acquirer media.Acquirer
	Renderer Renderer
	Clock    ephemeral.Clock
}

// Controller serialises every state change of a call onto one goroutine,
// the one running Run. Other goroutines talk to it through Post and the
// action methods, and read it through Snapshot.
type Controller struct {
	opts     Options
	ch       Channel
	engine   media.Engine
	acquirer media.Acquirer
	renderer Renderer
	log      zerolog.Logger

	ctx       context.Context
	registry  *Registry
	room      RoomState
	recording *recording.Coordinator
	ephemeral *ephemeral.Coordinator
	local     *media.LocalMedia
	audioOn   bool
	videoOn   bool
	joinSent  bool
	left      bool

	qmu     sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	exited  chan struct{}

	version  uint64
	snapshot atomic.Pointer[Snapshot]
	updates  chan struct{}
}

func NewController(opts Options, deps Deps, log zerolog.Logger) *Controller {
	if opts.ReactionLifetime <= 0 {
		opts.ReactionLifetime = 3 * time.Second
	}
	if deps.Renderer == nil {
		deps.Renderer = NewSinkRenderer()
	}
	if deps.Acquirer == nil {
		deps.Acquirer = media.SilentSource{AudioOn: opts.AudioOn, VideoOn: opts.VideoOn, Log: log}
	}
	if deps.Clock == nil {
		deps.Clock = ephemeral.SystemClock{}
	}

	c := &Controller{
		opts:     opts,
		ch:       deps.Channel,
		engine:   deps.Engine,
		acquirer: deps.Acquirer,
		renderer: deps.Renderer,
		log:      log,
		ctx:      context.Background(),
		registry: NewRegistry(),
		room:     RoomState{SelfName: opts.Username, RoomID: opts.RoomID},
		audioOn:  opts.AudioOn,
		videoOn:  opts.VideoOn,
		wake:     make(chan struct{}, 1),
		exited:   make(chan struct{}),
		updates:  make(chan struct{}, 1),
	}
	c.recording = recording.NewCoordinator(deps.Channel, log.With().Str("component", "recording").Logger())
	c.ephemeral = ephemeral.NewCoordinator(deps.Clock, opts.ReactionLifetime, c.Post, log)
	c.publish()
	return c
}

// Run processes control events and posted work until the call is left, the
// channel closes or ctx is cancelled. A local Leave returns nil.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.stop()
	c.ctx = ctx

	incoming := c.ch.Incoming()
	c.drain()
	c.publish()

	for !c.left {
		select {
		case <-ctx.Done():
			c.leave()
			c.publish()
			return ctx.Err()

		case ev, ok := <-incoming:
			if !ok {
				c.teardown()
				c.publish()
				if err := c.ch.Err(); err != nil {
					return callerr.NewError("control channel", err)
				}
				return nil
			}
			c.handle(ev)

		case <-c.wake:
			c.drain()
		}
		c.publish()
	}
	return nil
}

// Post queues fn to run on the loop. It never blocks; work posted after the
// loop stopped is dropped.
func (c *Controller) Post(fn func()) {
	c.post(fn)
}

func (c *Controller) post(fn func()) bool {
	c.qmu.Lock()
	if c.stopped {
		c.qmu.Unlock()
		return false
	}
	c.queue = append(c.queue, fn)
	c.qmu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

func (c *Controller) drain() {
	c.qmu.Lock()
	batch := c.queue
	c.queue = nil
	c.qmu.Unlock()

	for _, fn := range batch {
		if c.left {
			return
		}
		fn()
	}
}

func (c *Controller) stop() {
	c.qmu.Lock()
	c.stopped = true
	c.queue = nil
	c.qmu.Unlock()
	close(c.exited)
}

// Sync waits until everything posted before it has run.
func (c *Controller) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !c.post(func() { close(done) }) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-c.exited:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.exited
}

// Snapshot returns the latest published state.
func (c *Controller) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// Updates receives a value whenever a newer snapshot is published. Bursts
// coalesce into one notification.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) publish() {
	c.version++
	snap := &Snapshot{
		Version:   c.version,
		Room:      c.room,
		Chat:      c.ephemeral.Chat(),
		Reactions: c.ephemeral.Reactions(),
		Recording: c.recording.View(),
		Left:      c.left,
	}

	c.registry.Each(func(p *Participant) {
		v := ParticipantView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			AudioOn:     p.AudioOn,
			VideoOn:     p.VideoOn,
			Self:        p.ID == c.room.SelfID,
			Leader:      p.ID == c.room.LeaderID,
		}
		if n := p.Negotiator; n != nil {
			v.HasMedia = true
			v.Role = n.Role()
			v.Media = n.State()
		}
		snap.Participants = append(snap.Participants, v)
	})

	c.snapshot.Store(snap)
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// teardown disposes every negotiator and drops all per-call state.
func (c *Controller) teardown() {
	if c.left {
		return
	}
	c.left = true

	var ids []string
	c.registry.Each(func(p *Participant) { ids = append(ids, p.ID) })
	for _, err := range c.registry.Clear() {
		c.log.Warn().Err(err).Msg("dispose failed")
	}
	for _, id := range ids {
		c.renderer.Release(id)
	}

	if c.local != nil {
		c.local.Close()
		c.local = nil
	}
	c.ephemeral.Close()
}

func (c *Controller) newNegotiator(sessionID string, role media.Role) *media.Negotiator {
	return media.NewNegotiator(sessionID, role, c.engine, c, c, c.log.With().Str("component", "media").Logger())
}

// SendOffer and SendCandidate carry negotiation messages for the negotiators.
func (c *Controller) SendOffer(sessionID, sdp string) error {
	return c.ch.Send(signaling.ReceiveVideoFrom{Sender: sessionID, SDPOffer: sdp})
}

func (c *Controller) SendCandidate(sessionID string, candidate webrtc.ICECandidateInit) error {
	return c.ch.Send(signaling.LocalCandidate{SessionID: sessionID, Candidate: candidate})
}

func (c *Controller) send(ev signaling.Outbound) {
	if err := c.ch.Send(ev); err != nil {
		c.log.Warn().Err(err).Str("event", ev.EventID()).Msg("control event dropped")
	}
}
