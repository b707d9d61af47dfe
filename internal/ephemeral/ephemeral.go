// Package ephemeral keeps the session chat log and the short-lived reactions
// shown over participant tiles.
package ephemeral

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind distinguishes chat messages from reactions.
type Kind string

const (
	KindChat     Kind = "chat"
	KindReaction Kind = "reaction"
)

// Signal is one chat message or reaction. ToID is empty for broadcasts.
type Signal struct {
	ID        uuid.UUID `msgpack:"id"`
	Kind      Kind      `msgpack:"kind"`
	FromID    string    `msgpack:"from_id"`
	FromName  string    `msgpack:"from_name"`
	ToID      string    `msgpack:"to_id,omitempty"`
	ToName    string    `msgpack:"to_name,omitempty"`
	Payload   string    `msgpack:"payload"`
	Private   bool      `msgpack:"private"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// Clock schedules reaction expiry.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Coordinator owns the chat log and the live reactions. It belongs to the
// call loop; expiry timers hand their removal back through post.
type Coordinator struct {
	clock    Clock
	lifetime time.Duration
	post     func(func())
	log      zerolog.Logger

	chat      []Signal
	reactions []Signal
	timers    map[uuid.UUID]Timer
}

// NewCoordinator creates a coordinator whose reactions live for lifetime.
// post must run the given function on the goroutine that owns the coordinator.
func NewCoordinator(clock Clock, lifetime time.Duration, post func(func()), log zerolog.Logger) *Coordinator {
	return &Coordinator{
		clock:    clock,
		lifetime: lifetime,
		post:     post,
		log:      log,
		timers:   make(map[uuid.UUID]Timer),
	}
}

// AppendChat adds a chat message to the log and returns it.
func (c *Coordinator) AppendChat(s Signal) Signal {
	s.Kind = KindChat
	c.stamp(&s)
	c.chat = append(c.chat, s)
	return s
}

// AddReaction shows a reaction until its lifetime passes.
func (c *Coordinator) AddReaction(s Signal) Signal {
	s.Kind = KindReaction
	c.stamp(&s)
	c.reactions = append(c.reactions, s)

	id := s.ID
	c.timers[id] = c.clock.AfterFunc(c.lifetime, func() {
		c.post(func() { c.Expire(id) })
	})
	return s
}

func (c *Coordinator) stamp(s *Signal) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = c.clock.Now()
	}
}

// Expire removes exactly the reaction with the given ID. Unknown IDs are ignored.
func (c *Coordinator) Expire(id uuid.UUID) bool {
	delete(c.timers, id)

	i := slices.IndexFunc(c.reactions, func(s Signal) bool { return s.ID == id })
	if i < 0 {
		return false
	}
	c.reactions = slices.Delete(c.reactions, i, i+1)
	c.log.Debug().Str("id", id.String()).Msg("reaction expired")
	return true
}

// Chat returns a copy of the chat log in receipt order.
func (c *Coordinator) Chat() []Signal {
	return slices.Clone(c.chat)
}

// Reactions returns a copy of the live reactions, oldest first.
func (c *Coordinator) Reactions() []Signal {
	return slices.Clone(c.reactions)
}

// Close stops pending expiry timers and drops live reactions. The chat log is kept.
func (c *Coordinator) Close() {
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.reactions = nil
}
