package signaling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/roomcall/internal/dns"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	outgoingBuffer = 64
)

var (
	ErrChannelNotOpen = errors.New("control channel not open")
	ErrChannelClosed  = errors.New("control channel closed")
)

// State is the lifecycle of a control channel.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Channel is the persistent, ordered, full-duplex control connection to the
// call coordinator. It never reconnects on its own.
type Channel struct {
	serverURL string
	resolver  *dns.Resolver
	log       zerolog.Logger

	conn     *websocket.Conn
	state    atomic.Int32
	incoming chan Inbound
	outgoing chan []byte
	done     chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Option configures a Channel.
type Option func(*Channel)

// WithResolver dials through the given resolver. Without it the channel dials the URL host directly.
func WithResolver(r *dns.Resolver) Option {
	return func(c *Channel) { c.resolver = r }
}

// WithLogger sets the channel logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Channel) { c.log = l }
}

// NewChannel creates a control channel for serverURL; call Connect to open it.
func NewChannel(serverURL string, opts ...Option) *Channel {
	c := &Channel{
		serverURL: serverURL,
		log:       zerolog.Nop(),
		incoming:  make(chan Inbound, 32),
		outgoing:  make(chan []byte, outgoingBuffer),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the WebSocket connection and starts the pumps.
func (c *Channel) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return fmt.Errorf("connect: channel is %s", c.State())
	}

	u, err := url.Parse(c.serverURL)
	if err != nil {
		c.state.Store(int32(StateClosed))
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := *websocket.DefaultDialer
	if c.resolver != nil {
		dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ip, err := c.resolver.Lookup(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("dns lookup failed: %w", err)
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
		}
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.state.Store(int32(StateClosed))
		return fmt.Errorf("failed to connect: %w", err)
	}

	select {
	case <-c.done:
		conn.Close()
		return ErrChannelClosed
	default:
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.state.Store(int32(StateOpen))
	c.log.Info().Str("url", c.serverURL).Msg("control channel open")

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump decodes frames in arrival order and hands them to Incoming.
func (c *Channel) readPump() {
	defer func() {
		close(c.incoming)
		c.shutdown(ErrChannelClosed)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.State() != StateClosed && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.setErr(fmt.Errorf("%w: %v", ErrChannelClosed, err))
			}
			return
		}

		ev, err := Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping control frame")
			continue
		}

		select {
		case c.incoming <- ev:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued frames and sends periodic pings.
func (c *Channel) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.shutdown(fmt.Errorf("%w: %v", ErrChannelClosed, err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(fmt.Errorf("%w: %v", ErrChannelClosed, err))
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.flush()
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes frames queued before a local close.
func (c *Channel) flush() {
	for {
		select {
		case frame := <-c.outgoing:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send queues an event for the coordinator. Events sent while the channel is
// not open are dropped and ErrChannelNotOpen is returned; nothing is retried.
func (c *Channel) Send(ev Outbound) error {
	if c.State() != StateOpen {
		c.log.Debug().Str("event", ev.EventID()).Msg("channel not open, dropping event")
		return ErrChannelNotOpen
	}

	frame, err := Encode(ev)
	if err != nil {
		return err
	}

	select {
	case c.outgoing <- frame:
		c.log.Debug().Str("event", ev.EventID()).Msg("sent")
		return nil
	case <-c.done:
		return ErrChannelNotOpen
	}
}

// Incoming returns decoded events in delivery order. It is closed when the channel closes.
func (c *Channel) Incoming() <-chan Inbound {
	return c.incoming
}

// Done is closed once the channel has shut down for any reason.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err reports why the channel closed; nil after a local Close.
func (c *Channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Channel) State() State {
	return State(c.state.Load())
}

// Close closes the connection. It is safe to call more than once.
func (c *Channel) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Channel) shutdown(reason error) {
	c.closeOnce.Do(func() {
		if reason != nil {
			c.setErr(reason)
			c.log.Warn().Err(reason).Msg("control channel closed")
		}
		c.state.Store(int32(StateClosed))
		close(c.done)
	})
}

func (c *Channel) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}
