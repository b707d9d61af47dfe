package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BioHazard786/roomcall/internal/callerr"
	"github.com/BioHazard786/roomcall/internal/config"
	"github.com/BioHazard786/roomcall/internal/dns"
	"github.com/BioHazard786/roomcall/internal/ephemeral"
	"github.com/BioHazard786/roomcall/internal/logging"
	"github.com/BioHazard786/roomcall/internal/media"
	"github.com/BioHazard786/roomcall/internal/room"
	"github.com/BioHazard786/roomcall/internal/signaling"
	"github.com/BioHazard786/roomcall/internal/ui"
)

const (
	connectTimeout = 15 * time.Second
	leaveTimeout   = 5 * time.Second
)

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, callerr.NewError("load config", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// CallSession wires a control channel, a media engine and a controller
// into one running call.
type CallSession struct {
	Config     *config.Config
	Channel    *signaling.Channel
	Controller *room.Controller
	Renderer   *room.SinkRenderer

	runErr chan error
}

// Connect opens the control channel to the coordinator.
func Connect(ctx context.Context, cfg *config.Config) (*signaling.Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	ch := signaling.NewChannel(cfg.WebSocketURL,
		signaling.WithResolver(dns.NewResolver()),
		signaling.WithLogger(logging.For("signaling")),
	)
	if err := ch.Connect(ctx); err != nil {
		return nil, callerr.NewError("connect to coordinator", err)
	}
	return ch, nil
}

// NewCallSession builds the controller for roomID; an empty roomID creates a room.
func NewCallSession(cfg *config.Config, ch *signaling.Channel, roomID string) (*CallSession, error) {
	engine, err := media.NewEngine(cfg)
	if err != nil {
		return nil, callerr.NewError("create media engine", err)
	}

	renderer := room.NewSinkRenderer()
	ctrl := room.NewController(room.Options{
		Username:         cfg.Username,
		RoomID:           roomID,
		AudioOn:          cfg.AudioOn,
		VideoOn:          cfg.VideoOn,
		ReactionLifetime: cfg.ReactionLifetime,
	}, room.Deps{
		Channel:  ch,
		Engine:   engine,
		Acquirer: media.SilentSource{AudioOn: cfg.AudioOn, VideoOn: cfg.VideoOn, Log: logging.For("media")},
		Renderer: renderer,
	}, logging.For("room"))

	return &CallSession{
		Config:     cfg,
		Channel:    ch,
		Controller: ctrl,
		Renderer:   renderer,
		runErr:     make(chan error, 1),
	}, nil
}

// Run joins the room and shows the call view until the call ends.
func (s *CallSession) Run(ctx context.Context) (ui.CallResult, error) {
	go func() { s.runErr <- s.Controller.Run(ctx) }()
	s.Controller.Join()

	res, uiErr := ui.RunCall(s.Controller, s.Renderer.Stats)

	s.Controller.Leave()
	var runErr error
	select {
	case runErr = <-s.runErr:
	case <-time.After(leaveTimeout):
		runErr = callerr.NewError("leave room", errors.New("controller did not stop"))
	}
	s.Channel.Close()

	res.Final = s.Controller.Snapshot()
	if uiErr != nil {
		return res, callerr.NewError("call view", uiErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return res, runErr
	}
	return res, nil
}

// SaveChatLog writes the chat of a finished call to path.
func SaveChatLog(path string, snap *room.Snapshot) error {
	return ephemeral.WriteChatLog(path, ephemeral.ChatLog{
		RoomID:   snap.Room.RoomID,
		SelfID:   snap.Room.SelfID,
		SavedAt:  time.Now(),
		Messages: snap.Chat,
	})
}
