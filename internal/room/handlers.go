package room

import (
	"errors"

	"github.com/BioHazard786/roomcall/internal/ephemeral"
	"github.com/BioHazard786/roomcall/internal/media"
	"github.com/BioHazard786/roomcall/internal/signaling"
)

func (c *Controller) handle(ev signaling.Inbound) {
	switch ev := ev.(type) {
	case *signaling.RoomCreated:
		c.joined(&ev.JoinAck)
	case *signaling.ExistingUsers:
		c.joined(&ev.JoinAck)
	case *signaling.UserJoined:
		c.addRemote(ev.SessionID, ev.Username, bool(ev.AudioOn), bool(ev.VideoOn))
	case *signaling.RemoteCandidate:
		c.remoteCandidate(ev)
	case *signaling.VideoAnswer:
		c.videoAnswer(ev)
	case *signaling.UserLeft:
		c.userLeft(ev.SessionID)
	case *signaling.LeaderChanged:
		c.room.LeaderID = ev.SessionID
		c.room.LeaderName = ev.Username
	case *signaling.AudioStateChanged:
		c.flagChanged("audio", ev.SessionID, c.registry.SetAudio(ev.SessionID, bool(ev.AudioOn)))
	case *signaling.VideoStateChanged:
		c.flagChanged("video", ev.SessionID, c.registry.SetVideo(ev.SessionID, bool(ev.VideoOn)))
	case *signaling.NameChanged:
		c.nameChanged(ev)
	case *signaling.ChatReceived:
		c.chatReceived(ev)
	case *signaling.EmojiReceived:
		c.reactionReceived(ev)

	case *signaling.RecordingRequested:
		c.recordingRequested(ev)
	case *signaling.RecordingGranted:
		if c.forSelf(ev.TargetSessionID) {
			c.recording.Granted(c.room.LeaderID)
		}
	case *signaling.RecordingDenied:
		if c.forSelf(ev.TargetSessionID) {
			c.recording.Denied()
		}
	case *signaling.RecordingStarted:
		c.recording.Started(c.room.LeaderID)
	case *signaling.RecordingPaused:
		c.recording.Paused()
	case *signaling.RecordingResumed:
		c.recording.Resumed()
	case *signaling.RecordingStopped:
		c.recording.Stopped(ev.FileName)
	case *signaling.RecordingSaved:
		c.recording.Saved(ev.FileName)

	default:
		c.log.Warn().Str("action", ev.Action()).Msg("unhandled control event")
	}
}

// joined handles roomCreated and sendExistingUsers.
func (c *Controller) joined(ack *signaling.JoinAck) {
	if c.room.Joined() {
		c.log.Warn().Str("session", ack.SessionID).Msg("duplicate join acknowledgment ignored")
		return
	}

	name := ack.Username
	if name == "" {
		name = c.opts.Username
	}
	roomID := ack.RoomID
	if roomID == "" {
		roomID = c.room.RoomID
	}
	c.room = RoomState{
		SelfID:     ack.SessionID,
		SelfName:   name,
		RoomID:     roomID,
		LeaderID:   ack.RoomLeaderID,
		LeaderName: ack.RoomLeaderName,
	}
	c.log.Info().Str("session", ack.SessionID).Str("room", roomID).Msg("joined room")

	if _, err := c.registry.Add(Participant{
		ID:          ack.SessionID,
		DisplayName: name,
		AudioOn:     c.audioOn,
		VideoOn:     c.videoOn,
	}); err != nil {
		c.log.Warn().Err(err).Str("session", ack.SessionID).Msg("local participant not added")
	} else {
		n := c.newNegotiator(ack.SessionID, media.RoleSendOnly)
		if err := c.registry.AttachNegotiator(ack.SessionID, n); err != nil {
			c.log.Warn().Err(err).Msg("local negotiator not attached")
		} else {
			c.acquireLocalMedia(n)
		}
	}

	for _, p := range ack.Participants {
		if p.SessionID == "" || p.SessionID == ack.SessionID {
			continue
		}
		c.addRemote(p.SessionID, p.Username, bool(p.AudioOn), bool(p.VideoOn))
	}
}

func (c *Controller) acquireLocalMedia(n *media.Negotiator) {
	ctx := c.ctx
	go func() {
		local, err := c.acquirer.Acquire(ctx)
		posted := c.post(func() { c.localMediaReady(n, local, err) })
		if !posted && local != nil {
			local.Close()
		}
	}()
}

func (c *Controller) localMediaReady(n *media.Negotiator, local *media.LocalMedia, err error) {
	if err != nil {
		n.Fail("acquire local media", err)
		return
	}
	if c.left || n.State() == media.StateDisposed {
		local.Close()
		return
	}

	c.local = local
	local.SetAudioEnabled(c.audioOn)
	local.SetVideoEnabled(c.videoOn)

	if err := n.BeginSend(c.ctx, local.Tracks()); err != nil {
		c.log.Error().Err(err).Msg("send negotiation not started")
	}
}

// addRemote registers a remote participant and starts receiving their media.
func (c *Controller) addRemote(id, name string, audioOn, videoOn bool) {
	if id == c.room.SelfID {
		c.log.Debug().Str("session", id).Msg("own join notification ignored")
		return
	}
	if _, err := c.registry.Add(Participant{
		ID:          id,
		DisplayName: name,
		AudioOn:     audioOn,
		VideoOn:     videoOn,
	}); err != nil {
		c.log.Warn().Err(err).Str("session", id).Msg("participant not added")
		return
	}

	n := c.newNegotiator(id, media.RoleReceiveOnly)
	if err := c.registry.AttachNegotiator(id, n); err != nil {
		c.log.Warn().Err(err).Str("session", id).Msg("negotiator not attached")
		return
	}
	if err := n.BeginReceive(c.ctx, c.renderer.Target(id)); err != nil {
		c.log.Error().Err(err).Str("session", id).Msg("receive negotiation not started")
	}
}

func (c *Controller) negotiator(id string) *media.Negotiator {
	p, ok := c.registry.Get(id)
	if !ok {
		return nil
	}
	return p.Negotiator
}

func (c *Controller) remoteCandidate(ev *signaling.RemoteCandidate) {
	n := c.negotiator(ev.SessionID)
	if n == nil {
		c.log.Warn().Str("session", ev.SessionID).Msg("candidate for unknown participant ignored")
		return
	}
	if err := n.ApplyCandidate(ev.Candidate); err != nil {
		c.log.Warn().Err(err).Str("session", ev.SessionID).Msg("remote candidate not applied")
	}
}

func (c *Controller) videoAnswer(ev *signaling.VideoAnswer) {
	n := c.negotiator(ev.SessionID)
	if n == nil {
		c.log.Error().Str("session", ev.SessionID).Msg("answer for unknown participant ignored")
		return
	}
	if err := n.ApplyRemoteDescription(ev.SDPAnswer); err != nil {
		c.log.Error().Err(err).Str("session", ev.SessionID).Msg("answer not applied")
	}
}

func (c *Controller) userLeft(id string) {
	if id == c.room.SelfID {
		c.log.Warn().Msg("exit notification for own session ignored")
		return
	}

	err := c.registry.Remove(id)
	if errors.Is(err, ErrUnknownParticipant) {
		c.log.Debug().Str("session", id).Msg("exit for unknown participant ignored")
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Str("session", id).Msg("negotiator dispose failed")
	}
	c.renderer.Release(id)
	c.recording.Forget(id)
	c.log.Info().Str("session", id).Msg("participant left")
}

func (c *Controller) flagChanged(kind, id string, err error) {
	if err != nil {
		c.log.Debug().Err(err).Str("session", id).Str("flag", kind).Msg("state change ignored")
	}
}

func (c *Controller) nameChanged(ev *signaling.NameChanged) {
	if err := c.registry.SetName(ev.SessionID, ev.NewUserName); err != nil {
		c.log.Debug().Err(err).Str("session", ev.SessionID).Msg("rename ignored")
		return
	}
	if ev.SessionID == c.room.SelfID {
		c.room.SelfName = ev.NewUserName
	}
	if ev.SessionID == c.room.LeaderID {
		c.room.LeaderName = ev.NewUserName
	}
}

func (c *Controller) chatReceived(ev *signaling.ChatReceived) {
	if c.room.Joined() && ev.SenderSessionID == c.room.SelfID {
		c.log.Debug().Msg("own chat echo dropped")
		return
	}
	if !c.known(ev.Action(), ev.SenderSessionID, ev.ReceiverSessionID) {
		return
	}
	c.ephemeral.AppendChat(ephemeral.Signal{
		FromID:   ev.SenderSessionID,
		FromName: ev.SenderName,
		ToID:     ev.ReceiverSessionID,
		ToName:   ev.ReceiverName,
		Payload:  ev.Message,
		Private:  ev.Private,
	})
}

func (c *Controller) reactionReceived(ev *signaling.EmojiReceived) {
	if !c.known(ev.Action(), ev.SenderSessionID, ev.ReceiverSessionID) {
		return
	}
	toName := ev.ReceiverName
	if toName == "" {
		if p, ok := c.registry.Get(ev.ReceiverSessionID); ok {
			toName = p.DisplayName
		}
	}
	c.ephemeral.AddReaction(ephemeral.Signal{
		FromID:   ev.SenderSessionID,
		FromName: ev.SenderName,
		ToID:     ev.ReceiverSessionID,
		ToName:   toName,
		Payload:  ev.Emoji,
	})
}

func (c *Controller) recordingRequested(ev *signaling.RecordingRequested) {
	if ev.SessionID == c.room.SelfID {
		c.log.Debug().Msg("own recording request echo dropped")
		return
	}
	if !c.known(ev.Action(), ev.SessionID) {
		return
	}
	c.recording.Requested(ev)
}

// known reports whether every non-empty id names a current participant.
func (c *Controller) known(action string, ids ...string) bool {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := c.registry.Get(id); !ok {
			c.log.Debug().Str("session", id).Str("action", action).Msg("event for unknown participant ignored")
			return false
		}
	}
	return true
}

// forSelf reports whether a targeted event addresses this session.
func (c *Controller) forSelf(target string) bool {
	if target == "" || target == c.room.SelfID {
		return true
	}
	c.log.Debug().Str("target", target).Msg("event for another session ignored")
	return false
}
