package room

import (
	"strings"

	"github.com/BioHazard786/roomcall/internal/ephemeral"
	"github.com/BioHazard786/roomcall/internal/signaling"
)

// The methods below are safe to call from any goroutine. Each queues its
// work on the loop and applies local state optimistically before the
// coordinator confirms it.

// Join creates a room when no room ID was given and joins it otherwise.
func (c *Controller) Join() { c.Post(c.join) }

func (c *Controller) ToggleAudio() { c.Post(c.toggleAudio) }

func (c *Controller) ToggleVideo() { c.Post(c.toggleVideo) }

// Leave tells the coordinator, disposes every negotiator and stops the loop.
func (c *Controller) Leave() { c.Post(c.leave) }

func (c *Controller) Rename(name string) { c.Post(func() { c.rename(name) }) }

// SendChat sends text to one participant, or to everyone when to is empty.
func (c *Controller) SendChat(to, text string) { c.Post(func() { c.sendChat(to, text) }) }

// SendReaction shows emoji over the tile of participant to.
func (c *Controller) SendReaction(to, emoji string) { c.Post(func() { c.sendReaction(to, emoji) }) }

func (c *Controller) ToggleRecording() { c.Post(c.toggleRecording) }

func (c *Controller) GrantRecording() { c.Post(c.grantRecording) }

func (c *Controller) DenyRecording() { c.Post(c.denyRecording) }

func (c *Controller) PauseRecording() { c.Post(c.pauseRecording) }

func (c *Controller) ResumeRecording() { c.Post(c.resumeRecording) }

func (c *Controller) StopRecording() { c.Post(c.stopRecording) }

func (c *Controller) join() {
	if c.joinSent {
		c.log.Warn().Msg("join already sent")
		return
	}

	var ev signaling.Outbound
	if c.opts.RoomID == "" {
		ev = signaling.CreateRoom{Username: c.room.SelfName, AudioOn: c.audioOn, VideoOn: c.videoOn}
	} else {
		ev = signaling.JoinRoom{Username: c.room.SelfName, RoomID: c.opts.RoomID, AudioOn: c.audioOn, VideoOn: c.videoOn}
	}
	if err := c.ch.Send(ev); err != nil {
		c.log.Error().Err(err).Msg("join not sent")
		return
	}
	c.joinSent = true
}

func (c *Controller) toggleAudio() {
	c.audioOn = !c.audioOn
	if c.local != nil {
		c.local.SetAudioEnabled(c.audioOn)
	}
	if !c.room.Joined() {
		return
	}
	c.registry.SetAudio(c.room.SelfID, c.audioOn)
	c.send(signaling.SetAudio{SessionID: c.room.SelfID, AudioOn: c.audioOn})
}

func (c *Controller) toggleVideo() {
	c.videoOn = !c.videoOn
	if c.local != nil {
		c.local.SetVideoEnabled(c.videoOn)
	}
	if !c.room.Joined() {
		return
	}
	c.registry.SetVideo(c.room.SelfID, c.videoOn)
	c.send(signaling.SetVideo{SessionID: c.room.SelfID, VideoOn: c.videoOn})
}

func (c *Controller) leave() {
	if c.left {
		return
	}
	if c.room.Joined() {
		c.send(signaling.ExitRoom{SessionID: c.room.SelfID})
	}
	c.teardown()
	c.log.Info().Msg("left room")
}

func (c *Controller) rename(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		c.log.Warn().Msg("empty name ignored")
		return
	}

	c.room.SelfName = name
	if !c.room.Joined() {
		return
	}
	c.registry.SetName(c.room.SelfID, name)
	if c.room.IsLeader() {
		c.room.LeaderName = name
	}
	c.send(signaling.ChangeName{SessionID: c.room.SelfID, NewUserName: name})
}

func (c *Controller) sendChat(to, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if !c.room.Joined() {
		c.log.Warn().Msg("chat before join dropped")
		return
	}

	s := ephemeral.Signal{FromID: c.room.SelfID, FromName: c.room.SelfName, Payload: text}
	if to == "" {
		c.ephemeral.AppendChat(s)
		c.send(signaling.BroadcastChat{Message: text})
		return
	}

	p, ok := c.registry.Get(to)
	if !ok {
		c.log.Warn().Str("to", to).Msg("chat to unknown participant dropped")
		return
	}
	s.ToID, s.ToName, s.Private = p.ID, p.DisplayName, true
	c.ephemeral.AppendChat(s)
	c.send(signaling.PersonalChat{ReceiverSessionID: to, Message: text})
}

// sendReaction does not show the reaction locally; the coordinator echoes it
// to every participant, the sender included.
func (c *Controller) sendReaction(to, emoji string) {
	if emoji == "" || !c.room.Joined() {
		return
	}
	if _, ok := c.registry.Get(to); !ok {
		c.log.Warn().Str("to", to).Msg("reaction needs a participant")
		return
	}
	c.send(signaling.PublicEmoji{ReceiverSessionID: to, Emoji: emoji})
}

func (c *Controller) toggleRecording() {
	if !c.room.Joined() {
		c.log.Warn().Msg("recording before join ignored")
		return
	}
	c.recordingResult("toggle", c.recording.Toggle(c.room.SelfID, c.room.LeaderID))
}

func (c *Controller) grantRecording() {
	c.recordingResult("grant", c.recording.Grant(c.room.SelfID, c.room.LeaderID))
}

func (c *Controller) denyRecording() {
	c.recordingResult("deny", c.recording.Deny(c.room.SelfID, c.room.LeaderID))
}

func (c *Controller) pauseRecording() {
	c.recordingResult("pause", c.recording.Pause())
}

func (c *Controller) resumeRecording() {
	c.recordingResult("resume", c.recording.Resume())
}

func (c *Controller) stopRecording() {
	c.recordingResult("stop", c.recording.Stop())
}

func (c *Controller) recordingResult(op string, err error) {
	if err != nil {
		c.log.Info().Err(err).Str("op", op).Msg("recording action ignored")
	}
}
