package room

import (
	"github.com/BioHazard786/roomcall/internal/ephemeral"
	"github.com/BioHazard786/roomcall/internal/media"
	"github.com/BioHazard786/roomcall/internal/recording"
)

// RoomState is the room-level identity. SelfID stays empty until the
// coordinator acknowledges the join; the leader only changes when the
// coordinator says so.
type RoomState struct {
	SelfID     string
	SelfName   string
	RoomID     string
	LeaderID   string
	LeaderName string
}

func (s RoomState) Joined() bool { return s.SelfID != "" }

func (s RoomState) IsLeader() bool { return s.Joined() && s.SelfID == s.LeaderID }

// ParticipantView is a read-only copy of one participant.
type ParticipantView struct {
	ID          string
	DisplayName string
	AudioOn     bool
	VideoOn     bool
	Self        bool
	Leader      bool
	HasMedia    bool
	Role        media.Role
	Media       media.State
}

// Snapshot is an immutable copy of everything the UI shows.
type Snapshot struct {
	Version      uint64
	Room         RoomState
	Participants []ParticipantView
	Chat         []ephemeral.Signal
	Reactions    []ephemeral.Signal
	Recording    recording.View
	Left         bool
}

// Participant finds a participant by session ID.
func (s *Snapshot) Participant(id string) (ParticipantView, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return ParticipantView{}, false
}

// IDs lists participant session IDs in join order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, len(s.Participants))
	for i, p := range s.Participants {
		ids[i] = p.ID
	}
	return ids
}
