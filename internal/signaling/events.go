package signaling

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"
)

// Control event discriminators, carried as "action" inbound and "eventId" outbound.
const (
	ActionRoomCreated      = "roomCreated"
	ActionExistingUsers    = "sendExistingUsers"
	ActionNewUserJoined    = "newUserJoined"
	ActionIceCandidate     = "onIceCandidate"
	ActionVideoAnswer      = "receiveVideoAnswer"
	ActionExitRoom         = "exitRoom"
	ActionLeaderChanged    = "leaderChanged"
	ActionPersonalChat     = "sendPersonalChat"
	ActionBroadcastChat    = "broadcastChat"
	ActionAudioStateChange = "audioStateChange"
	ActionVideoStateChange = "videoStateChange"
	ActionPublicEmoji      = "sendPublicEmoji"
	ActionChangeName       = "changeName"
	ActionRequestRecording = "requestRecordingPermission"
	ActionGrantRecording   = "grantRecordingPermission"
	ActionDenyRecording    = "denyRecordingPermission"
	ActionStartRecording   = "startRecording"
	ActionPauseRecording   = "pauseRecording"
	ActionResumeRecording  = "resumeRecording"
	ActionStopRecording    = "stopRecording"
	ActionSaveRecording    = "saveRecording"
	ActionReceiveVideoFrom = "receiveVideoFrom"
	ActionJoinRoom         = "joinRoom"
	ActionCreateRoom       = "createRoom"
)

// Inbound is one decoded control event received from the coordinator.
type Inbound interface {
	Action() string
}

// Outbound is one control event sent to the coordinator.
type Outbound interface {
	EventID() string
}

// FlexBool accepts both JSON booleans and the "true"/"false" strings some
// coordinator builds emit for participant flags.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = false
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*b = FlexBool(s == "true")
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = FlexBool(v)
	return nil
}

// ParticipantInfo describes an existing participant listed in a join acknowledgment.
type ParticipantInfo struct {
	SessionID string   `json:"sessionId"`
	Username  string   `json:"username"`
	AudioOn   FlexBool `json:"audioOn"`
	VideoOn   FlexBool `json:"videoOn"`
}

// UnmarshalJSON accepts the participant either as an object or as a JSON
// string holding the encoded object.
func (p *ParticipantInfo) UnmarshalJSON(data []byte) error {
	type plain ParticipantInfo

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		data = []byte(inner)
	}

	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = ParticipantInfo(v)
	return nil
}

// JoinAck is the payload shared by roomCreated and sendExistingUsers.
type JoinAck struct {
	SessionID      string            `json:"sessionId"`
	Username       string            `json:"username"`
	RoomID         string            `json:"roomId"`
	RoomLeaderID   string            `json:"roomLeaderId"`
	RoomLeaderName string            `json:"roomLeaderName"`
	AudioOn        FlexBool          `json:"audioOn"`
	VideoOn        FlexBool          `json:"videoOn"`
	Participants   []ParticipantInfo `json:"participants"`
}

func (a *JoinAck) validate() error {
	if a.SessionID == "" {
		return errors.New("sessionId is required")
	}
	return nil
}

type RoomCreated struct{ JoinAck }

func (*RoomCreated) Action() string { return ActionRoomCreated }

type ExistingUsers struct{ JoinAck }

func (*ExistingUsers) Action() string { return ActionExistingUsers }

type UserJoined struct {
	SessionID string   `json:"sessionId"`
	Username  string   `json:"username"`
	AudioOn   FlexBool `json:"audioOn"`
	VideoOn   FlexBool `json:"videoOn"`
}

func (*UserJoined) Action() string { return ActionNewUserJoined }

func (e *UserJoined) validate() error { return requireSession(e.SessionID) }

type RemoteCandidate struct {
	SessionID string                  `json:"sessionId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func (*RemoteCandidate) Action() string { return ActionIceCandidate }

func (e *RemoteCandidate) validate() error { return requireSession(e.SessionID) }

type VideoAnswer struct {
	SessionID string `json:"sessionId"`
	SDPAnswer string `json:"sdpAnswer"`
}

func (*VideoAnswer) Action() string { return ActionVideoAnswer }

func (e *VideoAnswer) validate() error {
	if e.SDPAnswer == "" {
		return errors.New("sdpAnswer is required")
	}
	return requireSession(e.SessionID)
}

type UserLeft struct {
	SessionID string `json:"sessionId"`
}

func (*UserLeft) Action() string { return ActionExitRoom }

func (e *UserLeft) validate() error { return requireSession(e.SessionID) }

type LeaderChanged struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
}

func (*LeaderChanged) Action() string { return ActionLeaderChanged }

func (e *LeaderChanged) validate() error { return requireSession(e.SessionID) }

// ChatReceived is a personal or broadcast chat message.
type ChatReceived struct {
	Private           bool   `json:"-"`
	SenderSessionID   string `json:"senderSessionId"`
	SenderName        string `json:"senderName"`
	ReceiverSessionID string `json:"receiverSessionId"`
	ReceiverName      string `json:"receiverName"`
	Message           string `json:"message"`
}

func (e *ChatReceived) Action() string {
	if e.Private {
		return ActionPersonalChat
	}
	return ActionBroadcastChat
}

func (e *ChatReceived) validate() error { return requireSession(e.SenderSessionID) }

type AudioStateChanged struct {
	SessionID string   `json:"sessionId"`
	AudioOn   FlexBool `json:"audioOn"`
}

func (*AudioStateChanged) Action() string { return ActionAudioStateChange }

func (e *AudioStateChanged) validate() error { return requireSession(e.SessionID) }

type VideoStateChanged struct {
	SessionID string   `json:"sessionId"`
	VideoOn   FlexBool `json:"videoOn"`
}

func (*VideoStateChanged) Action() string { return ActionVideoStateChange }

func (e *VideoStateChanged) validate() error { return requireSession(e.SessionID) }

type EmojiReceived struct {
	SenderSessionID   string `json:"senderSessionId"`
	SenderName        string `json:"senderName"`
	ReceiverSessionID string `json:"receiverSessionId"`
	ReceiverName      string `json:"receiverName"`
	Emoji             string `json:"emoji"`
}

func (*EmojiReceived) Action() string { return ActionPublicEmoji }

func (e *EmojiReceived) validate() error {
	if e.Emoji == "" {
		return errors.New("emoji is required")
	}
	return nil
}

type NameChanged struct {
	SessionID   string `json:"sessionId"`
	NewUserName string `json:"newUserName"`
}

func (*NameChanged) Action() string { return ActionChangeName }

func (e *NameChanged) validate() error { return requireSession(e.SessionID) }

type RecordingRequested struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
}

func (*RecordingRequested) Action() string { return ActionRequestRecording }

func (e *RecordingRequested) validate() error { return requireSession(e.SessionID) }

type RecordingGranted struct {
	TargetSessionID string `json:"targetSessionId"`
}

func (*RecordingGranted) Action() string { return ActionGrantRecording }

type RecordingDenied struct {
	TargetSessionID string `json:"targetSessionId"`
}

func (*RecordingDenied) Action() string { return ActionDenyRecording }

type RecordingStarted struct {
	SessionID string `json:"sessionId"`
}

func (*RecordingStarted) Action() string { return ActionStartRecording }

type RecordingPaused struct{}

func (*RecordingPaused) Action() string { return ActionPauseRecording }

type RecordingResumed struct{}

func (*RecordingResumed) Action() string { return ActionResumeRecording }

type RecordingStopped struct {
	FileName string `json:"fileName"`
}

func (*RecordingStopped) Action() string { return ActionStopRecording }

type RecordingSaved struct {
	FileName string `json:"fileName"`
}

func (*RecordingSaved) Action() string { return ActionSaveRecording }

// Unknown carries an action this client does not understand.
type Unknown struct {
	Name string
	Raw  []byte
}

func (e *Unknown) Action() string { return e.Name }

func requireSession(id string) error {
	if id == "" {
		return errors.New("sessionId is required")
	}
	return nil
}

// Outbound events.

type JoinRoom struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
	AudioOn  bool   `json:"audioOn"`
	VideoOn  bool   `json:"videoOn"`
}

func (JoinRoom) EventID() string { return ActionJoinRoom }

type CreateRoom struct {
	Username string `json:"username"`
	AudioOn  bool   `json:"audioOn"`
	VideoOn  bool   `json:"videoOn"`
}

func (CreateRoom) EventID() string { return ActionCreateRoom }

// ReceiveVideoFrom carries the local offer for the media session of Sender.
type ReceiveVideoFrom struct {
	Sender   string `json:"sender"`
	SDPOffer string `json:"sdpOffer"`
}

func (ReceiveVideoFrom) EventID() string { return ActionReceiveVideoFrom }

type LocalCandidate struct {
	SessionID string                  `json:"sessionId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func (LocalCandidate) EventID() string { return ActionIceCandidate }

type SetAudio struct {
	SessionID string `json:"sessionId"`
	AudioOn   bool   `json:"audioOn"`
}

func (SetAudio) EventID() string { return ActionAudioStateChange }

type SetVideo struct {
	SessionID string `json:"sessionId"`
	VideoOn   bool   `json:"videoOn"`
}

func (SetVideo) EventID() string { return ActionVideoStateChange }

type ExitRoom struct {
	SessionID string `json:"sessionId"`
}

func (ExitRoom) EventID() string { return ActionExitRoom }

type PersonalChat struct {
	ReceiverSessionID string `json:"receiverSessionId"`
	Message           string `json:"message"`
}

func (PersonalChat) EventID() string { return ActionPersonalChat }

type BroadcastChat struct {
	Message string `json:"message"`
}

func (BroadcastChat) EventID() string { return ActionBroadcastChat }

type PublicEmoji struct {
	ReceiverSessionID string `json:"receiverSessionId"`
	Emoji             string `json:"emoji"`
}

func (PublicEmoji) EventID() string { return ActionPublicEmoji }

type ChangeName struct {
	SessionID   string `json:"sessionId"`
	NewUserName string `json:"newUserName"`
}

func (ChangeName) EventID() string { return ActionChangeName }

type StartRecording struct{}

func (StartRecording) EventID() string { return ActionStartRecording }

type RequestRecordingPermission struct{}

func (RequestRecordingPermission) EventID() string { return ActionRequestRecording }

type GrantRecordingPermission struct {
	TargetSessionID string `json:"targetSessionId"`
}

func (GrantRecordingPermission) EventID() string { return ActionGrantRecording }

type DenyRecordingPermission struct {
	TargetSessionID string `json:"targetSessionId"`
}

func (DenyRecordingPermission) EventID() string { return ActionDenyRecording }

type PauseRecording struct{}

func (PauseRecording) EventID() string { return ActionPauseRecording }

type ResumeRecording struct{}

func (ResumeRecording) EventID() string { return ActionResumeRecording }

type StopRecording struct{}

func (StopRecording) EventID() string { return ActionStopRecording }
