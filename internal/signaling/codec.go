package signaling

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	ErrMalformedEvent = errors.New("malformed control event")
	ErrInvalidEvent   = errors.New("invalid control event")
)

type validator interface {
	validate() error
}

var inboundTypes = map[string]func() Inbound{
	ActionRoomCreated:      func() Inbound { return &RoomCreated{} },
	ActionExistingUsers:    func() Inbound { return &ExistingUsers{} },
	ActionNewUserJoined:    func() Inbound { return &UserJoined{} },
	ActionIceCandidate:     func() Inbound { return &RemoteCandidate{} },
	ActionVideoAnswer:      func() Inbound { return &VideoAnswer{} },
	ActionExitRoom:         func() Inbound { return &UserLeft{} },
	ActionLeaderChanged:    func() Inbound { return &LeaderChanged{} },
	ActionPersonalChat:     func() Inbound { return &ChatReceived{Private: true} },
	ActionBroadcastChat:    func() Inbound { return &ChatReceived{} },
	ActionAudioStateChange: func() Inbound { return &AudioStateChanged{} },
	ActionVideoStateChange: func() Inbound { return &VideoStateChanged{} },
	ActionPublicEmoji:      func() Inbound { return &EmojiReceived{} },
	ActionChangeName:       func() Inbound { return &NameChanged{} },
	ActionRequestRecording: func() Inbound { return &RecordingRequested{} },
	ActionGrantRecording:   func() Inbound { return &RecordingGranted{} },
	ActionDenyRecording:    func() Inbound { return &RecordingDenied{} },
	ActionStartRecording:   func() Inbound { return &RecordingStarted{} },
	ActionPauseRecording:   func() Inbound { return &RecordingPaused{} },
	ActionResumeRecording:  func() Inbound { return &RecordingResumed{} },
	ActionStopRecording:    func() Inbound { return &RecordingStopped{} },
	ActionSaveRecording:    func() Inbound { return &RecordingSaved{} },
}

// Decode parses one inbound frame. Unknown actions decode to *Unknown so the
// caller can log them; malformed or incomplete frames return an error.
func Decode(data []byte) (Inbound, error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if envelope.Action == "" {
		return nil, fmt.Errorf("%w: missing action", ErrInvalidEvent)
	}

	factory, ok := inboundTypes[envelope.Action]
	if !ok {
		return &Unknown{Name: envelope.Action, Raw: bytes.Clone(data)}, nil
	}

	ev := factory()
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, envelope.Action, err)
	}
	if v, ok := ev.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, envelope.Action, err)
		}
	}
	return ev, nil
}

// Encode serialises an outbound event with its eventId discriminator first.
func Encode(ev Outbound) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventID(), err)
	}
	id, err := json.Marshal(ev.EventID())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventID(), err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"eventId":`)
	buf.Write(id)
	if rest := bytes.TrimSpace(body[1:]); !bytes.Equal(rest, []byte("}")) {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}
