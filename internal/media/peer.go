package media

import (
	"github.com/BioHazard786/roomcall/internal/callerr"
	"github.com/BioHazard786/roomcall/internal/config"
	"github.com/pion/webrtc/v4"
)

// PeerConnection is the part of *webrtc.PeerConnection the negotiator drives.
type PeerConnection interface {
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(f func(*webrtc.ICECandidate))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	Close() error
}

// Engine creates peer connections already configured for a role.
type Engine interface {
	NewPeerConnection(role Role, tracks []webrtc.TrackLocal) (PeerConnection, error)
}

// PionEngine builds peer connections with pion using the configured ICE servers.
type PionEngine struct {
	api    *webrtc.API
	config webrtc.Configuration
}

// NewEngine registers the default codecs and derives the ICE configuration from cfg.
func NewEngine(cfg *config.Config) (*PionEngine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, callerr.NewError("register codecs", err)
	}

	return &PionEngine{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m)),
		config: iceConfiguration(cfg),
	}, nil
}

func iceConfiguration(cfg *config.Config) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); len(stun) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// NewPeerConnection adds send-only transceivers for tracks, or receive-only
// audio and video transceivers for a remote participant.
func (e *PionEngine) NewPeerConnection(role Role, tracks []webrtc.TrackLocal) (PeerConnection, error) {
	pc, err := e.api.NewPeerConnection(e.config)
	if err != nil {
		return nil, callerr.NewError("create peer connection", err)
	}

	switch role {
	case RoleSendOnly:
		for _, track := range tracks {
			tr, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionSendonly,
			})
			if err != nil {
				pc.Close()
				return nil, callerr.WrapError("add transceiver", err, track.Kind().String())
			}
			go drainRTCP(tr.Sender())
		}

	case RoleReceiveOnly:
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				pc.Close()
				return nil, callerr.WrapError("add transceiver", err, kind.String())
			}
		}
	}

	return pc, nil
}

// drainRTCP keeps interceptors fed until the sender stops.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
