// Package mediatest provides in-memory peer connections for driving
// negotiations without a network.
package mediatest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BioHazard786/roomcall/internal/media"
	"github.com/pion/webrtc/v4"
)

var ErrClosed = errors.New("peer connection closed")

// PeerConnection records everything the negotiator does to it.
type PeerConnection struct {
	Role media.Role

	mu          sync.Mutex
	offerErr    error
	remoteErr   error
	local       *webrtc.SessionDescription
	remote      *webrtc.SessionDescription
	candidates  []webrtc.ICECandidateInit
	closeCount  int
	onCandidate func(*webrtc.ICECandidate)
	onState     func(webrtc.PeerConnectionState)
	onTrack     func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
}

func (p *PeerConnection) CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closeCount > 0 {
		return webrtc.SessionDescription{}, ErrClosed
	}
	if p.offerErr != nil {
		return webrtc.SessionDescription{}, p.offerErr
	}
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  fmt.Sprintf("v=0 fake-offer %s", p.Role),
	}, nil
}

func (p *PeerConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closeCount > 0 {
		return ErrClosed
	}
	p.local = &desc
	return nil
}

func (p *PeerConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remoteErr != nil {
		return p.remoteErr
	}
	p.remote = &desc
	return nil
}

func (p *PeerConnection) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errors.New("remote description not set")
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *PeerConnection) OnICECandidate(f func(*webrtc.ICECandidate)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCandidate = f
}

func (p *PeerConnection) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = f
}

func (p *PeerConnection) OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrack = f
}

func (p *PeerConnection) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCount++
	return nil
}

// FailRemote makes SetRemoteDescription return err.
func (p *PeerConnection) FailRemote(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteErr = err
}

// Candidates returns the remote candidates applied so far, in order.
func (p *PeerConnection) Candidates() []webrtc.ICECandidateInit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), p.candidates...)
}

func (p *PeerConnection) Remote() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

func (p *PeerConnection) Local() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}

func (p *PeerConnection) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCount
}

// EmitCandidate fires the local ICE candidate callback.
func (p *PeerConnection) EmitCandidate(c *webrtc.ICECandidate) {
	p.mu.Lock()
	f := p.onCandidate
	p.mu.Unlock()
	if f != nil {
		f(c)
	}
}

// EmitState fires the connection state callback.
func (p *PeerConnection) EmitState(s webrtc.PeerConnectionState) {
	p.mu.Lock()
	f := p.onState
	p.mu.Unlock()
	if f != nil {
		f(s)
	}
}

// Engine hands out fake peer connections and remembers them.
type Engine struct {
	mu       sync.Mutex
	err      error
	offerErr error
	conns    []*PeerConnection
}

func NewEngine() *Engine {
	return &Engine{}
}

// Fail makes every later NewPeerConnection call return err.
func (e *Engine) Fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// FailOffers makes later connections fail to create an offer.
func (e *Engine) FailOffers(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offerErr = err
}

func (e *Engine) NewPeerConnection(role media.Role, _ []webrtc.TrackLocal) (media.PeerConnection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	pc := &PeerConnection{Role: role, offerErr: e.offerErr}
	e.conns = append(e.conns, pc)
	return pc, nil
}

// Conns returns every connection created so far.
func (e *Engine) Conns() []*PeerConnection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*PeerConnection(nil), e.conns...)
}

// Candidate builds a host candidate for tests.
func Candidate(port uint16) *webrtc.ICECandidate {
	return &webrtc.ICECandidate{
		Foundation: "1",
		Priority:   2122260223,
		Address:    "10.0.0.1",
		Protocol:   webrtc.ICEProtocolUDP,
		Port:       port,
		Typ:        webrtc.ICECandidateTypeHost,
		Component:  1,
	}
}

// CandidateInit builds a remote candidate with a recognisable port.
func CandidateInit(port int) webrtc.ICECandidateInit {
	mid := "0"
	var idx uint16
	return webrtc.ICECandidateInit{
		Candidate:     fmt.Sprintf("candidate:1 1 udp 2122260223 10.0.0.2 %d typ host", port),
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
}
