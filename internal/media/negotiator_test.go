package media_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/roomcall/internal/config"
	"github.com/BioHazard786/roomcall/internal/media"
	"github.com/BioHazard786/roomcall/internal/media/mediatest"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoop struct {
	ch chan func()
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{ch: make(chan func(), 64)}
}

func (l *fakeLoop) Post(fn func()) { l.ch <- fn }

// step runs the next posted completion.
func (l *fakeLoop) step(t *testing.T) {
	t.Helper()
	select {
	case fn := <-l.ch:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("nothing posted to the loop")
	}
}

type offer struct {
	session string
	sdp     string
}

type fakeSignaler struct {
	mu         sync.Mutex
	offers     []offer
	candidates []string
}

func (s *fakeSignaler) SendOffer(sessionID, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = append(s.offers, offer{sessionID, sdp})
	return nil
}

func (s *fakeSignaler) SendCandidate(sessionID string, _ webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, sessionID)
	return nil
}

type harness struct {
	engine   *mediatest.Engine
	loop     *fakeLoop
	signaler *fakeSignaler
}

func newHarness() *harness {
	return &harness{
		engine:   mediatest.NewEngine(),
		loop:     newFakeLoop(),
		signaler: &fakeSignaler{},
	}
}

func (h *harness) negotiator(session string, role media.Role) *media.Negotiator {
	return media.NewNegotiator(session, role, h.engine, h.loop, h.signaler, zerolog.Nop())
}

// offered begins a send-only negotiation and runs it to LocalDescriptionReady.
func (h *harness) offered(t *testing.T, session string) (*media.Negotiator, *mediatest.PeerConnection) {
	t.Helper()
	n := h.negotiator(session, media.RoleSendOnly)
	require.NoError(t, n.BeginSend(context.Background(), nil))
	h.loop.step(t)
	require.Equal(t, media.StateLocalDescriptionReady, n.State())

	conns := h.engine.Conns()
	return n, conns[len(conns)-1]
}

func TestBeginSendSendsOffer(t *testing.T) {
	h := newHarness()
	n, pc := h.offered(t, "s1")

	assert.Equal(t, media.RoleSendOnly, pc.Role)
	require.Len(t, h.signaler.offers, 1)
	assert.Equal(t, "s1", h.signaler.offers[0].session)
	assert.Contains(t, h.signaler.offers[0].sdp, "fake-offer")
	assert.NotNil(t, pc.Local())

	assert.ErrorIs(t, n.BeginSend(context.Background(), nil), media.ErrAlreadyStarted)
}

func TestCandidatesApplyInArrivalOrder(t *testing.T) {
	h := newHarness()
	n, pc := h.offered(t, "s1")

	require.NoError(t, n.ApplyCandidate(mediatest.CandidateInit(1)))
	require.NoError(t, n.ApplyCandidate(mediatest.CandidateInit(2)))
	assert.Equal(t, 2, n.Pending())
	assert.Empty(t, pc.Candidates())

	require.NoError(t, n.ApplyRemoteDescription("v=0 answer"))
	assert.Equal(t, media.StateRemoteDescriptionApplied, n.State())
	assert.Equal(t, webrtc.SDPTypeAnswer, pc.Remote().Type)
	assert.Zero(t, n.Pending())

	require.NoError(t, n.ApplyCandidate(mediatest.CandidateInit(3)))

	assert.Equal(t, []webrtc.ICECandidateInit{
		mediatest.CandidateInit(1),
		mediatest.CandidateInit(2),
		mediatest.CandidateInit(3),
	}, pc.Candidates())
}

func TestCandidatesBufferedBeforeStart(t *testing.T) {
	h := newHarness()
	n := h.negotiator("s2", media.RoleReceiveOnly)

	require.NoError(t, n.ApplyCandidate(mediatest.CandidateInit(7)))
	assert.Equal(t, 1, n.Pending())
	assert.ErrorIs(t, n.ApplyRemoteDescription("v=0 answer"), media.ErrNoLocalDescription)
	assert.Equal(t, 1, n.Pending())
}

func TestDuplicateAnswerRejected(t *testing.T) {
	h := newHarness()
	n, _ := h.offered(t, "s1")

	require.NoError(t, n.ApplyRemoteDescription("v=0 answer"))
	assert.ErrorIs(t, n.ApplyRemoteDescription("v=0 answer"), media.ErrRemoteApplied)
}

func TestBeginReceiveWaitsForRenderTarget(t *testing.T) {
	h := newHarness()
	n := h.negotiator("s2", media.RoleReceiveOnly)
	sink := media.NewSink()

	require.NoError(t, n.BeginReceive(context.Background(), sink))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.engine.Conns())
	assert.Equal(t, media.StateCreated, n.State())

	sink.MarkReady()
	h.loop.step(t) // start
	require.Len(t, h.engine.Conns(), 1)
	assert.Equal(t, media.RoleReceiveOnly, h.engine.Conns()[0].Role)

	h.loop.step(t) // offer ready
	assert.Equal(t, media.StateLocalDescriptionReady, n.State())
	require.Len(t, h.signaler.offers, 1)
	assert.Equal(t, "s2", h.signaler.offers[0].session)
}

func TestBeginReceiveCancelled(t *testing.T) {
	h := newHarness()
	n := h.negotiator("s2", media.RoleReceiveOnly)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, n.BeginReceive(ctx, media.NewSink()))
	cancel()

	h.loop.step(t)
	assert.Equal(t, media.StateFailed, n.State())
	assert.Empty(t, h.engine.Conns())
}

func TestRoleMismatch(t *testing.T) {
	h := newHarness()
	n := h.negotiator("s2", media.RoleReceiveOnly)
	assert.Error(t, n.BeginSend(context.Background(), nil))
}

func TestDispose(t *testing.T) {
	h := newHarness()
	n, pc := h.offered(t, "s1")

	require.NoError(t, n.Dispose())
	assert.Equal(t, media.StateDisposed, n.State())
	assert.Equal(t, 1, pc.CloseCount())

	assert.ErrorIs(t, n.Dispose(), media.ErrDisposed)
	assert.ErrorIs(t, n.ApplyCandidate(mediatest.CandidateInit(1)), media.ErrDisposed)
	assert.ErrorIs(t, n.ApplyRemoteDescription("v=0"), media.ErrDisposed)
	assert.ErrorIs(t, n.BeginSend(context.Background(), nil), media.ErrDisposed)
	assert.Equal(t, 1, pc.CloseCount())
}

func TestDisposeBeforeOfferCompletes(t *testing.T) {
	h := newHarness()
	n := h.negotiator("s1", media.RoleSendOnly)

	require.NoError(t, n.BeginSend(context.Background(), nil))
	require.NoError(t, n.Dispose())

	h.loop.step(t)
	assert.Equal(t, media.StateDisposed, n.State())
	assert.Empty(t, h.signaler.offers)
}

func TestEngineFailureLeavesMediaAbsent(t *testing.T) {
	h := newHarness()
	h.engine.Fail(errors.New("no codecs"))
	n := h.negotiator("s1", media.RoleSendOnly)

	require.NoError(t, n.BeginSend(context.Background(), nil))
	assert.Equal(t, media.StateFailed, n.State())
	assert.ErrorIs(t, n.ApplyCandidate(mediatest.CandidateInit(1)), media.ErrFailed)
	assert.Empty(t, h.signaler.offers)
	require.NoError(t, n.Dispose())
}

func TestOfferFailure(t *testing.T) {
	h := newHarness()
	h.engine.FailOffers(errors.New("sdp"))
	n := h.negotiator("s1", media.RoleSendOnly)

	require.NoError(t, n.BeginSend(context.Background(), nil))
	h.loop.step(t)
	assert.Equal(t, media.StateFailed, n.State())
	assert.Equal(t, 1, h.engine.Conns()[0].CloseCount())
}

func TestRemoteDescriptionFailure(t *testing.T) {
	h := newHarness()
	n, pc := h.offered(t, "s1")
	pc.FailRemote(errors.New("bad answer"))

	assert.Error(t, n.ApplyRemoteDescription("garbage"))
	assert.Equal(t, media.StateFailed, n.State())
}

func TestLocalCandidatesAreSignaled(t *testing.T) {
	h := newHarness()
	_, pc := h.offered(t, "s1")

	pc.EmitCandidate(mediatest.Candidate(5000))
	pc.EmitCandidate(nil)
	h.loop.step(t)

	assert.Equal(t, []string{"s1"}, h.signaler.candidates)
	assert.Empty(t, h.loop.ch)
}

func TestConnectionStates(t *testing.T) {
	h := newHarness()
	n, pc := h.offered(t, "s1")
	require.NoError(t, n.ApplyRemoteDescription("v=0 answer"))

	pc.EmitState(webrtc.PeerConnectionStateConnected)
	h.loop.step(t)
	assert.Equal(t, media.StateConnected, n.State())

	pc.EmitState(webrtc.PeerConnectionStateFailed)
	h.loop.step(t)
	assert.Equal(t, media.StateFailed, n.State())
}

func TestPionEngineRoles(t *testing.T) {
	engine, err := media.NewEngine(&config.Config{})
	require.NoError(t, err)

	pc, err := engine.NewPeerConnection(media.RoleReceiveOnly, nil)
	require.NoError(t, err)
	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	assert.Contains(t, offer.SDP, "a=recvonly")
	require.NoError(t, pc.Close())

	local, err := media.NewLocalMedia(true, true)
	require.NoError(t, err)
	defer local.Close()

	pc, err = engine.NewPeerConnection(media.RoleSendOnly, local.Tracks())
	require.NoError(t, err)
	offer, err = pc.CreateOffer(nil)
	require.NoError(t, err)
	assert.Contains(t, offer.SDP, "a=sendonly")
	assert.Contains(t, offer.SDP, "VP8")
	require.NoError(t, pc.Close())
}
