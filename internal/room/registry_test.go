package room

import (
	"testing"

	"github.com/BioHazard786/roomcall/internal/media"
	"github.com/BioHazard786/roomcall/internal/media/mediatest"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLoop struct{}

func (nopLoop) Post(func()) {}

type nopSignaler struct{}

func (nopSignaler) SendOffer(string, string) error { return nil }

func (nopSignaler) SendCandidate(string, webrtc.ICECandidateInit) error { return nil }

func TestRegistryJoinOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := r.Add(Participant{ID: id})
		require.NoError(t, err)
	}
	_, err := r.Add(Participant{ID: "s2"})
	assert.ErrorIs(t, err, ErrParticipantExists)

	require.NoError(t, r.Remove("s2"))
	_, err = r.Add(Participant{ID: "s2"})
	require.NoError(t, err)

	var ids []string
	r.Each(func(p *Participant) { ids = append(ids, p.ID) })
	assert.Equal(t, []string{"s1", "s3", "s2"}, ids)
}

func TestRegistryUpdates(t *testing.T) {
	r := NewRegistry()
	_, err := r.Add(Participant{ID: "s1", DisplayName: "Alice", AudioOn: true})
	require.NoError(t, err)

	require.NoError(t, r.SetAudio("s1", false))
	require.NoError(t, r.SetVideo("s1", true))
	require.NoError(t, r.SetName("s1", "Alicia"))

	p, ok := r.Get("s1")
	require.True(t, ok)
	assert.Equal(t, Participant{ID: "s1", DisplayName: "Alicia", VideoOn: true}, *p)

	assert.ErrorIs(t, r.SetAudio("nobody", true), ErrUnknownParticipant)
	assert.ErrorIs(t, r.SetName("nobody", "x"), ErrUnknownParticipant)
	assert.ErrorIs(t, r.Remove("nobody"), ErrUnknownParticipant)
}

func TestRegistryOwnsOneNegotiator(t *testing.T) {
	r := NewRegistry()
	engine := mediatest.NewEngine()
	newNegotiator := func(id string) *media.Negotiator {
		return media.NewNegotiator(id, media.RoleReceiveOnly, engine, nopLoop{}, nopSignaler{}, zerolog.Nop())
	}

	n := newNegotiator("s2")
	assert.ErrorIs(t, r.AttachNegotiator("s2", n), ErrUnknownParticipant)

	_, err := r.Add(Participant{ID: "s2"})
	require.NoError(t, err)
	require.NoError(t, r.AttachNegotiator("s2", n))
	assert.ErrorIs(t, r.AttachNegotiator("s2", newNegotiator("s2")), ErrNegotiatorExists)

	require.NoError(t, r.Remove("s2"))
	assert.Equal(t, media.StateDisposed, n.State())
	assert.Zero(t, r.Len())
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	engine := mediatest.NewEngine()

	var negotiators []*media.Negotiator
	for _, id := range []string{"s1", "s2"} {
		_, err := r.Add(Participant{ID: id})
		require.NoError(t, err)
		n := media.NewNegotiator(id, media.RoleReceiveOnly, engine, nopLoop{}, nopSignaler{}, zerolog.Nop())
		require.NoError(t, r.AttachNegotiator(id, n))
		negotiators = append(negotiators, n)
	}

	assert.Empty(t, r.Clear())
	assert.Zero(t, r.Len())
	for _, n := range negotiators {
		assert.Equal(t, media.StateDisposed, n.State())
	}
}
