package room

import (
	"errors"
	"slices"

	"github.com/BioHazard786/roomcall/internal/media"
)

var (
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrParticipantExists  = errors.New("participant already registered")
	ErrNegotiatorExists   = errors.New("participant already has a negotiator")
)

// Participant is the live record of one session in the room.
type Participant struct {
	ID          string
	DisplayName string
	AudioOn     bool
	VideoOn     bool
	Negotiator  *media.Negotiator
}

// Registry holds participants in join order. Only the call loop touches it;
// everyone else reads snapshots.
type Registry struct {
	order []string
	byID  map[string]*Participant
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Participant)}
}

func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) Add(p Participant) (*Participant, error) {
	if _, ok := r.byID[p.ID]; ok {
		return nil, ErrParticipantExists
	}
	rec := &p
	r.byID[p.ID] = rec
	r.order = append(r.order, p.ID)
	return rec, nil
}

func (r *Registry) Get(id string) (*Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Remove deletes the record and disposes its negotiator in the same step.
func (r *Registry) Remove(id string) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrUnknownParticipant
	}

	var err error
	if p.Negotiator != nil {
		err = p.Negotiator.Dispose()
		p.Negotiator = nil
	}

	delete(r.byID, id)
	r.order = slices.DeleteFunc(r.order, func(other string) bool { return other == id })
	return err
}

// Clear removes every participant, disposing all negotiators.
func (r *Registry) Clear() []error {
	var errs []error
	for _, id := range slices.Clone(r.order) {
		if err := r.Remove(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// AttachNegotiator gives a participant its negotiator. A record owns at most one.
func (r *Registry) AttachNegotiator(id string, n *media.Negotiator) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrUnknownParticipant
	}
	if p.Negotiator != nil {
		return ErrNegotiatorExists
	}
	p.Negotiator = n
	return nil
}

func (r *Registry) SetAudio(id string, on bool) error {
	return r.update(id, func(p *Participant) { p.AudioOn = on })
}

func (r *Registry) SetVideo(id string, on bool) error {
	return r.update(id, func(p *Participant) { p.VideoOn = on })
}

func (r *Registry) SetName(id, name string) error {
	return r.update(id, func(p *Participant) { p.DisplayName = name })
}

func (r *Registry) update(id string, fn func(*Participant)) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrUnknownParticipant
	}
	fn(p)
	return nil
}

// Each visits participants in join order.
func (r *Registry) Each(fn func(*Participant)) {
	for _, id := range r.order {
		fn(r.byID[id])
	}
}
