package room

import (
	"sync"

	"github.com/BioHazard786/roomcall/internal/media"
)

// Renderer hands out a render target per remote participant.
type Renderer interface {
	Target(sessionID string) media.RenderTarget
	Release(sessionID string)
}

// SinkRenderer backs every participant with a media.Sink that is ready at once.
type SinkRenderer struct {
	mu    sync.Mutex
	sinks map[string]*media.Sink
}

func NewSinkRenderer() *SinkRenderer {
	return &SinkRenderer{sinks: make(map[string]*media.Sink)}
}

func (r *SinkRenderer) Target(sessionID string) media.RenderTarget {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sinks[sessionID]
	if !ok {
		s = media.NewSink()
		s.MarkReady()
		r.sinks[sessionID] = s
	}
	return s
}

func (r *SinkRenderer) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, sessionID)
}

// Stats reports what has arrived for a participant so far.
func (r *SinkRenderer) Stats(sessionID string) (media.SinkStats, bool) {
	r.mu.Lock()
	s, ok := r.sinks[sessionID]
	r.mu.Unlock()
	if !ok {
		return media.SinkStats{}, false
	}
	return s.Stats(), true
}
