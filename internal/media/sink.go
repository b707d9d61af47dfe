package media

import (
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// RenderTarget is where a remote participant's media ends up. Attached is
// closed once the target is mounted and able to take tracks.
type RenderTarget interface {
	Attached() <-chan struct{}
	Attach(track *webrtc.TrackRemote)
}

// SinkStats summarises what a Sink has received.
type SinkStats struct {
	Codecs  []string
	Packets uint64
	Bytes   uint64
}

// Sink is a RenderTarget that consumes remote tracks and counts packets.
type Sink struct {
	attached  chan struct{}
	readyOnce sync.Once

	mu     sync.Mutex
	codecs []string

	packets atomic.Uint64
	bytes   atomic.Uint64
}

func NewSink() *Sink {
	return &Sink{attached: make(chan struct{})}
}

// MarkReady signals that the sink can take tracks.
func (s *Sink) MarkReady() {
	s.readyOnce.Do(func() { close(s.attached) })
}

func (s *Sink) Attached() <-chan struct{} {
	return s.attached
}

func (s *Sink) Attach(track *webrtc.TrackRemote) {
	s.mu.Lock()
	s.codecs = append(s.codecs, track.Codec().MimeType)
	s.mu.Unlock()

	go s.consume(track)
}

func (s *Sink) consume(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		s.packets.Add(1)
		s.bytes.Add(uint64(len(pkt.Payload)))
	}
}

func (s *Sink) Stats() SinkStats {
	s.mu.Lock()
	codecs := append([]string(nil), s.codecs...)
	s.mu.Unlock()

	return SinkStats{
		Codecs:  codecs,
		Packets: s.packets.Load(),
		Bytes:   s.bytes.Load(),
	}
}
