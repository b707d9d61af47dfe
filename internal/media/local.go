package media

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/roomcall/internal/callerr"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
)

const (
	streamID      = "roomcall"
	audioInterval = 20 * time.Millisecond
)

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// Acquirer obtains the local participant's media.
type Acquirer interface {
	Acquire(ctx context.Context) (*LocalMedia, error)
}

// LocalMedia is the local audio and video tracks plus their enabled flags.
type LocalMedia struct {
	Audio *webrtc.TrackLocalStaticSample
	Video *webrtc.TrackLocalStaticSample

	audioOn atomic.Bool
	videoOn atomic.Bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewLocalMedia creates an Opus audio track and a VP8 video track.
func NewLocalMedia(audioOn, videoOn bool) (*LocalMedia, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		return nil, callerr.NewError("create audio track", err)
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		"video", streamID,
	)
	if err != nil {
		return nil, callerr.NewError("create video track", err)
	}

	m := &LocalMedia{Audio: audio, Video: video, stop: make(chan struct{})}
	m.audioOn.Store(audioOn)
	m.videoOn.Store(videoOn)
	return m, nil
}

// Tracks returns the tracks to publish.
func (m *LocalMedia) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{m.Audio, m.Video}
}

func (m *LocalMedia) SetAudioEnabled(on bool) { m.audioOn.Store(on) }

func (m *LocalMedia) SetVideoEnabled(on bool) { m.videoOn.Store(on) }

func (m *LocalMedia) AudioEnabled() bool { return m.audioOn.Load() }

func (m *LocalMedia) VideoEnabled() bool { return m.videoOn.Load() }

// Close stops any running source. It is safe to call more than once.
func (m *LocalMedia) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// SilentSource is an Acquirer for hosts without capture devices. It publishes
// Opus silence while audio is enabled and keeps the video track idle.
type SilentSource struct {
	AudioOn bool
	VideoOn bool
	Log     zerolog.Logger
}

func (s SilentSource) Acquire(ctx context.Context) (*LocalMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := NewLocalMedia(s.AudioOn, s.VideoOn)
	if err != nil {
		return nil, err
	}
	go m.pumpSilence(m.Audio, s.Log)
	return m, nil
}

type sampleWriter interface {
	WriteSample(pionmedia.Sample) error
}

// pumpSilence writes a silent frame every interval until Close. Write errors
// are logged once per failing streak.
func (m *LocalMedia) pumpSilence(w sampleWriter, log zerolog.Logger) {
	ticker := time.NewTicker(audioInterval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if !m.audioOn.Load() {
				continue
			}
			err := w.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: audioInterval})
			switch {
			case err != nil && !failing:
				log.Warn().Err(err).Msg("silence frame not written")
				failing = true
			case err == nil && failing:
				log.Debug().Msg("silence frames flowing again")
				failing = false
			}
		}
	}
}
