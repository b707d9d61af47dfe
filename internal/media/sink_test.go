package media

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkReady(t *testing.T) {
	s := NewSink()
	select {
	case <-s.Attached():
		t.Fatal("sink ready before MarkReady")
	default:
	}

	s.MarkReady()
	s.MarkReady()
	_, open := <-s.Attached()
	assert.False(t, open)
	assert.Zero(t, s.Stats().Packets)
}

func TestLocalMediaToggles(t *testing.T) {
	m, err := SilentSource{AudioOn: true, VideoOn: false}.Acquire(context.Background())
	require.NoError(t, err)
	defer m.Close()

	assert.True(t, m.AudioEnabled())
	assert.False(t, m.VideoEnabled())
	assert.Len(t, m.Tracks(), 2)
	assert.Equal(t, "audio", m.Audio.Kind().String())

	m.SetAudioEnabled(false)
	m.SetVideoEnabled(true)
	assert.False(t, m.AudioEnabled())
	assert.True(t, m.VideoEnabled())

	m.Close()
}

type flakyWriter struct {
	mu      sync.Mutex
	fail    int
	written int
}

func (w *flakyWriter) WriteSample(pionmedia.Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail > 0 {
		w.fail--
		return errors.New("track closed")
	}
	w.written++
	return nil
}

func (w *flakyWriter) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSilencePumpSurvivesWriteErrors(t *testing.T) {
	m, err := NewLocalMedia(true, false)
	require.NoError(t, err)

	w := &flakyWriter{fail: 3}
	var logs syncBuffer
	done := make(chan struct{})
	go func() {
		m.pumpSilence(w, zerolog.New(&logs))
		close(done)
	}()

	require.Eventually(t, func() bool { return w.Written() >= 2 }, 2*time.Second, 10*time.Millisecond)
	m.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop on Close")
	}

	assert.Equal(t, 1, bytes.Count([]byte(logs.String()), []byte("silence frame not written")))
}

func TestAcquireCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SilentSource{}.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTunnelInterface(t *testing.T) {
	assert.True(t, tunnelInterface("wg0"))
	assert.True(t, tunnelInterface("CloudflareWARP"))
	assert.False(t, tunnelInterface("eth0"))
}
