package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/BioHazard786/roomcall/internal/ephemeral"
	"github.com/BioHazard786/roomcall/internal/media"
	"github.com/stretchr/testify/assert"
)

func TestParticipantsTable(t *testing.T) {
	stats := func(id string) (media.SinkStats, bool) {
		if id == "s2" {
			return media.SinkStats{Codecs: []string{"video/VP8"}, Packets: 12, Bytes: 2048}, true
		}
		return media.SinkStats{}, false
	}

	out := ParticipantsTable(joinedSnapshot(), stats)
	for _, want := range []string{"Alice (you, leader)", "Bob", "send-only connected", "2.00 KB in 12 pkts (video/VP8)"} {
		assert.Contains(t, out, want)
	}
}

func TestChatLogTable(t *testing.T) {
	log := &ephemeral.ChatLog{
		RoomID: "r1",
		SelfID: "s1",
		Messages: []ephemeral.Signal{
			{FromID: "s1", FromName: "Alice", Payload: "hi", CreatedAt: time.Now()},
			{FromID: "s2", FromName: "Bob", ToName: "Alice", Private: true, Payload: "psst", CreatedAt: time.Now()},
		},
	}

	out := ChatLogTable(log)
	for _, want := range []string{"Chat in room r1", "Alice (you)", "everyone", "psst"} {
		assert.Contains(t, out, want)
	}
}

func TestDownloadSummary(t *testing.T) {
	out := DownloadSummary([]DownloadResult{
		{Name: "a.webm", Path: "/tmp/a.webm", Size: 1536},
		{Name: "b.webm", Err: errors.New("recording not found")},
	})
	assert.Contains(t, out, "1.50 KB")
	assert.Contains(t, out, "/tmp/a.webm")
	assert.Contains(t, out, "recording not found")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "日本語...", truncateString("日本語テキストです", 6))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "<1s", formatDuration(500*time.Millisecond))
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h1m", formatDuration(3660*time.Second))
}
