package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadModelProgress(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newDownloadModel([]string{"a.webm", "b.webm"}, nil)
	m.now = func() time.Time { return now }

	_, cmd := m.Update(downloadUpdate{index: 0, written: 512, total: 1024})
	assert.Nil(t, cmd)
	now = now.Add(time.Second)

	view := m.View()
	assert.Contains(t, view, "50.0%")
	assert.Contains(t, view, "512 B/s")
	assert.Contains(t, view, "ETA: 1s")

	m.Update(downloadUpdate{index: 0, path: "/tmp/a.webm", done: true})
	assert.Equal(t, int64(1024), m.items[0].written)

	_, cmd = m.Update(downloadUpdate{index: 1, err: errors.New("recording not found"), done: true})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, m.View(), "recording not found")
}

func TestDownloadModelCancel(t *testing.T) {
	cancelled := false
	m := newDownloadModel([]string{"a.webm"}, func() { cancelled = true })

	m.Update(downloadUpdate{index: 7, written: 1})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, cancelled)
	assert.Empty(t, m.View())
}
