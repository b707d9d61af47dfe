package ui

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/roomcall/internal/ephemeral"
	"github.com/BioHazard786/roomcall/internal/media"
	"github.com/BioHazard786/roomcall/internal/room"
	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// StatsFunc reports received media for a participant, if any.
type StatsFunc func(sessionID string) (media.SinkStats, bool)

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	t.Style().Title.Colors = text.Colors{text.FgCyan, text.Bold}
	t.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}
	return t
}

// ParticipantsTable summarises who was in the call and what their media did.
func ParticipantsTable(snap *room.Snapshot, stats StatsFunc) string {
	t := newTable("👥 Participants")
	t.AppendHeader(table.Row{"#", "Name", "Session", "Audio", "Video", "Media", "Received"})

	for i, p := range snap.Participants {
		name := p.DisplayName
		switch {
		case p.Self && p.Leader:
			name += " (you, leader)"
		case p.Self:
			name += " (you)"
		case p.Leader:
			name += " (leader)"
		}

		mediaState := "-"
		if p.HasMedia {
			mediaState = fmt.Sprintf("%s %s", p.Role, p.Media)
		}

		received := "-"
		if stats != nil && !p.Self {
			if s, ok := stats(p.ID); ok && s.Packets > 0 {
				received = fmt.Sprintf("%s in %d pkts (%s)", formatBytes(int64(s.Bytes)), s.Packets, strings.Join(s.Codecs, ", "))
			}
		}

		t.AppendRow(table.Row{i + 1, truncateString(name, 32), p.ID, onOff(p.AudioOn), onOff(p.VideoOn), mediaState, received})
	}
	if len(snap.Participants) == 0 {
		t.AppendRow(table.Row{"", "nobody", "", "", "", "", ""})
	}
	return t.Render()
}

// ChatLogTable renders a saved chat history.
func ChatLogTable(log *ephemeral.ChatLog) string {
	t := newTable(fmt.Sprintf("%s Chat in room %s", IconChat, log.RoomID))
	t.AppendHeader(table.Row{"Time", "From", "To", "Message"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 60},
	})

	for _, m := range log.Messages {
		from := m.FromName
		if m.FromID == log.SelfID {
			from += " (you)"
		}
		to := "everyone"
		if m.Private {
			to = m.ToName
		}
		t.AppendRow(table.Row{m.CreatedAt.Local().Format("15:04:05"), from, to, m.Payload})
	}
	t.AppendFooter(table.Row{"", "", "Messages", len(log.Messages)})
	return t.Render()
}

// DownloadResult is the outcome of fetching one recording artifact.
type DownloadResult struct {
	Name string
	Path string
	Size int64
	Err  error
}

func DownloadSummary(results []DownloadResult) string {
	t := newTable("📊 Recordings")
	t.AppendHeader(table.Row{"File", "Status", "Size", "Saved to"})

	var total int64
	for _, r := range results {
		if r.Err != nil {
			t.AppendRow(table.Row{r.Name, IconError + " " + r.Err.Error(), "-", "-"})
			continue
		}
		total += r.Size
		t.AppendRow(table.Row{r.Name, IconSuccess + " saved", formatBytes(r.Size), r.Path})
	}
	t.AppendFooter(table.Row{"", "Total", formatBytes(total), ""})
	return t.Render()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// RoomInfo is the box shown once a room exists.
type RoomInfo struct {
	RoomID  string
	JoinCmd string
}

func (r RoomInfo) View() string {
	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room ready\n\n%s Room ID:  %s\n%s Join:     %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconCopy, MutedStyle.Render(r.JoinCmd),
	)
	return box.Render(content)
}
