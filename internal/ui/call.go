package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/BioHazard786/roomcall/internal/ephemeral"
	"github.com/BioHazard786/roomcall/internal/media"
	"github.com/BioHazard786/roomcall/internal/recording"
	"github.com/BioHazard786/roomcall/internal/room"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Call is what the call view drives. *room.Controller implements it.
type Call interface {
	Snapshot() *room.Snapshot
	Updates() <-chan struct{}
	Done() <-chan struct{}

	ToggleAudio()
	ToggleVideo()
	Leave()
	Rename(name string)
	SendChat(to, text string)
	SendReaction(to, emoji string)
	ToggleRecording()
	GrantRecording()
	DenyRecording()
	PauseRecording()
	ResumeRecording()
}

// Reactions are sent by name; the glyph is only used for display.
var Reactions = []struct {
	Name  string
	Glyph string
}{
	{"thumbsUp", "👍"},
	{"clap", "👏"},
	{"laugh", "😂"},
	{"heart", "❤️"},
	{"party", "🎉"},
}

func reactionGlyph(name string) string {
	for _, r := range Reactions {
		if r.Name == name {
			return r.Glyph
		}
	}
	return name
}

const chatLines = 12

type inputMode int

const (
	inputNone inputMode = iota
	inputChat
	inputPrivate
	inputRename
)

type snapshotMsg struct{ snap *room.Snapshot }

type callEndedMsg struct{ snap *room.Snapshot }

type statsTickMsg time.Time

// CallModel is the interactive view of a running call.
type CallModel struct {
	call    Call
	stats   StatsFunc
	snap    *room.Snapshot
	active  *room.Snapshot
	input   textinput.Model
	mode    inputMode
	spinner spinner.Model
	cursor  int
	width   int
	ended   bool
}

func NewCallModel(call Call, stats StatsFunc) *CallModel {
	ti := textinput.New()
	ti.CharLimit = 500
	ti.Width = 50

	s := spinner.New()
	s.Spinner = spinner.Globe
	s.Style = SpinnerStyle

	snap := call.Snapshot()
	return &CallModel{
		call:    call,
		stats:   stats,
		snap:    snap,
		active:  snap,
		input:   ti,
		spinner: s,
		width:   100,
	}
}

// Final is the last snapshot the view saw.
func (m *CallModel) Final() *room.Snapshot {
	return m.snap
}

// Active is the last snapshot taken while still in the room.
func (m *CallModel) Active() *room.Snapshot {
	return m.active
}

func (m *CallModel) setSnapshot(snap *room.Snapshot) {
	m.snap = snap
	if !snap.Left {
		m.active = snap
	}
}

// CallResult is what the call view saw by the time it closed.
type CallResult struct {
	Active *room.Snapshot
	Final  *room.Snapshot
}

// RunCall shows the call view until the call ends or the user leaves.
func RunCall(call Call, stats StatsFunc) (CallResult, error) {
	m := NewCallModel(call, stats)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return CallResult{Active: m.Active(), Final: m.Final()}, err
}

func waitForUpdate(call Call) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-call.Updates():
			return snapshotMsg{snap: call.Snapshot()}
		case <-call.Done():
			return callEndedMsg{snap: call.Snapshot()}
		}
	}
}

func statsTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.call), m.spinner.Tick, statsTick())
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-20)
		return m, nil

	case snapshotMsg:
		m.setSnapshot(msg.snap)
		m.clampCursor()
		return m, waitForUpdate(m.call)

	case callEndedMsg:
		m.setSnapshot(msg.snap)
		m.ended = true
		return m, tea.Quit

	case spinner.TickMsg:
		if m.snap.Room.Joined() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statsTickMsg:
		return m, statsTick()
	}
	return m, nil
}

func (m *CallModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.call.Leave()
		return m, nil
	case "m":
		m.call.ToggleAudio()
	case "v":
		m.call.ToggleVideo()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snap.Participants)-1 {
			m.cursor++
		}
	case "enter", "/":
		return m, m.startInput(inputChat, "say: ")
	case "p":
		if target, ok := m.selected(); ok && !target.Self {
			return m, m.startInput(inputPrivate, fmt.Sprintf("to %s: ", target.DisplayName))
		}
	case "c":
		return m, m.startInput(inputRename, "new name: ")
	case "r":
		m.call.ToggleRecording()
	case " ":
		switch m.snap.Recording.State {
		case recording.StateRecording:
			m.call.PauseRecording()
		case recording.StatePaused:
			m.call.ResumeRecording()
		}
	case "y":
		if m.promptVisible() {
			m.call.GrantRecording()
		}
	case "n":
		if m.promptVisible() {
			m.call.DenyRecording()
		}
	case "1", "2", "3", "4", "5":
		idx := int(msg.String()[0] - '1')
		if target, ok := m.selected(); ok && idx < len(Reactions) {
			m.call.SendReaction(target.ID, Reactions[idx].Name)
		}
	}
	return m, nil
}

func (m *CallModel) startInput(mode inputMode, prompt string) tea.Cmd {
	m.mode = mode
	m.input.Prompt = prompt
	m.input.SetValue("")
	return m.input.Focus()
}

func (m *CallModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.stopInput()
		return m, nil
	case tea.KeyCtrlC:
		m.stopInput()
		m.call.Leave()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.stopInput()
		if value == "" {
			return m, nil
		}
		switch mode {
		case inputChat:
			m.call.SendChat("", value)
		case inputPrivate:
			if target, ok := m.selected(); ok {
				m.call.SendChat(target.ID, value)
			}
		case inputRename:
			m.call.Rename(value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *CallModel) stopInput() {
	m.mode = inputNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m *CallModel) selected() (room.ParticipantView, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Participants) {
		return room.ParticipantView{}, false
	}
	return m.snap.Participants[m.cursor], true
}

func (m *CallModel) clampCursor() {
	if m.cursor >= len(m.snap.Participants) {
		m.cursor = max(0, len(m.snap.Participants)-1)
	}
}

func (m *CallModel) promptVisible() bool {
	return m.snap.Room.IsLeader() && m.snap.Recording.Pending != nil
}

func (m *CallModel) View() string {
	if m.ended {
		return ""
	}

	snap := m.snap
	if !snap.Room.Joined() {
		return fmt.Sprintf("\n %s Joining room %s...\n\n%s",
			m.spinner.View(), snap.Room.RoomID, FooterStyle.Render(" q to quit"))
	}

	var sections []string
	sections = append(sections, HeaderStyle.Render(fmt.Sprintf("%s Room %s  %s %s  %s %s",
		IconRoom, snap.Room.RoomID,
		IconPeer, snap.Room.SelfName,
		IconLeader, snap.Room.LeaderName)))

	if len(snap.Participants) <= 1 {
		sections = append(sections, RoomInfo{RoomID: snap.Room.RoomID, JoinCmd: "roomcall join " + snap.Room.RoomID}.View())
	}
	if banner := recordingBanner(snap.Recording); banner != "" {
		sections = append(sections, banner)
	}
	if m.promptVisible() {
		p := snap.Recording.Pending
		sections = append(sections, PromptStyle.Render(fmt.Sprintf(
			"%s %s wants to record this call. Allow? (y/n)", IconRecord, p.Name)))
	}

	half := max(30, (m.width-4)/2)
	participants := PanelStyle.Width(half).Render(m.participantsView())
	chat := ChatPanelStyle.Width(half).Render(m.chatView())
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, participants, chat))

	if m.mode != inputNone {
		sections = append(sections, m.input.View())
	}
	sections = append(sections, FooterStyle.Render(
		"m mic · v camera · ↑/↓ select · enter chat · p private · 1-5 react · r record · space pause · c rename · q leave"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func recordingBanner(v recording.View) string {
	switch v.State {
	case recording.StateRecording:
		return RecordingBannerStyle.Render(IconRecord + " REC")
	case recording.StatePaused:
		return RecordingBannerStyle.Render(IconPause + " REC paused")
	case recording.StateRequested:
		switch {
		case v.Asked:
			return WarningStyle.Render(IconWaiting + " waiting for the leader to allow recording")
		case v.Pending == nil:
			return MutedStyle.Render(IconWaiting + " recording allowed, waiting for it to start")
		}
		return ""
	}
	if n := len(v.Files); n > 0 {
		return MutedStyle.Render(fmt.Sprintf("%s last recording: %s", IconDownload, v.Files[n-1]))
	}
	return ""
}

func (m *CallModel) participantsView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Participants (%d)", len(m.snap.Participants))))
	b.WriteString("\n")

	reactions := make(map[string][]ephemeral.Signal)
	for _, r := range m.snap.Reactions {
		reactions[r.ToID] = append(reactions[r.ToID], r)
	}

	for i, p := range m.snap.Participants {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}

		name := p.DisplayName
		style := lipgloss.NewStyle()
		if p.Self {
			name += " (you)"
			style = SelfStyle
		}
		if p.Leader {
			name = IconLeader + " " + name
		}

		mic, cam := IconMicOff, IconCamOff
		if p.AudioOn {
			mic = IconMicOn
		}
		if p.VideoOn {
			cam = IconCamOn
		}

		fmt.Fprintf(&b, "%s%s %s %s %s", cursor, style.Render(truncateString(name, 24)), mic, cam, m.mediaBadge(p))
		for _, r := range reactions[p.ID] {
			fmt.Fprintf(&b, " %s", reactionGlyph(r.Payload))
			if r.FromName != "" {
				b.WriteString(MutedStyle.Render(" " + r.FromName))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *CallModel) mediaBadge(p room.ParticipantView) string {
	if !p.HasMedia {
		return MutedStyle.Render("no media")
	}
	badge := p.Media.String()
	icon := IconWaiting
	switch p.Media {
	case media.StateConnected:
		icon = IconConnected
	case media.StateFailed:
		icon = IconFailed
	}
	if m.stats != nil && !p.Self {
		if s, ok := m.stats(p.ID); ok && s.Bytes > 0 {
			badge += " " + formatBytes(int64(s.Bytes))
		}
	}
	return MutedStyle.Render(icon + " " + badge)
}

func (m *CallModel) chatView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(IconChat + " Chat"))
	b.WriteString("\n")

	chat := m.snap.Chat
	if len(chat) > chatLines {
		chat = chat[len(chat)-chatLines:]
	}
	if len(chat) == 0 {
		b.WriteString(MutedStyle.Render("no messages yet"))
	}
	for _, s := range chat {
		from := s.FromName
		if s.FromID == m.snap.Room.SelfID {
			from = "you"
		}
		line := fmt.Sprintf("%s %s: %s", MutedStyle.Render(s.CreatedAt.Local().Format("15:04")), BoldStyle.Render(from), s.Payload)
		if s.Private {
			line = PrivateStyle.Render(fmt.Sprintf("%s → %s: %s", from, s.ToName, s.Payload))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
