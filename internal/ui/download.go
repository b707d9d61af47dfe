package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DownloadUI shows one progress bar per recording artifact being fetched.
type DownloadUI struct {
	program *tea.Program
	model   *downloadModel
	out     io.Writer
	wg      sync.WaitGroup
}

type downloadUpdate struct {
	index   int
	written int64
	total   int64
	path    string
	done    bool
	err     error
}

type downloadItem struct {
	name    string
	written int64
	total   int64
	started time.Time
	path    string
	done    bool
	err     error
}

type downloadModel struct {
	items    []*downloadItem
	bars     []progress.Model
	spinner  spinner.Model
	onCancel func()
	quitting bool
	now      func() time.Time
}

// NewDownloadUI prepares a view for the named artifacts. onCancel runs when
// the user presses q or ctrl+c.
func NewDownloadUI(names []string, onCancel func()) *DownloadUI {
	return &DownloadUI{
		model: newDownloadModel(names, onCancel),
		out:   os.Stdout,
	}
}

func newDownloadModel(names []string, onCancel func()) *downloadModel {
	items := make([]*downloadItem, len(names))
	bars := make([]progress.Model, len(names))
	for i, name := range names {
		items[i] = &downloadItem{name: name}
		bars[i] = progress.New(
			progress.WithGradient(ProgressStart, ProgressEnd),
			progress.WithWidth(25),
			progress.WithoutPercentage(),
		)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	if onCancel == nil {
		onCancel = func() {}
	}
	return &downloadModel{
		items:    items,
		bars:     bars,
		spinner:  s,
		onCancel: onCancel,
		now:      time.Now,
	}
}

// Start runs the view inline, keeping earlier terminal output visible.
func (u *DownloadUI) Start() {
	u.program = tea.NewProgram(u.model, tea.WithOutput(u.out))
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		if _, err := u.program.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "UI error: %v\n", err)
		}
	}()
}

// Progress returns a callback reporting bytes written for artifact i.
func (u *DownloadUI) Progress(i int) func(written, total int64) {
	return func(written, total int64) {
		u.send(downloadUpdate{index: i, written: written, total: total})
	}
}

func (u *DownloadUI) Complete(i int, path string) {
	u.send(downloadUpdate{index: i, path: path, done: true})
}

func (u *DownloadUI) Fail(i int, err error) {
	u.send(downloadUpdate{index: i, err: err, done: true})
}

func (u *DownloadUI) send(msg downloadUpdate) {
	if u.program != nil {
		u.program.Send(msg)
	}
}

// Wait blocks until every artifact finished or the user cancelled.
func (u *DownloadUI) Wait() {
	u.wg.Wait()
}

func (m *downloadModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *downloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.onCancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		for i := range m.bars {
			m.bars[i].Width = max(10, min(25, msg.Width-60))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case downloadUpdate:
		if msg.index < 0 || msg.index >= len(m.items) {
			return m, nil
		}
		item := m.items[msg.index]
		switch {
		case msg.err != nil:
			item.err = msg.err
			item.done = true
		case msg.done:
			item.path = msg.path
			item.done = true
			if item.total > 0 {
				item.written = item.total
			}
		default:
			if item.started.IsZero() {
				item.started = m.now()
			}
			item.written = msg.written
			item.total = msg.total
		}
		if m.allDone() {
			return m, tea.Quit
		}

	case progress.FrameMsg:
		var cmds []tea.Cmd
		for i := range m.bars {
			model, cmd := m.bars[i].Update(msg)
			m.bars[i] = model.(progress.Model)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m *downloadModel) allDone() bool {
	for _, item := range m.items {
		if !item.done {
			return false
		}
	}
	return true
}

func (m *downloadModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s Fetching recordings\n\n", IconDownload)

	for i, item := range m.items {
		var icon string
		nameStyle := lipgloss.NewStyle()
		switch {
		case item.err != nil:
			icon, nameStyle = IconError, ErrorStyle
		case item.done:
			icon, nameStyle = IconSuccess, SuccessStyle
		case item.written > 0:
			icon = m.spinner.View()
		default:
			icon, nameStyle = "○", MutedStyle
		}
		fmt.Fprintf(&b, "  %s %s ", icon, nameStyle.Width(24).Render(truncateString(item.name, 22)))

		if item.err != nil {
			b.WriteString(ErrorStyle.Render(item.err.Error()))
			b.WriteString("\n")
			continue
		}

		if item.total > 0 {
			ratio := float64(item.written) / float64(item.total)
			b.WriteString(m.bars[i].ViewAs(ratio))
			fmt.Fprintf(&b, " %5.1f%%", ratio*100)
		}

		if !item.done && item.written > 0 && !item.started.IsZero() {
			elapsed := m.now().Sub(item.started)
			if elapsed > 0 {
				speed := float64(item.written) / elapsed.Seconds()
				b.WriteString(MutedStyle.Render(" " + formatSpeed(speed)))
				if remaining := item.total - item.written; remaining > 0 && speed > 0 {
					eta := time.Duration(float64(remaining) / speed * float64(time.Second))
					b.WriteString(MutedStyle.Render(" ETA: " + formatDuration(eta)))
				}
			}
		}
		b.WriteString(MutedStyle.Render(fmt.Sprintf(" (%s/%s)", formatBytes(item.written), formatBytes(item.total))))
		b.WriteString("\n")
	}

	b.WriteString("\n" + MutedStyle.Render("Press q to cancel"))
	return b.String()
}
