package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner is a blocking line spinner for work that happens before the call
// view takes over the terminal, such as dialing the coordinator.
type Spinner struct {
	out      io.Writer
	frames   spinner.Spinner
	interval time.Duration

	mu      sync.Mutex
	message string
	started bool
	stopped bool
	done    chan struct{}
	exited  chan struct{}
}

// NewConnectionSpinner uses the globe frames for network waits.
func NewConnectionSpinner(message string) *Spinner {
	return newSpinner(os.Stdout, spinner.Globe, 180*time.Millisecond, message)
}

// NewWaitingSpinner uses the points frames for waits on other participants.
func NewWaitingSpinner(message string) *Spinner {
	return newSpinner(os.Stdout, spinner.Points, 100*time.Millisecond, message)
}

func newSpinner(out io.Writer, frames spinner.Spinner, interval time.Duration, message string) *Spinner {
	return &Spinner{
		out:      out,
		frames:   frames,
		interval: interval,
		message:  message,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

func (s *Spinner) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.exited)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			frame := SpinnerStyle.Render(s.frames.Frames[i%len(s.frames.Frames)])
			fmt.Fprintf(s.out, "\r%s %s", frame, msg)

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the spinner and clears its line. Later calls do nothing.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	close(s.done)
	if started {
		<-s.exited
	}
	fmt.Fprint(s.out, "\r\033[K")
}

func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render(IconSuccess), message)
}

func (s *Spinner) Error(message string) {
	s.Stop()
	fmt.Fprintf(s.out, "%s %s\n", ErrorStyle.Render(IconError), message)
}
