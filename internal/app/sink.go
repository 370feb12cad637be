package app

import (
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/packgrab/internal/progress"
)

// Sink feeds status updates into a running bubbletea program.
type Sink struct {
	model   *Model
	program *tea.Program

	startOnce sync.Once
	done      chan struct{}
	err       error
}

// NewSink prepares a view for total ids that renders to out. The program
// reads no input and installs no signal handler.
func NewSink(total int, out io.Writer) *Sink {
	m := NewModel(total)
	p := tea.NewProgram(m,
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	return &Sink{model: m, program: p, done: make(chan struct{})}
}

// Start runs the program in the background.
func (s *Sink) Start() {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.done)
			_, s.err = s.program.Run()
		}()
	})
}

// Push implements progress.Sink. It blocks until the program accepts the
// message, so Start must be called first.
func (s *Sink) Push(id int, status progress.Status, detail string) {
	s.program.Send(NewStatus(id, status, detail))
}

// Stop shows summary in the final frame and waits for the program to exit.
func (s *Sink) Stop(summary string) error {
	s.Start()
	s.program.Send(DoneMsg{Summary: summary})
	<-s.done
	return s.err
}

// Model exposes the view state, mainly for the final counts.
func (s *Sink) Model() *Model { return s.model }
