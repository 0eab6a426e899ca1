package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"kobomedia/pkg/harvester"
)

// ErrAborted is returned by Run when the user quit before the run ended
var ErrAborted = errors.New("run aborted by user")

// TUI shows a running download. It implements harvester.Reporter so the
// harvester can feed it directly.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a TUI for assetUID. Extra program options are passed
// through to bubbletea, which tests use to swap the input and output.
func NewTUI(assetUID string, opts ...tea.ProgramOption) *TUI {
	model := NewModel(assetUID)
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Report forwards a run event
func (t *TUI) Report(ev harvester.Event) {
	t.program.Send(EventMsg(ev))
}

// Progress forwards the running totals
func (t *TUI) Progress(stats harvester.Stats) {
	t.program.Send(StatsMsg(stats))
}

// Run starts work in the background and drives the interface until work
// returns or the user quits. Quitting early cancels the context handed to
// work; its result is still returned once it has stopped.
func (t *TUI) Run(ctx context.Context, work func(ctx context.Context, reporter harvester.Reporter) (*harvester.Result, error)) (*harvester.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result *harvester.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := work(ctx, t)
		t.program.Send(DoneMsg{Result: result, Err: err})
		done <- outcome{result, err}
	}()

	_, uiErr := t.program.Run()
	if uiErr != nil || t.model.Aborted() {
		cancel()
	}
	out := <-done

	switch {
	case uiErr != nil:
		return out.result, errors.Join(out.err, uiErr)
	case t.model.Aborted() && out.err != nil:
		return out.result, errors.Join(ErrAborted, out.err)
	}
	return out.result, out.err
}
