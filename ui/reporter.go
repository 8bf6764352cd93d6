package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ProgressReporter shows run progress in a bubbletea program. Its methods
// match mirror.Reporter and are safe to call from any goroutine.
type ProgressReporter struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewProgressReporter starts the program. onQuit runs when the user quits
// with q or ctrl+c; pass the cancel func of the run's context.
func NewProgressReporter(title string, onQuit func(), opts ...tea.ProgramOption) *ProgressReporter {
	r := &ProgressReporter{
		program: tea.NewProgram(newProgressModel(title, onQuit), opts...),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		_, r.err = r.program.Run()
	}()
	return r
}

func (r *ProgressReporter) Start(total int) { r.program.Send(startMsg{total: total}) }

func (r *ProgressReporter) Completed(unit string) { r.program.Send(unitMsg{unit: unit}) }

func (r *ProgressReporter) Failed(unit string, err error) {
	r.program.Send(unitMsg{unit: unit, err: err})
}

func (r *ProgressReporter) DownloadStarted(name string, size int64) {
	r.program.Send(downloadStartMsg{name: name, size: size})
}

func (r *ProgressReporter) DownloadProgress(name string, n int64) {
	r.program.Send(downloadProgressMsg{name: name, n: n})
}

func (r *ProgressReporter) DownloadFinished(name string) {
	r.program.Send(downloadFinishMsg{name: name})
}

// Finish renders the final state and waits for the program to exit.
func (r *ProgressReporter) Finish() {
	r.program.Send(finishMsg{})
	<-r.done
}

// Wait blocks until the program exits and returns its error.
func (r *ProgressReporter) Wait() error {
	<-r.done
	return r.err
}

// Close stops the program if it is still running and waits for it to exit.
func (r *ProgressReporter) Close() error {
	r.program.Quit()
	return r.Wait()
}
