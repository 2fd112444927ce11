package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"mica/internal/compiler"
	"mica/internal/ui"
)

// runBuildWithUI drives the build in a goroutine while the progress model
// owns the terminal. Stage completions flow through the events channel; the
// model quits when it closes.
func runBuildWithUI(title string, comp *compiler.Compiler) (*compiler.Result, error) {
	events := make(chan ui.Event, 8)
	lastStage := compiler.StageParser
	comp.WithStageObserver(func(st compiler.Stage) {
		lastStage = st
		events <- ui.Event{Stage: st}
	})

	var (
		res      *compiler.Result
		buildErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(events)
		res, buildErr = comp.Build()
		if buildErr == nil && res.Failed() && lastStage < compiler.StageCompilation {
			events <- ui.Event{Stage: lastStage + 1, Err: true}
		}
	}()

	prog := tea.NewProgram(ui.NewProgressModel(title, events))
	if _, err := prog.Run(); err != nil {
		<-done
		return res, fmt.Errorf("progress ui: %w", err)
	}
	<-done
	return res, buildErr
}
