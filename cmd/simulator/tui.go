package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/signalsfoundry/gravity-simulator/core"
	"github.com/signalsfoundry/gravity-simulator/internal/tui"
	"github.com/signalsfoundry/gravity-simulator/timectrl"
)

func runTUI(ctx context.Context, engine *core.SimulationEngine, tc *timectrl.TimeController) error {
	model := tui.New(ctx, engine, tc, tc.Interval)
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return err
	}
	if m, ok := final.(tui.Model); ok {
		return m.Err()
	}
	return nil
}
