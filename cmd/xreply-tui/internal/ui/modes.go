package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/xreply/cmd/xreply-tui/internal/client"
)

// createModesPanel creates the reply modes table.
func (a *App) createModesPanel() {
	a.modesTable = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.modesTable.SetBorder(true).SetTitle(" Reply Modes (Enter/Space: toggle) ")

	a.modesTable.SetSelectedFunc(func(row, _ int) {
		a.toggleMode(row)
	})
	a.modesTable.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune && event.Rune() == ' ' {
			row, _ := a.modesTable.GetSelection()
			a.toggleMode(row)
			return nil
		}
		return event
	})
}

// refreshModes reloads the modes table.
func (a *App) refreshModes() {
	ctx, cancel := a.requestContext()
	defer cancel()

	m, err := a.api.Modes(ctx)
	if err != nil {
		a.reportError("load modes", err)
		return
	}
	a.applyModes(m)
}

func (a *App) applyModes(m *client.Modes) {
	a.mu.Lock()
	a.modes = m.Modes
	a.mu.Unlock()

	a.app.QueueUpdateDraw(func() {
		a.fillModesTable(m)
	})
	if m.Notice != "" {
		a.updateStatusBar("[yellow]" + m.Notice)
	}
}

// toggleMode flips the mode on the given table row.
func (a *App) toggleMode(row int) {
	a.mu.RLock()
	idx := row - 1
	if idx < 0 || idx >= len(a.modes) {
		a.mu.RUnlock()
		return
	}
	mode := a.modes[idx]
	a.mu.RUnlock()

	go func() {
		ctx, cancel := a.requestContext()
		defer cancel()

		m, err := a.api.SetModeEnabled(ctx, mode, !mode.Enabled)
		if err != nil {
			a.reportError("update mode", err)
			return
		}
		a.applyModes(m)
	}()
}

// fillModesTable renders m. Must run on the UI goroutine.
func (a *App) fillModesTable(m *client.Modes) {
	a.modesTable.Clear()

	headers := []string{"ENABLED", "ID", "LABEL"}
	for col, h := range headers {
		a.modesTable.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}

	for i, mode := range m.Modes {
		mark, color := "[ ]", tcell.ColorGray
		if mode.Enabled {
			mark, color = "[x]", tcell.ColorGreen
		}
		a.modesTable.SetCell(i+1, 0, tview.NewTableCell(mark).SetTextColor(color))
		a.modesTable.SetCell(i+1, 1, tview.NewTableCell(mode.ID))
		a.modesTable.SetCell(i+1, 2, tview.NewTableCell(mode.Label).SetExpansion(1))
	}
}
