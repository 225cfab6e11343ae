package ui

import (
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/xreply/internal/domain"
)

// createHistoryPanel creates the reply history table.
func (a *App) createHistoryPanel() {
	a.historyTable = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.historyTable.SetBorder(true).SetTitle(" History (Enter: open tweet, c: clear) ")

	a.historyTable.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune && event.Rune() == 'c' {
			go a.clearHistory()
			return nil
		}
		return event
	})
}

// refreshHistory reloads the history table.
func (a *App) refreshHistory() {
	ctx, cancel := a.requestContext()
	defer cancel()

	items, err := a.api.History(ctx)
	if err != nil {
		a.reportError("load history", err)
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.fillHistoryTable(items)
	})
}

func (a *App) clearHistory() {
	ctx, cancel := a.requestContext()
	defer cancel()

	if err := a.api.ClearHistory(ctx); err != nil {
		a.reportError("clear history", err)
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.fillHistoryTable(nil)
	})
	a.updateStatusBar("[green]History cleared")
}

// fillHistoryTable renders items. Must run on the UI goroutine.
func (a *App) fillHistoryTable(items []domain.HistoryItem) {
	a.historyTable.Clear()

	headers := []string{"TIME", "MODE", "PERSONA", "REPLY"}
	for col, h := range headers {
		a.historyTable.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}

	if len(items) == 0 {
		a.historyTable.SetCell(1, 0, tview.NewTableCell("No replies yet").
			SetTextColor(tcell.ColorGray).
			SetSelectable(false))
		a.historyTable.SetSelectedFunc(nil)
		return
	}

	for i, item := range items {
		a.historyTable.SetCell(i+1, 0, tview.NewTableCell(formatTimestamp(item.Timestamp)))
		a.historyTable.SetCell(i+1, 1, tview.NewTableCell(item.Mode).SetTextColor(tcell.ColorAqua))
		a.historyTable.SetCell(i+1, 2, tview.NewTableCell(item.PersonaName))
		a.historyTable.SetCell(i+1, 3, tview.NewTableCell(oneLine(item.ReplyText, 100)).SetExpansion(1))
	}

	a.historyTable.SetSelectedFunc(func(row, _ int) {
		if row < 1 || row > len(items) || items[row-1].TweetURL == "" {
			return
		}
		go a.open(items[row-1].TweetURL)
	})
}

// formatTimestamp renders unix milliseconds as local time.
func formatTimestamp(ms int64) string {
	t := time.UnixMilli(ms).Local()
	if time.Since(t) < 24*time.Hour {
		return t.Format("15:04:05")
	}
	return t.Format("Jan 02 15:04")
}

// oneLine collapses whitespace and truncates s.
func oneLine(s string, maxLen int) string {
	return truncateString(strings.Join(strings.Fields(s), " "), maxLen)
}
