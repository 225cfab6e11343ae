package ui

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/iconidentify/xreply/cmd/xreply-tui/internal/client"
	"github.com/iconidentify/xreply/internal/domain"
)

var tones = []domain.Tone{
	domain.ToneNeutral,
	domain.ToneDegen,
	domain.ToneProfessional,
	domain.ToneToxic,
}

// createSettingsPanel creates the global settings form.
func (a *App) createSettingsPanel() {
	a.settingsForm = tview.NewForm()
	a.settingsForm.SetBorder(true).SetTitle(" Global Settings ")

	info := tview.NewTextView().
		SetDynamicColors(true).
		SetText("[dim]These settings apply to every reply mode.\nPurge cache to drop replies generated before a change.[white]")
	info.SetBorder(true).SetTitle(" About ")

	a.settingsView = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.settingsForm, 0, 3, true).
		AddItem(info, 5, 0, false)
}

// refreshSettings reloads the form from the server.
func (a *App) refreshSettings() {
	ctx, cancel := a.requestContext()
	defer cancel()

	s, err := a.api.Settings(ctx)
	if err != nil {
		a.reportError("load settings", err)
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.fillSettingsForm(s)
	})
}

// fillSettingsForm rebuilds the form for s. Must run on the UI goroutine.
func (a *App) fillSettingsForm(s *client.Settings) {
	form := a.settingsForm
	form.Clear(true)

	labels := segmentLabels(s.LengthSegments, s.Settings.MaxChars)
	lengthIdx := segmentIndex(s.LengthSegments, s.Settings.MaxChars)
	if lengthIdx < 0 {
		lengthIdx = len(labels) - 1
	}
	toneLabels := make([]string, len(tones))
	toneIdx := 0
	for i, t := range tones {
		toneLabels[i] = t.String()
		if t == s.Settings.Tone {
			toneIdx = i
		}
	}

	form.AddDropDown("Length", labels, lengthIdx, nil)
	form.AddDropDown("Tone", toneLabels, toneIdx, nil)
	form.AddCheckbox("Humanize", s.Settings.Humanize, nil)

	form.AddButton("Save", func() {
		idx, _ := form.GetFormItemByLabel("Length").(*tview.DropDown).GetCurrentOption()
		maxChars := s.Settings.MaxChars
		if idx >= 0 && idx < len(s.LengthSegments) {
			maxChars = s.LengthSegments[idx].MaxChars
		}
		tIdx, _ := form.GetFormItemByLabel("Tone").(*tview.DropDown).GetCurrentOption()
		patch := map[string]any{
			"maxChars": maxChars,
			"tone":     tones[tIdx].String(),
			"humanize": form.GetFormItemByLabel("Humanize").(*tview.Checkbox).IsChecked(),
		}
		go a.saveSettings(patch)
	})
	form.AddButton("Purge cache", func() {
		go a.purgeCache()
	})
}

func (a *App) saveSettings(patch map[string]any) {
	ctx, cancel := a.requestContext()
	defer cancel()

	s, err := a.api.UpdateSettings(ctx, patch)
	if err != nil {
		a.reportError("save settings", err)
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.fillSettingsForm(s)
	})
	a.updateStatusBar("[green]Settings saved")
}

func (a *App) purgeCache() {
	ctx, cancel := a.requestContext()
	defer cancel()

	if err := a.api.PurgeCache(ctx); err != nil {
		a.reportError("purge cache", err)
		return
	}
	a.updateStatusBar("[green]Reply cache purged")
}

// segmentIndex returns the preset matching maxChars, or -1.
func segmentIndex(segments []client.LengthSegment, maxChars int) int {
	for i, seg := range segments {
		if seg.MaxChars == maxChars {
			return i
		}
	}
	return -1
}

// segmentLabels lists the presets, plus a custom entry when maxChars
// matches none of them.
func segmentLabels(segments []client.LengthSegment, maxChars int) []string {
	labels := make([]string, 0, len(segments)+1)
	for _, seg := range segments {
		labels = append(labels, fmt.Sprintf("%s (%d chars)", seg.Label, seg.MaxChars))
	}
	if segmentIndex(segments, maxChars) < 0 {
		labels = append(labels, fmt.Sprintf("Custom (%d chars)", maxChars))
	}
	return labels
}
