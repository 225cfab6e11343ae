package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/xreply/cmd/xreply-tui/internal/client"
)

// createPersonasPanel creates the persona list and the add form.
func (a *App) createPersonasPanel() {
	a.personasTable = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.personasTable.SetBorder(true).SetTitle(" Personas (Enter: use, d: default voice) ")

	a.personasTable.SetSelectedFunc(func(row, _ int) {
		a.mu.RLock()
		p := a.personas
		a.mu.RUnlock()
		if p == nil || row < 1 || row > len(p.Personas) {
			return
		}
		go a.setActivePersona(p.Personas[row-1].ID)
	})
	a.personasTable.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyTab:
			a.app.SetFocus(a.personaForm)
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'd':
			go a.setActivePersona("")
			return nil
		}
		return event
	})

	a.personaForm = tview.NewForm().
		AddInputField("Name", "", 30, nil, nil).
		AddInputField("Description", "", 60, nil, nil)
	a.personaForm.AddButton("Add", func() {
		name := a.personaForm.GetFormItemByLabel("Name").(*tview.InputField).GetText()
		desc := a.personaForm.GetFormItemByLabel("Description").(*tview.InputField).GetText()
		go a.addPersona(name, desc)
	})
	a.personaForm.SetCancelFunc(func() {
		a.app.SetFocus(a.personasTable)
	})
	a.personaForm.SetBorder(true).SetTitle(" New persona (Esc: back to list) ")

	a.personasView = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.personasTable, 0, 2, true).
		AddItem(a.personaForm, 9, 0, false)
}

// refreshPersonas reloads the persona list.
func (a *App) refreshPersonas() {
	ctx, cancel := a.requestContext()
	defer cancel()

	p, err := a.api.Personas(ctx)
	if err != nil {
		a.reportError("load personas", err)
		return
	}
	a.applyPersonas(p)
}

func (a *App) applyPersonas(p *client.Personas) {
	a.mu.Lock()
	a.personas = p
	a.mu.Unlock()

	a.app.QueueUpdateDraw(func() {
		a.fillPersonasTable(p)
	})
}

func (a *App) setActivePersona(id string) {
	ctx, cancel := a.requestContext()
	defer cancel()

	p, err := a.api.SetActivePersona(ctx, id)
	if err != nil {
		a.reportError("set persona", err)
		return
	}
	a.applyPersonas(p)
	if id == "" {
		a.updateStatusBar("[green]Using the default voice")
	} else {
		a.updateStatusBar("[green]Persona selected")
	}
}

func (a *App) addPersona(name, description string) {
	ctx, cancel := a.requestContext()
	defer cancel()

	p, err := a.api.AddPersona(ctx, name, description)
	if err != nil {
		a.reportError("add persona", err)
		return
	}
	a.applyPersonas(p)
	a.app.QueueUpdateDraw(func() {
		a.personaForm.GetFormItemByLabel("Name").(*tview.InputField).SetText("")
		a.personaForm.GetFormItemByLabel("Description").(*tview.InputField).SetText("")
		a.app.SetFocus(a.personasTable)
	})
	a.updateStatusBar("[green]Persona added")
}

// fillPersonasTable renders p. Must run on the UI goroutine.
func (a *App) fillPersonasTable(p *client.Personas) {
	a.personasTable.Clear()
	a.personasTable.SetTitle(fmt.Sprintf(" Personas %d/%d (Enter: use, d: default voice) ", len(p.Personas), p.MaxPersonas))

	headers := []string{"", "NAME", "DESCRIPTION"}
	for col, h := range headers {
		a.personasTable.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}

	for i, persona := range p.Personas {
		mark := ""
		if persona.ID == p.ActivePersonaID {
			mark = "*"
		}
		a.personasTable.SetCell(i+1, 0, tview.NewTableCell(mark).SetTextColor(tcell.ColorGreen))
		a.personasTable.SetCell(i+1, 1, tview.NewTableCell(persona.DisplayName()))
		a.personasTable.SetCell(i+1, 2, tview.NewTableCell(truncateString(persona.Description, 80)).SetExpansion(1))
	}
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
