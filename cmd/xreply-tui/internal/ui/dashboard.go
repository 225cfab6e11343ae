package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
)

// createDashboardPanel creates the license and activity overview.
func (a *App) createDashboardPanel() {
	a.licenseBox = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	a.licenseBox.SetBorder(true).SetTitle(" License ")

	a.usageBox = tview.NewTextView().
		SetDynamicColors(true)
	a.usageBox.SetBorder(true).SetTitle(" Usage ")

	a.eventsBox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.eventsBox.SetBorder(true).SetTitle(" Recent Activity ")

	topRow := tview.NewFlex().
		AddItem(a.licenseBox, 0, 1, false).
		AddItem(a.usageBox, 0, 1, false)

	a.dashboardView = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(a.eventsBox, 0, 2, true)

	a.dashboardView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'k':
			a.showLicenseKeyForm()
			return nil
		case 'p':
			go a.openLicenseAction()
			return nil
		}
		return event
	})
}

// refreshDashboard reloads the license card and activity feed.
func (a *App) refreshDashboard(cached bool) {
	ctx, cancel := a.requestContext()
	defer cancel()

	st, err := a.api.License(ctx, cached)
	if err != nil {
		a.reportError("load license", err)
		return
	}
	events, err := a.api.Events(ctx, 20)
	if err != nil {
		a.reportError("load activity", err)
		return
	}

	a.mu.Lock()
	a.license = st
	a.mu.Unlock()

	a.app.QueueUpdateDraw(func() {
		a.licenseBox.SetText(renderLicense(st))
		a.usageBox.SetText(renderUsage(st.Usage))
		a.eventsBox.SetText(renderEvents(events.Events))
	})

	if st.Offline {
		a.updateStatusBar("[yellow]Offline: showing cached license")
	} else {
		a.updateStatusBar("[green]Connected")
	}
}

// openLicenseAction follows the empty-state link, or the pricing page.
func (a *App) openLicenseAction() {
	a.mu.RLock()
	st := a.license
	a.mu.RUnlock()

	url := service.PricingURL
	if st != nil && st.Empty != nil && st.Empty.URL != "" {
		url = st.Empty.URL
	}
	a.open(url)
}

// showLicenseKeyForm asks for a new license key in a modal.
func (a *App) showLicenseKeyForm() {
	form := tview.NewForm()
	form.AddPasswordField("License key", "", 48, '*', nil)
	form.AddButton("Save", func() {
		key := form.GetFormItem(0).(*tview.InputField).GetText()
		a.pages.RemovePage("licenseKey")
		go func() {
			ctx, cancel := a.requestContext()
			defer cancel()
			if err := a.api.SetLicenseKey(ctx, key); err != nil {
				a.reportError("save license key", err)
				return
			}
			a.refreshDashboard(false)
		}()
	})
	form.AddButton("Cancel", func() {
		a.pages.RemovePage("licenseKey")
	})
	form.SetCancelFunc(func() {
		a.pages.RemovePage("licenseKey")
	})
	form.SetBorder(true).SetTitle(" Set license key ")

	a.pages.AddPage("licenseKey", modal(form, 64, 7), true, true)
	a.app.SetFocus(form)
}

// modal centers p in a fixed-size box.
func modal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

var pillColors = map[string]string{
	"active":     "green",
	"expired":    "red",
	"no-license": "yellow",
	"loading":    "white",
}

// renderLicense formats the pill and, when present, the empty state.
func renderLicense(st *service.LicenseStatus) string {
	var b strings.Builder

	color := pillColors[st.PillClass]
	if color == "" {
		color = "white"
	}
	fmt.Fprintf(&b, "[%s::b]%s[white::-]", color, st.Pill)
	if st.Offline {
		b.WriteString(" [yellow](offline)[white]")
	}
	b.WriteString("\n\n")

	if st.Empty != nil {
		fmt.Fprintf(&b, "[white::b]%s[white::-]\n%s\n\n", st.Empty.Title, st.Empty.Message)
		if st.Empty.URL != "" {
			fmt.Fprintf(&b, "[cyan]p[white] %s\n", st.Empty.CTA)
		} else {
			fmt.Fprintf(&b, "[cyan]k[white] %s\n", st.Empty.CTA)
		}
		return b.String()
	}

	if st.Info != nil && st.Info.ExpiresAt != "" {
		fmt.Fprintf(&b, "Expires: %s\n", st.Info.ExpiresAt)
	}
	b.WriteString("[dim]k: change key  p: pricing[white]")
	return b.String()
}

var usageColors = map[string]string{
	"low":  "yellow",
	"zero": "red",
}

// renderUsage formats the plan card with a progress bar.
func renderUsage(u *service.Usage) string {
	if u == nil {
		return "[dim]No usage data[white]"
	}

	remainingColor := usageColors[u.RemainingClass]
	if remainingColor == "" {
		remainingColor = "white"
	}
	barColor := usageColors[u.ProgressClass]
	if barColor == "" {
		barColor = "green"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[white::b]Plan:[white::-] %s\n", u.Plan)
	fmt.Fprintf(&b, "[white::b]Remaining today:[white::-] [%s]%s[white]\n\n", remainingColor, u.Remaining)
	fmt.Fprintf(&b, "[%s]%s[white] %.0f%%", barColor, progressBar(u.ProgressPct, 30), u.ProgressPct)
	return b.String()
}

// progressBar draws pct (0-100) as a bar of width cells.
func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

var severityColors = map[domain.EventSeverity]string{
	domain.EventSeverityWarning: "yellow",
	domain.EventSeverityError:   "red",
}

// renderEvents formats the activity feed, newest first.
func renderEvents(events []domain.Event) string {
	if len(events) == 0 {
		return "[dim]No recent activity[white]"
	}

	var b strings.Builder
	for _, e := range events {
		color := severityColors[e.Severity]
		if color == "" {
			color = "white"
		}
		fmt.Fprintf(&b, "[dim]%s[white] [%s]%-8s[white] %s\n",
			e.Timestamp.Local().Format("15:04:05"), color, e.Category, e.Message)
	}
	return b.String()
}
