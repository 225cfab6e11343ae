package ui

import (
	"github.com/rivo/tview"
)

// createHelpPanel creates the help panel.
func (a *App) createHelpPanel() {
	a.helpView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.helpView.SetBorder(true).SetTitle(" Help ")

	helpText := `[yellow::b]xreply TUI[white]

Manage the xreply server from the terminal: license, reply settings,
modes, personas and reply history.

[yellow::b]GLOBAL NAVIGATION[white]
[cyan]1[white] or [cyan]F1[white]     Dashboard      - License status and recent activity
[cyan]2[white] or [cyan]F2[white]     Settings       - Length, tone and humanize
[cyan]3[white] or [cyan]F3[white]     Modes          - Enable or disable reply modes
[cyan]4[white] or [cyan]F4[white]     Personas       - Pick or add a voice
[cyan]5[white] or [cyan]F5[white]     History        - Recent generated replies
[cyan]o[white]            Open X         - Open x.com in your browser
[cyan]?[white]            Help           - This help screen
[cyan]r[white]            Refresh        - Reload everything from the server
[cyan]q[white]            Quit           - Exit the application
[cyan]Escape[white]       Dashboard      - Return to dashboard

[yellow::b]DASHBOARD[white]
[cyan]k[white]            Set or change the license key
[cyan]p[white]            Open the pricing page (or the license action link)

The license pill is refreshed from the server cache every few seconds.
[yellow](offline)[white] means the last known status is shown because the
license server could not be reached.

[yellow::b]SETTINGS[white]
[cyan]Tab[white]          Move between fields
[cyan]Enter[white]        Activate a button

[yellow::b]MODES[white]
[cyan]Enter[white]/[cyan]Space[white]  Toggle the selected mode
At least one mode must stay enabled for the reply buttons to show.

[yellow::b]PERSONAS[white]
[cyan]Enter[white]        Use the selected persona
[cyan]d[white]            Use the default voice
[cyan]Tab[white]          Jump to the new persona form

[yellow::b]HISTORY[white]
[cyan]Enter[white]        Open the tweet in your browser
[cyan]c[white]            Clear history

[yellow::b]CONFIGURATION[white]
The TUI reads config.yaml from the xreply config directory.
Environment variables override the file:

[cyan]XREPLY_SERVER_URL[white]       Server base URL (default: http://localhost:8080)
[cyan]XREPLY_API_KEY[white]          API key sent as X-API-Key
[cyan]XREPLY_STATUS_REFRESH[white]   Dashboard refresh interval (default: 10s)
[cyan]XREPLY_TUI_LOG[white]          Log file path

[dim]Press any navigation key to return to a panel[white]
`

	a.helpView.SetText(helpText)
}
