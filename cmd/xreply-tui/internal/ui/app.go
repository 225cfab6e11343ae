// Package ui provides the terminal user interface for the xreply TUI.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/browser"
	"github.com/rivo/tview"

	"github.com/iconidentify/xreply/cmd/xreply-tui/internal/client"
	"github.com/iconidentify/xreply/cmd/xreply-tui/internal/config"
	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
)

// XURL is opened with the o key.
const XURL = "https://x.com/home"

// Panel represents a UI panel type.
type Panel int

const (
	PanelDashboard Panel = iota
	PanelSettings
	PanelModes
	PanelPersonas
	PanelHistory
	PanelHelp
)

var panelNames = map[Panel]string{
	PanelDashboard: "Dashboard",
	PanelSettings:  "Settings",
	PanelModes:     "Reply Modes",
	PanelPersonas:  "Personas",
	PanelHistory:   "History",
	PanelHelp:      "Help",
}

var panelPages = map[Panel]string{
	PanelDashboard: "dashboard",
	PanelSettings:  "settings",
	PanelModes:     "modes",
	PanelPersonas:  "personas",
	PanelHistory:   "history",
	PanelHelp:      "help",
}

// App is the main TUI application.
type App struct {
	app          *tview.Application
	pages        *tview.Pages
	cfg          *config.Config
	api          *client.Client
	logger       *slog.Logger
	currentPanel Panel
	ctx          context.Context
	cancel       context.CancelFunc

	// openURL is browser.OpenURL outside tests.
	openURL func(string) error

	// UI components
	header        *tview.TextView
	footer        *tview.TextView
	statusBar     *tview.TextView
	dashboardView *tview.Flex
	licenseBox    *tview.TextView
	usageBox      *tview.TextView
	eventsBox     *tview.TextView
	settingsView  *tview.Flex
	settingsForm  *tview.Form
	modesTable    *tview.Table
	personasView  *tview.Flex
	personasTable *tview.Table
	personaForm   *tview.Form
	historyTable  *tview.Table
	helpView      *tview.TextView

	// State
	mu       sync.RWMutex
	license  *service.LicenseStatus
	modes    []domain.ModeConfig
	personas *client.Personas
}

// NewApp creates a new TUI application.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		cfg:     cfg,
		api:     client.NewClient(cfg.ServerURL, cfg.APIKey),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		openURL: browser.OpenURL,
	}

	a.setupUI()
	return a, nil
}

// setupUI initializes all UI components.
func (a *App) setupUI() {
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)
	a.updateHeader()

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]1[white]:Dashboard [yellow]2[white]:Settings [yellow]3[white]:Modes [yellow]4[white]:Personas [yellow]5[white]:History [yellow]o[white]:Open X [yellow]?[white]:Help [yellow]q[white]:Quit")
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	a.statusBar = tview.NewTextView().
		SetDynamicColors(true)
	a.statusBar.SetBackgroundColor(tcell.ColorDarkGreen)

	a.createDashboardPanel()
	a.createSettingsPanel()
	a.createModesPanel()
	a.createPersonasPanel()
	a.createHistoryPanel()
	a.createHelpPanel()

	a.pages.AddPage("dashboard", a.dashboardView, true, true)
	a.pages.AddPage("settings", a.settingsView, true, false)
	a.pages.AddPage("modes", a.modesTable, true, false)
	a.pages.AddPage("personas", a.personasView, true, false)
	a.pages.AddPage("history", a.historyTable, true, false)
	a.pages.AddPage("help", a.helpView, true, false)

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 3, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false).
		AddItem(a.footer, 1, 0, false)

	a.app.SetInputCapture(a.handleGlobalKeys)
	a.app.SetRoot(mainFlex, true)
}

// typing reports whether focus is in a text input.
func (a *App) typing() bool {
	switch a.app.GetFocus().(type) {
	case *tview.InputField, *tview.TextArea:
		return true
	}
	return false
}

// handleGlobalKeys handles global keyboard shortcuts.
func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	if a.typing() {
		return event
	}

	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case '1':
			a.switchPanel(PanelDashboard)
			return nil
		case '2':
			a.switchPanel(PanelSettings)
			return nil
		case '3':
			a.switchPanel(PanelModes)
			return nil
		case '4':
			a.switchPanel(PanelPersonas)
			return nil
		case '5':
			a.switchPanel(PanelHistory)
			return nil
		case '?':
			a.switchPanel(PanelHelp)
			return nil
		case 'o', 'O':
			go a.open(XURL)
			return nil
		case 'q', 'Q':
			a.Stop()
			return nil
		case 'r', 'R':
			go a.refreshAll()
			return nil
		}
	case tcell.KeyF1:
		a.switchPanel(PanelDashboard)
		return nil
	case tcell.KeyF2:
		a.switchPanel(PanelSettings)
		return nil
	case tcell.KeyF3:
		a.switchPanel(PanelModes)
		return nil
	case tcell.KeyF4:
		a.switchPanel(PanelPersonas)
		return nil
	case tcell.KeyF5:
		a.switchPanel(PanelHistory)
		return nil
	case tcell.KeyEscape:
		a.switchPanel(PanelDashboard)
		return nil
	}

	return event
}

// switchPanel switches to the specified panel.
func (a *App) switchPanel(panel Panel) {
	a.currentPanel = panel
	a.pages.SwitchToPage(panelPages[panel])

	switch panel {
	case PanelSettings:
		a.app.SetFocus(a.settingsForm)
	case PanelModes:
		a.app.SetFocus(a.modesTable)
	case PanelPersonas:
		a.app.SetFocus(a.personasTable)
	case PanelHistory:
		a.app.SetFocus(a.historyTable)
		go a.refreshHistory()
	}

	a.updateHeader()
}

// updateHeader updates the header with the current panel name.
func (a *App) updateHeader() {
	a.header.SetText(fmt.Sprintf("\n[white::b]xreply[white] - [yellow]%s[white] | Server: [green]%s",
		panelNames[a.currentPanel], a.cfg.ServerURL))
}

// updateStatusBar updates the status bar. Safe from any goroutine.
func (a *App) updateStatusBar(msg string) {
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetText(fmt.Sprintf(" %s | Last refresh: %s", msg, time.Now().Format("15:04:05")))
	})
}

// reportError logs err and shows it in the status bar.
func (a *App) reportError(op string, err error) {
	a.logger.Warn(op+" failed", "error", err)
	a.updateStatusBar(fmt.Sprintf("[red]%s: %v", op, err))
}

// open launches url in the system browser.
func (a *App) open(url string) {
	if err := a.openURL(url); err != nil {
		a.reportError("open browser", err)
		return
	}
	a.updateStatusBar("Opened " + url)
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.startBackgroundRefresh()
	go a.refreshAll()

	return a.app.Run()
}

// Stop stops the TUI application.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// startBackgroundRefresh polls the license and activity.
func (a *App) startBackgroundRefresh() {
	ticker := time.NewTicker(a.cfg.StatusRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.refreshDashboard(true)
		}
	}
}

// refreshAll reloads every panel. The license check goes to the remote
// server once; later polls use the cached status.
func (a *App) refreshAll() {
	a.updateStatusBar("Refreshing...")
	a.refreshDashboard(false)
	a.refreshSettings()
	a.refreshModes()
	a.refreshPersonas()
	a.refreshHistory()
}

func (a *App) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(a.ctx, 30*time.Second)
}
