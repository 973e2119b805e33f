// ABOUTME: Root bubbletea model for the TUI application
// ABOUTME: Feeds user intents to the controller and renders its state inside a framed layout

package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/AsafNachman/file-management-system/internal/controller"
	"github.com/AsafNachman/file-management-system/internal/tui/browser"
	"github.com/AsafNachman/file-management-system/internal/tui/confirm"
	"github.com/AsafNachman/file-management-system/internal/tui/filepicker"
	"github.com/AsafNachman/file-management-system/internal/tui/icons"
	"github.com/AsafNachman/file-management-system/internal/tui/recentfiles"
	"github.com/AsafNachman/file-management-system/internal/tui/signin"
	"github.com/AsafNachman/file-management-system/internal/tui/styles"
	"github.com/AsafNachman/file-management-system/internal/tui/summary"
	"github.com/AsafNachman/file-management-system/internal/view"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Screen represents the current TUI screen
type Screen int

const (
	ScreenSignIn Screen = iota
	ScreenFiles
	ScreenPicker
	ScreenConfirm
	ScreenSummary
)

// Layout constants
const (
	minTerminalWidth = 80 // Minimum width before using single-column layout
	panelPadding     = 4  // Total horizontal padding from panel borders (2 each side)
	actionsMinWidth  = 28
)

// eventMsg carries a controller event through the bubbletea loop
type eventMsg struct {
	ev controller.Event
}

// App is the root model for the TUI
type App struct {
	ctx     context.Context
	ctrl    *controller.Controller
	backend string
	screen  Screen
	width   int
	height  int

	state      controller.State
	lastUpdate time.Time

	// Child models
	signIn  *signin.SignIn
	browser *browser.Browser
	picker  *filepicker.FilePicker
	confirm *confirm.Confirm
	summary *summary.Summary

	// Recent files manager
	recentFiles *recentfiles.RecentFiles
}

// New creates a new TUI application over ctrl. backend is shown in the header.
func New(ctx context.Context, ctrl *controller.Controller, backend string, recent *recentfiles.RecentFiles) *App {
	if recent == nil {
		recent = recentfiles.New(recentfiles.DefaultConfigDir())
	}
	return &App{
		ctx:         ctx,
		ctrl:        ctrl,
		backend:     backend,
		screen:      ScreenSignIn,
		signIn:      signin.New(backend),
		browser:     browser.New(minTerminalWidth, 20),
		summary:     summary.New(minTerminalWidth),
		recentFiles: recent,
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.signIn.Init(), a.dispatch(controller.SessionChanged{}))
}

// dispatch applies ev to the controller, refreshes child views and turns the
// resulting command into a tea.Cmd
func (a *App) dispatch(ev controller.Event) tea.Cmd {
	next := a.ctrl.Update(ev)
	syncCmd := a.sync()
	return tea.Batch(syncCmd, a.lift(next))
}

func (a *App) lift(cmd controller.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	ctx := a.ctx
	return func() tea.Msg {
		ev := cmd(ctx)
		if ev == nil {
			return nil
		}
		return eventMsg{ev: ev}
	}
}

// sync copies controller state into the child models and follows session
// and delete transitions between screens
func (a *App) sync() tea.Cmd {
	prev := a.state
	st := a.ctrl.State()
	a.state = st

	if prev.Loading && !st.Loading && st.Loaded {
		a.lastUpdate = time.Now()
	}

	var cmd tea.Cmd
	switch {
	case st.Identity == nil && a.screen != ScreenSignIn:
		a.screen = ScreenSignIn
		a.picker = nil
		a.confirm = nil
		cmd = a.signIn.Reset(noticeText(st))
	case st.Identity == nil && prev.SigningIn && !st.SigningIn:
		cmd = a.signIn.Reset(noticeText(st))
	case st.Identity != nil && a.screen == ScreenSignIn:
		a.screen = ScreenFiles
		a.signIn.Reset("")
	}

	a.browser.SetFiles(st.Files, st.Criteria, st.Loaded, st.Loading, a.ctrl.CanModify)
	a.summary.SetBatch(st.UploadTasks, st.LastUpload, st.Uploading)

	if st.Identity != nil {
		switch {
		case st.PendingDelete != nil && a.screen != ScreenConfirm:
			rec := st.PendingDelete
			a.confirm = confirm.New(
				fmt.Sprintf("Delete %s?", rec.Filename),
				"The file is removed from the store. This cannot be undone.")
			a.screen = ScreenConfirm
			cmd = tea.Batch(cmd, a.confirm.Init())
		case st.PendingDelete == nil && a.screen == ScreenConfirm:
			a.confirm = nil
			a.screen = ScreenFiles
		}
	}

	return cmd
}

func noticeText(st controller.State) string {
	if st.Notice == nil {
		return ""
	}
	return st.Notice.Text
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Panels draw padding inside their width, so children get the inner width
		a.browser.SetSize(a.browserWidth()-panelPadding, a.contentHeight())
		a.summary.SetWidth(a.panelWidth() - panelPadding)
		var cmds []tea.Cmd
		_, cmd := a.signIn.Update(tea.WindowSizeMsg{Width: a.width - 1, Height: msg.Height})
		cmds = append(cmds, cmd)
		if a.picker != nil {
			_, cmd = a.picker.Update(msg)
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.screen {
		case ScreenSignIn:
			return a.updateSignIn(msg)
		case ScreenFiles:
			return a.updateFiles(msg)
		case ScreenPicker:
			return a.updatePicker(msg)
		case ScreenConfirm:
			return a.updateConfirm(msg)
		case ScreenSummary:
			return a.updateSummary(msg)
		}

	case eventMsg:
		return a, a.dispatch(msg.ev)

	case signin.SubmittedMsg:
		a.signIn.SetPending(true)
		return a, a.dispatch(controller.SignInRequested{Login: msg.Login})

	case signin.CancelledMsg:
		return a, tea.Quit

	case browser.SearchChangedMsg:
		return a, a.dispatch(controller.CriteriaChanged{Patch: view.SearchPatch(msg.Query), Apply: true})

	case browser.SearchClosedMsg:
		return a, nil

	case filepicker.FilesChosenMsg:
		return a.handleFilesChosen(msg)

	case filepicker.CancelledMsg:
		a.picker = nil
		a.screen = ScreenFiles
		return a, nil

	case confirm.AnsweredMsg:
		if msg.Yes {
			return a, a.dispatch(controller.DeleteConfirmed{})
		}
		return a, a.dispatch(controller.DeleteCancelled{})

	default:
		// Forward unknown messages to the active child (huh and textinput internals)
		switch a.screen {
		case ScreenSignIn:
			return a.updateSignIn(msg)
		case ScreenConfirm:
			return a.updateConfirm(msg)
		case ScreenPicker:
			return a.updatePicker(msg)
		case ScreenFiles:
			var cmd tea.Cmd
			a.browser, cmd = a.browser.Update(msg)
			return a, cmd
		}
	}

	return a, nil
}

func (a *App) updateSignIn(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := a.signIn.Update(msg)
	a.signIn = model.(*signin.SignIn)
	return a, cmd
}

func (a *App) updateFiles(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.browser.Searching() {
		var cmd tea.Cmd
		a.browser, cmd = a.browser.Update(msg)
		return a, cmd
	}

	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "r":
		return a, a.dispatch(controller.RefreshRequested{})
	case "s":
		next := view.SortBySize
		if a.state.Criteria.SortBy == view.SortBySize {
			next = view.SortByDate
		}
		return a, a.dispatch(controller.CriteriaChanged{Patch: view.SortPatch(next), Apply: true})
	case "t":
		next := view.NextType(a.state.Criteria.FileType)
		return a, a.dispatch(controller.CriteriaChanged{Patch: view.TypePatch(next), Apply: true})
	case "/":
		return a, a.browser.StartSearch()
	case "u":
		return a, a.openPicker()
	case "d":
		if rec, ok := a.browser.Selected(); ok {
			return a, a.dispatch(controller.DeleteRequested{ID: rec.ID})
		}
	case "enter":
		if rec, ok := a.browser.Selected(); ok {
			return a, a.dispatch(controller.DownloadRequested{ID: rec.ID})
		}
	case "L":
		return a, a.dispatch(controller.SignOutRequested{})
	case "esc":
		return a, a.dispatch(controller.NoticeDismissed{})
	default:
		var cmd tea.Cmd
		a.browser, cmd = a.browser.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) openPicker() tea.Cmd {
	if a.state.Uploading {
		a.screen = ScreenSummary
		return nil
	}
	a.picker = filepicker.New(a.recentFiles.List())
	_, cmd := a.picker.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height})
	a.screen = ScreenPicker
	return cmd
}

func (a *App) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.picker == nil {
		return a, nil
	}
	model, cmd := a.picker.Update(msg)
	a.picker = model.(*filepicker.FilePicker)
	return a, cmd
}

func (a *App) handleFilesChosen(msg filepicker.FilesChosenMsg) (tea.Model, tea.Cmd) {
	files := make([]client.LocalFile, 0, len(msg.Paths))
	for _, p := range msg.Paths {
		f, err := client.NewLocalFile(p)
		if err != nil {
			if a.picker != nil {
				a.picker.SetError(err.Error())
			}
			return a, nil
		}
		files = append(files, f)
	}

	if err := a.recentFiles.Add(msg.Paths...); err != nil {
		a.ctrl.Logger().Warn("could not save recent files", "error", err)
	}

	a.picker = nil
	a.screen = ScreenSummary
	return a, a.dispatch(controller.UploadRequested{Files: files})
}

func (a *App) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.confirm == nil {
		return a, nil
	}
	model, cmd := a.confirm.Update(msg)
	a.confirm = model.(*confirm.Confirm)
	return a, cmd
}

func (a *App) updateSummary(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "esc", "b", "enter":
		a.screen = ScreenFiles
	case "u":
		if !a.state.Uploading {
			return a, a.openPicker()
		}
	}
	return a, nil
}

// View implements tea.Model
func (a *App) View() string {
	var content string

	switch a.screen {
	case ScreenSignIn:
		content = a.signIn.View()
	case ScreenFiles:
		content = a.viewFiles()
	case ScreenPicker:
		if a.picker != nil {
			content = a.picker.View()
		}
	case ScreenConfirm:
		if a.confirm != nil {
			content = a.confirm.View()
		}
	case ScreenSummary:
		content = styles.ActivePanel.Width(a.panelWidth()).Render(a.summary.View())
	}

	if notice := a.renderNotice(); notice != "" {
		content += "\n" + notice
	}

	return a.wrapWithFrame(content)
}

// viewFiles renders the browser with the actions pane
func (a *App) viewFiles() string {
	leftPane := styles.ActivePanel.Width(a.browserWidth()).Render(a.browser.View())
	if a.width < minTerminalWidth {
		return leftPane
	}
	rightPane := styles.Panel.Width(a.actionsWidth()).Render(a.renderActions())
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
}

// renderActions lists what can be done now. Delete and download appear only
// for the viewer's own files.
func (a *App) renderActions() string {
	var sb strings.Builder
	sb.WriteString(styles.Title.Render(icons.Settings.String() + " Actions"))
	sb.WriteString("\n\n")

	if a.state.Uploading {
		sb.WriteString(icons.Busy.String() + " Upload in progress\n")
	} else {
		sb.WriteString(icons.Upload.String() + " Upload files\n")
	}
	sb.WriteString(icons.Refresh.String() + " Refresh\n")
	sb.WriteString(icons.Search.String() + " Search\n")
	sb.WriteString(fmt.Sprintf("%s Sort: %s\n", icons.Sort.String(), a.state.Criteria.SortBy))
	sb.WriteString(fmt.Sprintf("%s Type: %s\n", icons.Filter.String(), view.TypeLabel(a.state.Criteria.FileType)))

	if rec, ok := a.browser.Selected(); ok {
		sb.WriteString("\n")
		if a.browser.SelectedOwned() {
			sb.WriteString(icons.Download.String() + " Download\n")
			sb.WriteString(icons.Delete.String() + " Delete\n")
			sb.WriteString(styles.DimmedRow.Render("Uploaded " + view.RelativeDate(rec.UploadDate)))
			sb.WriteString("\n")
		} else {
			owner := rec.OwnerEmail
			if owner == "" {
				owner = rec.OwnerID
			}
			sb.WriteString(styles.DimmedRow.Render(icons.Lock.String() + " Owned by " + owner))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	sb.WriteString(icons.SignOut.String() + " Sign out\n")
	sb.WriteString(icons.Quit.String() + " Quit\n")
	return sb.String()
}

func (a *App) renderNotice() string {
	n := a.state.Notice
	if n == nil || a.screen == ScreenSignIn {
		return ""
	}
	switch n.Level {
	case controller.LevelError:
		return styles.StatusCritical.Render(icons.Critical.String() + " " + n.Text)
	case controller.LevelWarn:
		return styles.StatusWarning.Render(icons.Warning.String() + " " + n.Text)
	default:
		return styles.NoticeInfo.Render(icons.Info.String() + " " + n.Text)
	}
}

// panelWidth is the content width inside the frame
func (a *App) panelWidth() int {
	width := a.width
	if width < minTerminalWidth {
		width = minTerminalWidth
	}
	return width - panelPadding
}

// browserWidth calculates the width for the file list pane
func (a *App) browserWidth() int {
	if a.width < minTerminalWidth {
		return a.panelWidth()
	}
	return a.panelWidth() - a.actionsWidth() - panelPadding
}

// actionsWidth calculates the width for the actions pane
func (a *App) actionsWidth() int {
	w := a.panelWidth() / 4
	if w < actionsMinWidth {
		w = actionsMinWidth
	}
	return w
}

// contentHeight calculates the height available for the browser content
func (a *App) contentHeight() int {
	// Total overhead:
	// - Header: 1 line
	// - Newline after header: 1 line
	// - ActivePanel border+padding: 4 lines
	// - Notice line: 1 line
	// - Newline before footer: 1 line
	// - Footer: 1 line
	return a.height - 9
}

// frameWidth is the header and footer width. One column is left free so
// terminals that wrap at the last column do not break the frame; zero or small
// widths before the first WindowSizeMsg clamp to the minimum.
func (a *App) frameWidth() int {
	if a.width-1 < minTerminalWidth {
		return minTerminalWidth
	}
	return a.width - 1
}

// renderHeader creates the header bar with app branding and context
func (a *App) renderHeader() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	titleStyle := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	contextStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	leftText := fmt.Sprintf(" %s %s", icons.App.String(), titleStyle.Render("File Manager"))

	rightText := ""
	if id := a.state.Identity; id != nil {
		rightText = contextStyle.Render(icons.User.String()+" "+id.DisplayName) + " "
	} else if a.backend != "" {
		rightText = contextStyle.Render(a.backend) + " "
	}

	leftWidth := lipgloss.Width(leftText)
	rightWidth := lipgloss.Width(rightText)
	fillWidth := width - 4 - leftWidth - rightWidth // -4 for ╭─ and ─╮
	if fillWidth < 0 {
		fillWidth = 0
	}

	header := "╭─" + leftText + strings.Repeat("─", fillWidth) + rightText + "─╮"
	return borderStyle.Render(header)
}

// shortcuts returns the keyboard hints for the current screen
func (a *App) shortcuts() []string {
	switch a.screen {
	case ScreenSignIn:
		return []string{"Tab Next", "Enter Submit", "Esc Quit"}
	case ScreenFiles:
		if a.browser.Searching() {
			return []string{"Enter Done", "Esc Clear"}
		}
		keys := []string{"↑↓ Move", "/ Search", "s Sort", "t Type", "r Refresh", "u Upload"}
		if a.browser.SelectedOwned() {
			keys = append(keys, "Enter Download", "d Delete")
		}
		return append(keys, "L Sign-out", "q Quit")
	case ScreenPicker:
		if a.picker != nil && a.picker.Inputting() {
			return []string{"Enter Add", "Esc Back"}
		}
		return []string{"↑↓ Move", "Space Toggle", "u Upload", "Esc Back"}
	case ScreenConfirm:
		return []string{"y Delete", "n Keep", "Esc Cancel"}
	case ScreenSummary:
		if a.state.Uploading {
			return []string{"b Back", "q Quit"}
		}
		return []string{"Enter Back", "u Upload more", "q Quit"}
	}
	return nil
}

// renderFooter creates the footer with keyboard shortcuts and status
func (a *App) renderFooter() string {
	width := a.frameWidth()

	borderStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Primary)
	labelStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	statusStyle := lipgloss.NewStyle().Foreground(styles.Secondary)

	shortcuts := a.shortcuts()
	for len(shortcuts) > 1 && lipgloss.Width(" "+strings.Join(shortcuts, "  ")) > width-5 {
		shortcuts = shortcuts[:len(shortcuts)-1]
	}
	var styled []string
	for _, s := range shortcuts {
		parts := strings.SplitN(s, " ", 2)
		if len(parts) == 2 {
			styled = append(styled, keyStyle.Render(parts[0])+" "+labelStyle.Render(parts[1]))
		} else {
			styled = append(styled, s)
		}
	}

	leftText := " " + strings.Join(styled, "  ")
	leftPlainText := " " + strings.Join(shortcuts, "  ")

	rightText := ""
	rightPlainText := ""
	if !a.lastUpdate.IsZero() && a.screen == ScreenFiles {
		elapsed := formatTimeSince(a.lastUpdate)
		rightText = statusStyle.Render("Updated "+elapsed) + " "
		rightPlainText = "Updated " + elapsed + " "
	}

	// Drop the status when shortcuts already fill the line
	if lipgloss.Width(leftPlainText)+lipgloss.Width(rightPlainText) > width-5 {
		rightText, rightPlainText = "", ""
	}

	fillWidth := width - 4 - lipgloss.Width(leftPlainText) - lipgloss.Width(rightPlainText) // -4 for ╰─ and ─╯
	if fillWidth < 0 {
		fillWidth = 0
	}

	footer := "╰─" + leftText + strings.Repeat("─", fillWidth) + rightText + "─╯"
	return borderStyle.Render(footer)
}

// formatTimeSince formats a duration since the given time in human-readable form
func formatTimeSince(t time.Time) string {
	d := time.Since(t)

	if d < time.Minute {
		secs := int(d.Seconds())
		if secs < 5 {
			return "just now"
		}
		return fmt.Sprintf("%ds ago", secs)
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh ago", int(d.Hours()))
}

// wrapWithFrame wraps content with header and footer
func (a *App) wrapWithFrame(content string) string {
	var sb strings.Builder

	sb.WriteString(a.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(content)
	sb.WriteString("\n")
	sb.WriteString(a.renderFooter())

	return sb.String()
}

// Run starts the TUI over ctrl and blocks until the user quits
func Run(ctx context.Context, ctrl *controller.Controller, backend string) error {
	app := New(ctx, ctrl, backend, nil)

	p := tea.NewProgram(
		app,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	// Events can arrive while Update is running and the program's message
	// channel is unbuffered, so they queue and reach Send in order.
	fwd := newForwarder(p.Send)
	defer fwd.Stop()
	detach := ctrl.Attach(func(ev controller.Event) {
		fwd.Push(eventMsg{ev: ev})
	})
	defer detach()

	_, err := p.Run()
	return err
}
