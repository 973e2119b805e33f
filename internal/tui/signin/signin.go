// ABOUTME: Sign-in screen as a bubbletea model wrapping a huh form
// ABOUTME: Collects username and password and hands them off as a Login

package signin

import (
	"fmt"
	"strings"

	"github.com/AsafNachman/file-management-system/internal/auth"
	"github.com/AsafNachman/file-management-system/internal/tui/icons"
	"github.com/AsafNachman/file-management-system/internal/tui/styles"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// SubmittedMsg is sent when the form is filled in
type SubmittedMsg struct {
	Login auth.Login
}

// CancelledMsg is sent when the user leaves the form
type CancelledMsg struct{}

// SignIn is the sign-in screen
type SignIn struct {
	login   auth.Login
	form    *huh.Form
	width   int
	pending bool
	err     string
	backend string
}

// NewForm builds the credential form, writing into login as it is filled
func NewForm(login *auth.Login) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("username").
				Title("Username").
				Placeholder("you@example.com").
				Value(&login.Username).
				Validate(RequireValue("username")),
			huh.NewInput().
				Key("password").
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&login.Password).
				Validate(RequireValue("password")),
		).Title("Sign in").
			Description("Your files are private to your account"),
	).WithTheme(styles.FormTheme()).WithShowHelp(false)
}

// RequireValue rejects blank input for the named field
func RequireValue(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// New creates the sign-in screen. backend is shown as context.
func New(backend string) *SignIn {
	s := &SignIn{backend: backend}
	s.form = NewForm(&s.login)
	return s
}

// Reset prepares a fresh form, keeping the username and showing errText
func (s *SignIn) Reset(errText string) tea.Cmd {
	s.login.Password = ""
	s.pending = false
	s.err = errText
	s.form = NewForm(&s.login)
	return s.form.Init()
}

// SetPending marks a sign-in attempt as in flight
func (s *SignIn) SetPending(pending bool) {
	s.pending = pending
}

// Username returns the username typed so far
func (s *SignIn) Username() string {
	return s.login.Username
}

// Init implements tea.Model
func (s *SignIn) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *SignIn) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
	case tea.KeyMsg:
		if s.pending {
			return s, nil
		}
		if msg.String() == "esc" {
			return s, func() tea.Msg { return CancelledMsg{} }
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	switch s.form.State {
	case huh.StateCompleted:
		if s.pending {
			return s, nil
		}
		s.pending = true
		s.err = ""
		login := auth.Login{Username: strings.TrimSpace(s.login.Username), Password: s.login.Password}
		return s, func() tea.Msg { return SubmittedMsg{Login: login} }
	case huh.StateAborted:
		return s, func() tea.Msg { return CancelledMsg{} }
	}

	return s, cmd
}

// View implements tea.Model
func (s *SignIn) View() string {
	var sb strings.Builder

	sb.WriteString(styles.Title.Render(icons.User.String() + " Welcome"))
	sb.WriteString("\n")
	if s.backend != "" {
		sb.WriteString(styles.Subtitle.Render("Backend: " + s.backend))
		sb.WriteString("\n")
	}

	if s.pending {
		sb.WriteString(styles.NoticeInfo.Render("Signing in as " + s.login.Username + "..."))
		return sb.String()
	}

	sb.WriteString(s.form.View())
	if s.err != "" {
		sb.WriteString("\n")
		sb.WriteString(styles.StatusCritical.Render(icons.Critical.String() + " " + s.err))
	}
	return sb.String()
}
