// ABOUTME: Yes/no confirmation screen as a bubbletea model wrapping a huh confirm field
// ABOUTME: Used before deleting a file; the default answer is no

package confirm

import (
	"strings"

	"github.com/AsafNachman/file-management-system/internal/tui/icons"
	"github.com/AsafNachman/file-management-system/internal/tui/styles"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// AnsweredMsg is sent once the user decides
type AnsweredMsg struct {
	Yes bool
}

// Confirm asks a single question
type Confirm struct {
	title    string
	detail   string
	answer   bool
	form     *huh.Form
	answered bool
}

// New creates a confirmation for the given question
func New(title, detail string) *Confirm {
	c := &Confirm{title: title, detail: detail}
	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(detail).
				Affirmative("Delete").
				Negative("Keep").
				Value(&c.answer),
		),
	).WithTheme(styles.FormTheme()).WithShowHelp(false)
	return c
}

// Init implements tea.Model
func (c *Confirm) Init() tea.Cmd {
	return c.form.Init()
}

// Update implements tea.Model
func (c *Confirm) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if c.answered {
		return c, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "n", "N":
			return c.finish(false)
		case "y", "Y":
			return c.finish(true)
		}
	}

	form, cmd := c.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.form = f
	}

	switch c.form.State {
	case huh.StateCompleted:
		return c.finish(c.answer)
	case huh.StateAborted:
		return c.finish(false)
	}
	return c, cmd
}

func (c *Confirm) finish(yes bool) (tea.Model, tea.Cmd) {
	c.answered = true
	return c, func() tea.Msg { return AnsweredMsg{Yes: yes} }
}

// View implements tea.Model
func (c *Confirm) View() string {
	var sb strings.Builder
	sb.WriteString(styles.StatusWarning.Render(icons.Delete.String() + " Confirm deletion"))
	sb.WriteString("\n\n")
	sb.WriteString(c.form.View())
	return sb.String()
}
