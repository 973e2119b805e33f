// ABOUTME: File picker TUI component for choosing local files to upload
// ABOUTME: Multi-select over recent files plus paths typed by the user

package filepicker

import (
	"fmt"
	"os"
	"strings"

	"github.com/AsafNachman/file-management-system/internal/tui/icons"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type state int

const (
	stateList state = iota
	stateInput
)

// FilesChosenMsg is sent when the user confirms a selection
type FilesChosenMsg struct {
	Paths []string
}

// CancelledMsg is sent when the user cancels
type CancelledMsg struct{}

type choice struct {
	path    string
	checked bool
}

// FilePicker is the file selection component
type FilePicker struct {
	choices   []choice
	cursor    int
	state     state
	textInput textinput.Model
	err       string
	width     int
	height    int
}

// Styles
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	checkedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dividerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// New creates a FilePicker offering the given recent files, none checked
func New(recentFiles []string) *FilePicker {
	ti := textinput.New()
	ti.Placeholder = "/path/to/report.pdf"
	ti.CharLimit = 512
	ti.Width = 60

	choices := make([]choice, 0, len(recentFiles))
	for _, p := range recentFiles {
		choices = append(choices, choice{path: p})
	}

	return &FilePicker{
		choices:   choices,
		state:     stateList,
		textInput: ti,
	}
}

// Init implements tea.Model
func (fp *FilePicker) Init() tea.Cmd {
	return nil
}

// Selected returns the checked paths in display order
func (fp *FilePicker) Selected() []string {
	var paths []string
	for _, c := range fp.choices {
		if c.checked {
			paths = append(paths, c.path)
		}
	}
	return paths
}

// Inputting reports whether the path input has focus
func (fp *FilePicker) Inputting() bool {
	return fp.state == stateInput
}

// Update implements tea.Model
func (fp *FilePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		fp.width = msg.Width
		fp.height = msg.Height
		return fp, nil

	case tea.KeyMsg:
		fp.err = ""
		if fp.state == stateInput {
			return fp.updateInput(msg)
		}
		return fp.updateList(msg)
	}

	return fp, nil
}

// Rows: one per choice, then "Enter path...", then "Upload" when anything is checked
func (fp *FilePicker) itemCount() int {
	n := len(fp.choices) + 1
	if len(fp.Selected()) > 0 {
		n++
	}
	return n
}

func (fp *FilePicker) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if fp.cursor > 0 {
			fp.cursor--
		}
	case "down", "j":
		if fp.cursor < fp.itemCount()-1 {
			fp.cursor++
		}
	case " ", "x":
		if fp.cursor < len(fp.choices) {
			fp.toggle(fp.cursor)
		}
	case "enter":
		return fp.selectItem()
	case "u":
		return fp.confirm()
	case "esc", "b":
		return fp, func() tea.Msg { return CancelledMsg{} }
	}
	return fp, nil
}

func (fp *FilePicker) toggle(i int) {
	fp.choices[i].checked = !fp.choices[i].checked
	if fp.cursor >= fp.itemCount() {
		fp.cursor = fp.itemCount() - 1
	}
}

func (fp *FilePicker) selectItem() (tea.Model, tea.Cmd) {
	switch {
	case fp.cursor < len(fp.choices):
		fp.toggle(fp.cursor)
		return fp, nil
	case fp.cursor == len(fp.choices):
		fp.state = stateInput
		fp.textInput.Focus()
		return fp, textinput.Blink
	default:
		return fp.confirm()
	}
}

func (fp *FilePicker) confirm() (tea.Model, tea.Cmd) {
	paths := fp.Selected()
	if len(paths) == 0 {
		fp.err = "Select at least one file"
		return fp, nil
	}
	return fp, func() tea.Msg { return FilesChosenMsg{Paths: paths} }
}

func (fp *FilePicker) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		fp.state = stateList
		fp.textInput.SetValue("")
		fp.textInput.Blur()
		return fp, nil
	case "enter":
		path := strings.TrimSpace(fp.textInput.Value())
		if path == "" {
			fp.err = "Please enter a file path"
			return fp, nil
		}
		if err := fp.addPath(path); err != "" {
			fp.err = err
			return fp, nil
		}
		fp.state = stateList
		fp.textInput.SetValue("")
		fp.textInput.Blur()
		return fp, nil
	}

	var cmd tea.Cmd
	fp.textInput, cmd = fp.textInput.Update(msg)
	return fp, cmd
}

// addPath checks a typed path and adds it checked at the top of the list
func (fp *FilePicker) addPath(path string) string {
	expanded := expandPath(path)
	info, err := os.Stat(expanded)
	switch {
	case os.IsNotExist(err):
		return "File not found: " + path
	case os.IsPermission(err):
		return "Cannot read file: permission denied"
	case err != nil:
		return "Error reading file: " + err.Error()
	case info.IsDir():
		return "Not a file: " + path
	}

	for i := range fp.choices {
		if fp.choices[i].path == expanded {
			fp.choices[i].checked = true
			fp.cursor = i
			return ""
		}
	}
	fp.choices = append([]choice{{path: expanded, checked: true}}, fp.choices...)
	fp.cursor = 0
	return ""
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	}
	return path
}

// SetError sets an error message to display
func (fp *FilePicker) SetError(msg string) {
	fp.err = msg
}

// View implements tea.Model
func (fp *FilePicker) View() string {
	if fp.state == stateInput {
		return fp.viewInput()
	}
	return fp.viewList()
}

func (fp *FilePicker) viewList() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(icons.Upload.String() + " Choose files to upload"))
	b.WriteString("\n\n")

	if len(fp.choices) > 0 {
		b.WriteString(helpStyle.Render("Recent and added files:"))
		b.WriteString("\n")
		for i, c := range fp.choices {
			box := "[ ]"
			if c.checked {
				box = checkedStyle.Render("[" + icons.CheckOK.String() + "]")
			}
			b.WriteString(fp.row(i, box+" "+fp.truncate(c.path)))
		}
		b.WriteString("\n")

		dividerWidth := min(40, fp.width-4)
		if dividerWidth < 1 {
			dividerWidth = 40
		}
		b.WriteString(dividerStyle.Render(strings.Repeat("─", dividerWidth)))
		b.WriteString("\n")
	}

	b.WriteString(fp.row(len(fp.choices), "Enter path..."))
	if n := len(fp.Selected()); n > 0 {
		b.WriteString(fp.row(len(fp.choices)+1, fmt.Sprintf("Upload %d selected file(s)", n)))
	}

	if fp.err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + fp.err))
	}

	return b.String()
}

func (fp *FilePicker) row(i int, text string) string {
	if i == fp.cursor {
		return "> " + selectedStyle.Render(text) + "\n"
	}
	return "  " + normalStyle.Render(text) + "\n"
}

func (fp *FilePicker) truncate(path string) string {
	if fp.width > 20 && len(path) > fp.width-14 {
		return "..." + path[len(path)-(fp.width-17):]
	}
	return path
}

func (fp *FilePicker) viewInput() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Enter file path"))
	b.WriteString("\n\n")
	b.WriteString(fp.textInput.View())

	if fp.err != "" {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render("Error: " + fp.err))
	}

	return b.String()
}
