// ABOUTME: File browser component listing the signed-in user's visible files
// ABOUTME: Tracks the cursor and live search input; actions are gated by ownership

package browser

import (
	"fmt"
	"strings"

	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/AsafNachman/file-management-system/internal/tui/icons"
	"github.com/AsafNachman/file-management-system/internal/tui/styles"
	"github.com/AsafNachman/file-management-system/internal/tui/widgets"
	"github.com/AsafNachman/file-management-system/internal/view"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SearchChangedMsg carries the search text after each edit
type SearchChangedMsg struct {
	Query string
}

// SearchClosedMsg is sent when the search input loses focus
type SearchClosedMsg struct{}

// Ownership reports whether the viewer may modify rec
type Ownership func(rec client.FileRecord) bool

// headerLines is what View draws above the rows: title, criteria, blank line, column header
const headerLines = 4

// Browser displays the file list
type Browser struct {
	files     []client.FileRecord
	criteria  view.Criteria
	owned     Ownership
	loading   bool
	loaded    bool
	cursor    int
	offset    int
	width     int
	height    int
	search    textinput.Model
	searching bool
}

// New creates a browser of the given size
func New(width, height int) *Browser {
	ti := textinput.New()
	ti.Prompt = icons.Search.String() + " "
	ti.Placeholder = "filename contains..."
	ti.CharLimit = 128
	return &Browser{
		criteria: view.DefaultCriteria(),
		owned:    func(client.FileRecord) bool { return false },
		width:    width,
		height:   height,
		search:   ti,
	}
}

// SetFiles replaces the displayed list, keeping the cursor on the same record when possible
func (b *Browser) SetFiles(files []client.FileRecord, criteria view.Criteria, loaded, loading bool, owned Ownership) {
	var selectedID string
	if rec, ok := b.Selected(); ok {
		selectedID = rec.ID
	}

	b.files = files
	b.criteria = criteria
	b.loaded = loaded
	b.loading = loading
	if owned != nil {
		b.owned = owned
	}

	b.cursor = 0
	for i, f := range files {
		if f.ID == selectedID {
			b.cursor = i
			break
		}
	}
	b.clampCursor()
}

// SetSize updates the browser dimensions
func (b *Browser) SetSize(width, height int) {
	b.width = width
	b.height = height
	b.clampCursor()
}

// Selected returns the record under the cursor
func (b *Browser) Selected() (client.FileRecord, bool) {
	if b.cursor < 0 || b.cursor >= len(b.files) {
		return client.FileRecord{}, false
	}
	return b.files[b.cursor], true
}

// SelectedOwned reports whether the record under the cursor belongs to the viewer
func (b *Browser) SelectedOwned() bool {
	rec, ok := b.Selected()
	return ok && b.owned(rec)
}

// Searching reports whether the search input has focus
func (b *Browser) Searching() bool {
	return b.searching
}

// StartSearch focuses the search input seeded with the current query
func (b *Browser) StartSearch() tea.Cmd {
	b.searching = true
	b.search.SetValue(b.criteria.Search)
	b.search.CursorEnd()
	return b.search.Focus()
}

// Update implements cursor movement and search editing
func (b *Browser) Update(msg tea.Msg) (*Browser, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if b.searching {
			var cmd tea.Cmd
			b.search, cmd = b.search.Update(msg)
			return b, cmd
		}
		return b, nil
	}

	if b.searching {
		return b.updateSearch(key)
	}

	switch key.String() {
	case "up", "k":
		if b.cursor > 0 {
			b.cursor--
		}
	case "down", "j":
		if b.cursor < len(b.files)-1 {
			b.cursor++
		}
	case "home", "g":
		b.cursor = 0
	case "end", "G":
		b.cursor = len(b.files) - 1
	}
	b.clampCursor()
	return b, nil
}

func (b *Browser) updateSearch(key tea.KeyMsg) (*Browser, tea.Cmd) {
	switch key.String() {
	case "enter":
		b.searching = false
		b.search.Blur()
		return b, func() tea.Msg { return SearchClosedMsg{} }
	case "esc":
		b.searching = false
		b.search.Blur()
		cleared := b.search.Value() != ""
		b.search.SetValue("")
		if !cleared && b.criteria.Search == "" {
			return b, func() tea.Msg { return SearchClosedMsg{} }
		}
		return b, func() tea.Msg { return SearchChangedMsg{Query: ""} }
	}

	before := b.search.Value()
	var cmd tea.Cmd
	b.search, cmd = b.search.Update(key)
	if after := b.search.Value(); after != before {
		changed := func() tea.Msg { return SearchChangedMsg{Query: after} }
		return b, tea.Batch(cmd, changed)
	}
	return b, cmd
}

func (b *Browser) clampCursor() {
	if b.cursor >= len(b.files) {
		b.cursor = len(b.files) - 1
	}
	if b.cursor < 0 {
		b.cursor = 0
	}

	rows := b.visibleRows()
	if b.cursor < b.offset {
		b.offset = b.cursor
	}
	if b.cursor >= b.offset+rows {
		b.offset = b.cursor - rows + 1
	}
	if b.offset < 0 {
		b.offset = 0
	}
}

func (b *Browser) visibleRows() int {
	// Extra lines: blank line and summary below the rows
	rows := b.height - headerLines - 2
	if b.searching {
		rows--
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

// View renders the browser
func (b *Browser) View() string {
	var sb strings.Builder

	sb.WriteString(styles.Title.Render(icons.Folder.String() + " My Files"))
	sb.WriteString("\n")
	sb.WriteString(b.renderCriteria())
	sb.WriteString("\n")
	if b.searching {
		sb.WriteString(b.search.View())
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	switch {
	case !b.loaded && b.loading:
		sb.WriteString(styles.Subtitle.Render("Loading files..."))
	case len(b.files) == 0 && b.loaded:
		if b.criteria.FileType != "" || b.criteria.Search != "" {
			sb.WriteString(styles.Subtitle.Render("No files match the current filters"))
		} else {
			sb.WriteString(styles.Subtitle.Render("No files yet. Press u to upload."))
		}
	case len(b.files) == 0:
		sb.WriteString(styles.Subtitle.Render("Press r to load your files"))
	default:
		sb.WriteString(b.renderRows())
		sb.WriteString("\n")
		summary := fmt.Sprintf("%d file(s), %s", len(b.files), view.TotalSize(b.files))
		if b.loading {
			summary += "  " + icons.Refresh.String() + " refreshing"
		}
		sb.WriteString(styles.Subtitle.Render(summary))
	}

	return lipgloss.NewStyle().
		Width(b.width).
		MaxHeight(b.height).
		Render(sb.String())
}

func (b *Browser) renderCriteria() string {
	search := b.criteria.Search
	if search == "" {
		search = "-"
	}
	line := fmt.Sprintf("%s %s   %s %s   %s %s",
		icons.Sort.String(), string(b.criteria.SortBy),
		icons.Filter.String(), view.TypeLabel(b.criteria.FileType),
		icons.Search.String(), search)
	return lipgloss.NewStyle().Foreground(styles.Secondary).Render(line)
}

func (b *Browser) nameWidth() int {
	// cursor, icon, size, date and owner badge take about 48 cells
	w := b.width - 48
	if w < 16 {
		w = 16
	}
	return w
}

func (b *Browser) renderRows() string {
	var sb strings.Builder

	nameWidth := b.nameWidth()
	header := fmt.Sprintf("  %-*s %12s %12s  %s", nameWidth+2, "Name", "Size", "Uploaded", "Owner")
	sb.WriteString(styles.DimmedRow.Render(header))
	sb.WriteString("\n")

	end := b.offset + b.visibleRows()
	if end > len(b.files) {
		end = len(b.files)
	}
	for i := b.offset; i < end; i++ {
		f := b.files[i]
		own := b.owned(f)
		name := truncate(f.Filename, nameWidth)
		row := fmt.Sprintf("%s %-*s %12s %12s  ",
			icons.ForContentType(f.ContentType).String(), nameWidth, name,
			view.FormatSize(f.Size), view.FormatDate(f.UploadDate))

		cursor := "  "
		style := lipgloss.NewStyle()
		if !own {
			style = styles.DimmedRow
		}
		if i == b.cursor {
			cursor = "> "
			style = styles.SelectedRow
		}
		sb.WriteString(cursor + style.Render(row) + widgets.OwnerBadge(own) + "\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
