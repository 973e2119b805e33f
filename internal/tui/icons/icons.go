// ABOUTME: Icon system with Nerd Font detection and Unicode fallback
// ABOUTME: Provides consistent iconography across different terminal capabilities

package icons

import (
	"os"
	"strings"
	"sync"
)

var (
	useNerdFonts     bool
	nerdFontDetected sync.Once
)

// detectNerdFonts checks if Nerd Fonts should be used
func detectNerdFonts() bool {
	// Explicit override via environment variable
	if env := os.Getenv("FILEMGR_NERD_FONTS"); env != "" {
		return env == "1" || strings.ToLower(env) == "true"
	}

	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")

	// Terminals that commonly ship with Nerd Fonts configured
	nerdFontTerminals := []string{
		"iTerm.app",
		"alacritty",
		"WezTerm",
		"kitty",
		"ghostty",
	}

	for _, t := range nerdFontTerminals {
		if strings.Contains(termProgram, t) || strings.Contains(term, strings.ToLower(t)) {
			return true
		}
	}

	if os.Getenv("NERD_FONTS") == "1" {
		return true
	}

	return false
}

// HasNerdFonts returns true if Nerd Fonts are available
func HasNerdFonts() bool {
	nerdFontDetected.Do(func() {
		useNerdFonts = detectNerdFonts()
	})
	return useNerdFonts
}

// Icon represents an icon with Nerd Font and Unicode fallback variants
type Icon struct {
	NerdFont string
	Fallback string
}

// String returns the appropriate icon based on font availability
func (i Icon) String() string {
	if HasNerdFonts() {
		return i.NerdFont
	}
	return i.Fallback
}

// Icon definitions - Nerd Font codepoints with Unicode fallbacks
var (
	// File types
	File   = Icon{"󰈔", "□"} // nf-md-file
	PDF    = Icon{"󰈦", "▤"} // nf-md-file_pdf_box
	JSON   = Icon{"󰘦", "{"} // nf-md-code_json
	Text   = Icon{"󰈙", "≡"} // nf-md-file_document
	Folder = Icon{"󰉋", "▸"} // nf-md-folder
	Lock   = Icon{"󰌾", "⊘"} // nf-md-lock

	// Status indicators
	CheckOK  = Icon{"", "✓"} // nf-oct-check_circle
	Warning  = Icon{"", "⚠"} // nf-oct-alert
	Critical = Icon{"", "✗"} // nf-oct-x_circle
	Info     = Icon{"", "ℹ"} // nf-oct-info
	Pending  = Icon{"󰔟", "○"} // nf-md-timer_sand
	Busy     = Icon{"󰑮", "●"} // nf-md-run

	// Actions
	Upload   = Icon{"󰕒", "↑"} // nf-md-upload
	Download = Icon{"󰇚", "↓"} // nf-md-download
	Delete   = Icon{"󰆴", "×"} // nf-md-delete
	Search   = Icon{"󰍉", "⌕"} // nf-md-magnify
	Sort     = Icon{"󰒺", "⇅"} // nf-md-sort
	Filter   = Icon{"󰈲", "▽"} // nf-md-filter
	Refresh  = Icon{"󰑓", "↻"} // nf-md-refresh
	Back     = Icon{"󰁍", "←"} // nf-md-arrow_left
	Quit     = Icon{"󰗼", "⏻"} // nf-md-exit_to_app
	SignOut  = Icon{"󰍃", "⇥"} // nf-md-logout

	// Application
	App      = Icon{"󰉏", "◈"} // nf-md-folder_network
	User     = Icon{"󰀄", "☺"} // nf-md-account
	Settings = Icon{"󰒓", "⚙"} // nf-md-cog
)

// ForContentType picks the file icon for a MIME type
func ForContentType(contentType string) Icon {
	switch {
	case strings.HasPrefix(contentType, "application/pdf"):
		return PDF
	case strings.HasPrefix(contentType, "application/json"):
		return JSON
	case strings.HasPrefix(contentType, "text/"):
		return Text
	default:
		return File
	}
}
