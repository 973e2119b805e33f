// ABOUTME: Query criteria for the file list and their query-string encoding
// ABOUTME: Encoding is deterministic and ParseCriteria inverts it exactly

package view

import (
	"fmt"
	"net/url"
)

// SortKey orders the file list on the server
type SortKey string

const (
	SortByDate SortKey = "date"
	SortBySize SortKey = "size"
)

// Query parameter names understood by GET /files
const (
	ParamSortBy   = "sort_by"
	ParamFileType = "file_type"
	ParamSearch   = "search"
)

// Valid reports whether k is a sort key the backend accepts
func (k SortKey) Valid() bool {
	return k == SortByDate || k == SortBySize
}

// Criteria fully determines one list request
type Criteria struct {
	SortBy   SortKey `json:"sort_by"`
	FileType string  `json:"file_type,omitempty"`
	Search   string  `json:"search,omitempty"`
}

// DefaultCriteria lists every file, newest first
func DefaultCriteria() Criteria {
	return Criteria{SortBy: SortByDate}
}

// Values derives the list query. sort_by is always present; empty filters are omitted.
func (c Criteria) Values() url.Values {
	v := url.Values{}
	sortBy := c.SortBy
	if sortBy == "" {
		sortBy = SortByDate
	}
	v.Set(ParamSortBy, string(sortBy))
	if c.FileType != "" {
		v.Set(ParamFileType, c.FileType)
	}
	if c.Search != "" {
		v.Set(ParamSearch, c.Search)
	}
	return v
}

// Encode returns the canonical query string. Keys are sorted, so equal criteria
// always encode to the same string.
func (c Criteria) Encode() string {
	return c.Values().Encode()
}

// ParseCriteria decodes a query string produced by Encode. Absent fields take
// their defaults.
func ParseCriteria(raw string) (Criteria, error) {
	v, err := url.ParseQuery(raw)
	if err != nil {
		return Criteria{}, fmt.Errorf("invalid criteria query: %w", err)
	}
	c := DefaultCriteria()
	if s := v.Get(ParamSortBy); s != "" {
		if !SortKey(s).Valid() {
			return Criteria{}, fmt.Errorf("invalid sort key %q", s)
		}
		c.SortBy = SortKey(s)
	}
	c.FileType = v.Get(ParamFileType)
	c.Search = v.Get(ParamSearch)
	return c, nil
}

// Patch is a partial criteria update. Nil fields are left unchanged; a pointer
// to the empty string clears a filter.
type Patch struct {
	SortBy   *SortKey
	FileType *string
	Search   *string
}

// SortPatch changes only the sort key
func SortPatch(k SortKey) Patch { return Patch{SortBy: &k} }

// TypePatch changes only the type filter; "" means all types
func TypePatch(mime string) Patch { return Patch{FileType: &mime} }

// SearchPatch changes only the search text
func SearchPatch(q string) Patch { return Patch{Search: &q} }

// Merge applies p to c
func (c Criteria) Merge(p Patch) (Criteria, error) {
	if p.SortBy != nil {
		if !p.SortBy.Valid() {
			return c, fmt.Errorf("invalid sort key %q", *p.SortBy)
		}
		c.SortBy = *p.SortBy
	}
	if p.FileType != nil {
		c.FileType = *p.FileType
	}
	if p.Search != nil {
		c.Search = *p.Search
	}
	return c, nil
}

// TypeOption is one entry of the type filter menu
type TypeOption struct {
	Label string
	MIME  string
}

// TypeOptions are the filters the interface offers. Any MIME string is still
// accepted through Patch.
var TypeOptions = []TypeOption{
	{Label: "All", MIME: ""},
	{Label: "PDF", MIME: "application/pdf"},
	{Label: "JSON", MIME: "application/json"},
	{Label: "TXT", MIME: "text/plain"},
}

// NextType cycles to the type filter after current
func NextType(current string) string {
	for i, opt := range TypeOptions {
		if opt.MIME == current {
			return TypeOptions[(i+1)%len(TypeOptions)].MIME
		}
	}
	return TypeOptions[0].MIME
}

// TypeLabel returns the menu label for a MIME filter
func TypeLabel(mime string) string {
	for _, opt := range TypeOptions {
		if opt.MIME == mime {
			return opt.Label
		}
	}
	return mime
}
