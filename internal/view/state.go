// ABOUTME: View state holding the active criteria and the last applied file list
// ABOUTME: Fetch performs one list call; applying its result is the caller's decision

package view

import (
	"context"
	"fmt"
	"net/url"

	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/samber/lo"
)

// Lister is the part of the file repository a refresh needs
type Lister interface {
	List(ctx context.Context, query url.Values, credential string) ([]client.FileRecord, error)
}

// Credentials yields a currently valid bearer credential
type Credentials interface {
	Credential(ctx context.Context) (string, error)
}

// State is the criteria and the file collection shown to the user
type State struct {
	criteria Criteria
	files    []client.FileRecord
	loaded   bool
}

// NewState returns a state with default criteria and no files
func NewState() *State {
	return &State{criteria: DefaultCriteria()}
}

// Criteria returns the active criteria
func (s *State) Criteria() Criteria {
	return s.criteria
}

// SetCriteria merges p into the active criteria. It does not fetch.
func (s *State) SetCriteria(p Patch) error {
	next, err := s.criteria.Merge(p)
	if err != nil {
		return err
	}
	s.criteria = next
	return nil
}

// Files returns a copy of the visible collection in server order
func (s *State) Files() []client.FileRecord {
	return append([]client.FileRecord(nil), s.files...)
}

// Loaded reports whether any fetch result has been applied since the last reset
func (s *State) Loaded() bool {
	return s.loaded
}

// Find returns the visible record with the given id
func (s *State) Find(id string) (client.FileRecord, bool) {
	return lo.Find(s.files, func(f client.FileRecord) bool { return f.ID == id })
}

// Replace swaps in a fetched collection wholesale
func (s *State) Replace(files []client.FileRecord) {
	s.files = append([]client.FileRecord(nil), files...)
	s.loaded = true
}

// RemoveLocally drops a record after a confirmed delete. It reports whether the
// record was visible.
func (s *State) RemoveLocally(id string) bool {
	before := len(s.files)
	s.files = lo.Reject(s.files, func(f client.FileRecord, _ int) bool { return f.ID == id })
	return len(s.files) != before
}

// Reset returns to default criteria and an empty collection
func (s *State) Reset() {
	s.criteria = DefaultCriteria()
	s.files = nil
	s.loaded = false
}

// Fetch derives the query from criteria, obtains a fresh credential and lists files
func Fetch(ctx context.Context, repo Lister, creds Credentials, criteria Criteria) ([]client.FileRecord, error) {
	credential, err := creds.Credential(ctx)
	if err != nil {
		return nil, err
	}
	files, err := repo.List(ctx, criteria.Values(), credential)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}
