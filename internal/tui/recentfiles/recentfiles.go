// ABOUTME: Remembers the local files most recently chosen for upload
// ABOUTME: Stored as recent.json in the filemgr config directory

package recentfiles

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/AsafNachman/file-management-system/internal/config"
	"github.com/samber/lo"
)

// MaxRecentFiles is the maximum number of recent files to keep
const MaxRecentFiles = 5

// RecentFiles manages the list of recently uploaded local paths
type RecentFiles struct {
	configDir string
	files     []string
}

type recentData struct {
	Files []string `json:"files"`
}

// New creates a new RecentFiles manager with the given config directory
func New(configDir string) *RecentFiles {
	return &RecentFiles{configDir: configDir}
}

// DefaultConfigDir returns the filemgr config directory
func DefaultConfigDir() string {
	return config.DefaultDir()
}

func (rf *RecentFiles) configFile() string {
	return filepath.Join(rf.configDir, "recent.json")
}

// Load reads the recent files list from disk, dropping paths that no longer exist
func (rf *RecentFiles) Load() ([]string, error) {
	data, err := os.ReadFile(rf.configFile())
	if os.IsNotExist(err) {
		rf.files = []string{}
		return rf.files, nil
	}
	if err != nil {
		return nil, err
	}

	var recent recentData
	if err := json.Unmarshal(data, &recent); err != nil {
		// Invalid JSON, start fresh
		rf.files = []string{}
		return rf.files, nil
	}

	rf.files = lo.Filter(recent.Files, func(path string, _ int) bool {
		info, err := os.Stat(path)
		return err == nil && !info.IsDir()
	})
	return rf.files, nil
}

// Save writes the recent files list to disk
func (rf *RecentFiles) Save(files []string) error {
	if err := os.MkdirAll(rf.configDir, 0o700); err != nil {
		return err
	}

	if len(files) > MaxRecentFiles {
		files = files[:MaxRecentFiles]
	}
	rf.files = files

	data, err := json.MarshalIndent(recentData{Files: files}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(rf.configFile(), data, 0o600)
}

// Add moves paths to the front of the list in the given order
func (rf *RecentFiles) Add(paths ...string) error {
	if rf.files == nil {
		if _, err := rf.Load(); err != nil {
			rf.files = []string{}
		}
	}

	abs := lo.Map(paths, func(p string, _ int) string {
		if a, err := filepath.Abs(p); err == nil {
			return a
		}
		return p
	})
	return rf.Save(lo.Uniq(append(abs, rf.files...)))
}

// List returns the current list of recent files
func (rf *RecentFiles) List() []string {
	if rf.files == nil {
		if _, err := rf.Load(); err != nil {
			return nil
		}
	}
	return rf.files
}
