// ABOUTME: Writes a downloaded payload into a directory under its original name
// ABOUTME: Streams to a temp file first so a failed transfer leaves nothing behind

package controller

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AsafNachman/file-management-system/internal/client"
)

// Save streams p into dir and closes its body. A body shorter than the
// announced size counts as an interrupted transfer. The file is named filename,
// the record's original name, falling back to the name the server sent. An
// existing file is never overwritten, a numbered name is chosen instead.
func Save(dir string, p *client.Payload, filename string) (string, error) {
	defer p.Body.Close()

	name := safeName(filename)
	if name == "" {
		name = safeName(p.Filename)
	}
	if name == "" {
		name = "download"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".filemgr-*.part")
	if err != nil {
		return "", fmt.Errorf("cannot write to %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, p.Body)
	if err == nil && p.Size > 0 && n != p.Size {
		err = fmt.Errorf("received %d of %d bytes", n, p.Size)
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("download interrupted: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("cannot write to %s: %w", dir, err)
	}

	target := availablePath(dir, name)
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("cannot save %s: %w", target, err)
	}
	return target, nil
}

// safeName strips any directory components a server-supplied name may carry
func safeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || name == ".." {
		return ""
	}
	return name
}

func availablePath(dir, name string) string {
	target := filepath.Join(dir, name)
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		target = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Stat(target); os.IsNotExist(err) {
			return target
		}
	}
}
