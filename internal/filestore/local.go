package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local reads statements from a directory tree. Folder and file IDs are
// slash-separated paths relative to the root.
type Local struct {
	root string
}

// NewLocal creates a store rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

// ListFiles lists supported files directly inside folderID, sorted by name.
func (l *Local) ListFiles(ctx context.Context, _ string, folderID string) ([]File, error) {
	dir, err := l.resolve(folderID)
	if err != nil {
		return nil, fmt.Errorf("ListFiles: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("ListFiles: %s: %w", folderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ListFiles: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := filepath.ToSlash(filepath.Join(strings.Trim(folderID, "/"), e.Name()))
		files = append(files, File{ID: id, Name: e.Name(), MIMEType: DetectMIME(e.Name(), "")})
	}
	return filterSupported(files), nil
}

// Download reads the file at fileID.
func (l *Local) Download(ctx context.Context, _ string, fileID string) ([]byte, error) {
	p, err := l.resolve(fileID)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Download: %s: %w", fileID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}
	return data, nil
}

// resolve maps a relative ID inside the root, rejecting escapes.
func (l *Local) resolve(id string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(id))
	p := filepath.Join(l.root, clean)
	rel, err := filepath.Rel(l.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the store root", id)
	}
	return p, nil
}

var _ Store = (*Local)(nil)
