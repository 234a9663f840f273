// Package filestore lists and downloads statement files from Google Drive,
// Cloud Storage or a local directory.
package filestore

import (
	"context"
	"errors"
	"path"
	"strings"
)

const (
	MIMECSV         = "text/csv"
	MIMEApplication = "application/csv"
	MIMEPDF         = "application/pdf"
)

// ErrNotFound is returned when a file or folder does not exist.
var ErrNotFound = errors.New("file not found")

// File is one entry of a folder listing.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
}

// IsPDF reports whether f is a PDF statement.
func (f File) IsPDF() bool { return f.MIMEType == MIMEPDF }

// Store is the file collaborator used by ingestion. token is the caller's
// access token; stores that use ambient credentials ignore it.
type Store interface {
	ListFiles(ctx context.Context, token, folderID string) ([]File, error)
	Download(ctx context.Context, token, fileID string) ([]byte, error)
}

// Supported reports whether mimeType is a statement format ingestion reads.
func Supported(mimeType string) bool {
	switch normalizeMIME(mimeType) {
	case MIMECSV, MIMEApplication, MIMEPDF:
		return true
	}
	return false
}

// DetectMIME returns the declared type when it is supported, otherwise the
// type implied by the file extension, otherwise the declared type.
func DetectMIME(name, declared string) string {
	if d := normalizeMIME(declared); Supported(d) {
		return d
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return MIMECSV
	case ".pdf":
		return MIMEPDF
	}
	return normalizeMIME(declared)
}

// filterSupported keeps supported files, preserving order.
func filterSupported(files []File) []File {
	out := files[:0]
	for _, f := range files {
		if Supported(f.MIMEType) {
			out = append(out, f)
		}
	}
	return out
}

func normalizeMIME(s string) string {
	if i := strings.Index(s, ";"); i != -1 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}
