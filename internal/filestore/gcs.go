package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

const uploadTimeout = 2 * time.Minute

// GCS reads statements from a Cloud Storage bucket. Folder IDs are object
// prefixes and file IDs are object names. It uses Application Default
// Credentials and ignores the caller's token.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a store for bucket.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCS: create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// ListFiles lists supported objects under the folderID prefix in name order.
func (g *GCS) ListFiles(ctx context.Context, _ string, folderID string) ([]File, error) {
	prefix := strings.Trim(folderID, "/")
	if prefix != "" {
		prefix += "/"
	}

	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var files []File
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListFiles: gs://%s/%s: %w", g.bucket, prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		files = append(files, File{
			ID:       attrs.Name,
			Name:     baseName(attrs.Name),
			MIMEType: DetectMIME(attrs.Name, attrs.ContentType),
		})
	}
	return filterSupported(files), nil
}

// Download reads the object named fileID.
func (g *GCS) Download(ctx context.Context, _ string, fileID string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(fileID).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("Download: gs://%s/%s: %w", g.bucket, fileID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Download: open gs://%s/%s: %w", g.bucket, fileID, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Download: read gs://%s/%s: %w", g.bucket, fileID, err)
	}
	return data, nil
}

// UploadFile copies a local file to objectName and returns its gs:// URI.
func (g *GCS) UploadFile(ctx context.Context, objectName, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("UploadFile: open %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = DetectMIME(objectName, "")
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("UploadFile: copy to gs://%s/%s: %w", g.bucket, objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("UploadFile: finalize gs://%s/%s: %w", g.bucket, objectName, err)
	}
	return "gs://" + g.bucket + "/" + objectName, nil
}

// ParseURI splits gs://bucket/object into its parts.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

func baseName(object string) string {
	if i := strings.LastIndex(object, "/"); i != -1 {
		return object[i+1:]
	}
	return object
}

var _ Store = (*GCS)(nil)
