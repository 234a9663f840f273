package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const drivePageSize = 100

// Drive reads statements from a Google Drive folder with the caller's OAuth
// access token.
type Drive struct {
	opts []option.ClientOption
}

// NewDrive creates a Drive store. Extra options are appended to every
// service, which lets tests point at a fake endpoint.
func NewDrive(opts ...option.ClientOption) *Drive {
	return &Drive{opts: opts}
}

func (d *Drive) service(ctx context.Context, token string) (*drive.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, d.opts...)
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return srv, nil
}

// ListFiles returns the supported files in folderID ordered by name.
func (d *Drive) ListFiles(ctx context.Context, token, folderID string) ([]File, error) {
	srv, err := d.service(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("ListFiles: %w", err)
	}

	var files []File
	call := srv.Files.List().
		Q(folderQuery(folderID)).
		Fields("nextPageToken, files(id, name, mimeType)").
		OrderBy("name").
		PageSize(drivePageSize)
	for {
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("ListFiles: folder %s: %w", folderID, driveErr(err))
		}
		for _, f := range resp.Files {
			files = append(files, File{ID: f.Id, Name: f.Name, MIMEType: DetectMIME(f.Name, f.MimeType)})
		}
		if resp.NextPageToken == "" {
			break
		}
		call.PageToken(resp.NextPageToken)
	}
	return filterSupported(files), nil
}

// Download returns the content of fileID.
func (d *Drive) Download(ctx context.Context, token, fileID string) ([]byte, error) {
	srv, err := d.service(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}
	resp, err := srv.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("Download: %s: %w", fileID, driveErr(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Download: read %s: %w", fileID, err)
	}
	return data, nil
}

func folderQuery(folderID string) string {
	escaped := strings.ReplaceAll(strings.ReplaceAll(folderID, `\`, `\\`), `'`, `\'`)
	return fmt.Sprintf("'%s' in parents and trashed = false", escaped)
}

func driveErr(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

var _ Store = (*Drive)(nil)
