package storage

import (
	"context"
	"errors"
	"fmt"

	"scout-portal/internal/domain"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveStore keeps documents in a Google Drive folder owned by a service
// account.
type DriveStore struct {
	service  *drive.Service
	folderID string
}

func NewDriveStore(ctx context.Context, credentialsFile, folderID string) (*DriveStore, error) {
	if credentialsFile == "" {
		return nil, errors.New("drive: credentials file is required")
	}
	srv, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("drive: failed to create client: %w", err)
	}
	return &DriveStore{service: srv, folderID: folderID}, nil
}

func (d *DriveStore) Put(ctx context.Context, obj Object) (domain.FileRef, error) {
	file := &drive.File{
		Name:     obj.Name,
		MimeType: obj.ContentType,
	}
	if d.folderID != "" {
		file.Parents = []string{d.folderID}
	}

	created, err := d.service.Files.Create(file).
		Media(obj.Body).
		Fields("id", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("drive: upload %s: %w", obj.Name, err)
	}
	return domain.FileRef{ID: created.Id, URL: created.WebViewLink}, nil
}

func (d *DriveStore) Delete(ctx context.Context, id string) error {
	if err := d.service.Files.Delete(id).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return fmt.Errorf("drive: delete %s: %w", id, err)
	}
	return nil
}
