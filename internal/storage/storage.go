package storage

import (
	"context"
	"fmt"
	"io"

	"scout-portal/internal/domain"

	"github.com/google/uuid"
)

// Object is a file on its way to the storage service.
type Object struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// FileStore keeps the bytes; the workflow only ever holds the returned
// reference.
type FileStore interface {
	Put(ctx context.Context, obj Object) (domain.FileRef, error)
	Delete(ctx context.Context, id string) error
}

// ObjectName builds a unique, human-traceable name for an upload.
func ObjectName(childID uint64, docType domain.DocumentType, ext string) string {
	return fmt.Sprintf("child-%d_%s_%s%s", childID, docType, uuid.NewString(), ext)
}
