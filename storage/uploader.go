package storage

import (
	"context"
	"io"
)

const ContentTypeJSON = "application/json"

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader publishes room seed files. Keys are slash separated paths
// such as "Round1/Room2.json".
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}
