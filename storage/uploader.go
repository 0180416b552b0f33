package storage

import (
	"context"
	"fmt"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// BracketKey is where the final bracket snapshot of a contest is archived.
func BracketKey(contestID int) string {
	return fmt.Sprintf("contests/%d/bracket.json", contestID)
}
