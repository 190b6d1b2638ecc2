package port

import (
	"context"
	"io"
)

// ArtifactStore archives the output directory of a completed run in object
// storage.
type ArtifactStore interface {
	UploadArchive(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}
