package port

import "context"

// Archiver packs a run's artifact directory into a single zip file.
type Archiver interface {
	ArchiveDir(ctx context.Context, dir string, outputPath string) error
}
