package port

import "context"

// VideoAcquirer downloads a video URL into destDir and returns the local
// file path of the merged mp4.
type VideoAcquirer interface {
	Fetch(ctx context.Context, url string, destDir string) (string, error)
}
