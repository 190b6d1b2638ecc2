package port

import "context"

// InferenceService is the vision-language collaborator. It is an exclusive,
// stateful resource: callers take a reference with Acquire before inferring
// and drop it with Release; the underlying model handle is loaded on the
// first acquire and unloaded when the last reference is released.
type InferenceService interface {
	Acquire(ctx context.Context) error
	Release()

	// Infer runs one synchronous vision call for one frame and returns the
	// raw model text (expected to contain Thought:/Action: lines or an
	// explicit skip marker).
	Infer(ctx context.Context, imagePath string, prompt string) (string, error)
}
