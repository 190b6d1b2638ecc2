package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, userEmail string, requestID string, query string, errorMsg string) error
}
