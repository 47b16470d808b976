package policies

import "context"

// Notifier delivers user-facing notifications through the Notification Service.
type Notifier interface {
	Emit(ctx context.Context, userID, kind, message string, metadata map[string]string) error
}
