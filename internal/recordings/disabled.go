package recordings

import (
	"context"

	"outreach_backend/platform/apperr"
)

// Disabled stands in when no object storage is configured. Every lookup
// reports the storage as unavailable rather than failing startup.
type Disabled struct{}

func (Disabled) PresignedURL(_ context.Context, _ string) (string, error) {
	return "", apperr.Unavailable("recording storage is not configured")
}
