package cache

import "context"

// AudienceCache memoizes segment preview counts so the console can poll
// audience sizes without re-running segment SQL every time.
type AudienceCache interface {
	GetPreview(ctx context.Context, segment string) (count int, ok bool, err error)
	StorePreview(ctx context.Context, segment string, count int) error
}
