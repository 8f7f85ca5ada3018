package application

import "context"

// IdempotencyStore guards API-triggered detection runs against replays.
type IdempotencyStore interface {
	// TryReserve returns true if key was absent and is now reserved.
	// Returns false if the key already exists (duplicate).
	TryReserve(ctx context.Context, key string) (bool, error)
}

// NoopIdempotency always succeeds; used when IDEMPOTENCY_BACKEND=none.
type NoopIdempotency struct{}

func (NoopIdempotency) TryReserve(context.Context, string) (bool, error) { return true, nil }
