// Throttles store calls with a token bucket.

package blobstore

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimitedStore struct {
	inner   Store
	limiter *rate.Limiter
}

// RateLimited wraps inner so that Put and Get together do not exceed limit
// calls per second, with the given burst.
//
// Calls wait for a token; a cancelled context aborts the wait.
func RateLimited(inner Store, limit rate.Limit, burst int) Store {
	return &rateLimitedStore{inner: inner, limiter: rate.NewLimiter(limit, max(burst, 1))}
}

func (s *rateLimitedStore) Put(ctx context.Context, data []byte, md Metadata) (Handle, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return s.inner.Put(ctx, data, md)
}

func (s *rateLimitedStore) Get(ctx context.Context, h Handle) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Get(ctx, h)
}

func (s *rateLimitedStore) Close() error {
	return Close(s.inner)
}
