package limiter

import "context"

// Semaphore bounds concurrent access to a resource using a buffered channel
// as the token pool.
type Semaphore struct {
	tokens chan struct{}
}

// NewSemaphore creates a Semaphore allowing up to n concurrent holders.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		n = 1
	}
	return &Semaphore{tokens: make(chan struct{}, n)}
}

// Acquire blocks until a token is available or ctx is done. The caller
// never blocks beyond this call.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.tokens <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a token to the pool.
func (s *Semaphore) Release() {
	<-s.tokens
}

// Size reports the configured concurrency bound.
func (s *Semaphore) Size() int {
	return cap(s.tokens)
}
