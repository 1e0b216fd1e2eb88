package executor

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// linearBackOff waits base*(n+1) before the n-th retry.
type linearBackOff struct {
	base    time.Duration
	retries int
}

var _ backoff.BackOff = (*linearBackOff)(nil)

func newLinearBackOff(base time.Duration) *linearBackOff {
	return &linearBackOff{base: base}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.retries++
	return b.base * time.Duration(b.retries)
}

func (b *linearBackOff) Reset() {
	b.retries = 0
}
