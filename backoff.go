package semtok

import (
	"math/rand"
	"time"
)

// backoff implements truncated binary exponential backoff with jitter.
type backoff struct {
	min     time.Duration
	max     time.Duration
	current time.Duration
}

// next returns min on the first call and doubles up to max after that, plus
// up to 25 % jitter so windows retrying together spread out.
func (b *backoff) next() time.Duration {
	if b.current < b.min {
		b.current = b.min
	} else {
		b.current = min(b.current*2, b.max)
	}
	jitter := time.Duration(rand.Int63n(int64(b.current)/4 + 1))
	return b.current + jitter
}

// reset starts the sequence over from min.
func (b *backoff) reset() {
	b.current = 0
}
