package delivery

import (
	"math"
	"math/rand"
	"time"
)

// backoff computes the delayed-retry duration for retryCount (the
// zero-based retry count of the NEXT attempt): delay = min(1800, 5*2^r)
// seconds, plus uniform jitter in [0, min(30, delay)).
//
// Grounded on the teacher's computeDelay in cmd/worker/main.go, adapted
// from the schedule-table form to the spec's closed-form exponential.
func backoff(retryCount int) time.Duration {
	base := math.Min(1800, 5*math.Pow(2, float64(retryCount)))
	jitterCap := math.Min(30, base)
	jitter := rand.Float64() * jitterCap
	return time.Duration((base + jitter) * float64(time.Second))
}
