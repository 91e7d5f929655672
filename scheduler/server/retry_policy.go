package server

// RetryPolicy decides whether a failed attempt is followed by another one.
// There is no backoff: a retried job is simply eligible at the next admission pass.
type RetryPolicy struct {
	MaxRetries int
}

// ShouldRetry is true while the job has used fewer than MaxRetries+1 attempts.
func (p RetryPolicy) ShouldRetry(attemptCount int) bool {
	return attemptCount < p.MaxRetries+1
}
