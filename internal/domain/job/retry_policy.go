// Package job holds the pure policies that govern a notification job's lifecycle.
package job

import "github.com/target/notify-dispatch/internal/domain/model"

// ShouldArchive reports whether a failure that brought the retry counter to
// retryAfterIncrement exhausts the budget.
func ShouldArchive(retryAfterIncrement, maxRetries int) bool {
	return retryAfterIncrement >= maxRetries
}

// IsExhausted reports whether a job must be archived without another attempt.
func IsExhausted(j *model.Job) bool {
	if j == nil {
		return false
	}
	return ShouldArchive(j.RetryCount, j.EffectiveMaxRetries())
}
