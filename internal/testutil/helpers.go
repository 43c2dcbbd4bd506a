package testutil

import "time"

// TestTime is the fixed clock used across tests.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// StringPtr returns &s.
func StringPtr(s string) *string { return &s }

// ConcurrentTestRunner starts functions together and collects their errors.
type ConcurrentTestRunner struct {
	t TB
}

// NewConcurrentTestRunner binds a runner to t.
func NewConcurrentTestRunner(t TB) *ConcurrentTestRunner {
	return &ConcurrentTestRunner{t: t}
}

// RunConcurrent returns errors in the order funcs were given.
func (r *ConcurrentTestRunner) RunConcurrent(funcs ...func() error) []error {
	r.t.Helper()
	errs := make([]error, len(funcs))
	done := make(chan struct{})
	for i, fn := range funcs {
		go func() {
			errs[i] = fn()
			done <- struct{}{}
		}()
	}
	for range funcs {
		<-done
	}
	return errs
}

// AssertNoErrors fails on the first non-nil error.
func (r *ConcurrentTestRunner) AssertNoErrors(errs []error) {
	r.t.Helper()
	for i, err := range errs {
		if err != nil {
			r.t.Fatalf("concurrent operation %d failed: %v", i, err)
		}
	}
}
