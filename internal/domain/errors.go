package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrFeedUnavailable is terminal for a symbol feed: the reconnect budget
	// is exhausted and operator intervention is required.
	ErrFeedUnavailable = errors.New("feed unavailable")

	// ErrEmergencyStopped is returned while the sticky kill switch is active.
	ErrEmergencyStopped = errors.New("emergency stop active")

	// Fatal order-submission error classes. Either one trips the emergency stop.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMarginCall        = errors.New("margin call")

	// ErrOrderTimeout means the submission deadline elapsed with the order in
	// an unknown state. The caller must reconcile via a status query, never
	// retry blindly.
	ErrOrderTimeout = errors.New("order submission timed out")

	ErrOrderRejected   = errors.New("order rejected")
	ErrPreflightFailed = errors.New("pre-flight check failed")
)

// IsFatalSubmission reports whether an order-submission error belongs to the
// class that must trigger the emergency stop.
func IsFatalSubmission(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrMarginCall)
}
