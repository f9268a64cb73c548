package notify

import "fmt"

// ErrDeliveryFailed is returned when a channel could not deliver its output.
type ErrDeliveryFailed struct {
	Channel string
	Cause   error
}

func (e *ErrDeliveryFailed) Error() string {
	return fmt.Sprintf("notify: delivery failed on %s: %v", e.Channel, e.Cause)
}

func (e *ErrDeliveryFailed) Unwrap() error { return e.Cause }
