package display

import "fmt"

// TransformError reports a failed frame pose lookup. The message that needed
// the lookup is dropped; nothing else is affected.
type TransformError struct {
	Frame string
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("failed to transform from frame %q: %v", e.Frame, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// SubscriptionError reports a failed topic (re)subscribe attempt. The
// display stays unsubscribed until the next lifecycle change.
type SubscriptionError struct {
	Topic string
	Err   error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("failed to subscribe to %q: %v", e.Topic, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
