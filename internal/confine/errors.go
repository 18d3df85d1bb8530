package confine

import "fmt"

// ViolationError reports a confined operation invoked outside the job that
// owns it. It is raised with panic and never delivered as an event.
type ViolationError struct {
	Op    string // operation attempted, e.g. "Execute"
	Queue string // name of the queue the operation is bound to
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("confinement violation: %s called outside queue %q", e.Op, e.Queue)
}
