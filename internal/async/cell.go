// Package async models parameter-keyed asynchronous operations.
//
// A Cell is the four-state lifecycle of one operation. An Operation is the
// orchestrator: each Start runs the producer exactly once on its own
// goroutine and publishes a Started event followed by exactly one Done or
// Failed event. Nothing is retried. Stale results are rejected by whoever
// consumes the events (see Tracker), never by the Operation itself.
package async

import "fmt"

// Status is the lifecycle stage of a Cell.
type Status int

const (
	NotStarted Status = iota
	Pending
	Finished
	Failed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Pending:
		return "PENDING"
	case Finished:
		return "FINISHED"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Params identifies what an operation was started for. Two params with the
// same Key refer to the same request for stale-result purposes.
type Params interface {
	Key() string
}

// Cell is an immutable snapshot of one operation's lifecycle. Params is
// meaningful in every state other than NotStarted, Data only when
// Finished, Err only when Failed.
type Cell[P Params, R any] struct {
	Status Status
	Params P
	Data   R
	Err    error
}

// Start returns a Pending cell for p.
func (c Cell[P, R]) Start(p P) Cell[P, R] {
	return Cell[P, R]{Status: Pending, Params: p}
}

// Finish returns a Finished cell for p holding data.
func (c Cell[P, R]) Finish(p P, data R) Cell[P, R] {
	return Cell[P, R]{Status: Finished, Params: p, Data: data}
}

// Fail returns a Failed cell for p holding err.
func (c Cell[P, R]) Fail(p P, err error) Cell[P, R] {
	return Cell[P, R]{Status: Failed, Params: p, Err: err}
}

// Reset returns a NotStarted cell.
func (c Cell[P, R]) Reset() Cell[P, R] {
	return Cell[P, R]{}
}

// Matches reports whether the cell was started and is keyed by p.
func (c Cell[P, R]) Matches(p P) bool {
	return c.Status != NotStarted && c.Params.Key() == p.Key()
}

// Ready reports whether the cell finished successfully.
func (c Cell[P, R]) Ready() bool {
	return c.Status == Finished
}
