package job

import "fmt"

// State is the lifecycle position of a single tracked job.
type State uint8

const (
	// Pending means no usable percentage has been reported yet.
	Pending State = iota

	// InProgress means a non-zero percentage below 100 was last applied.
	InProgress

	// Complete means the job reported exactly 100 and a reload is scheduled.
	// Complete is terminal.
	Complete
)

// String returns the lowercase state name used in logs, JSON and metrics.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Effect is a side effect requested by [Transition].
//
// The concrete types are [UpdateIndicators] and [ScheduleReload]. Callers
// handle them with a type switch.
type Effect interface {
	isEffect()
}

// UpdateIndicators asks the caller to rewrite the three indicator elements
// of a job.
type UpdateIndicators struct {
	// Width is the CSS width for the progress bar, e.g. "37%".
	Width string

	// Label is the text for the percentage indicator, e.g. "37%".
	Label string

	// Status is the text for the status label. nil leaves the label as is.
	Status *string
}

// ScheduleReload asks the caller to reload the page after the reload delay.
type ScheduleReload struct{}

func (UpdateIndicators) isEffect() {}
func (ScheduleReload) isEffect()   {}
