package job

// completePercentage is the exact percentage that marks a job as done.
const completePercentage = 100

// Transition derives the next state of a job from its current state and the
// latest payload, and lists the effects the caller must apply.
//
// The rules are:
//   - Complete is terminal; nothing changes and no effects are returned.
//   - A payload without a reported percentage changes nothing.
//   - A percentage of exactly 100 moves the job to Complete and requests an
//     indicator update followed by a page reload.
//   - Any other reported percentage moves the job to InProgress and requests
//     an indicator update. Lower values than before are displayed as-is.
//
// Transition is a pure function: equal inputs always give equal outputs.
func Transition(current State, p Payload) (State, []Effect) {
	if current == Complete || !p.Reported {
		return current, nil
	}

	update := UpdateIndicators{
		Width:  p.Text + "%",
		Label:  p.Text + "%",
		Status: p.Status,
	}

	if p.Percentage == completePercentage {
		return Complete, []Effect{update, ScheduleReload{}}
	}
	return InProgress, []Effect{update}
}
