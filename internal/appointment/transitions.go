package appointment

type Action string

const (
	ActionPay      Action = "pay"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Next returns the status reached by applying act in state from. Both
// appointment kinds share this table; paying an already booked appointment
// stays booked so replayed confirmations are harmless.
func Next(from Status, act Action) (Status, bool) {
	switch act {
	case ActionPay:
		if from == StatusPending || from == StatusBooked {
			return StatusBooked, true
		}
	case ActionComplete:
		if from == StatusBooked {
			return StatusCompleted, true
		}
	case ActionCancel:
		if from == StatusPending || from == StatusBooked {
			return StatusCancelled, true
		}
	}
	return from, false
}
