package task

// transitions holds the directed edges of the status graph. Absence of a
// (from, to) pair means the move is rejected, which also rules out
// self-transitions. done→cancel stays legal (a finished task can still be
// dropped) and cancel→todo is the only reopen path.
var transitions = map[Status][]Status{
	StatusToDo:     {StatusProgress, StatusCancel},
	StatusProgress: {StatusToDo, StatusReview, StatusCancel},
	StatusReview:   {StatusDone, StatusProgress, StatusCancel},
	StatusDone:     {StatusCancel},
	StatusCancel:   {StatusToDo},
}

// IsValidTransition reports whether a task may move from one status to
// another. It is pure and total: unknown statuses yield false.
func IsValidTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// MoveResult is the outcome of a move request. Rejections (invalid
// transition, capacity exceeded, stale from-status) come back as OK ==
// false with a human-readable reason; they are not transport errors.
type MoveResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}
