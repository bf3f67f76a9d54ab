package reviews

import (
	"fmt"
	"time"
)

// transitions lists every allowed moderation move. Any status may follow any
// other, including itself.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusPending:  true,
		StatusApproved: true,
		StatusRejected: true,
	},
	StatusApproved: {
		StatusPending:  true,
		StatusApproved: true,
		StatusRejected: true,
	},
	StatusRejected: {
		StatusPending:  true,
		StatusApproved: true,
		StatusRejected: true,
	},
}

func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Transition moves the review to status. Approval stamps ApprovedAt/ApprovedBy;
// other moves leave them untouched.
func (r *Review) Transition(to Status, by int64, at time.Time) error {
	if !to.Valid() || !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.Status, to)
	}

	r.Status = to
	if to == StatusApproved {
		approvedAt := at
		approvedBy := by
		r.ApprovedAt = &approvedAt
		r.ApprovedBy = &approvedBy
	}
	return nil
}
