// Package allocation splits a registration request between confirmed seats and
// the waitlist.
package allocation

import "github.com/Shivanand-hulikatti/workshop-registration/internal/model"

// Status classifies an allocation outcome.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusWaitlist  Status = "waitlist"
	StatusMixed     Status = "mixed"
)

// Result is the split of a request. Exactly one of the three shapes holds for a
// positive request: only Confirmed, only Waitlisted, or both.
type Result struct {
	Confirmed  int `json:"confirmed"`
	Waitlisted int `json:"waitlisted"`
}

// Allocate splits requested participants against the free spots of a course.
// A nil spots value means the course is unlimited. A full course is not an
// error: everything goes to the waitlist.
func Allocate(spots *int, requested int) Result {
	if requested <= 0 {
		return Result{}
	}
	if spots == nil {
		return Result{Confirmed: requested}
	}
	available := *spots
	if available < 0 {
		available = 0
	}
	confirmed := min(requested, available)
	return Result{Confirmed: confirmed, Waitlisted: requested - confirmed}
}

// Total returns the number of participants in the request.
func (r Result) Total() int {
	return r.Confirmed + r.Waitlisted
}

// Status classifies the result.
func (r Result) Status() Status {
	switch {
	case r.Waitlisted == 0:
		return StatusConfirmed
	case r.Confirmed == 0:
		return StatusWaitlist
	default:
		return StatusMixed
	}
}

// Trigger maps the result to the notification trigger for the participant.
func (r Result) Trigger() model.Trigger {
	switch r.Status() {
	case StatusWaitlist:
		return model.TriggerRegistrationWaitlist
	case StatusMixed:
		return model.TriggerRegistrationMixed
	default:
		return model.TriggerRegistrationConfirmed
	}
}
