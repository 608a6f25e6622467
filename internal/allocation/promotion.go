package allocation

// Promotion describes how many waitlisted participants move to confirmed.
type Promotion struct {
	Moved     int
	Remaining int
}

// Split reports whether the waitlisted row keeps a remainder, in which case the
// moved participants need a new confirmed row.
func (p Promotion) Split() bool {
	return p.Moved > 0 && p.Remaining > 0
}

// PlanPromotion moves as many of the waitlisted participants as the free spots
// allow. A nil spots value means the course is unlimited. Moved is zero when
// the course is full.
func PlanPromotion(spots *int, waitlisted int) Promotion {
	if waitlisted <= 0 {
		return Promotion{}
	}
	res := Allocate(spots, waitlisted)
	return Promotion{Moved: res.Confirmed, Remaining: res.Waitlisted}
}
