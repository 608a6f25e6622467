package messaging

import (
	"net/url"
	"strconv"
	"time"

	"github.com/Shivanand-hulikatti/workshop-registration/internal/model"
)

// Placeholder keys available to every template.
const (
	KeyFirstName       = "first_name"
	KeyLastName        = "last_name"
	KeyPhone           = "phone"
	KeyEmail           = "email"
	KeyCourseTitle     = "course_title"
	KeyDate            = "date"
	KeyTime            = "time"
	KeyLocation        = "location"
	KeyLocationURL     = "location_url"
	KeyNumParticipants = "num_participants"
	KeyNumRegistered   = "num_registered"
	KeyNumWaitlist     = "num_waitlist"
)

// ContextKeys lists the keys BuildContext always sets.
var ContextKeys = []string{
	KeyFirstName, KeyLastName, KeyPhone, KeyEmail, KeyCourseTitle, KeyDate,
	KeyTime, KeyLocation, KeyLocationURL, KeyNumParticipants,
}

const mapsSearchURL = "https://maps.google.com/?q="

// BuildContext assembles the substitution variables for a registration. The
// course date is formatted dd.mm.yyyy. Entries in extra override or augment the
// base set.
func BuildContext(reg *model.Registration, course *model.Course, extra map[string]string) map[string]string {
	date := ""
	if course.Date != nil {
		date = course.Date.Format("02.01.2006")
	}

	numParticipants := reg.NumParticipants
	if numParticipants < 1 {
		numParticipants = 1
	}

	vars := map[string]string{
		KeyFirstName:       reg.FirstName,
		KeyLastName:        reg.LastName,
		KeyPhone:           reg.Phone,
		KeyEmail:           reg.Email,
		KeyCourseTitle:     course.Title,
		KeyDate:            date,
		KeyTime:            course.TimeInfo,
		KeyLocation:        course.Location,
		KeyLocationURL:     MapLink(course),
		KeyNumParticipants: strconv.Itoa(numParticipants),
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

// MapLink returns the explicit location URL, else a map search for the
// location name, else an empty string.
func MapLink(course *model.Course) string {
	switch {
	case course.LocationURL != "":
		return course.LocationURL
	case course.Location != "":
		return mapsSearchURL + url.QueryEscape(course.Location)
	default:
		return ""
	}
}

// CourseDay returns the calendar day of the course in loc. Dates are stored
// without time of day, so only year, month and day are used.
func CourseDay(course *model.Course, loc *time.Location) (time.Time, bool) {
	if course.Date == nil {
		return time.Time{}, false
	}
	y, m, d := course.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), true
}
