package assignment

import (
	"time"

	"github.com/NoheilaRamdani/sae401/core/subject"
)

type Urgency string

const (
	UrgencyExpired Urgency = "expired"
	UrgencyUrgent  Urgency = "urgent"
	UrgencySoon    Urgency = "soon"
	UrgencyOnTime  Urgency = "ontime"

	urgentWithin = 24 * time.Hour
	soonWithin   = 72 * time.Hour
)

// reminder hours: a due-soon notice fires when HoursUntilDue hits one of these
var reminderHours = []int{24, 72}

// Calendar colors
const (
	ColorExpired = "#808080"
	ColorUrgent  = "#dc3545"
	ColorSoon    = "#fd7e14"
	ColorOnTime  = "#28a745"
)

// UrgencyOf classifies the time left until due. Bounds are inclusive: exactly 24h left is urgent.
func UrgencyOf(due, now time.Time) Urgency {
	left := due.Sub(now)
	switch {
	case left < 0:
		return UrgencyExpired
	case left <= urgentWithin:
		return UrgencyUrgent
	case left <= soonWithin:
		return UrgencySoon
	default:
		return UrgencyOnTime
	}
}

// HoursUntilDue is the whole number of hours left, truncated toward zero (negative once past).
func HoursUntilDue(due, now time.Time) int {
	return int(due.Sub(now) / time.Hour)
}

// NeedsReminder reports whether a due-soon notice fires for a at now.
func NeedsReminder(a Assignment, now time.Time) bool {
	if a.IsCompleted {
		return false
	}
	h := HoursUntilDue(a.DueDate, now)
	for _, rh := range reminderHours {
		if h == rh {
			return true
		}
	}
	return false
}

// EventColor picks the calendar color of a: urgency first, then the subject color.
// Assignments due in five days or more are shown as on time.
func EventColor(a Assignment, subj *subject.Subject, now time.Time) string {
	switch UrgencyOf(a.DueDate, now) {
	case UrgencyExpired:
		return ColorExpired
	case UrgencyUrgent:
		return ColorUrgent
	case UrgencySoon:
		return ColorSoon
	}
	if a.DueDate.Sub(now) >= 5*24*time.Hour {
		return ColorOnTime
	}
	if subj == nil {
		return subject.DefaultColor
	}
	return subj.DisplayColor()
}

// NewView derives the urgency fields of a at now.
func NewView(a Assignment, subj *subject.Subject, now time.Time) View {
	return View{
		Assignment:    a,
		Subject:       subj,
		UrgencyClass:  UrgencyOf(a.DueDate, now),
		HoursUntilDue: HoursUntilDue(a.DueDate, now),
	}
}
