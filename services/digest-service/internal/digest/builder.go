package digest

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Day kinds for the weekly summary. Mondays are consultation days and
// Wednesdays confession days in the operator's schedule; everything else
// counts as a regular visit.
const (
	KindConsultation = "consultation"
	KindConfession   = "confession"
	KindRegular      = "regular"
)

// DayKind classifies a date for the weekly summary.
func DayKind(date string) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return KindRegular
	}
	switch d.Weekday() {
	case time.Monday:
		return KindConsultation
	case time.Wednesday:
		return KindConfession
	default:
		return KindRegular
	}
}

// RosterMessage renders tomorrow's appointment list for the operator.
func RosterMessage(date string, entries []Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schedule for %s: %d appointment(s)\n", date, len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s  %s\n", e.StartTime, e.SubjectID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ReminderMessage renders the reminder sent to a subject the evening before.
func ReminderMessage(e Entry) string {
	return fmt.Sprintf("Reminder: you have an appointment tomorrow (%s) at %s.", e.VisitDate, e.StartTime)
}

// WeeklySummary renders the trailing-week report: total bookings plus counts
// per day kind.
func WeeklySummary(from, to string, entries []Entry) string {
	counts := map[string]int{}
	for _, e := range entries {
		counts[DayKind(e.VisitDate)]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly summary %s to %s: %d booking(s)\n", from, to, len(entries))
	fmt.Fprintf(&b, "- consultation days (Mon): %d\n", counts[KindConsultation])
	fmt.Fprintf(&b, "- confession days (Wed): %d\n", counts[KindConfession])
	fmt.Fprintf(&b, "- regular days: %d", counts[KindRegular])
	return b.String()
}
