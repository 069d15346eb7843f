package generic

// =============================================================================
// WINDOW - Closed range of days used to bound schedule generation
// =============================================================================

// Window is the closed range [Start, End].
//
// Examples:
//   - Generation window: [today - 10 days, today + 60 days]
//   - Renewal watch:     [today + 45 days, today + 60 days]
type Window struct {
	Start TimePoint
	End   TimePoint
}

// RollingWindow returns [anchor - back days, anchor + ahead days].
func RollingWindow(anchor TimePoint, back, ahead int) Window {
	return Window{Start: anchor.AddDays(-back), End: anchor.AddDays(ahead)}
}

// Contains returns true if the day is within [Start, End].
func (w Window) Contains(t TimePoint) bool {
	return t.AfterOrEqual(w.Start) && t.BeforeOrEqual(w.End)
}

// Valid reports whether End is not before Start.
func (w Window) Valid() bool {
	return !w.End.Before(w.Start)
}

// Days returns the number of days covered, both ends included.
func (w Window) Days() int {
	if !w.Valid() {
		return 0
	}
	return DaysBetween(w.Start, w.End) + 1
}

func (w Window) String() string {
	return "[" + w.Start.String() + ", " + w.End.String() + "]"
}
