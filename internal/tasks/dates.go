package tasks

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. Date-only layouts resolve to the end of that day.
var dateLayouts = []struct {
	layout   string
	dateOnly bool
}{
	{"2006-01-02 15:04", false},
	{"2006-01-02", true},
	{"02/01/2006 15:04", false},
	{"02/01/2006", true},
}

// ParseDate reads a due date typed by a user. All inputs are interpreted as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		t, err := time.ParseInLocation(l.layout, s, time.UTC)
		if err != nil {
			continue
		}
		if l.dateOnly {
			t = t.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		}
		return t, nil
	}
	return time.Time{}, &ValidationError{
		Field:   "due",
		Message: "unrecognized date " + s + " (use YYYY-MM-DD, YYYY-MM-DD HH:MM, DD/MM/YYYY or DD/MM/YYYY HH:MM)",
	}
}
