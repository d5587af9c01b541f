package core

import (
	"time"

	"github.com/pkg/errors"
)

const (
	// DateTimeLayout is the canonical text form of due dates.
	DateTimeLayout = "2006-01-02 15:04:05"
	// DisplayLayout is the short day/month form shown in calendar views.
	DisplayLayout = "02/01/2006 15:04"
)

var (
	ErrInvalidDate = errors.New("invalid date")

	// accepted input layouts, tried in order
	dateTimeInputLayouts = []string{
		DateTimeLayout,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
	}
)

// FormatDateTime renders t in the canonical layout, in loc.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(DateTimeLayout)
}

// ParseDateTime accepts RFC 3339 or one of the local layouts (interpreted in loc) and returns UTC.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = CleanString(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range dateTimeInputLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrInvalidDate, "parsing %q", s)
}

// CanonicalDateTime normalizes any accepted input into the canonical layout.
func CanonicalDateTime(s string, loc *time.Location) (string, error) {
	t, err := ParseDateTime(s, loc)
	if err != nil {
		return "", err
	}
	return FormatDateTime(t, loc), nil
}
