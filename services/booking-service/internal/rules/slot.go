package rules

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ErrInvalid wraps every rule and slot validation failure.
var ErrInvalid = errors.New("invalid availability rule")

// TimeSlot is a wall-clock window within one day. Start and End are
// zero-padded 24h "HH:MM" strings once normalised, so they order lexicographically.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NewTimeSlot normalises start and end. "9:00" becomes "09:00".
func NewTimeSlot(start, end string) (TimeSlot, error) {
	s, err := normalizeClock(start)
	if err != nil {
		return TimeSlot{}, err
	}
	e, err := normalizeClock(end)
	if err != nil {
		return TimeSlot{}, err
	}
	if s >= e {
		return TimeSlot{}, fmt.Errorf("%w: slot start %s must be before end %s", ErrInvalid, s, e)
	}
	return TimeSlot{Start: s, End: e}, nil
}

func (s TimeSlot) String() string { return s.Start + "-" + s.End }

// Contains reports whether other lies entirely inside s.
func (s TimeSlot) Contains(other TimeSlot) bool {
	return s.Start <= other.Start && other.End <= s.End
}

func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Start < other.End && other.Start < s.End
}

// On places the slot on date in loc. Times that fall in a DST gap are
// shifted forward by time.Date.
func (s TimeSlot) On(date civil.Date, loc *time.Location) (start, end time.Time) {
	return clockOn(date, s.Start, loc), clockOn(date, s.End, loc)
}

// SlotOf converts an absolute window back to the wall-clock slot it occupies in loc.
func SlotOf(start, end time.Time, loc *time.Location) TimeSlot {
	return TimeSlot{Start: start.In(loc).Format("15:04"), End: end.In(loc).Format("15:04")}
}

// Contains reports whether want is a subset of one of slots.
func Contains(slots []TimeSlot, want TimeSlot) bool {
	for _, s := range slots {
		if s.Contains(want) {
			return true
		}
	}
	return false
}

func clockOn(date civil.Date, clock string, loc *time.Location) time.Time {
	h, _ := strconv.Atoi(clock[:2])
	m, _ := strconv.Atoi(clock[3:])
	return civil.DateTime{Date: date, Time: civil.Time{Hour: h, Minute: m}}.In(loc)
}

func normalizeClock(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
		return "", fmt.Errorf("%w: time %q must be HH:MM", ErrInvalid, raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("%w: time %q has an invalid hour", ErrInvalid, raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("%w: time %q has an invalid minute", ErrInvalid, raw)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// normalizeSlots returns a normalised copy of slots or the first error.
// Slots within one rule must not overlap each other.
func normalizeSlots(slots []TimeSlot) ([]TimeSlot, error) {
	out := make([]TimeSlot, 0, len(slots))
	for i, s := range slots {
		n, err := NewTimeSlot(s.Start, s.End)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", i, err)
		}
		out = append(out, n)
	}

	sorted := append([]TimeSlot(nil), out...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Overlaps(sorted[i]) {
			return nil, fmt.Errorf("%w: slots %s and %s overlap", ErrInvalid, sorted[i-1], sorted[i])
		}
	}
	return out, nil
}
