package conflict

import (
	"context"
	"time"

	"github.com/shopslot/shopslot/services/booking-service/internal/model"
)

// Window is a half-open [Start, End) interval.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Valid() bool { return w.End.After(w.Start) }

// Overlaps is true iff w.Start < o.End && o.Start < w.End; touching windows do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Booked is an existing claim on a window.
type Booked struct {
	ID     string
	Status model.Status
	Window
}

// FindConflict returns the first blocking booking overlapping w, skipping excludeID.
func FindConflict(existing []Booked, w Window, excludeID string) (Booked, bool) {
	for _, b := range existing {
		if b.ID == excludeID && excludeID != "" {
			continue
		}
		if !b.Status.Blocking() {
			continue
		}
		if b.Overlaps(w) {
			return b, true
		}
	}
	return Booked{}, false
}

// Source lists the bookings of a shop that may overlap a window. It may
// return extra rows; FindConflict does the exact filtering.
type Source interface {
	BookingsInWindow(ctx context.Context, shopID string, w Window) ([]Booked, error)
}

// Detector checks a window against every service of one shop. It only reads;
// callers pair it with a lock or constraint to make check-then-write atomic.
type Detector struct{}

func (Detector) HasConflict(ctx context.Context, src Source, shopID string, w Window, excludeID string) (bool, error) {
	existing, err := src.BookingsInWindow(ctx, shopID, w)
	if err != nil {
		return false, err
	}
	_, found := FindConflict(existing, w, excludeID)
	return found, nil
}
