package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopslot/shopslot/services/calendar-sync-service/internal/gcal"
)

type Calendar interface {
	CreateEvent(ctx context.Context, userID string, ev gcal.Event) (string, error)
	DeleteEvent(ctx context.Context, userID, eventID string) error
}

// State is the calendar_events row of one booking.
type State struct {
	BookingID       string
	OwnerEventID    *string
	CustomerEventID *string
	AppliedVersion  int
}

// Stale reports a job that is not newer than what was already applied.
func (s State) Stale(j Job) bool { return j.Version <= s.AppliedVersion }

// Apply replaces each party's event for the booking: the old one is deleted
// and, for an upsert, a new one is created. A party without a connected
// calendar is skipped. The returned state reflects every call that
// succeeded even when err is set, so a retry deletes what this attempt made.
func Apply(ctx context.Context, cal Calendar, cur State, job Job) (State, error) {
	next := cur
	next.BookingID = job.BookingID
	parties := []struct {
		userID string
		slot   **string
	}{
		{job.OwnerID, &next.OwnerEventID},
		{job.CustomerID, &next.CustomerEventID},
	}
	for _, p := range parties {
		if *p.slot != nil {
			err := cal.DeleteEvent(ctx, p.userID, **p.slot)
			if err != nil && !errors.Is(err, gcal.ErrNotConnected) {
				return next, fmt.Errorf("delete event for %s: %w", p.userID, err)
			}
			*p.slot = nil
		}
		if job.Action != ActionUpsert || p.userID == "" {
			continue
		}
		id, err := cal.CreateEvent(ctx, p.userID, job.event())
		if errors.Is(err, gcal.ErrNotConnected) {
			continue
		}
		if err != nil {
			return next, fmt.Errorf("create event for %s: %w", p.userID, err)
		}
		*p.slot = &id
	}
	next.AppliedVersion = job.Version
	return next, nil
}
