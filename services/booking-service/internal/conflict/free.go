package conflict

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopslot/shopslot/services/booking-service/internal/rules"
)

// FreeSlots returns the resolved slots of day that neither overlap busy nor
// start before now. Slots are placed on day in loc.
func FreeSlots(slots []rules.TimeSlot, day civil.Date, loc *time.Location, busy []Booked, now time.Time) []rules.TimeSlot {
	free := make([]rules.TimeSlot, 0, len(slots))
	for _, s := range slots {
		start, end := s.On(day, loc)
		if start.Before(now) {
			continue
		}
		if _, taken := FindConflict(busy, Window{Start: start, End: end}, ""); taken {
			continue
		}
		free = append(free, s)
	}
	return free
}
