package engine

import (
	"time"

	"placefinder/discoveryservice/internal/domain"
)

const minutesPerWeek = 7 * 24 * 60

// OpenAtTarget evaluates a place's weekly opening periods against the
// target instant. It returns nil when the result is not computable: no
// usable time context and no provider-declared UTC offset to fall back
// on, or no declared hours at all. Callers must never treat nil as
// either open or closed.
func OpenAtTarget(place domain.RawPlace, targetAt time.Time, timeCtx domain.TimeContext) *bool {
	loc := timeCtx.Location()
	if loc == nil && place.UTCOffsetMinutes != nil {
		offset := *place.UTCOffsetMinutes
		if offset >= -840 && offset <= 840 {
			loc = time.FixedZone("placeoffset", offset*60)
		}
	}
	if loc == nil {
		return nil
	}
	if place.OpeningHours == nil || len(place.OpeningHours.Periods) == 0 {
		return nil
	}

	local := targetAt.In(loc)
	// Minute-of-week, with a one-week-later twin so periods that wrap the
	// Saturday→Sunday boundary or run past midnight still contain it.
	target := int(local.Weekday())*24*60 + local.Hour()*60 + local.Minute()
	targets := [2]int{target, target + minutesPerWeek}

	for _, period := range place.OpeningHours.Periods {
		if period.Close == nil {
			// Open-ended period: the place never closes.
			open := true
			return &open
		}
		start := minuteOfWeek(period.Open)
		end := minuteOfWeek(*period.Close)
		if end <= start {
			end += minutesPerWeek
		}
		for _, t := range targets {
			if t >= start && t < end {
				open := true
				return &open
			}
		}
	}
	closed := false
	return &closed
}

func minuteOfWeek(dt domain.DayTime) int {
	return dt.Day*24*60 + dt.Hour*60 + dt.Minute
}
