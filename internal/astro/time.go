// Package astro converts TOD sample timestamps to Julian day numbers for
// provenance metadata, the way legacy ingest records a reference time
// against the calendar.
package astro

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// JulianDay converts a UTC time.Time to a Julian day number.
func JulianDay(t time.Time) float64 {
	ut := t.UTC()
	year, month, day := ut.Date()
	dayFrac := float64(day) + (float64(ut.Hour())*3600+float64(ut.Minute())*60+float64(ut.Second()))/86400.0
	return julian.CalendarGregorianToJD(year, int(month), dayFrac)
}

// ObservationSpan returns the Julian day numbers of the earliest and
// latest sample timestamps in times, for inclusion in TOD/map metadata
// exports. Panics on an empty slice, mirroring the original's
// bookkeeping assumption that a TOD always carries at least one sample.
func ObservationSpan(times []time.Time) (start, end float64) {
	if len(times) == 0 {
		panic("astro: ObservationSpan requires at least one timestamp")
	}
	min, max := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(min) {
			min = t
		}
		if t.After(max) {
			max = t
		}
	}
	return JulianDay(min), JulianDay(max)
}
