package monitor

import (
	"time"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// Schedule holds the wall-clock boundaries that classify an arrival.
type Schedule struct {
	// WorkStart is the nominal start of the working day as an offset from
	// midnight.
	WorkStart time.Duration
	// Grace extends WorkStart before an arrival counts as late.
	Grace time.Duration
	// HalfDayCutoff is the offset from midnight after which an arrival only
	// counts as half a day.
	HalfDayCutoff time.Duration
}

// Classify maps an arrival instant to its attendance status. Boundaries are
// inclusive: arriving exactly at the end of grace is still on time, exactly
// at the cutoff is still late.
func (s Schedule) Classify(t time.Time) domain.AttendanceStatus {
	elapsed := sinceMidnight(t)
	switch {
	case elapsed <= s.WorkStart+s.Grace:
		return domain.StatusOnTime
	case elapsed <= s.HalfDayCutoff:
		return domain.StatusLate
	default:
		return domain.StatusHalfDay
	}
}

func sinceMidnight(t time.Time) time.Duration {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return t.Sub(midnight)
}
