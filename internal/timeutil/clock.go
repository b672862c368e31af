package timeutil

import (
	"time"
)

// Local is the factory's business timezone. Defaults to Indian Standard Time.
var Local *time.Location

func init() {
	var err error
	Local, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback: create fixed zone if Asia/Kolkata not available
		Local = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// SetLocation switches the business timezone. Unknown names keep the current one.
func SetLocation(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	Local = loc
	return nil
}

// Clock abstracts the time source so services can be tested with fixed times.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// System is the wall clock in the business timezone, truncated to the
// microsecond precision postgres stores.
var System Clock = systemClock{}

func (systemClock) Now() time.Time {
	return Now()
}

// Now returns the current time in the business timezone.
func Now() time.Time {
	return time.Now().In(Local).Truncate(time.Microsecond)
}

// StartOfDay returns the start of day (00:00:00) in the business timezone for the given time
func StartOfDay(t time.Time) time.Time {
	l := t.In(Local)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, Local)
}

// Common layouts
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006, 03:04 PM"
)
