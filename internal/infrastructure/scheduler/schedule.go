package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Schedule describes when a job runs. Times are UTC.
type Schedule interface {
	definition() gocron.JobDefinition
	String() string
}

// Every runs a job at a fixed interval.
func Every(d time.Duration) Schedule { return interval{d: d} }

// DailyAt runs a job once a day at hh:mm UTC.
func DailyAt(hour, minute uint) Schedule { return daily{hour: hour, minute: minute} }

// WeeklyAt runs a job once a week on day at hh:mm UTC.
func WeeklyAt(day time.Weekday, hour, minute uint) Schedule {
	return weekly{day: day, hour: hour, minute: minute}
}

type interval struct{ d time.Duration }

func (s interval) definition() gocron.JobDefinition { return gocron.DurationJob(s.d) }
func (s interval) String() string                   { return "@every " + s.d.String() }

type daily struct{ hour, minute uint }

func (s daily) definition() gocron.JobDefinition {
	return gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(s.hour, s.minute, 0)))
}
func (s daily) String() string { return fmt.Sprintf("daily at %02d:%02d UTC", s.hour, s.minute) }

type weekly struct {
	day          time.Weekday
	hour, minute uint
}

func (s weekly) definition() gocron.JobDefinition {
	return gocron.WeeklyJob(1, gocron.NewWeekdays(s.day), gocron.NewAtTimes(gocron.NewAtTime(s.hour, s.minute, 0)))
}
func (s weekly) String() string {
	return fmt.Sprintf("weekly on %s at %02d:%02d UTC", s.day, s.hour, s.minute)
}
