package types

import "time"

type Interval string

const (
	OneMinute      Interval = "1"
	FiveMinutes    Interval = "5"
	FifteenMinutes Interval = "15"
	ThirtyMinutes  Interval = "30"
	Hour           Interval = "60"
	Day            Interval = "D"
	Week           Interval = "W"
)

var IntervalToTime = map[Interval]time.Duration{
	OneMinute:      time.Minute,
	FiveMinutes:    time.Minute * 5,
	FifteenMinutes: time.Minute * 15,
	ThirtyMinutes:  time.Minute * 30,
	Hour:           time.Hour,
	Day:            time.Hour * 24,
	Week:           time.Hour * 24 * 7,
}
