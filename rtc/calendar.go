package rtc

const (
	// PredivBits sets the sub-second resolution: 2^PredivBits ticks per second.
	PredivBits     = 10
	TicksPerSecond = 1 << PredivBits

	// MinAlarmDelay is the shortest wait, in ticks, worth entering low power for.
	MinAlarmDelay = 3

	// ms <-> tick scaling, reduced by 2^3 so the factors fit comfortably.
	convNumer = 1000 >> 3             // 125
	convDenom = 1 << (PredivBits - 3) // 128

	secondsPerDay = 24 * 60 * 60
)

// EpochYear is the calendar year (offset from 2000) tick zero refers to.
const EpochYear = 16

var daysInMonth = [12]uint8{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// MsToTicks converts milliseconds to ticks, rounding down.
func MsToTicks(ms uint32) uint64 {
	return uint64(ms) * convDenom / convNumer
}

// TicksToMs converts ticks to milliseconds, rounding down.
func TicksToMs(t uint64) uint64 {
	return t * convNumer / convDenom
}

// Calendar is the RTC's broken-down time. Year counts from 2000 and is
// valid up to 2099; Sub counts ticks within the second.
type Calendar struct {
	Year   uint8
	Month  uint8 // 1..12
	Day    uint8 // 1..31
	Hour   uint8
	Minute uint8
	Second uint8
	Sub    uint16 // 0..TicksPerSecond-1
}

// Epoch is tick zero: 2016-01-01 00:00:00.
var Epoch = Calendar{Year: EpochYear, Month: 1, Day: 1}

func isLeap(year uint8) bool { return year%4 == 0 }

func monthDays(year, month uint8) uint8 {
	if month == 2 && isLeap(year) {
		return 29
	}
	return daysInMonth[month-1]
}

func yearDays(year uint8) uint64 {
	if isLeap(year) {
		return 366
	}
	return 365
}

// Ticks returns the number of ticks since Epoch. Times before Epoch map to 0.
func (c Calendar) Ticks() uint64 {
	if c.Year < EpochYear || c.Month < 1 || c.Month > 12 || c.Day < 1 {
		return 0
	}
	var days uint64
	for y := uint8(EpochYear); y < c.Year; y++ {
		days += yearDays(y)
	}
	for m := uint8(1); m < c.Month; m++ {
		days += uint64(monthDays(c.Year, m))
	}
	days += uint64(c.Day - 1)

	secs := days*secondsPerDay + uint64(c.Hour)*3600 + uint64(c.Minute)*60 + uint64(c.Second)
	return secs<<PredivBits | uint64(c.Sub&(TicksPerSecond-1))
}

// FromTicks is the inverse of Calendar.Ticks.
func FromTicks(t uint64) Calendar {
	c := Calendar{Sub: uint16(t & (TicksPerSecond - 1))}
	secs := t >> PredivBits
	days := secs / secondsPerDay
	rem := secs % secondsPerDay
	c.Hour = uint8(rem / 3600)
	c.Minute = uint8(rem % 3600 / 60)
	c.Second = uint8(rem % 60)

	y := uint8(EpochYear)
	for days >= yearDays(y) {
		days -= yearDays(y)
		y++
	}
	m := uint8(1)
	for days >= uint64(monthDays(y, m)) {
		days -= uint64(monthDays(y, m))
		m++
	}
	c.Year, c.Month, c.Day = y, m, uint8(days)+1
	return c
}

// Add returns c advanced by d ticks. Carries propagate through seconds,
// minutes, hours, month-length-aware days, months and years.
func (c Calendar) Add(d uint64) Calendar {
	return FromTicks(c.Ticks() + d)
}
