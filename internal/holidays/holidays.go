// Package holidays provides a jurisdiction-aware public-holiday and
// school-break calendar for feature building. Countries are identified by
// ISO 3166-1 alpha-2 codes; unknown countries fall back to a generic
// calendar (New Year, Christmas, generic summer break).
package holidays

import (
	"time"
)

// IsHoliday reports whether the date is a public holiday in the country.
func IsHoliday(country string, date time.Time) bool {
	y, m, d := date.Year(), int(date.Month()), date.Day()

	// Shared by every supported jurisdiction
	if (m == 1 && d == 1) || (m == 12 && d == 25) {
		return true
	}

	easter := easterSunday(y)
	switch country {
	case "FR":
		return fixedMatch(m, d, frenchFixed) || easterOffsetMatch(date, easter, 1, 39, 50)
	case "DE":
		return fixedMatch(m, d, germanFixed) || easterOffsetMatch(date, easter, -2, 1, 39, 50)
	case "ES":
		return fixedMatch(m, d, spanishFixed) || easterOffsetMatch(date, easter, -2)
	case "GB":
		return fixedMatch(m, d, britishFixed) || easterOffsetMatch(date, easter, -2, 1)
	case "US":
		return fixedMatch(m, d, usFixed) || isUSFloatingHoliday(date)
	default:
		return false
	}
}

// IsSchoolBreak reports whether the date falls inside a school vacation
// window for the country. French zones are collapsed to national windows;
// other countries get the generic summer and end-of-year windows.
func IsSchoolBreak(country string, date time.Time) bool {
	m, d := int(date.Month()), date.Day()

	// End-of-year break everywhere
	if (m == 12 && d >= 20) || (m == 1 && d <= 5) {
		return true
	}

	switch country {
	case "FR":
		// National approximation of the zone calendars
		switch {
		case m == 2 || (m == 3 && d <= 10): // winter break
			return true
		case (m == 4 && d >= 10) || (m == 5 && d <= 10): // spring break
			return true
		case m == 7 || m == 8: // summer break
			return true
		case m == 10 && d >= 18, m == 11 && d <= 3: // autumn break
			return true
		}
		return false
	default:
		return m == 7 || m == 8
	}
}

type fixedDay struct{ month, day int }

var frenchFixed = []fixedDay{
	{5, 1}, {5, 8}, {7, 14}, {8, 15}, {11, 1}, {11, 11},
}

var germanFixed = []fixedDay{
	{5, 1}, {10, 3}, {12, 26},
}

var spanishFixed = []fixedDay{
	{1, 6}, {5, 1}, {8, 15}, {10, 12}, {11, 1}, {12, 6}, {12, 8},
}

var britishFixed = []fixedDay{
	{12, 26},
}

var usFixed = []fixedDay{
	{6, 19}, {7, 4}, {11, 11},
}

func fixedMatch(month, day int, days []fixedDay) bool {
	for _, f := range days {
		if f.month == month && f.day == day {
			return true
		}
	}
	return false
}

// easterSunday returns Easter Sunday for a year using the anonymous
// Gregorian computus.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// easterOffsetMatch reports whether date lands on Easter Sunday plus any of
// the given day offsets (e.g. 1 = Easter Monday, 39 = Ascension,
// 50 = Whit Monday, -2 = Good Friday).
func easterOffsetMatch(date, easter time.Time, offsets ...int) bool {
	for _, off := range offsets {
		h := easter.AddDate(0, 0, off)
		if date.Year() == h.Year() && date.Month() == h.Month() && date.Day() == h.Day() {
			return true
		}
	}
	return false
}

// isUSFloatingHoliday covers the weekday-anchored US federal holidays.
func isUSFloatingHoliday(date time.Time) bool {
	m, wd := date.Month(), date.Weekday()
	nth := (date.Day()-1)/7 + 1
	lastOfMonth := date.AddDate(0, 0, 7).Month() != m

	switch {
	case m == time.January && wd == time.Monday && nth == 3: // MLK Day
		return true
	case m == time.February && wd == time.Monday && nth == 3: // Presidents Day
		return true
	case m == time.May && wd == time.Monday && lastOfMonth: // Memorial Day
		return true
	case m == time.September && wd == time.Monday && nth == 1: // Labor Day
		return true
	case m == time.November && wd == time.Thursday && nth == 4: // Thanksgiving
		return true
	}
	return false
}
