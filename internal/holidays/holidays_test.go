package holidays

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestEasterSunday(t *testing.T) {
	cases := map[int]time.Time{
		2024: date(2024, 3, 31),
		2025: date(2025, 4, 20),
		2026: date(2026, 4, 5),
	}
	for year, want := range cases {
		assert.Equal(t, want, easterSunday(year), "easter %d", year)
	}
}

func TestIsHoliday(t *testing.T) {
	tests := []struct {
		name    string
		country string
		date    time.Time
		want    bool
	}{
		{"new year everywhere", "XX", date(2025, 1, 1), true},
		{"christmas everywhere", "FR", date(2025, 12, 25), true},
		{"bastille day", "FR", date(2025, 7, 14), true},
		{"french easter monday", "FR", date(2025, 4, 21), true},
		{"french ascension", "FR", date(2025, 5, 29), true},
		{"plain french tuesday", "FR", date(2025, 3, 11), false},
		{"good friday germany", "DE", date(2025, 4, 18), true},
		{"german unity day", "DE", date(2025, 10, 3), true},
		{"us independence day", "US", date(2025, 7, 4), true},
		{"us thanksgiving 2025", "US", date(2025, 11, 27), true},
		{"us memorial day 2025", "US", date(2025, 5, 26), true},
		{"unknown country regular day", "XX", date(2025, 7, 14), false},
		{"uk boxing day", "GB", date(2025, 12, 26), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHoliday(tt.country, tt.date))
		})
	}
}

func TestIsSchoolBreak(t *testing.T) {
	assert.True(t, IsSchoolBreak("FR", date(2025, 2, 15)), "french winter break")
	assert.True(t, IsSchoolBreak("FR", date(2025, 7, 20)), "french summer break")
	assert.True(t, IsSchoolBreak("DE", date(2025, 8, 1)), "generic summer break")
	assert.True(t, IsSchoolBreak("US", date(2025, 12, 24)), "end-of-year break")
	assert.False(t, IsSchoolBreak("DE", date(2025, 3, 12)), "regular school day")
	assert.False(t, IsSchoolBreak("FR", date(2025, 6, 10)), "june school day")
}
