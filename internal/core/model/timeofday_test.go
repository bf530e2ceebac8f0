package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := map[string]TimeOfDay{
		"19:00":       "7:00:00 PM",
		"19:00:30":    "7:00:30 PM",
		"7:00 pm":     "7:00:00 PM",
		"07:05:09 AM": "7:05:09 AM",
		"00:00":       "12:00:00 AM",
		"12:30 PM":    "12:30:00 PM",
	}
	for in, want := range cases {
		got, err := ParseTimeOfDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTimeOfDay("25:00")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("")
	assert.Error(t, err)
}

func TestTimeOfDaySecondsOrdersChronologically(t *testing.T) {
	nine := TimeOfDay("9:15:00 AM")
	ten := TimeOfDay("10:12:00 AM")
	evening := TimeOfDay("7:00:00 PM")

	// string order would put 10 AM before 9 AM
	assert.True(t, string(ten) < string(nine))
	assert.True(t, nine.Before(ten))
	assert.True(t, ten.Before(evening))
	assert.Equal(t, 19*3600, evening.Seconds())
	assert.Equal(t, -1, TimeOfDay("noon").Seconds())
}

func TestDateOfUsesLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	instant := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, Date("2024-01-01"), DateOf(instant))
	assert.Equal(t, Date("2024-01-02"), DateOf(instant.In(kolkata)))
	assert.Equal(t, TimeOfDay("1:30:00 AM"), TimeOf(instant.In(kolkata)))

	_, err := ParseDate("2024-13-01")
	assert.Error(t, err)
}

func TestPunchRecordLess(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := PunchRecord{Date: "2024-01-01", Time: "9:15:00 AM", CreatedAt: base}
	b := PunchRecord{Date: "2024-01-01", Time: "10:12:00 AM", CreatedAt: base}
	c := PunchRecord{Date: "2024-01-01", Time: "10:12:00 AM", CreatedAt: base.Add(time.Millisecond)}
	d := PunchRecord{Date: "2024-01-02", Time: "1:00:00 AM", CreatedAt: base}

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(b))
	assert.True(t, c.Less(d))
	assert.Equal(t, LabelIn, PunchRecord{Presence: true}.Label())
	assert.Equal(t, LabelOut, PunchRecord{}.Label())
}
