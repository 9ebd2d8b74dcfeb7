package timecodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgererr "github.com/hrygo/classledger/server/internal/errors"
)

func TestToMinutes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"24h morning", "09:00", 540},
		{"24h afternoon", "13:30", 810},
		{"12h am", "9:15 AM", 555},
		{"12h pm", "1:05 PM", 785},
		{"lowercase no space", "01:05pm", 785},
		{"internal whitespace", " 1 : 05  p m ", 785},
		{"noon", "12:00 PM", 720},
		{"midnight", "12:00 AM", 0},
		{"12 am lowercase", "12:30am", 30},
		{"missing minute", "9", 540},
		{"missing minute with meridiem", "3 pm", 900},
		{"trailing colon", "10:", 600},
		{"pm hour already 24h", "13:00 PM", 780},
		{"last minute", "11:59 PM", 1439},
		{"empty", "", Invalid},
		{"blank", "   ", Invalid},
		{"non numeric hour", "ab:30", Invalid},
		{"meridiem only", "PM", Invalid},
		{"hour out of range", "25:00", Invalid},
		{"minute out of range", "10:75", Invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMinutes(tt.in))
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "12:00 AM"},
		{30, "12:30 AM"},
		{540, "09:00 AM"},
		{720, "12:00 PM"},
		{785, "01:05 PM"},
		{1439, "11:59 PM"},
		{-1, ""},
		{1440, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.in), "Format(%d)", tt.in)
	}
}

// TestRoundTrip checks ToMinutes(Format(m)) == m for the whole day.
func TestRoundTrip(t *testing.T) {
	for m := 0; m < MinutesPerDay; m++ {
		if got := ToMinutes(Format(m)); got != m {
			t.Fatalf("round trip of %d produced %d via %q", m, got, Format(m))
		}
	}
}

func TestParseReturnsValidationError(t *testing.T) {
	_, err := Parse("half past nine")
	require.Error(t, err)
	assert.True(t, ledgererr.IsValidation(err))

	m, err := Parse("9:30 am")
	require.NoError(t, err)
	assert.Equal(t, 570, m)
}

func TestNormalize(t *testing.T) {
	got, err := Normalize("  2:5 pm")
	require.NoError(t, err)
	assert.Equal(t, "02:05 PM", got)

	_, err = Normalize("noon-ish")
	assert.Error(t, err)
}

func TestCompareUsesMinutesNotStrings(t *testing.T) {
	// "10:00 AM" sorts before "09:00 PM" although it is lexically greater.
	assert.Equal(t, -1, Compare("10:00 AM", "09:00 PM"))
	assert.Equal(t, 0, Compare("09:00", "9:00 am"))
	assert.Equal(t, 1, Compare("1:00 PM", "12:59 PM"))
	assert.Equal(t, -1, Compare("garbage", "12:00 AM"))
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("9:00 AM", "9:05 AM", 5))
	assert.True(t, Within("9:05 AM", "9:00 AM", 5))
	assert.False(t, Within("9:00 AM", "9:06 AM", 5))
	assert.False(t, Within("bad", "9:00 AM", 5))
}

func BenchmarkToMinutes(b *testing.B) {
	inputs := []string{"09:00 AM", "1:05 pm", " 12 : 30 AM ", "17:45"}
	for i := 0; i < b.N; i++ {
		_ = ToMinutes(inputs[i%len(inputs)])
	}
}
