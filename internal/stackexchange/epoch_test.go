package stackexchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToEpoch(t *testing.T) {
	t.Parallel()

	instant := time.Date(2021, time.March, 4, 5, 6, 7, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{name: "nil", in: nil, ok: false},
		{name: "zero time", in: time.Time{}, ok: false},
		{name: "nil time pointer", in: (*time.Time)(nil), ok: false},
		{name: "time", in: instant, want: instant.Unix(), ok: true},
		{name: "time pointer", in: &instant, want: instant.Unix(), ok: true},
		{name: "date is midnight utc", in: Date{Year: 2021, Month: time.March, Day: 4}, want: 1614816000, ok: true},
		{name: "int", in: 1614816000, want: 1614816000, ok: true},
		{name: "int64", in: int64(1614816000), want: 1614816000, ok: true},
		{name: "unsupported", in: "2021-03-04", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ToEpoch(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestToEpochIsIdempotentOnIntegers(t *testing.T) {
	t.Parallel()

	inputs := []any{
		time.Date(2019, time.December, 31, 23, 59, 59, 0, time.UTC),
		Date{Year: 2020, Month: time.January, Day: 1},
		int64(1234567890),
		42,
	}
	for _, in := range inputs {
		once, ok := ToEpoch(in)
		require.True(t, ok)
		twice, ok := ToEpoch(once)
		require.True(t, ok)
		assert.Equal(t, once, twice)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	v, err := ParseTimestamp("")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseTimestamp("1600000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1600000000), v)

	v, err = ParseTimestamp("2020-09-13")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2020, Month: time.September, Day: 13}, v)

	v, err = ParseTimestamp("2020-09-13T12:26:40Z")
	require.NoError(t, err)
	epoch, ok := ToEpoch(v)
	require.True(t, ok)
	assert.Equal(t, int64(1600000000), epoch)

	_, err = ParseTimestamp("yesterday")
	require.Error(t, err)
}
