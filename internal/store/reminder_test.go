package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecurrence_RoundTrip(t *testing.T) {
	tests := []string{
		"MON|09:00",
		"MON,WED|18:30",
		"MON,TUE,WED,THU,FRI|07:45",
		"SAT,SUN|23:59",
	}

	for _, wire := range tests {
		t.Run(wire, func(t *testing.T) {
			rule, err := ParseRecurrence(wire)
			require.NoError(t, err)
			assert.Equal(t, wire, rule.String())

			again, err := ParseRecurrence(rule.String())
			require.NoError(t, err)
			assert.Equal(t, rule, again)
		})
	}
}

func TestRecurrence_CanonicalOrder(t *testing.T) {
	rule, err := NewRecurrence([]time.Weekday{time.Sunday, time.Wednesday, time.Monday}, 6, 5)
	require.NoError(t, err)

	assert.Equal(t, "MON,WED,SUN|06:05", rule.String())
	assert.Equal(t, "MON,WED,SUN", rule.DayCodes())
}

func TestRecurrence_DeduplicatesDays(t *testing.T) {
	rule, err := NewRecurrence([]time.Weekday{time.Monday, time.Monday}, 9, 0)
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday}, rule.Weekdays)
}

func TestParseRecurrence_Invalid(t *testing.T) {
	for _, wire := range []string{
		"",
		"MON",
		"|09:00",
		"XYZ|09:00",
		"MON|25:00",
		"MON|09:61",
		"MON|nine",
	} {
		_, err := ParseRecurrence(wire)
		assert.Error(t, err, "wire %q", wire)
	}
}

func TestNewRecurrence_Validation(t *testing.T) {
	_, err := NewRecurrence(nil, 9, 0)
	assert.Error(t, err)

	_, err = NewRecurrence([]time.Weekday{time.Monday}, 24, 0)
	assert.Error(t, err)
}

func TestRecurrence_Contains(t *testing.T) {
	rule, err := NewRecurrence([]time.Weekday{time.Monday, time.Friday}, 9, 0)
	require.NoError(t, err)

	assert.True(t, rule.Contains(time.Monday))
	assert.False(t, rule.Contains(time.Sunday))
}
