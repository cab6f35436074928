package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPostgresWriter_RequiresPool(t *testing.T) {
	_, err := NewPostgresWriter(nil, "summary")
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want *time.Time
	}{
		{in: "", want: nil},
		{in: "   ", want: nil},
		{in: "yesterday", want: nil},
		{in: "2026-01-02T03:04:05Z", want: ptr(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))},
		{in: "2026-01-02T03:04:05.123Z", want: ptr(time.Date(2026, 1, 2, 3, 4, 5, 123000000, time.UTC))},
	}

	for _, tt := range tests {
		got := parseTimestamp(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, tt.in)
			continue
		}
		if assert.NotNil(t, got, tt.in) {
			assert.True(t, tt.want.Equal(*got), "%s: got %v", tt.in, got)
		}
	}
}

func TestNullableID(t *testing.T) {
	assert.Nil(t, nullableID(0))
	if got := nullableID(7); assert.NotNil(t, got) {
		assert.Equal(t, int64(7), *got)
	}
}

func ptr(t time.Time) *time.Time { return &t }
