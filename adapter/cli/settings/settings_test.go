package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekdayIndex(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"sunday", 0},
		{"Monday", 1},
		{"tue", 2},
		{"WED", 3},
		{"saturday", 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := weekdayIndex(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWeekdayIndex_Unknown(t *testing.T) {
	_, err := weekdayIndex("someday")
	assert.Error(t, err)
}
