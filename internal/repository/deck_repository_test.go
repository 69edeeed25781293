package repository

import (
	"math"
	"testing"
)

func TestPageOffset(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        int64
	}{
		{"first page", 1, 20, 0},
		{"third page", 3, 20, 40},
		{"zero page", 0, 20, 0},
		{"negative page", -5, 20, 0},
		{"zero limit", 4, 0, 0},
		{"last exact page", math.MaxInt/50 + 1, 50, int64(math.MaxInt/50) * 50},
		{"overflowing page", math.MaxInt, 20, math.MaxInt64},
		{"just past the range", math.MaxInt/50 + 2, 50, math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pageOffset(tt.page, tt.limit)
			if got != tt.want {
				t.Errorf("pageOffset(%d, %d) = %d, want %d", tt.page, tt.limit, got, tt.want)
			}
			if got < 0 {
				t.Errorf("offset must never be negative, got %d", got)
			}
		})
	}
}
