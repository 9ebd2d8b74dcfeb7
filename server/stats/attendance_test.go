package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 75.0, Percentage(30, 40))
	assert.InDelta(t, 66.666, Percentage(2, 3), 0.001)
}

func TestClassesNeeded(t *testing.T) {
	tests := []struct {
		name      string
		attended  int
		total     int
		threshold float64
		want      int
	}{
		{"below threshold", 30, 50, 0.75, 30},
		{"exactly at threshold", 30, 40, 0.75, 0},
		{"above threshold", 45, 50, 0.75, 0},
		{"no classes", 0, 0, 0.75, 0},
		{"nothing attended", 0, 4, 0.75, 12},
		{"one short", 2, 3, 0.75, 1},
		{"float boundary", 7, 10, 0.7, 0},
		{"full attendance needed", 9, 10, 1, -1},
		{"full attendance met", 10, 10, 1, 0},
		{"zero threshold", 0, 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassesNeeded(tt.attended, tt.total, tt.threshold))
		})
	}
}

func TestClassesNeededIsMinimal(t *testing.T) {
	for attended := 0; attended <= 40; attended++ {
		for total := attended; total <= 40; total++ {
			for _, threshold := range []float64{0.6, 0.7, 0.75, 0.8, 0.85} {
				n := ClassesNeeded(attended, total, threshold)
				if total == 0 {
					continue
				}
				assert.True(t, meets(attended+n, total+n, threshold), "%d/%d@%v n=%d", attended, total, threshold, n)
				if n > 0 {
					assert.False(t, meets(attended+n-1, total+n-1, threshold), "%d/%d@%v n=%d not minimal", attended, total, threshold, n)
				}
			}
		}
	}
}

func TestSafeToSkip(t *testing.T) {
	tests := []struct {
		name      string
		attended  int
		total     int
		threshold float64
		want      int
	}{
		{"comfortable", 40, 50, 0.75, 3},
		{"exactly at threshold", 30, 40, 0.75, 0},
		{"below threshold", 30, 50, 0.75, 0},
		{"exact multiple", 45, 50, 0.75, 10},
		{"no classes", 0, 0, 0.75, 0},
		{"zero threshold is unbounded", 10, 10, 0, -1},
		{"full threshold", 10, 10, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeToSkip(tt.attended, tt.total, tt.threshold))
		})
	}
}

func TestSafeToSkipIsMaximal(t *testing.T) {
	for attended := 1; attended <= 40; attended++ {
		for total := attended; total <= 40; total++ {
			for _, threshold := range []float64{0.6, 0.7, 0.75, 0.8, 0.85} {
				if !meets(attended, total, threshold) {
					continue
				}
				n := SafeToSkip(attended, total, threshold)
				assert.True(t, meets(attended, total+n, threshold), "%d/%d@%v n=%d", attended, total, threshold, n)
				assert.False(t, meets(attended, total+n+1, threshold), "%d/%d@%v n=%d not maximal", attended, total, threshold, n)
			}
		}
	}
}
