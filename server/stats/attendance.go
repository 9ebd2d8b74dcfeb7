package stats

import "math"

// DefaultThreshold is the attendance ratio a subject must keep.
const DefaultThreshold = 0.75

// epsilon absorbs float error when comparing a ratio against a threshold.
const epsilon = 1e-9

// Percentage returns attended/total as a percentage, or 0 without classes.
func Percentage(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(attended) / float64(total) * 100
}

// meets reports attended/total >= threshold.
func meets(attended, total int, threshold float64) bool {
	if total <= 0 {
		return true
	}
	return float64(attended)+epsilon >= threshold*float64(total)
}

// ClassesNeeded returns the minimum number of consecutive attended classes
// that brings attended/total to threshold. It is 0 when the ratio already
// meets the threshold. For threshold >= 1 it is 0 at full attendance and -1
// otherwise, since the ratio can never reach it.
func ClassesNeeded(attended, total int, threshold float64) int {
	if total <= 0 || threshold <= 0 {
		return 0
	}
	if threshold >= 1 {
		if attended >= total {
			return 0
		}
		return -1
	}
	if meets(attended, total, threshold) {
		return 0
	}

	n := int(math.Ceil((threshold*float64(total) - float64(attended)) / (1 - threshold)))
	if n < 0 {
		n = 0
	}
	// Integer boundary correction.
	for n > 0 && meets(attended+n-1, total+n-1, threshold) {
		n--
	}
	for !meets(attended+n, total+n, threshold) {
		n++
	}
	return n
}

// SafeToSkip returns the maximum number of consecutive classes that can be
// missed while attended/total stays at or above threshold. It is 0 when the
// ratio is already below the threshold, -1 (unbounded) for threshold <= 0,
// and 0 for threshold >= 1.
func SafeToSkip(attended, total int, threshold float64) int {
	if threshold <= 0 {
		return -1
	}
	if threshold >= 1 || attended <= 0 || !meets(attended, total, threshold) {
		return 0
	}

	n := int(math.Floor((float64(attended) - threshold*float64(total)) / threshold))
	if n < 0 {
		n = 0
	}
	// Integer boundary correction.
	for n > 0 && !meets(attended, total+n, threshold) {
		n--
	}
	for meets(attended, total+n+1, threshold) {
		n++
	}
	return n
}
