package mixing

import "github.com/desertthunder/setlist/internal/models"

// circleOfFifths lists pitch classes in fifths order, starting at C.
var circleOfFifths = [12]int{0, 7, 2, 9, 4, 11, 6, 1, 8, 3, 10, 5}

// fifthsIndex is the inverse of circleOfFifths.
var fifthsIndex = func() [12]int {
	var idx [12]int
	for i, k := range circleOfFifths {
		idx[k] = i
	}
	return idx
}()

// FifthsPosition returns the index of key on the circle of fifths, C = 0, G = 1 and so on.
func FifthsPosition(key int) int {
	return fifthsIndex[key]
}

// RelativeKey returns the relative minor of a major key, or the relative major of a minor key.
func RelativeKey(key, mode int) int {
	if mode == models.Major {
		return (key + 9) % 12
	}
	return (key + 3) % 12
}

// FifthsSteps returns the circular distance between two keys on the circle of fifths.
func FifthsSteps(key1, key2 int) int {
	steps := fifthsIndex[key1] - fifthsIndex[key2]
	if steps < 0 {
		steps = -steps
	}
	return min(steps, 12-steps)
}

// Compatible reports whether two key/mode pairs mix cleanly.
//
// Keys must be in 0-11; records are validated before they get here.
func Compatible(key1, mode1, key2, mode2 int) bool {
	if key1 == key2 {
		return true
	}

	sameMode := mode1 == mode2
	if !sameMode && (key1 == RelativeKey(key2, mode2) || key2 == RelativeKey(key1, mode1)) {
		return true
	}

	steps := FifthsSteps(key1, key2)
	if sameMode {
		return steps <= 2
	}
	return steps <= 1
}
