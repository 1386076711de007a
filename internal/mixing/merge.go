package mixing

import (
	"fmt"

	"github.com/desertthunder/setlist/internal/models"
)

// Merge interleaves two playlists back to back.
//
// Output starts with a[0]. Each round picks the track in b with the lowest cost out of the current track,
// appends it, and removes it from b. The current track then advances to the next unused track of a, which is
// appended too. Once a runs out the last track of a stays current. The merge ends when b is exhausted, so
// tracks of a left over at that point are not included.
//
// Ties pick the earliest remaining track of b. Either playlist being empty returns [ErrEmptyPlaylist].
func Merge(scorer Scorer, a, b []models.FeatureRecord) ([]string, error) {
	if len(a) == 0 {
		return nil, fmt.Errorf("%w: first playlist has no tracks", ErrEmptyPlaylist)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: second playlist has no tracks", ErrEmptyPlaylist)
	}

	remaining := append([]models.FeatureRecord(nil), b...)
	current := a[0]
	nextA := 1

	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, current.ID)

	for len(remaining) > 0 {
		pick := 0
		best := scorer.Cost(current, remaining[0])
		for i := 1; i < len(remaining); i++ {
			if c := scorer.Cost(current, remaining[i]); c < best {
				pick, best = i, c
			}
		}

		merged = append(merged, remaining[pick].ID)
		remaining = append(remaining[:pick], remaining[pick+1:]...)

		if len(remaining) > 0 && nextA < len(a) {
			current = a[nextA]
			nextA++
			merged = append(merged, current.ID)
		}
	}

	return merged, nil
}
