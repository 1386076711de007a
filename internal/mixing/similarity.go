package mixing

import (
	"fmt"

	"github.com/desertthunder/setlist/internal/models"
)

// SimilarityCeiling is the cost treated as completely dissimilar.
const SimilarityCeiling = 600.0

// SimilarityOptions adjusts [Similarity].
type SimilarityOptions struct {
	// Clamp bounds the percentage to [0,100]. Off by default, so a worst pair above the ceiling yields a
	// negative percentage.
	Clamp bool
}

// Similarity estimates how interchangeable two playlists are from their worst-case pairing.
//
// Every ordered pair (x from p1, y from p2) is scored, including a track paired with itself, and the
// maximum cost is mapped to (1 - max/600) * 100.
func Similarity(scorer Scorer, p1, p2 []models.FeatureRecord, opts SimilarityOptions) (float64, error) {
	if len(p1) == 0 || len(p2) == 0 {
		return 0, fmt.Errorf("%w: no pairs to compare", ErrEmptyPlaylist)
	}

	worst := 0.0
	for _, x := range p1 {
		for _, y := range p2 {
			worst = max(worst, scorer.Cost(x, y))
		}
	}

	pct := (1 - worst/SimilarityCeiling) * 100
	if opts.Clamp {
		pct = min(max(pct, 0), 100)
	}
	return pct, nil
}
