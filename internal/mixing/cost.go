package mixing

import (
	"fmt"
	"math"

	"github.com/desertthunder/setlist/internal/models"
)

const (
	// IncompatiblePenalty is added when two keys do not mix.
	IncompatiblePenalty = 6.0
	// MaxSharedGenres caps the shared-genre count.
	MaxSharedGenres = 5
	// LoudnessSpan is the assumed maximum dynamic range in dB.
	LoudnessSpan = 60.0
	// TempoSpan normalizes the tempo difference.
	TempoSpan = 200.0
)

// Weights multiplies each normalized attribute difference in [Scorer.Cost].
type Weights struct {
	Danceability float64 `toml:"danceability" json:"danceability"`
	Energy       float64 `toml:"energy" json:"energy"`
	Loudness     float64 `toml:"loudness" json:"loudness"`
	Tempo        float64 `toml:"tempo" json:"tempo"`
	Valence      float64 `toml:"valence" json:"valence"`
	Genre        float64 `toml:"genre" json:"genre"`
}

// DefaultWeights returns {danceability:7, energy:5, loudness:1, tempo:100, valence:5, genre:4}.
func DefaultWeights() Weights {
	return Weights{
		Danceability: 7,
		Energy:       5,
		Loudness:     1,
		Tempo:        100,
		Valence:      5,
		Genre:        4,
	}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	names := []string{"danceability", "energy", "loudness", "tempo", "valence", "genre"}
	for i, v := range []float64{w.Danceability, w.Energy, w.Loudness, w.Tempo, w.Valence, w.Genre} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s = %v", ErrInvalidWeights, names[i], v)
		}
	}
	return nil
}

// Scorer computes transition costs with a fixed set of weights.
type Scorer struct {
	Weights Weights
}

// NewScorer validates w and returns a [Scorer].
func NewScorer(w Weights) (Scorer, error) {
	if err := w.Validate(); err != nil {
		return Scorer{}, err
	}
	return Scorer{Weights: w}, nil
}

// DefaultScorer returns a [Scorer] using [DefaultWeights].
func DefaultScorer() Scorer {
	return Scorer{Weights: DefaultWeights()}
}

// TransitionCost scores mixing out of a into b with [DefaultWeights].
func TransitionCost(a, b models.FeatureRecord) float64 {
	return DefaultScorer().Cost(a, b)
}

// Cost scores mixing out of a into b. Lower is smoother. The result is non-negative and not symmetric in general.
func (s Scorer) Cost(a, b models.FeatureRecord) float64 {
	w := s.Weights

	var score float64
	if !Compatible(a.Key, a.Mode, b.Key, b.Mode) {
		score += IncompatiblePenalty
	}

	score += w.Danceability * math.Abs(a.Danceability-b.Danceability)
	score += w.Energy * math.Abs(a.Energy-b.Energy)
	score += w.Loudness * math.Abs(a.Loudness-b.Loudness) / LoudnessSpan
	score += w.Tempo * TempoTerm(a.Tempo, b.Tempo)
	score += w.Valence * math.Abs(a.Valence-b.Valence)
	score += w.Genre * GenreTerm(a.Genres, b.Genres)

	return score
}

// TempoTerm returns the normalized tempo difference, taking the closest of direct, double-time and half-time.
//
// Only the outgoing tempo is doubled or halved.
func TempoTerm(from, to float64) float64 {
	diff := min(
		math.Abs(from-to),
		math.Abs(from*2-to),
		math.Abs(from/2-to),
	)
	return diff / TempoSpan
}

// GenreTerm returns 5 minus the capped number of shared genres, in [0,5].
func GenreTerm(a, b []string) float64 {
	return float64(MaxSharedGenres - SharedGenres(a, b))
}

// SharedGenres counts distinct genres present in both sets, capped at [MaxSharedGenres].
// An empty set on either side shares nothing.
func SharedGenres(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, g := range a {
		set[g] = struct{}{}
	}

	shared := 0
	for _, g := range b {
		if _, ok := set[g]; ok {
			shared++
			delete(set, g)
		}
	}
	return min(shared, MaxSharedGenres)
}

// PathCost sums the cost of each consecutive transition in records. Fewer than two records cost 0.
func (s Scorer) PathCost(records []models.FeatureRecord) float64 {
	var total float64
	for i := 1; i < len(records); i++ {
		total += s.Cost(records[i-1], records[i])
	}
	return total
}
