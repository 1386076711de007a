package mixing

import (
	"math"
	"sort"

	"github.com/desertthunder/setlist/internal/models"
)

// DefaultBeamWidth is the number of partial sequences kept per level when none is configured.
const DefaultBeamWidth = 3

// Result is an ordered playlist and its summed consecutive-pair cost.
type Result struct {
	Order   []string `json:"order"`   // Track IDs in play order
	Indices []int    `json:"indices"` // Positions into the input slice, aligned with Order
	Cost    float64  `json:"cost"`
}

// NoSolution is returned when there is nothing to sequence.
func NoSolution() Result {
	return Result{Cost: math.Inf(1)}
}

// Solved reports whether r holds an ordering.
func (r Result) Solved() bool {
	return !math.IsInf(r.Cost, 1)
}

// Sequencer orders tracks with a bounded-width beam search over [Scorer.Cost].
type Sequencer struct {
	scorer Scorer
	width  int
}

// NewSequencer returns a [Sequencer]. A width of zero or less is rejected with [ErrInvalidBeamWidth].
func NewSequencer(scorer Scorer, width int) (*Sequencer, error) {
	if width <= 0 {
		return nil, ErrInvalidBeamWidth
	}
	return &Sequencer{scorer: scorer, width: width}, nil
}

// BeamWidth returns the configured width before any clamping to the input size.
func (s *Sequencer) BeamWidth() int {
	return s.width
}

type beamState struct {
	order     []int
	remaining []int
	cost      float64
}

// Sequence orders records to minimize total transition cost.
//
// Each level expands every kept state by every remaining track, then keeps the width cheapest successors.
// Ties keep generation order. The first complete state found wins. Empty input returns [NoSolution].
// A width above len(records) is narrowed to len(records), so deeper levels keep at most N of their up to
// N·(N-1) successors.
func (s *Sequencer) Sequence(records []models.FeatureRecord) Result {
	n := len(records)
	if n == 0 {
		return NoSolution()
	}

	width := min(s.width, n)

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	beam := []beamState{{remaining: all}}

	for len(beam) > 0 {
		next := make([]beamState, 0, len(beam)*n)

		for _, st := range beam {
			if len(st.remaining) == 0 {
				return s.result(records, st)
			}

			for pos, idx := range st.remaining {
				step := 0.0
				if len(st.order) > 0 {
					last := st.order[len(st.order)-1]
					step = s.scorer.Cost(records[last], records[idx])
				}

				order := make([]int, len(st.order)+1)
				copy(order, st.order)
				order[len(st.order)] = idx

				remaining := make([]int, 0, len(st.remaining)-1)
				remaining = append(remaining, st.remaining[:pos]...)
				remaining = append(remaining, st.remaining[pos+1:]...)

				next = append(next, beamState{order: order, remaining: remaining, cost: st.cost + step})
			}
		}

		sort.SliceStable(next, func(i, j int) bool { return next[i].cost < next[j].cost })
		if len(next) > width {
			next = next[:width]
		}
		beam = next
	}

	return NoSolution()
}

func (s *Sequencer) result(records []models.FeatureRecord, st beamState) Result {
	order := make([]string, len(st.order))
	for i, idx := range st.order {
		order[i] = records[idx].ID
	}
	return Result{Order: order, Indices: st.order, Cost: st.cost}
}
