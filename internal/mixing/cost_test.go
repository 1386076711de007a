package mixing

import (
	"errors"
	"math"
	"testing"

	"github.com/desertthunder/setlist/internal/models"
	tu "github.com/desertthunder/setlist/internal/testing"
)

const tolerance = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestTransitionCost(t *testing.T) {
	t.Run("identical records cost nothing", func(t *testing.T) {
		a := tu.ClubRecord("a", 124)
		b := tu.ClubRecord("b", 124)

		if got := TransitionCost(a, b); got != 0 {
			t.Errorf("expected 0, got %v", got)
		}
	})

	t.Run("identical records without genres pay the full genre term", func(t *testing.T) {
		a := tu.Record("a", 0, models.Major, 124)
		b := tu.Record("b", 0, models.Major, 124)

		if got := TransitionCost(a, b); !approx(got, 20) {
			t.Errorf("expected 20, got %v", got)
		}
	})

	t.Run("weighted sum", func(t *testing.T) {
		a := models.FeatureRecord{
			ID: "a", Key: 0, Mode: models.Major, Tempo: 120,
			Energy: 0.8, Danceability: 0.6, Valence: 0.5, Loudness: -6,
			Genres: []string{"house", "techno"},
		}
		b := models.FeatureRecord{
			ID: "b", Key: 9, Mode: models.Minor, Tempo: 126,
			Energy: 0.6, Danceability: 0.7, Valence: 0.3, Loudness: -9,
			Genres: []string{"deep house", "house"},
		}

		// 0.7 dance + 1.0 energy + 0.05 loudness + 3 tempo + 1.0 valence + 16 genre
		want := 21.75
		if got := TransitionCost(a, b); !approx(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}

		b.Key, b.Mode = 4, models.Major
		if got := TransitionCost(a, b); !approx(got, want+IncompatiblePenalty) {
			t.Errorf("expected %v with key penalty, got %v", want+IncompatiblePenalty, got)
		}
	})

	t.Run("direction matters", func(t *testing.T) {
		a := tu.ClubRecord("a", 60)
		b := tu.ClubRecord("b", 125)

		forward := TransitionCost(a, b)
		backward := TransitionCost(b, a)
		if !approx(forward, 2.5) {
			t.Errorf("expected forward cost 2.5, got %v", forward)
		}
		if !approx(backward, 1.25) {
			t.Errorf("expected backward cost 1.25, got %v", backward)
		}
		if forward == backward {
			t.Error("expected asymmetric costs for 60 and 125 BPM")
		}
	})

	t.Run("custom weights", func(t *testing.T) {
		scorer, err := NewScorer(Weights{Tempo: 150})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		a := tu.ClubRecord("a", 100)
		b := tu.ClubRecord("b", 120)

		if got := scorer.Cost(a, b); !approx(got, 15) {
			t.Errorf("expected 15, got %v", got)
		}
	})
}

func TestTempoTerm(t *testing.T) {
	tc := []struct {
		name     string
		from, to float64
		want     float64
	}{
		{name: "same tempo", from: 128, to: 128, want: 0},
		{name: "double time", from: 60, to: 120, want: 0},
		{name: "half time", from: 120, to: 60, want: 0},
		{name: "direct difference", from: 120, to: 130, want: 0.05},
		{name: "near double", from: 60, to: 125, want: 0.025},
		{name: "near half", from: 125, to: 60, want: 0.0125},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := TempoTerm(tt.from, tt.to); !approx(got, tt.want) {
				t.Errorf("TempoTerm(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestGenreTerm(t *testing.T) {
	many := []string{"a", "b", "c", "d", "e", "f", "g"}

	tc := []struct {
		name string
		a, b []string
		want float64
	}{
		{name: "both empty", a: nil, b: nil, want: 5},
		{name: "one empty", a: []string{"house"}, b: nil, want: 5},
		{name: "nothing shared", a: []string{"house"}, b: []string{"jazz"}, want: 5},
		{name: "one shared", a: []string{"house", "techno"}, b: []string{"house"}, want: 4},
		{name: "repeated names count once", a: []string{"house", "house"}, b: []string{"house", "house"}, want: 4},
		{name: "cap at five", a: many, b: many, want: 0},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := GenreTerm(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("GenreTerm() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 5 {
				t.Errorf("GenreTerm() = %v outside [0,5]", got)
			}
		})
	}
}

func TestWeights(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		w := DefaultWeights()
		want := Weights{Danceability: 7, Energy: 5, Loudness: 1, Tempo: 100, Valence: 5, Genre: 4}
		if w != want {
			t.Errorf("expected %+v, got %+v", want, w)
		}
		if err := w.Validate(); err != nil {
			t.Errorf("expected default weights to validate, got %v", err)
		}
	})

	t.Run("rejects negative", func(t *testing.T) {
		w := DefaultWeights()
		w.Energy = -1
		if _, err := NewScorer(w); !errors.Is(err, ErrInvalidWeights) {
			t.Errorf("expected ErrInvalidWeights, got %v", err)
		}
	})

	t.Run("rejects NaN", func(t *testing.T) {
		w := DefaultWeights()
		w.Tempo = math.NaN()
		if err := w.Validate(); !errors.Is(err, ErrInvalidWeights) {
			t.Errorf("expected ErrInvalidWeights, got %v", err)
		}
	})
}

func TestPathCost(t *testing.T) {
	s := DefaultScorer()
	a, b, c := tu.ClubRecord("a", 100), tu.ClubRecord("b", 140), tu.ClubRecord("c", 120)

	if got := s.PathCost(nil); got != 0 {
		t.Errorf("expected 0 for empty path, got %v", got)
	}
	if got := s.PathCost([]models.FeatureRecord{a}); got != 0 {
		t.Errorf("expected 0 for single track, got %v", got)
	}

	want := s.Cost(a, b) + s.Cost(b, c)
	if got := s.PathCost([]models.FeatureRecord{a, b, c}); !approx(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
