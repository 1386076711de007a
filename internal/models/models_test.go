package models

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func validRecord() FeatureRecord {
	return FeatureRecord{
		ID: "t1", Key: 9, Mode: Minor, Tempo: 124, Energy: 0.8,
		Danceability: 0.7, Valence: 0.3, Loudness: -7, Genres: []string{"techno"},
	}
}

func TestFeatureRecordValidate(t *testing.T) {
	tc := []struct {
		name   string
		mutate func(*FeatureRecord)
	}{
		{name: "missing id", mutate: func(f *FeatureRecord) { f.ID = "" }},
		{name: "key below range", mutate: func(f *FeatureRecord) { f.Key = -1 }},
		{name: "key above range", mutate: func(f *FeatureRecord) { f.Key = 12 }},
		{name: "bad mode", mutate: func(f *FeatureRecord) { f.Mode = 2 }},
		{name: "zero tempo", mutate: func(f *FeatureRecord) { f.Tempo = 0 }},
		{name: "nan tempo", mutate: func(f *FeatureRecord) { f.Tempo = math.NaN() }},
		{name: "infinite loudness", mutate: func(f *FeatureRecord) { f.Loudness = math.Inf(-1) }},
		{name: "energy above one", mutate: func(f *FeatureRecord) { f.Energy = 1.2 }},
		{name: "negative valence", mutate: func(f *FeatureRecord) { f.Valence = -0.1 }},
		{name: "nan danceability", mutate: func(f *FeatureRecord) { f.Danceability = math.NaN() }},
	}

	if err := validRecord().Validate(); err != nil {
		t.Fatalf("expected valid record, got %v", err)
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			f := validRecord()
			tt.mutate(&f)
			if err := f.Validate(); !errors.Is(err, ErrInvalidFeatures) {
				t.Errorf("expected ErrInvalidFeatures, got %v", err)
			}
		})
	}
}

func TestNewGenreSet(t *testing.T) {
	got := NewGenreSet(" techno", "house", "", "techno ", "acid house")
	want := []string{"acid house", "house", "techno"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if empty := NewGenreSet(); empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil set, got %#v", empty)
	}
}

func TestRun(t *testing.T) {
	ids := []string{"a", "b"}
	run := NewRun(1, "beam", "p1", ids, 2, 12.5)
	ids[0] = "changed"

	if run.TrackIDs()[0] != "a" {
		t.Error("expected run to copy track ids")
	}
	if run.TrackCount() != 2 || !run.Solved() {
		t.Errorf("unexpected run state: count %d solved %v", run.TrackCount(), run.Solved())
	}
	if err := run.Validate(); err != nil {
		t.Errorf("expected valid run, got %v", err)
	}

	if NewRun(1, "beam", "p1", nil, 0, math.Inf(1)).Solved() {
		t.Error("expected infinite cost run to be unsolved")
	}
	if err := NewRun(1, "", "p1", nil, 0, 0).Validate(); err == nil {
		t.Error("expected error for missing method")
	}
}
