package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ErrInvalidFeatures is returned when a [FeatureRecord] fails validation at ingestion.
var ErrInvalidFeatures = errors.New("invalid feature record")

const (
	Minor = 0
	Major = 1
)

// FeatureRecord is one track's musical attributes at a point in time.
//
// Records are values and are never mutated once produced. Name and Artist are display metadata and take no part in scoring.
type FeatureRecord struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	Artist       string   `json:"artist,omitempty"`
	Key          int      `json:"key"`  // Pitch class, 0-11
	Mode         int      `json:"mode"` // 1 = major, 0 = minor
	Tempo        float64  `json:"tempo"`
	Energy       float64  `json:"energy"`
	Danceability float64  `json:"danceability"`
	Valence      float64  `json:"valence"`
	Loudness     float64  `json:"loudness"`
	Genres       []string `json:"genres"`
}

// NewGenreSet trims, deduplicates and sorts genre names, dropping empty entries.
func NewGenreSet(genres ...string) []string {
	seen := make(map[string]struct{}, len(genres))
	set := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		set = append(set, g)
	}
	sort.Strings(set)
	return set
}

// Validate rejects records the cost model cannot score.
func (f FeatureRecord) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidFeatures)
	}
	if f.Key < 0 || f.Key > 11 {
		return fmt.Errorf("%w: %s: key %d out of range 0-11", ErrInvalidFeatures, f.ID, f.Key)
	}
	if f.Mode != Major && f.Mode != Minor {
		return fmt.Errorf("%w: %s: mode %d is not 0 or 1", ErrInvalidFeatures, f.ID, f.Mode)
	}
	if !finite(f.Tempo) || f.Tempo <= 0 {
		return fmt.Errorf("%w: %s: tempo %v must be positive", ErrInvalidFeatures, f.ID, f.Tempo)
	}
	if !finite(f.Loudness) {
		return fmt.Errorf("%w: %s: loudness is not finite", ErrInvalidFeatures, f.ID)
	}

	units := []struct {
		name string
		v    float64
	}{
		{"energy", f.Energy},
		{"danceability", f.Danceability},
		{"valence", f.Valence},
	}
	for _, u := range units {
		if !finite(u.v) || u.v < 0 || u.v > 1 {
			return fmt.Errorf("%w: %s: %s %v outside [0,1]", ErrInvalidFeatures, f.ID, u.name, u.v)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CachedFeatures is a [FeatureRecord] persisted by catalog track ID.
type CachedFeatures struct {
	id        string
	sequence  int
	record    FeatureRecord
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewCachedFeatures wraps a record for persistence.
func NewCachedFeatures(sequence int, record FeatureRecord) *CachedFeatures {
	now := time.Now()
	return &CachedFeatures{
		sequence:  sequence,
		record:    record,
		createdAt: now,
		updatedAt: now,
	}
}

func (c *CachedFeatures) ID() string                { return c.id }
func (c *CachedFeatures) SetID(id string)           { c.id = id }
func (c *CachedFeatures) Sequence() int             { return c.sequence }
func (c *CachedFeatures) TrackID() string           { return c.record.ID }
func (c *CachedFeatures) Record() FeatureRecord     { return c.record }
func (c *CachedFeatures) CreatedAt() time.Time      { return c.createdAt }
func (c *CachedFeatures) UpdatedAt() time.Time      { return c.updatedAt }
func (c *CachedFeatures) SetCreatedAt(t time.Time)  { c.createdAt = t }
func (c *CachedFeatures) SetUpdatedAt(t time.Time)  { c.updatedAt = t }
func (c *CachedFeatures) DeletedAt() *time.Time     { return c.deletedAt }
func (c *CachedFeatures) SetDeletedAt(t *time.Time) { c.deletedAt = t }
func (c *CachedFeatures) SetRecord(r FeatureRecord) { c.record = r }

// Validate checks the wrapped record.
func (c *CachedFeatures) Validate() error {
	return c.record.Validate()
}
