package models

import (
	"fmt"
	"math"
	"time"
)

// Run records one sequencing, grouping or merge invocation against a playlist.
type Run struct {
	id           string
	sequence     int
	method       string
	playlistID   string
	trackIDs     []string
	droppedCount int
	cost         float64 // +Inf when no order was produced
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewRun creates a run for the given method and resulting order.
func NewRun(sequence int, method, playlistID string, trackIDs []string, droppedCount int, cost float64) *Run {
	now := time.Now()
	return &Run{
		sequence:     sequence,
		method:       method,
		playlistID:   playlistID,
		trackIDs:     append([]string(nil), trackIDs...),
		droppedCount: droppedCount,
		cost:         cost,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (r *Run) ID() string                { return r.id }
func (r *Run) SetID(id string)           { r.id = id }
func (r *Run) Sequence() int             { return r.sequence }
func (r *Run) SetSequence(seq int)       { r.sequence = seq }
func (r *Run) Method() string            { return r.method }
func (r *Run) PlaylistID() string        { return r.playlistID }
func (r *Run) TrackIDs() []string        { return r.trackIDs }
func (r *Run) TrackCount() int           { return len(r.trackIDs) }
func (r *Run) DroppedCount() int         { return r.droppedCount }
func (r *Run) Cost() float64             { return r.cost }
func (r *Run) CreatedAt() time.Time      { return r.createdAt }
func (r *Run) UpdatedAt() time.Time      { return r.updatedAt }
func (r *Run) DeletedAt() *time.Time     { return r.deletedAt }
func (r *Run) SetCreatedAt(t time.Time)  { r.createdAt = t }
func (r *Run) SetUpdatedAt(t time.Time)  { r.updatedAt = t }
func (r *Run) SetDeletedAt(t *time.Time) { r.deletedAt = t }

// Solved reports whether the run produced an order with a finite cost.
func (r *Run) Solved() bool {
	return !math.IsInf(r.cost, 0) && !math.IsNaN(r.cost)
}

// Validate checks required fields.
func (r *Run) Validate() error {
	if r.method == "" {
		return fmt.Errorf("run method is required")
	}
	if r.playlistID == "" {
		return fmt.Errorf("run playlist id is required")
	}
	if r.droppedCount < 0 {
		return fmt.Errorf("dropped count cannot be negative")
	}
	return nil
}
