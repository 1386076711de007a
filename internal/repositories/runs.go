package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

// RunRepository implements models.Repository[*models.Run] for run history.
//
// An unsolved run is stored with a NULL cost and read back as +Inf.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, sequence, method, playlist_id, dropped_count, cost, track_ids, created_at, updated_at, deleted_at`

// Create inserts a new run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	run.SetID(id)
	run.SetSequence(sequence)

	trackIDs, err := json.Marshal(nonNil(run.TrackIDs()))
	if err != nil {
		return fmt.Errorf("failed to encode track ids: %w", err)
	}

	query := `
		INSERT INTO runs (
			id, sequence, method, playlist_id, track_count, dropped_count,
			cost, track_ids, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.Method(),
		run.PlaylistID(),
		run.TrackCount(),
		run.DroppedCount(),
		nullableCost(run),
		string(trackIDs),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// RecordRun implements tasks.RunRecorder.
func (r *RunRepository) RecordRun(run *models.Run) error {
	return r.Create(run)
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a run by its history number
func (r *RunRepository) GetBySequence(sequence int) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE sequence = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, sequence))
}

// Update rewrites the order, dropped count and cost of an existing run
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	trackIDs, err := json.Marshal(nonNil(run.TrackIDs()))
	if err != nil {
		return fmt.Errorf("failed to encode track ids: %w", err)
	}

	query := `
		UPDATE runs
		SET track_count = ?, dropped_count = ?, cost = ?, track_ids = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.TrackCount(),
		run.DroppedCount(),
		nullableCost(run),
		string(trackIDs),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID())
	}

	return nil
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	return softDelete(r.db, "runs", id, shared.ErrRunNotFound)
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "playlist_id", "method" and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "deleted_at IS NULL")

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		where = append(where, "playlist_id = ?")
		args = append(args, playlistID)
	}

	if method, ok := criteria["method"].(string); ok && method != "" {
		where = append(where, "method = ?")
		args = append(args, method)
	}

	query := `SELECT ` + runColumns + ` FROM runs WHERE ` + strings.Join(where, " AND ") + ` ORDER BY sequence DESC`

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) scan(row scanner) (*models.Run, error) {
	var (
		id         string
		sequence   int
		method     string
		playlistID string
		dropped    int
		cost       sql.NullFloat64
		trackIDs   string
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &method, &playlistID, &dropped, &cost, &trackIDs, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, shared.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(trackIDs), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode track ids for run %s: %w", id, err)
	}

	total := math.Inf(1)
	if cost.Valid {
		total = cost.Float64
	}

	run := models.NewRun(sequence, method, playlistID, ids, dropped, total)
	run.SetID(id)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}

func nullableCost(run *models.Run) any {
	if !run.Solved() {
		return nil
	}
	return run.Cost()
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
