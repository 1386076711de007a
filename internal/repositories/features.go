package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

// FeatureRepository implements models.Repository[*models.CachedFeatures] for the audio feature cache.
//
// Rows are keyed by catalog track ID. Genres are stored as a JSON array.
type FeatureRepository struct {
	db *sql.DB
}

// NewFeatureRepository creates a new FeatureRepository with the given database connection
func NewFeatureRepository(db *sql.DB) *FeatureRepository {
	return &FeatureRepository{db: db}
}

const featureColumns = `id, sequence, track_id, name, artist, musical_key, mode, tempo, energy, danceability,
	valence, loudness, genres, created_at, updated_at, deleted_at`

// Create inserts a new [models.CachedFeatures] into the database with generated ID and sequence
func (r *FeatureRepository) Create(features *models.CachedFeatures) error {
	if err := features.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "features")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	features.SetID(id)

	rec := features.Record()
	genres, err := encodeGenres(rec.Genres)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO features (
			id, sequence, track_id, name, artist, musical_key, mode, tempo, energy,
			danceability, valence, loudness, genres, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		rec.ID,
		rec.Name,
		rec.Artist,
		rec.Key,
		rec.Mode,
		rec.Tempo,
		rec.Energy,
		rec.Danceability,
		rec.Valence,
		rec.Loudness,
		genres,
		features.CreatedAt(),
		features.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert features: %w", err)
	}

	return nil
}

// Get retrieves cached features by row ID, excluding soft-deleted rows
func (r *FeatureRepository) Get(id string) (*models.CachedFeatures, error) {
	query := `SELECT ` + featureColumns + ` FROM features WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// GetByTrackID retrieves cached features by catalog track ID
func (r *FeatureRepository) GetByTrackID(trackID string) (*models.CachedFeatures, error) {
	query := `SELECT ` + featureColumns + ` FROM features WHERE track_id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, trackID))
}

// GetMany returns the live records for whichever of trackIDs are cached, keyed by track ID.
func (r *FeatureRepository) GetMany(trackIDs []string) (map[string]models.FeatureRecord, error) {
	found := make(map[string]models.FeatureRecord, len(trackIDs))
	if len(trackIDs) == 0 {
		return found, nil
	}

	// SQLite caps bound parameters at 999 on older builds.
	const batch = 500
	for start := 0; start < len(trackIDs); start += batch {
		ids := trackIDs[start:min(start+batch, len(trackIDs))]

		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}

		query := `SELECT ` + featureColumns + ` FROM features
			WHERE deleted_at IS NULL AND track_id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`

		cached, err := r.query(query, args...)
		if err != nil {
			return nil, err
		}
		for _, c := range cached {
			found[c.TrackID()] = c.Record()
		}
	}

	return found, nil
}

// Upsert stores record, replacing any cached row for the same track and reviving it if soft-deleted.
func (r *FeatureRepository) Upsert(record models.FeatureRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "features")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	genres, err := encodeGenres(record.Genres)
	if err != nil {
		return err
	}

	now := time.Now()
	query := `
		INSERT INTO features (
			id, sequence, track_id, name, artist, musical_key, mode, tempo, energy,
			danceability, valence, loudness, genres, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			name = excluded.name,
			artist = excluded.artist,
			musical_key = excluded.musical_key,
			mode = excluded.mode,
			tempo = excluded.tempo,
			energy = excluded.energy,
			danceability = excluded.danceability,
			valence = excluded.valence,
			loudness = excluded.loudness,
			genres = excluded.genres,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`

	_, err = r.db.Exec(query,
		shared.GenerateID(),
		sequence,
		record.ID,
		record.Name,
		record.Artist,
		record.Key,
		record.Mode,
		record.Tempo,
		record.Energy,
		record.Danceability,
		record.Valence,
		record.Loudness,
		genres,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert features for %s: %w", record.ID, err)
	}

	return nil
}

// Update modifies existing cached features in the database
func (r *FeatureRepository) Update(features *models.CachedFeatures) error {
	if err := features.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	features.SetUpdatedAt(now)

	rec := features.Record()
	genres, err := encodeGenres(rec.Genres)
	if err != nil {
		return err
	}

	query := `
		UPDATE features
		SET name = ?, artist = ?, musical_key = ?, mode = ?, tempo = ?, energy = ?,
			danceability = ?, valence = ?, loudness = ?, genres = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		rec.Name,
		rec.Artist,
		rec.Key,
		rec.Mode,
		rec.Tempo,
		rec.Energy,
		rec.Danceability,
		rec.Valence,
		rec.Loudness,
		genres,
		now,
		features.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update features: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrFeaturesNotFound, features.ID())
	}

	return nil
}

// Delete soft-deletes cached features by row ID
func (r *FeatureRepository) Delete(id string) error {
	return softDelete(r.db, "features", id, shared.ErrFeaturesNotFound)
}

// Prune soft-deletes every live row last updated before cutoff and returns how many were removed.
// A zero cutoff clears the whole cache.
func (r *FeatureRepository) Prune(cutoff time.Time) (int64, error) {
	query := `UPDATE features SET deleted_at = ? WHERE deleted_at IS NULL`
	args := []any{time.Now()}
	if !cutoff.IsZero() {
		query += ` AND updated_at < ?`
		args = append(args, cutoff)
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune features: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

// List retrieves cached features matching the given criteria, excluding soft-deleted rows.
//
// Supported criteria: "artist" (exact match) and "limit" (int).
func (r *FeatureRepository) List(criteria map[string]any) ([]*models.CachedFeatures, error) {
	query := `SELECT ` + featureColumns + ` FROM features WHERE deleted_at IS NULL`
	args := []any{}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ?"
		args = append(args, artist)
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.query(query, args...)
}

func (r *FeatureRepository) query(query string, args ...any) ([]*models.CachedFeatures, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var cached []*models.CachedFeatures
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		cached = append(cached, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return cached, nil
}

// scan reads one row from either [sql.Row] or [sql.Rows].
func (r *FeatureRepository) scan(row scanner) (*models.CachedFeatures, error) {
	var (
		id        string
		sequence  int
		rec       models.FeatureRecord
		genres    string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&id, &sequence, &rec.ID, &rec.Name, &rec.Artist, &rec.Key, &rec.Mode, &rec.Tempo, &rec.Energy,
		&rec.Danceability, &rec.Valence, &rec.Loudness, &genres, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, shared.ErrFeaturesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan features: %w", err)
	}

	if err := json.Unmarshal([]byte(genres), &rec.Genres); err != nil {
		return nil, fmt.Errorf("failed to decode genres for %s: %w", rec.ID, err)
	}
	rec.Genres = models.NewGenreSet(rec.Genres...)

	cached := models.NewCachedFeatures(sequence, rec)
	cached.SetID(id)
	cached.SetCreatedAt(createdAt)
	cached.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		cached.SetDeletedAt(&deletedAt.Time)
	}

	return cached, nil
}

func encodeGenres(genres []string) (string, error) {
	if genres == nil {
		genres = []string{}
	}
	b, err := json.Marshal(genres)
	if err != nil {
		return "", fmt.Errorf("failed to encode genres: %w", err)
	}
	return string(b), nil
}

// FeatureCacheAdapter implements tasks.FeatureCache using FeatureRepository.
type FeatureCacheAdapter struct {
	repo *FeatureRepository
}

// NewFeatureCacheAdapter creates a new FeatureCacheAdapter with the given repository
func NewFeatureCacheAdapter(repo *FeatureRepository) *FeatureCacheAdapter {
	return &FeatureCacheAdapter{repo: repo}
}

// GetFeatures returns cached records for trackIDs. Missing IDs are absent from the map.
func (a *FeatureCacheAdapter) GetFeatures(trackIDs []string) (map[string]models.FeatureRecord, error) {
	return a.repo.GetMany(trackIDs)
}

// PutFeatures upserts every record, continuing past individual failures and returning the first one.
func (a *FeatureCacheAdapter) PutFeatures(records []models.FeatureRecord) error {
	var first error
	for _, rec := range records {
		if err := a.repo.Upsert(rec); err != nil && first == nil {
			first = fmt.Errorf("failed to cache features: %w", err)
		}
	}
	return first
}
