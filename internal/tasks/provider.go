package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers   = 5
	MaxWorkers       = 10
	DefaultRateLimit = 5.0
)

// ErrUnplayable marks a track the catalog reports with zero duration.
var ErrUnplayable = errors.New("track has zero duration")

// FeatureProvider turns track IDs into [models.FeatureRecord] values.
//
// Tracks that cannot be resolved are reported in the failures and left out of the map. They never fail the call.
type FeatureProvider interface {
	Resolve(ctx context.Context, ids []string) (map[string]models.FeatureRecord, []ResolveFailure)
}

// ResolveFailure is a track dropped while resolving features.
type ResolveFailure struct {
	TrackID string `json:"track_id"`
	Err     error  `json:"-"`
	Reason  string `json:"reason"`
}

// FeatureCache persists resolved records between runs.
type FeatureCache interface {
	GetFeatures(trackIDs []string) (map[string]models.FeatureRecord, error)
	PutFeatures(records []models.FeatureRecord) error
}

// ProviderOpts configures a [SpotifyFeatureProvider].
type ProviderOpts struct {
	Workers   int         // Concurrent lookups (default: 5, max: 10)
	RateLimit float64     // Catalog requests per second (default: 5)
	Cache     FeatureCache // Optional
	Logger    *log.Logger
}

// SpotifyFeatureProvider resolves features through a [services.FeatureSource] with a bounded worker pool.
//
// Every catalog request waits on a shared rate limiter. Related-artist genres are fetched once per artist
// for the lifetime of the provider.
type SpotifyFeatureProvider struct {
	source  services.FeatureSource
	cache   FeatureCache
	workers int
	limiter *rate.Limiter
	logger  *log.Logger

	mu     sync.Mutex
	genres map[string]*genreEntry
}

type genreEntry struct {
	once   sync.Once
	genres []string
	err    error
}

type resolveResult struct {
	id     string
	record models.FeatureRecord
	err    error
}

// NewSpotifyFeatureProvider creates a provider reading from source.
func NewSpotifyFeatureProvider(source services.FeatureSource, opts ProviderOpts) *SpotifyFeatureProvider {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Workers > MaxWorkers {
		opts.Workers = MaxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &SpotifyFeatureProvider{
		source:  source,
		cache:   opts.Cache,
		workers: opts.Workers,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:  opts.Logger,
		genres:  make(map[string]*genreEntry),
	}
}

// Resolve looks up each distinct ID, consulting the cache first.
//
// Failures are returned in first-seen input order.
func (p *SpotifyFeatureProvider) Resolve(ctx context.Context, ids []string) (map[string]models.FeatureRecord, []ResolveFailure) {
	unique := dedupe(ids)
	resolved := make(map[string]models.FeatureRecord, len(unique))

	pending := unique
	if p.cache != nil && len(unique) > 0 {
		cached, err := p.cache.GetFeatures(unique)
		if err != nil {
			p.logger.Warn("feature cache read failed", "err", err)
		}
		pending = make([]string, 0, len(unique))
		for _, id := range unique {
			if r, ok := cached[id]; ok {
				resolved[id] = r
			} else {
				pending = append(pending, id)
			}
		}
		p.logger.Debug("feature cache", "hits", len(resolved), "misses", len(pending))
	}

	jobs := make(chan string, len(pending))
	results := make(chan resolveResult, len(pending))

	var wg sync.WaitGroup
	for range min(p.workers, max(len(pending), 1)) {
		wg.Add(1)
		go p.worker(ctx, &wg, jobs, results)
	}

	for _, id := range pending {
		jobs <- id
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	errs := make(map[string]error)
	var fresh []models.FeatureRecord
	for res := range results {
		if res.err != nil {
			errs[res.id] = res.err
			p.logger.Warn("dropping track", "track", res.id, "err", res.err)
			continue
		}
		resolved[res.id] = res.record
		fresh = append(fresh, res.record)
	}

	if p.cache != nil && len(fresh) > 0 {
		if err := p.cache.PutFeatures(fresh); err != nil {
			p.logger.Warn("feature cache write failed", "err", err)
		}
	}

	var failures []ResolveFailure
	for _, id := range unique {
		if err, ok := errs[id]; ok {
			failures = append(failures, ResolveFailure{TrackID: id, Err: err, Reason: err.Error()})
		}
	}
	return resolved, failures
}

func (p *SpotifyFeatureProvider) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan string, results chan<- resolveResult) {
	defer wg.Done()

	for id := range jobs {
		if err := ctx.Err(); err != nil {
			results <- resolveResult{id: id, err: err}
			continue
		}
		record, err := p.resolveOne(ctx, id)
		results <- resolveResult{id: id, record: record, err: err}
	}
}

// resolveOne builds a validated record from the track, its audio features, and its first artist's related genres.
func (p *SpotifyFeatureProvider) resolveOne(ctx context.Context, id string) (models.FeatureRecord, error) {
	if p.source == nil {
		return models.FeatureRecord{}, errMissingSource
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return models.FeatureRecord{}, err
	}
	track, err := p.source.GetTrack(ctx, id)
	if err != nil {
		return models.FeatureRecord{}, fmt.Errorf("track lookup: %w", err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return models.FeatureRecord{}, err
	}
	features, err := p.source.AudioFeatures(ctx, id)
	if err != nil {
		return models.FeatureRecord{}, fmt.Errorf("audio features: %w", err)
	}
	if features.DurationMS == 0 {
		return models.FeatureRecord{}, ErrUnplayable
	}

	record := models.FeatureRecord{
		ID:           id,
		Name:         track.Title,
		Artist:       track.Artist,
		Key:          features.Key,
		Mode:         features.Mode,
		Tempo:        features.Tempo,
		Energy:       features.Energy,
		Danceability: features.Danceability,
		Valence:      features.Valence,
		Loudness:     features.Loudness,
		Genres:       p.artistGenres(ctx, track.ArtistID),
	}
	if err := record.Validate(); err != nil {
		return models.FeatureRecord{}, err
	}
	return record, nil
}

// artistGenres returns the memoized related-artist genres. Lookup errors degrade to no genres.
func (p *SpotifyFeatureProvider) artistGenres(ctx context.Context, artistID string) []string {
	if artistID == "" {
		return []string{}
	}

	p.mu.Lock()
	entry, ok := p.genres[artistID]
	if !ok {
		entry = &genreEntry{}
		p.genres[artistID] = entry
	}
	p.mu.Unlock()

	entry.once.Do(func() {
		if err := p.limiter.Wait(ctx); err != nil {
			entry.err = err
			return
		}
		genres, err := p.source.RelatedArtistGenres(ctx, artistID)
		entry.genres, entry.err = models.NewGenreSet(genres...), err
	})

	if entry.err != nil {
		p.logger.Warn("related artist genres unavailable", "artist", artistID, "err", entry.err)
		p.mu.Lock()
		if p.genres[artistID] == entry {
			delete(p.genres, artistID)
		}
		p.mu.Unlock()
		return []string{}
	}
	return entry.genres
}

// Ordered returns the records for ids in input order, skipping unresolved IDs. Repeated IDs repeat.
func Ordered(ids []string, resolved map[string]models.FeatureRecord) []models.FeatureRecord {
	records := make([]models.FeatureRecord, 0, len(ids))
	for _, id := range ids {
		if r, ok := resolved[id]; ok {
			records = append(records, r)
		}
	}
	return records
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// errMissingSource is returned when a provider is used without a feature source.
var errMissingSource = fmt.Errorf("%w: feature source not initialized", shared.ErrServiceUnavailable)
