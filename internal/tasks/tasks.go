package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/mixing"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/services"
	"github.com/desertthunder/setlist/internal/shared"
)

// Method names an ordering strategy.
type Method string

const (
	MethodBeam    Method = "beam"
	MethodCluster Method = "cluster"
	MethodMerge   Method = "merge"
)

// ParseMethod accepts "beam" or "cluster". An empty string selects beam search.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodBeam:
		return MethodBeam, nil
	case MethodCluster:
		return MethodCluster, nil
	default:
		return "", fmt.Errorf("%w: unknown method %q (want beam or cluster)", shared.ErrInvalidArgument, s)
	}
}

// Entry is one position of an ordered playlist.
type Entry struct {
	Position     int     `json:"position"`
	TrackID      string  `json:"track_id"`
	URI          string  `json:"uri"`
	TrackName    string  `json:"track_name"`
	Artist       string  `json:"artist"`
	AlbumName    string  `json:"album_name,omitempty"`
	AlbumCover   string  `json:"album_cover,omitempty"`
	Popularity   int     `json:"popularity"`
	Tempo        float64 `json:"tempo"`
	Danceability float64 `json:"danceability"`
	Energy       float64 `json:"energy"`
	Key          int     `json:"key"`
	Mode         int     `json:"mode"`
	Cluster      *int    `json:"cluster,omitempty"`
}

// WorkingSet is a playlist together with the feature records that could be resolved for it.
type WorkingSet struct {
	Playlist models.Playlist
	Tracks   map[string]models.Track
	Records  []models.FeatureRecord // Playlist order, unresolved tracks removed
	Dropped  []ResolveFailure
}

// OptimizeOpts selects the ordering strategy for [MixEngine.Optimize]. Zero widths use the engine defaults.
type OptimizeOpts struct {
	Method      Method
	BeamWidth   int
	MaxClusters int
}

// OptimizeResult is a reordered playlist.
type OptimizeResult struct {
	Method   Method           `json:"method"`
	Playlist models.Playlist  `json:"playlist"`
	Entries  []Entry          `json:"entries"`
	Cost     float64          `json:"-"` // Summed transition cost of Entries; +Inf when nothing could be ordered
	Clusters map[int][]string `json:"clusters,omitempty"`
	Dropped  []ResolveFailure `json:"dropped,omitempty"`
}

// Solved reports whether an order was produced.
func (r *OptimizeResult) Solved() bool {
	return !math.IsInf(r.Cost, 0) && !math.IsNaN(r.Cost)
}

// MarshalJSON encodes Cost as transition_cost, or null when unsolved.
func (r *OptimizeResult) MarshalJSON() ([]byte, error) {
	type alias OptimizeResult
	var cost *float64
	if r.Solved() {
		cost = &r.Cost
	}
	return json.Marshal(struct {
		*alias
		TransitionCost *float64 `json:"transition_cost"`
	}{(*alias)(r), cost})
}

// URIs returns the track URIs in result order.
func (r *OptimizeResult) URIs() []string {
	return entryURIs(r.Entries)
}

// MergeResult is the back-to-back interleave of two playlists.
type MergeResult struct {
	Source  models.Playlist  `json:"source"`
	Dest    models.Playlist  `json:"dest"`
	Entries []Entry          `json:"entries"`
	Cost    float64          `json:"transition_cost"`
	Dropped []ResolveFailure `json:"dropped,omitempty"`
}

// URIs returns the track URIs in merge order.
func (r *MergeResult) URIs() []string {
	return entryURIs(r.Entries)
}

// CompareResult holds the similarity of two playlists.
type CompareResult struct {
	Source     models.Playlist  `json:"source"`
	Dest       models.Playlist  `json:"dest"`
	Similarity float64          `json:"similarity_percentage"`
	Dropped    []ResolveFailure `json:"dropped,omitempty"`
}

// RunRecorder persists a summary of each optimization.
type RunRecorder interface {
	RecordRun(run *models.Run) error
}

// EngineOpts configures a [MixEngine]. Zero values select the package defaults.
type EngineOpts struct {
	BeamWidth       int
	MaxClusters     int
	Weights         mixing.Weights
	ClampSimilarity bool
	Runs            RunRecorder // Optional
	Logger          *log.Logger
}

// MixEngine loads playlists through a [services.Service], resolves features through a [FeatureProvider],
// and runs the mixing core on them.
type MixEngine struct {
	service    services.Service
	provider   FeatureProvider
	scorer     mixing.Scorer
	sequencer  *mixing.Sequencer
	grouper    *mixing.Grouper
	similarity mixing.SimilarityOptions
	runs       RunRecorder
	logger     *log.Logger
}

// NewMixEngine creates a new MixEngine with the provided dependencies.
func NewMixEngine(srv services.Service, provider FeatureProvider, opts EngineOpts) (*MixEngine, error) {
	if opts.Weights == (mixing.Weights{}) {
		opts.Weights = mixing.DefaultWeights()
	}
	if opts.BeamWidth == 0 {
		opts.BeamWidth = mixing.DefaultBeamWidth
	}
	if opts.MaxClusters == 0 {
		opts.MaxClusters = mixing.DefaultMaxClusters
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	scorer, err := mixing.NewScorer(opts.Weights)
	if err != nil {
		return nil, err
	}
	sequencer, err := mixing.NewSequencer(scorer, opts.BeamWidth)
	if err != nil {
		return nil, err
	}
	grouper, err := mixing.NewGrouper(scorer, nil, opts.MaxClusters)
	if err != nil {
		return nil, err
	}

	return &MixEngine{
		service:    srv,
		provider:   provider,
		scorer:     scorer,
		sequencer:  sequencer,
		grouper:    grouper,
		similarity: mixing.SimilarityOptions{Clamp: opts.ClampSimilarity},
		runs:       opts.Runs,
		logger:     opts.Logger,
	}, nil
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *MixEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Load exports a playlist and resolves its tracks into feature records.
func (e *MixEngine) Load(ctx context.Context, progress chan<- ProgressUpdate, playlistID string) (*WorkingSet, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if e.provider == nil {
		return nil, fmt.Errorf("%w: feature provider not initialized", shared.ErrServiceUnavailable)
	}

	e.sendProgress(progress, fetchPlaylistUpdate(1, 1, playlistID))
	export, err := e.service.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to export playlist %s: %w", playlistID, err)
	}
	e.sendProgress(progress, foundPlaylistUpdate(1, 1, export))

	ids := make([]string, 0, len(export.Tracks))
	tracks := make(map[string]models.Track, len(export.Tracks))
	for _, t := range export.Tracks {
		ids = append(ids, t.ID)
		tracks[t.ID] = t
	}

	e.sendProgress(progress, resolveFeaturesUpdate(len(ids)))
	resolved, failures := e.provider.Resolve(ctx, ids)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := Ordered(ids, resolved)
	e.sendProgress(progress, resolvedFeaturesUpdate(len(resolved), len(tracks), failures))
	e.logger.Debug("loaded playlist", "playlist", playlistID, "tracks", len(ids), "records", len(records), "dropped", len(failures))

	return &WorkingSet{
		Playlist: export.Playlist,
		Tracks:   tracks,
		Records:  records,
		Dropped:  failures,
	}, nil
}

// Optimize reorders a playlist with beam search or clustering.
//
// A playlist with no resolvable tracks yields an unsolved result rather than an error.
func (e *MixEngine) Optimize(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, opts OptimizeOpts) (*OptimizeResult, error) {
	method, err := ParseMethod(string(opts.Method))
	if err != nil {
		return nil, err
	}

	ws, err := e.Load(ctx, progress, playlistID)
	if err != nil {
		return nil, err
	}

	var result *OptimizeResult
	switch method {
	case MethodCluster:
		result, err = e.group(progress, ws, opts.MaxClusters)
	default:
		result, err = e.sequence(progress, ws, opts.BeamWidth)
	}
	if err != nil {
		return nil, err
	}

	e.record(progress, method, ws.Playlist.ID, result.Entries, len(ws.Dropped), result.Cost)
	return result, nil
}

func (e *MixEngine) sequence(progress chan<- ProgressUpdate, ws *WorkingSet, width int) (*OptimizeResult, error) {
	seq := e.sequencer
	if width != 0 && width != seq.BeamWidth() {
		var err error
		if seq, err = mixing.NewSequencer(e.scorer, width); err != nil {
			return nil, err
		}
	}

	e.sendProgress(progress, sequenceUpdate(len(ws.Records), seq.BeamWidth()))
	res := seq.Sequence(ws.Records)

	result := &OptimizeResult{
		Method:   MethodBeam,
		Playlist: ws.Playlist,
		Entries:  []Entry{},
		Cost:     res.Cost,
		Dropped:  ws.Dropped,
	}
	if !res.Solved() {
		e.logger.Warn("no tracks to sequence", "playlist", ws.Playlist.ID, "dropped", len(ws.Dropped))
		return result, nil
	}

	for _, idx := range res.Indices {
		result.Entries = append(result.Entries, newEntry(len(result.Entries)+1, ws.Records[idx], ws.Tracks))
	}
	return result, nil
}

func (e *MixEngine) group(progress chan<- ProgressUpdate, ws *WorkingSet, maxClusters int) (*OptimizeResult, error) {
	grouper := e.grouper
	limit := mixing.DefaultMaxClusters
	if maxClusters != 0 {
		var err error
		if grouper, err = mixing.NewGrouper(e.scorer, nil, maxClusters); err != nil {
			return nil, err
		}
		limit = maxClusters
	}

	e.sendProgress(progress, clusterUpdate(len(ws.Records), limit))
	grouping, err := grouper.Group(ws.Records)
	if err != nil {
		return nil, err
	}

	result := &OptimizeResult{
		Method:   MethodCluster,
		Playlist: ws.Playlist,
		Entries:  []Entry{},
		Clusters: grouping.Clusters,
		Cost:     math.Inf(1),
		Dropped:  ws.Dropped,
	}
	if len(grouping.Indices) == 0 {
		return result, nil
	}

	ordered := make([]models.FeatureRecord, len(grouping.Indices))
	for i, idx := range grouping.Indices {
		ordered[i] = ws.Records[idx]
		entry := newEntry(i+1, ws.Records[idx], ws.Tracks)
		label := grouping.Labels[idx]
		entry.Cluster = &label
		result.Entries = append(result.Entries, entry)
	}
	result.Cost = e.scorer.PathCost(ordered)
	return result, nil
}

// Merge interleaves playlist b into playlist a back to back.
func (e *MixEngine) Merge(ctx context.Context, progress chan<- ProgressUpdate, idA, idB string) (*MergeResult, error) {
	a, err := e.Load(ctx, progress, idA)
	if err != nil {
		return nil, err
	}
	b, err := e.Load(ctx, progress, idB)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, mergeUpdate(len(a.Records), len(b.Records)))
	order, err := mixing.Merge(e.scorer, a.Records, b.Records)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.FeatureRecord, len(a.Records)+len(b.Records))
	tracks := make(map[string]models.Track, len(a.Tracks)+len(b.Tracks))
	for _, ws := range []*WorkingSet{b, a} {
		for _, r := range ws.Records {
			byID[r.ID] = r
		}
		for id, t := range ws.Tracks {
			tracks[id] = t
		}
	}

	result := &MergeResult{
		Source:  a.Playlist,
		Dest:    b.Playlist,
		Entries: make([]Entry, 0, len(order)),
		Dropped: append(append([]ResolveFailure(nil), a.Dropped...), b.Dropped...),
	}
	ordered := make([]models.FeatureRecord, 0, len(order))
	for i, id := range order {
		ordered = append(ordered, byID[id])
		result.Entries = append(result.Entries, newEntry(i+1, byID[id], tracks))
	}
	result.Cost = e.scorer.PathCost(ordered)

	e.record(progress, MethodMerge, a.Playlist.ID, result.Entries, len(result.Dropped), result.Cost)
	return result, nil
}

// Compare estimates how similar two playlists are.
func (e *MixEngine) Compare(ctx context.Context, progress chan<- ProgressUpdate, idA, idB string) (*CompareResult, error) {
	a, err := e.Load(ctx, progress, idA)
	if err != nil {
		return nil, err
	}
	b, err := e.Load(ctx, progress, idB)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, compareUpdate(len(a.Records), len(b.Records)))
	pct, err := mixing.Similarity(e.scorer, a.Records, b.Records, e.similarity)
	if err != nil {
		return nil, err
	}

	return &CompareResult{
		Source:     a.Playlist,
		Dest:       b.Playlist,
		Similarity: pct,
		Dropped:    append(append([]ResolveFailure(nil), a.Dropped...), b.Dropped...),
	}, nil
}

// Reorder overwrites a playlist with uris.
func (e *MixEngine) Reorder(ctx context.Context, progress chan<- ProgressUpdate, playlistID string, uris []string) error {
	if e.service == nil {
		return fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if playlistID == "" || len(uris) == 0 {
		return fmt.Errorf("%w: playlist id and uris are required", shared.ErrMissingArgument)
	}

	e.sendProgress(progress, reorderUpdate(playlistID, len(uris)))
	if err := e.service.ReplacePlaylistItems(ctx, playlistID, uris); err != nil {
		return fmt.Errorf("failed to reorder playlist %s: %w", playlistID, err)
	}
	e.logger.Info("playlist reordered", "playlist", playlistID, "tracks", len(uris))
	return nil
}

// Apply writes an optimized order back to its playlist.
func (e *MixEngine) Apply(ctx context.Context, progress chan<- ProgressUpdate, result *OptimizeResult) error {
	if !result.Solved() {
		return fmt.Errorf("%w: nothing to write back", mixing.ErrEmptyPlaylist)
	}
	return e.Reorder(ctx, progress, result.Playlist.ID, result.URIs())
}

// record stores a run summary. Failures are logged and never fail the operation.
func (e *MixEngine) record(progress chan<- ProgressUpdate, method Method, playlistID string, entries []Entry, dropped int, cost float64) {
	if e.runs == nil {
		return
	}

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.TrackID
	}

	e.sendProgress(progress, recordRunUpdate(method))
	if err := e.runs.RecordRun(models.NewRun(0, string(method), playlistID, ids, dropped, cost)); err != nil {
		e.logger.Warn("failed to record run", "method", method, "playlist", playlistID, "err", err)
	}
}

func newEntry(position int, r models.FeatureRecord, tracks map[string]models.Track) Entry {
	t := tracks[r.ID]
	entry := Entry{
		Position:     position,
		TrackID:      r.ID,
		URI:          t.URI,
		TrackName:    r.Name,
		Artist:       r.Artist,
		AlbumName:    t.Album,
		AlbumCover:   t.AlbumCover,
		Popularity:   t.Popularity,
		Tempo:        r.Tempo,
		Danceability: r.Danceability,
		Energy:       r.Energy,
		Key:          r.Key,
		Mode:         r.Mode,
	}
	if entry.URI == "" {
		entry.URI = "spotify:track:" + r.ID
	}
	if entry.TrackName == "" {
		entry.TrackName = t.Title
	}
	if entry.Artist == "" {
		entry.Artist = t.Artist
	}
	return entry
}

func entryURIs(entries []Entry) []string {
	uris := make([]string, len(entries))
	for i, e := range entries {
		uris[i] = e.URI
	}
	return uris
}
