package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/mixing"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"github.com/desertthunder/setlist/internal/tasks"
)

// maxBodyBytes bounds JSON request bodies. A reorder of 10k URIs fits comfortably.
const maxBodyBytes = 1 << 20

// Mixer is the subset of [tasks.MixEngine] served over HTTP.
type Mixer interface {
	Optimize(ctx context.Context, progress chan<- tasks.ProgressUpdate, playlistID string, opts tasks.OptimizeOpts) (*tasks.OptimizeResult, error)
	Merge(ctx context.Context, progress chan<- tasks.ProgressUpdate, idA, idB string) (*tasks.MergeResult, error)
	Compare(ctx context.Context, progress chan<- tasks.ProgressUpdate, idA, idB string) (*tasks.CompareResult, error)
	Reorder(ctx context.Context, progress chan<- tasks.ProgressUpdate, playlistID string, uris []string) error
}

// PlaylistWriter replaces the items of a playlist.
type PlaylistWriter interface {
	ReplacePlaylistItems(ctx context.Context, playlistID string, uris []string) error
}

// WriterForToken returns a [PlaylistWriter] that acts as the owner of accessToken.
type WriterForToken func(ctx context.Context, accessToken string) (PlaylistWriter, error)

type optimizeRequest struct {
	PlaylistLink string `json:"playlist_link"`
	Method       string `json:"method"`
	BeamWidth    int    `json:"beam_width"`
	MaxClusters  int    `json:"max_clusters"`
}

type optimizeResponse struct {
	Playlist        models.Playlist        `json:"playlist"`
	Method          tasks.Method           `json:"method"`
	OptimalPlaylist []tasks.Entry          `json:"optimal_playlist"`
	TransitionCost  *float64               `json:"transition_cost"`
	Clusters        map[int][]string       `json:"clusters,omitempty"`
	Dropped         []tasks.ResolveFailure `json:"dropped,omitempty"`
}

type pairRequest struct {
	Playlist1Link string `json:"playlist1_link"`
	Playlist2Link string `json:"playlist2_link"`
}

type mergeResponse struct {
	MergedPlaylist []tasks.Entry          `json:"merged_playlist"`
	TransitionCost float64                `json:"transition_cost"`
	Dropped        []tasks.ResolveFailure `json:"dropped,omitempty"`
}

type compareResponse struct {
	SimilarityPercentage float64 `json:"similarity_percentage"`
}

type reorderRequest struct {
	PlaylistID string   `json:"playlist_id"`
	NewURIs    []string `json:"new_uris"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// APIHandler serves the JSON API over a [Mixer].
//
// Implements the Handler interface for registration with a Router.
type APIHandler struct {
	mixer    Mixer
	logger   *log.Logger
	asCaller WriterForToken
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(mixer Mixer, logger *log.Logger) *APIHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &APIHandler{mixer: mixer, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{"/health", "/api/optimize", "/api/merge", "/api/compare", "/api/reorder"}
}

// AllowCallerTokens makes /api/reorder write with the request's bearer token when one is sent, so the
// playlist is changed by the caller's account rather than the server's.
func (h *APIHandler) AllowCallerTokens(fn WriterForToken) *APIHandler {
	h.asCaller = fn
	return h
}

// NewAPIRouter mounts h behind panic recovery, request logging and [CORS] for origins.
func NewAPIRouter(h *APIHandler, logger *log.Logger, origins []string) *Mux {
	router := NewMux()
	router.Use(Recover(logger), Logging(logger), CORS(origins))
	router.Mount(h)
	return router
}

// ServeHTTP dispatches on path. Every route except /health accepts POST only. A bare OPTIONS request
// gets the allowed methods.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		allow := "POST, OPTIONS"
		if r.URL.Path == "/health" {
			allow = "GET, OPTIONS"
		}
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.URL.Path == "/health" {
		if r.Method != http.MethodGet {
			h.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	switch r.URL.Path {
	case "/api/optimize":
		h.optimize(w, r)
	case "/api/merge":
		h.merge(w, r)
	case "/api/compare":
		h.compare(w, r)
	case "/api/reorder":
		h.reorder(w, r)
	default:
		h.writeError(w, http.StatusNotFound, errors.New("not found"))
	}
}

func (h *APIHandler) optimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if !h.decode(w, r, &req) {
		return
	}

	playlistID, err := shared.ParsePlaylistID(req.PlaylistLink)
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.mixer.Optimize(r.Context(), nil, playlistID, tasks.OptimizeOpts{
		Method:      tasks.Method(req.Method),
		BeamWidth:   req.BeamWidth,
		MaxClusters: req.MaxClusters,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	resp := optimizeResponse{
		Playlist:        result.Playlist,
		Method:          result.Method,
		OptimalPlaylist: result.Entries,
		Clusters:        result.Clusters,
		Dropped:         result.Dropped,
	}
	if result.Solved() {
		cost := round2(result.Cost)
		resp.TransitionCost = &cost
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) merge(w http.ResponseWriter, r *http.Request) {
	a, b, ok := h.pair(w, r)
	if !ok {
		return
	}

	result, err := h.mixer.Merge(r.Context(), nil, a, b)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, mergeResponse{
		MergedPlaylist: result.Entries,
		TransitionCost: round2(result.Cost),
		Dropped:        result.Dropped,
	})
}

func (h *APIHandler) compare(w http.ResponseWriter, r *http.Request) {
	a, b, ok := h.pair(w, r)
	if !ok {
		return
	}

	result, err := h.mixer.Compare(r.Context(), nil, a, b)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, compareResponse{SimilarityPercentage: round2(result.Similarity)})
}

func (h *APIHandler) reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.PlaylistID == "" || len(req.NewURIs) == 0 {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: playlist_id and new_uris are required", shared.ErrMissingArgument))
		return
	}

	playlistID, err := shared.ParsePlaylistID(req.PlaylistID)
	if err != nil {
		h.fail(w, err)
		return
	}

	token, hasToken, err := bearerToken(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	if hasToken && h.asCaller != nil {
		err = h.reorderAsCaller(r.Context(), token, playlistID, req.NewURIs)
	} else {
		err = h.mixer.Reorder(r.Context(), nil, playlistID, req.NewURIs)
	}
	if err != nil {
		h.fail(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, messageResponse{Message: "Playlist reordered successfully"})
}

func (h *APIHandler) reorderAsCaller(ctx context.Context, token, playlistID string, uris []string) error {
	writer, err := h.asCaller(ctx, token)
	if err != nil {
		return err
	}
	if err := writer.ReplacePlaylistItems(ctx, playlistID, uris); err != nil {
		return fmt.Errorf("failed to reorder playlist %s: %w", playlistID, err)
	}
	h.logger.Info("playlist reordered with caller token", "playlist", playlistID, "tracks", len(uris))
	return nil
}

// bearerToken reads "Authorization: Bearer <token>". A missing header is not an error; any other scheme is.
func bearerToken(r *http.Request) (string, bool, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false, nil
	}

	scheme, token, _ := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false, fmt.Errorf("%w: Authorization must be a bearer token", shared.ErrInvalidCredentials)
	}
	return token, true, nil
}

// pair decodes and parses the two playlist links of a merge or compare request.
func (h *APIHandler) pair(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	var req pairRequest
	if !h.decode(w, r, &req) {
		return "", "", false
	}

	a, err := shared.ParsePlaylistID(req.Playlist1Link)
	if err != nil {
		h.fail(w, err)
		return "", "", false
	}
	b, err := shared.ParsePlaylistID(req.Playlist2Link)
	if err != nil {
		h.fail(w, err)
		return "", "", false
	}
	return a, b, true
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

// fail maps domain errors to HTTP status codes.
func (h *APIHandler) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "err", err)
	} else {
		h.logger.Debug("request rejected", "status", status, "err", err)
	}
	h.writeError(w, status, err)
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrInvalidPlaylistLink),
		errors.Is(err, mixing.ErrEmptyPlaylist),
		errors.Is(err, mixing.ErrInvalidBeamWidth),
		errors.Is(err, mixing.ErrInvalidClusterCount):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		h.logger.Error("failed to encode response", "err", err)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
