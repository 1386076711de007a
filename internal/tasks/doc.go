// Package tasks runs playlist mixing operations against a catalog service with progress reporting.
//
// # Core Operations
//
// [MixEngine] loads playlists and hands their feature records to the mixing core:
//
//  1. [MixEngine.Optimize] : Reorder one playlist
//     - Exports the playlist and resolves each track's audio features
//     - Orders tracks with beam search ([MethodBeam]) or clustering ([MethodCluster])
//     - Returns the ordered entries, total transition cost and dropped tracks
//
//  2. [MixEngine.Merge] : Interleave two playlists back to back
//
//  3. [MixEngine.Compare] : Score how similar two playlists are, as a percentage
//
//  4. [MixEngine.Reorder] and [MixEngine.Apply] : Overwrite a playlist with a new order
//
// # Feature Resolution
//
// [SpotifyFeatureProvider] resolves track IDs with a bounded worker pool behind a shared rate limiter.
// Related-artist genres are memoized per artist. Tracks that fail to resolve, or report zero duration,
// are dropped and returned as [ResolveFailure] values instead of failing the operation.
//
// The optional [FeatureCache] (repositories.FeatureRepository) persists resolved records between runs.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
//
// # Run History
//
// When a [RunRecorder] is configured each optimize and merge is recorded. Recording errors are logged and ignored.
package tasks
