// Package mixing scores DJ transitions between tracks and builds orderings from those scores.
//
// # Transition Cost
//
// [Scorer.Cost] is the only scoring primitive. It combines:
//   - a fixed penalty when two keys do not mix ([Compatible])
//   - a capped shared-genre term ([GenreTerm])
//   - weighted absolute differences of danceability, energy, valence and loudness
//   - a tempo term that tolerates half/double-time mixing ([TempoTerm])
//
// Weights are configuration ([Weights], [DefaultWeights]). The tempo term only doubles and halves the
// outgoing track, so Cost(a, b) and Cost(b, a) may differ.
//
// # Orderings
//
//   - [Sequencer] : bounded-width beam search over consecutive-pair cost
//   - [Grouper] : complete-linkage clusters, tempo-sorted, concatenated by label
//   - [Merge] : greedy back-to-back interleave of two playlists
//   - [Similarity] : worst-case cross-product cost as a percentage
//
// Everything here is pure and single-threaded. Callers resolve [models.FeatureRecord] values first.
package mixing
