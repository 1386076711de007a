// Package repositories implements SQLite persistence for the feature cache and run history.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [FeatureRepository] : Audio features keyed by catalog track ID, with JSON-encoded genres
//   - [FeatureCacheAdapter] : tasks.FeatureCache backed by [FeatureRepository]
//   - [RunRepository] : Sequencing history, also usable as a tasks.RunRecorder
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
