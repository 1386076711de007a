// Package models defines the data types shared by the catalog client, the mixing core and persistence.
//
// # Transfer objects
//
// [Playlist], [PlaylistExport] and [Track] carry catalog data between services and the rest of the program.
// [FeatureRecord] is the per-track input to the mixing core.
//
// # Persisted models
//
// [CachedFeatures] and [Run] implement [Model] and are stored through [Repository] implementations.
// They keep their fields unexported behind accessors, with timestamps managed by the repository.
package models
