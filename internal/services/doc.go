// Package services defines the [Service] and [FeatureSource] interfaces for catalog providers and implements
// both for Spotify.
//
// # Service Interface
//
// [Service] covers the playlist side: listing, exporting with pagination, and rewriting a playlist's order.
// [FeatureSource] covers the per-track lookups that feed the sequencer: track metadata, audio features,
// and related-artist genres.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] automatically refreshes expired tokens using the refresh token, and each new token is
// handed to the callback set with [SpotifyService.SetTokenRefreshCallback] so the CLI can persist it.
//
// Requests answered with 429 or 5xx are retried up to three times with exponential backoff, or after the
// Retry-After delay when the API sends one.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token rejected, reauthorization needed
//   - [shared.ErrRateLimited] : still rate limited after retries
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrPlaylistNotFound], [shared.ErrTrackNotFound], [shared.ErrFeaturesNotFound] : 404 on the resource
package services
