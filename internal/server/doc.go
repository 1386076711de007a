// Package server provides HTTP routing, middleware, the OAuth callback and the JSON API.
//
// # Routing
//
// [Mux] wraps [http.ServeMux] so patterns may carry a method ("GET /health"). Its [Middleware] wraps the
// whole mux, first added outermost, so unmatched requests are logged too. [Logging], [Recover] and [CORS]
// are the stock middleware. Each [Handler] reports its own patterns and is attached with [Mux.Mount].
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow used by `setlist spotify auth`.
// It validates the state parameter, exchanges the code through a [TokenExchanger], and sends the result
// through a channel. Only one callback is processed.
//
// # JSON API
//
// [APIHandler] serves `setlist serve`:
//
//	GET  /health
//	POST /api/optimize  {playlist_link, method, beam_width, max_clusters}
//	POST /api/merge     {playlist1_link, playlist2_link}
//	POST /api/compare   {playlist1_link, playlist2_link}
//	POST /api/reorder   {playlist_id, new_uris}
//
// [NewAPIRouter] mounts it behind the stock middleware. A reorder carrying "Authorization: Bearer <token>"
// writes as that caller when [APIHandler.AllowCallerTokens] is set.
//
// Errors are returned as {"error": "..."} with a status from [StatusFor].
package server
