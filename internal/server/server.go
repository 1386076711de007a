// package server contains middleware & handlers for the local sequencing API
package server

import (
	"net/http"
	"sync"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the mux patterns it serves.
// Implementations handle specific endpoints (OAuth callback, JSON API).
type Handler interface {
	http.Handler
	Routes() []string // Patterns in [http.ServeMux] syntax, e.g. "/callback" or "GET /health"
}

// Mux routes requests with [http.ServeMux] and runs every request, matched or not, through its middleware.
type Mux struct {
	mux         *http.ServeMux
	middlewares []Middleware

	once    sync.Once
	handler http.Handler
}

// NewMux creates an empty [Mux].
func NewMux() *Mux {
	return &Mux{mux: http.NewServeMux()}
}

// Use appends middleware. The first one added is the outermost. Must be called before the first request.
func (m *Mux) Use(middleware ...Middleware) {
	m.middlewares = append(m.middlewares, middleware...)
}

// Mount registers handlers under every pattern they report.
func (m *Mux) Mount(handlers ...Handler) {
	for _, h := range handlers {
		for _, pattern := range h.Routes() {
			m.mux.Handle(pattern, h)
		}
	}
}

// HandleFunc registers fn for pattern, which may carry a method ("POST /api/reorder").
func (m *Mux) HandleFunc(pattern string, fn http.HandlerFunc) {
	m.mux.Handle(pattern, fn)
}

func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.once.Do(func() {
		var h http.Handler = m.mux
		for i := len(m.middlewares) - 1; i >= 0; i-- {
			h = m.middlewares[i](h)
		}
		m.handler = h
	})
	m.handler.ServeHTTP(w, r)
}
