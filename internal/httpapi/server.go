// Package httpapi exposes the system's external interface (C10): a search
// endpoint backed by the answer synthesizer, a stats endpoint backed by the
// vector store, and an unauthenticated health check, wrapped in shared
// API-key auth and per-key rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"manifold/internal/auth"
	"manifold/internal/domain"
	"manifold/internal/observability"
	"manifold/internal/persistence/databases"
	"manifold/internal/ratelimit"
	"manifold/internal/rag/synth"
)

// Server exposes the regulation search HTTP API.
type Server struct {
	synth              *synth.Synthesizer
	store              databases.VectorStore
	apiKey             string
	limiter            *ratelimit.Limiter
	mux                *http.ServeMux
	defaultLimit       int
	defaultScoreThresh float64
	corsOrigins        []string
}

// NewServer wires the synthesizer and vector store into an http.Handler.
// apiKey must be non-empty; rateLimitRPM configures the per-key token
// bucket applied to every authenticated route. defaultLimit and
// defaultScoreThresh fill in a request's limit/score_threshold when the
// caller omits them, per spec.md §6's "default top_k and score_threshold"
// configuration knobs. corsOrigins lists the browser origins allowed to
// call the API; an empty list disables CORS headers entirely.
func NewServer(s *synth.Synthesizer, store databases.VectorStore, apiKey string, rateLimitRPM int, defaultLimit int, defaultScoreThresh float64, corsOrigins []string) *Server {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	srv := &Server{
		synth:              s,
		store:              store,
		apiKey:             apiKey,
		limiter:            ratelimit.New(rateLimitRPM),
		mux:                http.NewServeMux(),
		defaultLimit:       defaultLimit,
		defaultScoreThresh: defaultScoreThresh,
		corsOrigins:        corsOrigins,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("POST /api/v1/search", s.cors(s.accessLogged(s.authenticated(s.rateLimited(http.HandlerFunc(s.handleSearch))))))
	s.mux.Handle("GET /api/v1/stats", s.cors(s.accessLogged(s.authenticated(s.rateLimited(http.HandlerFunc(s.handleStats))))))
	s.mux.Handle("OPTIONS /api/v1/search", s.cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })))
	s.mux.Handle("OPTIONS /api/v1/stats", s.cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })))
}

// cors sets Access-Control-* headers for any request whose Origin header
// matches an entry in corsOrigins, in the teacher's hand-rolled style
// (internal/agentd/utils.go's setChatCORSHeaders) narrowed to an allowlist
// instead of echoing back every origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.corsOrigins {
		if o == origin || o == "*" {
			return true
		}
	}
	return false
}

// accessLogged wraps next with a request log line carrying the trace/span
// IDs propagated via the request context, when a trace is active.
func (s *Server) accessLogged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		observability.LoggerWithTrace(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) authenticated(next http.Handler) http.Handler {
	return auth.RequireAPIKey(s.apiKey, next)
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if !s.limiter.Allow(key) {
			respondError(w, http.StatusTooManyRequests, domain.Wrap(domain.RateLimitError, errRateLimited))
			return
		}
		next.ServeHTTP(w, r)
	})
}
