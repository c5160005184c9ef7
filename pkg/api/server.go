package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mindrush/portal/pkg/middleware"
	"github.com/mindrush/portal/pkg/observability"
)

// Server is the portal API server. All protected routes sit behind the auth
// gate; the gate is the only code path that admits a request.
type Server struct {
	router        *mux.Router
	gate          *middleware.AuthGate
	authHandlers  *AuthHandlers
	quoteHandlers *QuoteHandlers
	metrics       *observability.Metrics
	logger        *observability.Logger
}

// NewServer creates the API server and wires up all routes
func NewServer(
	gate *middleware.AuthGate,
	authHandlers *AuthHandlers,
	quoteHandlers *QuoteHandlers,
	metrics *observability.Metrics,
	logger *observability.Logger,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		gate:          gate,
		authHandlers:  authHandlers,
		quoteHandlers: quoteHandlers,
		metrics:       metrics,
		logger:        logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}

	// Public authentication routes
	s.authHandlers.RegisterRoutes(s.router)

	// Protected routes
	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(s.gate.Handler)
	protected.HandleFunc("/auth/user", s.authHandlers.currentUser).Methods("GET")
	if s.quoteHandlers != nil {
		s.quoteHandlers.RegisterRoutes(protected)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestIDMiddleware assigns each request an ID and a request-scoped logger
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := observability.WithRequestID(r.Context(), requestID)
		ctx = observability.WithLogger(ctx, s.logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request at debug level
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.FromContext(r.Context()).WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("handling request")
		next.ServeHTTP(w, r)
	})
}
