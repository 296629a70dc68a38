package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"interview-ai-recorder/internal/usecase"
)

type Server struct {
	sessionUC usecase.SessionUseCase
	ingestUC  usecase.IngestUseCase
	auth      *AuthManager
	hub       *Hub
	apiKey    string
	baseURL   string
	joinPath  string
	log       *zerolog.Logger
}

func NewServer(
	sessionUC usecase.SessionUseCase,
	ingestUC usecase.IngestUseCase,
	auth *AuthManager,
	hub *Hub,
	apiKey string,
	baseURL string,
	joinPath string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		sessionUC: sessionUC,
		ingestUC:  ingestUC,
		auth:      auth,
		hub:       hub,
		apiKey:    apiKey,
		baseURL:   baseURL,
		joinPath:  joinPath,
		log:       logger,
	}
}

// Router builds the chi routing tree. Interviewer routes sit behind JWT
// auth; candidate routes are reachable with just the session token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", loginHandler(s.auth, s.apiKey))

		// interviewer surface
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/sessions", sessionCreateHandler(s.sessionUC, s.baseURL, s.joinPath))
			r.Get("/queue/stats", queueStatsHandler(s.ingestUC))
		})

		// candidate surface, keyed by session token
		r.Route("/sessions/{token}", func(r chi.Router) {
			r.Post("/verify", verifyHandler(s.sessionUC))
			r.Post("/start", startHandler(s.sessionUC))
			r.Post("/finish", finishHandler(s.sessionUC))
			r.Get("/status", statusHandler(s.sessionUC))
			r.Post("/answers/{index}", uploadHandler(s.ingestUC))
			r.Post("/answers/{index}/retry", retryHandler(s.ingestUC))
		})

		r.Get("/jobs/{id}", jobGetHandler(s.ingestUC))
	})

	r.Get("/ws/sessions/{token}", func(w http.ResponseWriter, r *http.Request) {
		s.hub.Subscribe(w, r, chi.URLParam(r, "token"))
	})

	return r
}

type ctxKey string

const ctxInterviewerID ctxKey = "interviewer_id"

// authMiddleware gates interviewer endpoints on a valid JWT and stashes the
// authenticated id for the handlers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != "interviewer" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), ctxInterviewerID, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
