package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"syllabuscal/internal/app"
	appLog "syllabuscal/internal/log"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 16 << 20

// Server exposes the pipeline stages, the exports and the feed over HTTP.
type Server struct {
	app     *app.App
	handler http.Handler
}

// NewServer constructs a new Server.
func NewServer(a *app.App) *Server {
	s := &Server{app: a}
	s.setupHandler()
	return s
}

// Handler returns the root http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupHandler() {
	r := chi.NewMux()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer, middleware.StripSlashes)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// /health is always exposed without authentication.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled")
			r.Use(s.basicAuth)
		}
		r.Use(limitBody)

		r.Route("/api", func(r chi.Router) {
			r.Post("/normalize", s.handleNormalize)
			r.Post("/detect", s.handleDetect)
			r.Post("/expand", s.handleExpand)
			r.Post("/validate", s.handleValidate)
			r.Post("/occurrence", s.handleOccurrence)
			r.Post("/export/ics", s.handleExportICS)
			r.Post("/export/json", s.handleExportJSON)
			r.Post("/import/ics", s.handleImportICS)
			r.Get("/feed", s.handleFeed)
			r.Post("/refresh", s.handleRefresh)
		})
		r.Get("/calendar.ics", s.handleCalendar)
		r.Method(http.MethodGet, "/metrics", s.app.Metrics.Handler())
	})

	s.handler = r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	ba := s.app.Config.BasicAuth
	// An empty username or password counts as disabled.
	return ba != nil && ba.Username != "" && ba.Password != ""
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	username := s.app.Config.BasicAuth.Username
	password := s.app.Config.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="syllabuscal", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		var route string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		s.app.Metrics.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
		appLog.Debug(r.URL.RequestURI(),
			"method", r.Method,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"addr", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
			"took", time.Since(start).String(),
		)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
