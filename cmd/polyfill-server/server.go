package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/polyfill-cache/pkg/bundle"
	"github.com/Sternrassler/polyfill-cache/pkg/cache"
	"github.com/Sternrassler/polyfill-cache/pkg/featureset"
	"github.com/Sternrassler/polyfill-cache/pkg/metrics"
	"github.com/Sternrassler/polyfill-cache/pkg/persist"
	"github.com/Sternrassler/polyfill-cache/pkg/polyfill"
)

type server struct {
	service  *polyfill.Service
	snapshot persist.Snapshotter
	maxAge   time.Duration
	logger   zerolog.Logger
}

func newServer(service *polyfill.Service, snapshot persist.Snapshotter, maxAge time.Duration, logger zerolog.Logger) *server {
	return &server{
		service:  service,
		snapshot: snapshot,
		maxAge:   maxAge,
		logger:   logger,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /polyfill.js", s.polyfillHandler(false))
	mux.HandleFunc("GET /polyfill.min.js", s.polyfillHandler(true))
	mux.HandleFunc("POST /admin/prime", s.primeHandler)
	mux.HandleFunc("POST /admin/snapshot", s.snapshotHandler)
	mux.HandleFunc("DELETE /admin/cache", s.clearHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// polyfillHandler serves a bundle. Query parameters:
//
//	set       feature set name (default "default")
//	features  comma-separated feature ids to add
//	excludes  comma-separated feature ids to remove
//	target    platform query overriding the User-Agent header
//	minify    "true"/"1" selects the minified variant
func (s *server) polyfillHandler(minified bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		minify := minified
		if raw := query.Get("minify"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				http.Error(w, "invalid minify flag", http.StatusBadRequest)
				return
			}
			minify = parsed
		}

		opts := polyfill.Options{
			FeatureSet:             query.Get("set"),
			Include:                splitList(query.Get("features")),
			Exclude:                splitList(query.Get("excludes")),
			Logger:                 s.logger,
			Minify:                 minify,
			OverrideTargetPlatform: query.Get("target"),
			UserAgent:              r.UserAgent(),
		}

		entry, err := s.service.Generate(r.Context(), opts)
		if err != nil {
			switch {
			case featureset.IsConfigurationError(err):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case bundle.IsCompilationError(err):
				http.Error(w, "bundle compilation failed", http.StatusInternalServerError)
			default:
				s.logger.Error().Err(err).Msg("Bundle request failed")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		if err := cache.WriteEntry(w, r, entry, s.maxAge); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to write bundle response")
		}
	}
}

func (s *server) primeHandler(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.PrimeCache(r.Context(), s.logger)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, polyfill.ErrNoMatrix) {
			status = http.StatusNotImplemented
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "cache_entries": count})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cache_entries": count})
}

func (s *server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"error": "snapshots disabled"})
		return
	}
	n, err := s.service.SerializeTo(r.Context(), s.snapshot)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "records": n})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": n})
}

func (s *server) clearHandler(w http.ResponseWriter, r *http.Request) {
	s.service.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
