// Package api serves the latest pass predictions, the alert status and the
// site registry over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/overflight.report/internal/alerting"
	"github.com/banshee-data/overflight.report/internal/db"
	"github.com/banshee-data/overflight.report/internal/geo"
	"github.com/banshee-data/overflight.report/internal/monitoring"
	"github.com/banshee-data/overflight.report/internal/poller"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Source publishes poll results. *poller.Scheduler implements it.
type Source interface {
	Latest() (poller.Result, bool)
	Subscribe() (string, <-chan poller.Result)
	Unsubscribe(id string)
}

// SiteStore is the subset of the site registry the API needs.
type SiteStore interface {
	ListSites() ([]db.Site, error)
	CreateSite(site *db.Site) error
}

// Options carries the presentation settings for a Server.
type Options struct {
	Site         geo.Site
	Thresholds   alerting.Thresholds
	Policy       alerting.InversionPolicy
	Units        string
	PollInterval time.Duration
}

type Server struct {
	source Source
	sites  SiteStore
	opts   Options
}

// NewServer creates a Server. sites may be nil, in which case the registry
// endpoints answer 503.
func NewServer(source Source, sites SiteStore, opts Options) *Server {
	if opts.Policy == "" {
		opts.Policy = alerting.DefaultInversionPolicy
	}
	return &Server{source: source, sites: sites, opts: opts}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Flush keeps Server-Sent Events streaming through the middleware.
func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/passes", s.listPasses)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/stream", s.streamPasses)
	mux.HandleFunc("/api/sites", s.handleSites)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}
