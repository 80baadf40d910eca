package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/banshee-data/overflight.report/internal/db"
	"github.com/banshee-data/overflight.report/internal/httputil"
	"github.com/banshee-data/overflight.report/internal/version"
)

// maxSiteBody bounds a POST /api/sites request.
const maxSiteBody = 64 << 10

func (s *Server) listPasses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.passesResponse(s.source.Latest()))
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.statusResponse(s.source.Latest()))
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"site":                   s.opts.Site,
		"units":                  s.opts.Units,
		"alert_warning_seconds":  s.opts.Thresholds.Warning.Seconds(),
		"alert_critical_seconds": s.opts.Thresholds.Critical.Seconds(),
		"alert_inversion_policy": s.opts.Policy,
		"poll_interval_seconds":  s.opts.PollInterval.Seconds(),
		"version":                version.Version,
	})
}

// streamPasses sends a "passes" Server-Sent Event for the current result
// and then one per completed poll cycle until the client goes away or the
// scheduler stops.
func (s *Server) streamPasses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	id, results := s.source.Subscribe()
	defer s.source.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if res, ok := s.source.Latest(); ok {
		if err := writeEvent(w, "passes", s.passesResponse(res, true)); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case res, open := <-results:
			if !open {
				return
			}
			if err := writeEvent(w, "passes", s.passesResponse(res, true)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	if s.sites == nil {
		httputil.ServiceUnavailable(w, "site registry not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		sites, err := s.sites.ListSites()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to list sites: %v", err))
			return
		}
		httputil.WriteJSONOK(w, sites)

	case http.MethodPost:
		var site db.Site
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSiteBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&site); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid site JSON: %v", err))
			return
		}
		site.ID = 0
		if err := site.GeoSite().Validate(); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := s.sites.CreateSite(&site); err != nil {
			if errors.Is(err, db.ErrSiteExists) {
				httputil.WriteJSONError(w, http.StatusConflict, err.Error())
				return
			}
			httputil.InternalServerError(w, fmt.Sprintf("failed to create site: %v", err))
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, site)

	default:
		httputil.MethodNotAllowed(w)
	}
}
