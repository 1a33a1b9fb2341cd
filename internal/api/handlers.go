package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rshade/greenreport/internal/engine"
	"github.com/rshade/greenreport/internal/logging"
	"github.com/rshade/greenreport/internal/report"
)

const (
	maxBodyBytes         = 1 << 20
	defaultReadingWindow = 24 * time.Hour
)

// endpoints is listed in the 404 body.
//
//nolint:gochecknoglobals // Static route listing.
var endpoints = []string{
	"GET /health",
	"POST /generate_report",
	"GET /data_summary",
	"GET /carbon_factors",
	"GET /carbon/readings",
	"GET /test_components",
	"GET /api/summary",
	"GET /api/trend",
	"GET /api/power_data",
	"GET /reports",
	"GET /reports/{id}",
	"GET /metrics",
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		ctx := r.Context()
		logging.FromContext(ctx).Error().Ctx(ctx).Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind, code := classify(err)
	ctx := r.Context()
	event := logging.FromContext(ctx).Warn()
	if code >= http.StatusInternalServerError {
		event = logging.FromContext(ctx).Error()
	}
	event.Ctx(ctx).Str("kind", kind).Int("status", code).Err(err).Msg("request failed")
	s.respondJSON(w, r, code, errorResponse{Error: kind, Details: err.Error(), Timestamp: s.timestamp()})
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, details string) {
	s.respondJSON(w, r, http.StatusBadRequest, errorResponse{
		Error: KindInvalidRequest, Details: details, Timestamp: s.timestamp(),
	})
}

type healthResponse struct {
	Status        string          `json:"status"`
	Timestamp     string          `json:"timestamp"`
	Components    map[string]bool `json:"components"`
	OverallHealth string          `json:"overall_health"`
}

// health is healthy when the data source answers; the model is reported
// but not required.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	dbUp := s.service.Ping(r.Context()) == nil
	resp := healthResponse{
		Status:    "running",
		Timestamp: s.timestamp(),
		Components: map[string]bool{
			"database":          dbUp,
			"model":             s.service.ModelConfigured(),
			"carbon_calculator": true,
		},
		OverallHealth: "healthy",
	}
	code := http.StatusOK
	if !dbUp {
		resp.OverallHealth = "degraded"
		code = http.StatusServiceUnavailable
	}
	s.respondJSON(w, r, code, resp)
}

type generateResponse struct {
	Status  string         `json:"status"`
	Report  *report.Report `json:"report"`
	Message string         `json:"message,omitempty"`
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, r, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	rep, err := s.service.Generate(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp := generateResponse{Status: "success", Report: rep}
	if req.TestMode {
		resp.Message = "Report generated in test mode (no API tokens used)"
	}
	s.respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) dataSummary(w http.ResponseWriter, r *http.Request) {
	months, ok := s.intParam(w, r, "months", engine.DefaultMonths)
	if !ok {
		return
	}
	ds, err := s.service.DataSummary(r.Context(), months, r.URL.Query().Get("factor"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, ds)
}

func (s *Server) carbonFactors(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.Factors(r.URL.Query().Get("factor"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, info)
}

func (s *Server) carbonReadings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stop, ok := s.timeParam(w, r, "stop", s.now().UTC())
	if !ok {
		return
	}
	start, ok := s.timeParam(w, r, "start", stop.Add(-defaultReadingWindow))
	if !ok {
		return
	}
	if !stop.After(start) {
		s.badRequest(w, r, "stop must be after start")
		return
	}
	limit, ok := s.intParam(w, r, "limit", 0)
	if !ok {
		return
	}

	query := engine.ReadingQuery{DeviceID: q.Get("device_id"), Start: start, Stop: stop, Limit: limit}
	rows, err := s.service.Readings(r.Context(), query, q.Get("factor"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, map[string]any{
		"query":    query,
		"count":    len(rows),
		"readings": rows,
	})
}

// windowQuery reads the trailing-window parameters shared by /api/summary
// and /api/trend. A missing stop leaves the window ending now.
func (s *Server) windowQuery(w http.ResponseWriter, r *http.Request) (engine.WindowQuery, bool) {
	q := r.URL.Query()
	stop, ok := s.timeParam(w, r, "stop", time.Time{})
	if !ok {
		return engine.WindowQuery{}, false
	}
	return engine.WindowQuery{
		TimeRange: q.Get("timeRange"),
		DeviceID:  q.Get("device_id"),
		Stop:      stop,
		Factor:    q.Get("factor"),
	}, true
}

func (s *Server) windowSummary(w http.ResponseWriter, r *http.Request) {
	wq, ok := s.windowQuery(w, r)
	if !ok {
		return
	}
	ws, err := s.service.WindowSummary(r.Context(), wq)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, ws)
}

func (s *Server) hourlyTrend(w http.ResponseWriter, r *http.Request) {
	wq, ok := s.windowQuery(w, r)
	if !ok {
		return
	}
	ht, err := s.service.HourlyTrend(r.Context(), wq)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, ht)
}

// powerData never rejects its limit: anything unparsable falls back to the
// default and the engine clamps the rest.
func (s *Server) powerData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = engine.DefaultRecentLimit
	}
	rows, err := s.service.RecentReadings(r.Context(), limit, q.Get("device_id"), q.Get("factor"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, map[string]any{"count": len(rows), "data": rows})
}

type componentsResponse struct {
	engine.ComponentReport
	Timestamp string `json:"timestamp"`
}

func (s *Server) testComponents(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, componentsResponse{
		ComponentReport: s.service.CheckComponents(r.Context()),
		Timestamp:       s.timestamp(),
	})
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.respondError(w, r, engine.ErrUnavailable)
		return
	}
	list, err := s.archive.List()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, map[string]any{"count": len(list), "reports": list})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.respondError(w, r, engine.ErrUnavailable)
		return
	}
	rep, err := s.archive.Get(mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, rep)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusNotFound, map[string]any{
		"error":               "Endpoint not found",
		"available_endpoints": endpoints,
		"timestamp":           s.timestamp(),
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusMethodNotAllowed, errorResponse{
		Error:     KindMethodNotAllowed,
		Details:   fmt.Sprintf("%s is not supported on %s", r.Method, r.URL.Path),
		Timestamp: s.timestamp(),
	})
}

func (s *Server) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		s.badRequest(w, r, fmt.Sprintf("%s must be a non-negative integer", name))
		return 0, false
	}
	return v, true
}

func (s *Server) timeParam(w http.ResponseWriter, r *http.Request, name string, def time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.badRequest(w, r, fmt.Sprintf("%s must be an RFC3339 timestamp", name))
		return time.Time{}, false
	}
	return t.UTC(), true
}
