package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/miradorstack/slo-ranker/internal/models"
	"github.com/miradorstack/slo-ranker/internal/preprocess"
	"github.com/miradorstack/slo-ranker/internal/table"
	"github.com/miradorstack/slo-ranker/internal/utils"
)

type windowRequest struct {
	TenantID string `json:"tenant_id"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

type nodeProfile struct {
	name string
	// base latency in ms and how strongly the node follows the incident.
	base     float64
	coupling float64
}

var profiles = []nodeProfile{
	{name: "PetSite", base: 120, coupling: 1},
	{name: "PayForAdoption", base: 40, coupling: 0.9},
	{name: "SearchPets", base: 25, coupling: 0.1},
	{name: "ListAdoptions", base: 30, coupling: 0},
	{name: "PetStatusUpdater", base: 15, coupling: 0.4},
}

var graph = models.ServiceGraph{Edges: []models.ServiceGraphEdge{
	{Source: "PetSite", Target: "PayForAdoption", CallRate: 320, ErrorRate: 0.07},
	{Source: "PetSite", Target: "SearchPets", CallRate: 540, ErrorRate: 0.01},
	{Source: "PetSite", Target: "ListAdoptions", CallRate: 110, ErrorRate: 0.02},
	{Source: "PayForAdoption", Target: "PetStatusUpdater", CallRate: 300, ErrorRate: 0.05},
}}

func main() {
	logger := utils.NewLogger(os.Getenv("MOCK_CORE_LOG_LEVEL"), false).With(slog.String("component", "core-mock"))

	incident := time.Now().Add(-10 * time.Minute)
	if v := os.Getenv("MOCK_CORE_INCIDENT_START"); v != "" {
		parsed, err := utils.ParseRFC3339(v)
		if err != nil {
			logger.Error("invalid MOCK_CORE_INCIDENT_START", slog.Any("error", err))
			os.Exit(1)
		}
		incident = parsed
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/slo/metrics-table", func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeWindow(w, r)
		if !ok {
			return
		}
		tbl, err := syntheticTable(req.start, req.end, incident)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, tbl)
	})

	mux.HandleFunc("/api/v1/rca/service-graph", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := decodeWindow(w, r); !ok {
			return
		}
		writeJSON(w, logger, graph)
	})

	addr := os.Getenv("MOCK_CORE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("listening", slog.String("address", addr), slog.Time("incident_start", incident))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

type window struct {
	start, end time.Time
}

func decodeWindow(w http.ResponseWriter, r *http.Request) (window, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return window{}, false
	}
	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return window{}, false
	}
	start, err := utils.ParseRFC3339(req.Start)
	if err != nil {
		http.Error(w, "start: "+err.Error(), http.StatusBadRequest)
		return window{}, false
	}
	end, err := utils.ParseRFC3339(req.End)
	if err != nil || !end.After(start) {
		http.Error(w, "end must be a time after start", http.StatusBadRequest)
		return window{}, false
	}
	return window{start: start, end: end}, true
}

// syntheticTable emits one row per minute (at most 120) with latency and availability
// columns for every node. Nodes coupled to the incident degrade after incidentStart.
func syntheticTable(start, end, incidentStart time.Time) (*table.Table, error) {
	rows := int(utils.DurationMinutes(start, end))
	if rows < 1 {
		rows = 1
	}
	if rows > 120 {
		rows = 120
	}

	columns := make([]string, 0, len(profiles)*2)
	values := make([][]float64, 0, len(profiles)*2)
	for _, p := range profiles {
		latency := make([]float64, rows)
		availability := make([]float64, rows)
		for i := 0; i < rows; i++ {
			ts := start.Add(time.Duration(i) * time.Minute)
			wobble := 1 + 0.03*math.Sin(float64(i)+float64(len(p.name)))
			severity := 0.0
			if ts.After(incidentStart) {
				severity = math.Min(ts.Sub(incidentStart).Minutes()/5, 2)
			}
			latency[i] = p.base * wobble * (1 + p.coupling*severity)
			availability[i] = math.Max(0, 100-p.coupling*severity*2)
		}
		columns = append(columns,
			preprocess.Key(p.name, "latency", "Average"),
			preprocess.Key(p.name, "availability", "Average"))
		values = append(values, latency, availability)
	}
	return table.FromColumns(columns, values)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("encode error", slog.Any("error", err))
	}
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Duration("duration", time.Since(start)))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
