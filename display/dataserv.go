package crowdsafe

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	Cp "github.com/maroda/crowdsafe/plugin"
	Cs "github.com/maroda/crowdsafe/server"
	Ct "github.com/maroda/crowdsafe/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var Version = "dev"

// defaultHistory is how far back /api/history looks without a start
const defaultHistory = 5 * time.Minute

// SetupMux handles all data serving:
// - Prometheus metric endpoint
// - Websocket with live dashboard updates
// - Charts page rendered on request
// - JSON api for dashboard, alerts, summary, history and pause
func (v *View) SetupMux() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", v.Stats.Handler())
	r.HandleFunc("/ws", v.WebsocketHandler)
	r.HandleFunc("/charts", v.ChartsHandler)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(v.StatsMiddleware)
	api.HandleFunc("/version", v.VersionHandler)
	api.HandleFunc("/dashboard", v.DashboardHandler)
	api.HandleFunc("/alerts", v.AlertsHandler)
	api.HandleFunc("/summary", v.SummaryHandler)
	api.HandleFunc("/outputs", v.OutputsHandler)
	api.HandleFunc("/history", v.HistoryHandler)
	api.HandleFunc("/pause", v.PauseHandler)

	return r
}

// RespWriter is a wrapper with StatsMiddleware, used for Prometheus
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

func (v *View) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)

		v.Stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Could not encode response", slog.Any("Error", err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (v *View) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

// DashboardHandler returns the full current snapshot
func (v *View) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, v.Orch.Dashboard.Snapshot())
}

type alertsResponse struct {
	Active []Ct.AlertRecord `json:"active"`
	Recent []Ct.AlertRecord `json:"recent"`
	Status string           `json:"status"`
}

func (v *View) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	snap := v.Orch.Dashboard.Snapshot()
	writeJSON(w, http.StatusOK, alertsResponse{
		Active: snap.Active,
		Recent: snap.Recent,
		Status: snap.Status,
	})
}

func (v *View) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, v.Orch.Summary())
}

// OutputsHandler lists the output adapters the pipeline writes to
func (v *View) OutputsHandler(w http.ResponseWriter, r *http.Request) {
	types := make([]string, 0, len(v.Orch.Outputs))
	for _, out := range v.Orch.Outputs {
		types = append(types, out.Type())
	}
	writeJSON(w, http.StatusOK, map[string]any{"outputs": types})
}

// HistoryHandler reads stored frame records back from the first output that can answer.
// start and end are RFC3339, both bounds exclusive.
func (v *View) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	end := time.Now()
	start := end.Add(-defaultHistory)

	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid start: "+err.Error())
			return
		}
		start = t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid end: "+err.Error())
			return
		}
		end = t
	}

	for _, out := range v.Orch.Outputs {
		recs, err := out.QueryRange(start, end)
		if errors.Is(err, Cp.ErrNoQuery) {
			continue
		}
		if err != nil {
			slog.Error("History query failed", slog.String("output", out.Type()), slog.Any("Error", err))
			writeJSONError(w, http.StatusInternalServerError, "query failed")
			return
		}
		if recs == nil {
			recs = []*Ct.FrameRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"output": out.Type(), "records": recs})
		return
	}

	writeJSONError(w, http.StatusNotFound, "no output can answer history queries")
}

// PauseHandler toggles the pipeline pause flag on POST
func (v *View) PauseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "invalid method, use POST")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": v.Orch.TogglePause()})
}

// serve starts the web endpoints in the background, an empty addr disables them
func (v *View) serve(addr string) {
	if addr == "" {
		return
	}

	v.server = &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(v.SetupMux(), "crowdsafe"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Starting crowdsafe web endpoint...", slog.String("Port", addr))
		if err := v.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not start web endpoint", slog.Any("Error", err))
		}
	}()
}

// StartHeadless runs the pipeline with only the web endpoints,
// returning when the source drains, the pipeline fails, or ctx ends
func StartHeadless(ctx context.Context, o *Cs.Orchestrator, c *Cs.Config) error {
	view, err := NewView(o, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	view.cancel = cancel

	view.serve(c.StatsAddr)

	sup := NewPipelineSupervisor(o)
	sup.Start(ctx)

	err = sup.Wait()
	view.exit()
	return err
}
