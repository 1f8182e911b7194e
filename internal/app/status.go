package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrissnell/meteodb/internal/log"
	"github.com/chrissnell/meteodb/internal/metrics"
	"github.com/chrissnell/meteodb/internal/storage"
	"github.com/chrissnell/meteodb/internal/storage/jobqueue"
	"github.com/chrissnell/meteodb/internal/types"
)

// healthMaxAge is how old a healthy check may be before /health reports the
// store as stale.
const healthMaxAge = 5 * time.Minute

// JobSubmitter enqueues jobs. jobqueue.Queue implements it.
type JobSubmitter interface {
	Submit(ctx context.Context, command string, station types.StationID, begin, end time.Time) (int64, error)
}

// StatusServer serves metrics, store health and job submission.
type StatusServer struct {
	Server *http.Server

	health   *storage.HealthManager
	monitors []string
	jobs     JobSubmitter
}

// NewStatusServer returns a server listening on addr. monitors names the
// health monitors /health must find healthy.
func NewStatusServer(addr string, health *storage.HealthManager, monitors []string, jobs JobSubmitter) *StatusServer {
	s := &StatusServer{health: health, monitors: monitors, jobs: jobs}
	s.Server = &http.Server{
		Addr:              addr,
		Handler:           s.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *StatusServer) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogMiddleware)

	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	router.HandleFunc("/health/{store}", s.getStoreHealth).Methods(http.MethodGet)
	router.HandleFunc("/jobs", s.postJob).Methods(http.MethodPost)

	return router
}

// Start serves until ctx ends.
func (s *StatusServer) Start(ctx context.Context) {
	go func() {
		log.Infof("status server listening on %s", s.Server.Addr)
		if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("status server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down the status server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Server.Shutdown(shutdownCtx)
	}()
}

func (s *StatusServer) getHealth(w http.ResponseWriter, req *http.Request) {
	status := http.StatusOK
	for _, name := range s.monitors {
		if !s.health.IsHealthy(name, healthMaxAge) {
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, s.health.GetAllHealth())
}

func (s *StatusServer) getStoreHealth(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	health, ok := s.health.GetHealth(vars["store"])
	if !ok {
		http.Error(w, fmt.Sprintf("no health data for %q", vars["store"]), http.StatusNotFound)
		return
	}
	status := http.StatusOK
	if !s.health.IsHealthy(vars["store"], healthMaxAge) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// JobRequest is the body of POST /jobs. End may be omitted for single-day
// and single-month commands.
type JobRequest struct {
	Command string    `json:"command"`
	Station string    `json:"station"`
	Begin   time.Time `json:"begin"`
	End     time.Time `json:"end,omitempty"`
}

var knownCommands = map[string]bool{
	jobqueue.CmdProcessDay:         true,
	jobqueue.CmdProcessMonth:       true,
	jobqueue.CmdProcessRange:       true,
	jobqueue.CmdRebuildFrom:        true,
	jobqueue.CmdRebuildRecords:     true,
	jobqueue.CmdDeleteObservations: true,
}

func (s *StatusServer) postJob(w http.ResponseWriter, req *http.Request) {
	var jr JobRequest
	if err := json.NewDecoder(req.Body).Decode(&jr); err != nil {
		http.Error(w, "invalid job: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !knownCommands[jr.Command] {
		http.Error(w, fmt.Sprintf("unknown command %q", jr.Command), http.StatusBadRequest)
		return
	}
	station, err := types.ParseStationID(jr.Station)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if jr.Begin.IsZero() {
		http.Error(w, "begin is required", http.StatusBadRequest)
		return
	}

	id, err := s.jobs.Submit(req.Context(), jr.Command, station, jr.Begin.UTC(), jr.End.UTC())
	if err != nil {
		log.Errorf("submitting job: %v", err)
		http.Error(w, "could not submit job", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int64{"id": id})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("writing response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogMiddleware logs every request at debug level.
func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr)
	})
}
