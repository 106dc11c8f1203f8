package pbxsim

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dennisdiepolder/qmconsole/internal/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// CallTimeLayout is the timestamp format of served call records
const CallTimeLayout = "2006-01-02 15:04:05"

// API serves the simulated statistics under /api and a small control
// interface next to it
type API struct {
	sim    *Simulator
	token  string
	logger zerolog.Logger
}

// NewAPI creates a new API. An empty token disables the bearer token check.
func NewAPI(sim *Simulator, token string, logger zerolog.Logger) *API {
	return &API{
		sim:    sim,
		token:  token,
		logger: logger.With().Str("component", "pbxsim_api").Logger(),
	}
}

// SetupRoutes configures HTTP routes
func (api *API) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", api.healthHandler).Methods("GET")
	router.HandleFunc("/status", api.statusHandler).Methods("GET")
	router.HandleFunc("/start", api.startHandler).Methods("POST")
	router.HandleFunc("/stop", api.stopHandler).Methods("POST")
	router.HandleFunc("/calls/inject", api.injectHandler).Methods("POST")

	stats := router.PathPrefix("/api").Subrouter()
	stats.Use(api.requireToken)
	stats.HandleFunc("/queues", api.queuesHandler).Methods("GET")
	stats.HandleFunc("/agents", api.agentsHandler).Methods("GET")
	stats.HandleFunc("/calls", api.callsHandler).Methods("GET")
}

// Handler returns a router with every route mounted
func (api *API) Handler() http.Handler {
	router := mux.NewRouter()
	api.SetupRoutes(router)
	return router
}

func (api *API) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.token != "" && r.Header.Get("Authorization") != "Bearer "+api.token {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// healthHandler returns service health
func (api *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// statusHandler returns current simulation status
func (api *API) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, api.sim.Status())
}

// startHandler resumes the simulation
func (api *API) startHandler(w http.ResponseWriter, r *http.Request) {
	if api.sim.Running() {
		http.Error(w, "simulation already running", http.StatusConflict)
		return
	}
	api.sim.SetRunning(true)
	api.logger.Info().Msg("simulation resumed")
	writeJSON(w, map[string]string{"message": "simulation started"})
}

// stopHandler pauses the simulation
func (api *API) stopHandler(w http.ResponseWriter, r *http.Request) {
	if !api.sim.Running() {
		http.Error(w, "simulation not running", http.StatusConflict)
		return
	}
	api.sim.SetRunning(false)
	api.logger.Info().Msg("simulation paused")
	writeJSON(w, map[string]string{"message": "simulation stopped"})
}

// injectHandler enqueues callers into a queue
func (api *API) injectHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Queue string `json:"queue"`
		Count int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.Count > 1000 {
		req.Count = 1000
	}

	if err := api.sim.Inject(req.Queue, req.Count); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"queue": req.Queue, "injected": req.Count})
}

// queuesHandler serves the queues keyed by queue id
func (api *API) queuesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, api.sim.Queues())
}

// agentsHandler serves the agents as a list
func (api *API) agentsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, api.sim.Agents())
}

type wireCall struct {
	Time     string        `json:"time"`
	Queue    string        `json:"queue"`
	CallerID string        `json:"caller_id"`
	Name     string        `json:"name"`
	Company  string        `json:"company"`
	Outcome  types.Outcome `json:"outcome"`
}

// callsHandler serves one page of the call history as {page,total,records}
func (api *API) callsHandler(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	p := api.sim.Calls(page, size)

	records := make([]wireCall, 0, len(p.Records))
	for _, c := range p.Records {
		records = append(records, wireCall{
			Time:     c.Time.In(time.Local).Format(CallTimeLayout),
			Queue:    c.Queue,
			CallerID: c.CallerID,
			Name:     c.Name,
			Company:  c.Company,
			Outcome:  c.Outcome,
		})
	}
	writeJSON(w, map[string]any{"page": p.Page, "total": p.Total, "records": records})
}

// Start serves the API on addr until ctx is cancelled
func (api *API) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}

	go func() {
		<-ctx.Done()
		api.logger.Info().Msg("shutting down simulated PBX API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	api.logger.Info().Str("addr", addr).Msg("simulated PBX API started")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
