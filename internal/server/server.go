// Package server exposes the optimization engine as an HTTP and JSON-RPC
// job service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/copyleftdev/SCHOLA/internal/config"
	"github.com/copyleftdev/SCHOLA/internal/logging"
	"github.com/copyleftdev/SCHOLA/internal/optimization"
	"github.com/copyleftdev/SCHOLA/internal/optimization/benchmarks"
	"github.com/copyleftdev/SCHOLA/internal/optimization/ias"
)

// Job tracks the progress, status and result of one optimization run.
type Job struct {
	ID            string
	Status        string // "pending", "running", "completed", "failed", "cancelled"
	StartTime     time.Time
	EndTime       *time.Time
	MaxIterations int
	Optimizer     *ias.IASOptimizer
	Result        *optimization.Result
	Err           error
	Cancel        context.CancelFunc
	LastUpdated   time.Time
}

// Server manages optimization jobs and serves the HTTP and JSON-RPC
// surface around them.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	engine  *zap.Logger
	metrics *Metrics

	jobs   map[string]*Job
	jobsMu sync.RWMutex
}

// NewServer creates a server. A nil registerer falls back to the default
// prometheus registerer.
func NewServer(cfg *config.Config, logger *logging.Logger, reg prometheus.Registerer) *Server {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		engine:  logging.NewZapLogger(logger.WithField("component", "ias")),
		metrics: NewMetrics(reg),
		jobs:    make(map[string]*Job),
	}
}

// RegisterRoutes mounts the API on the given router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})
	r.Post("/rpc", s.handleJSONRPC)
}

// optimizeRequest carries the caller-facing run configuration. Omitted
// fields fall back to service or engine defaults.
type optimizeRequest struct {
	Objective           string       `json:"objective"`
	Dimension           int          `json:"dimension,omitempty"`
	Bounds              [][2]float64 `json:"bounds,omitempty"`
	PopulationSize      int          `json:"population_size,omitempty"`
	MaxIterations       int          `json:"max_iterations,omitempty"`
	Direction           string       `json:"direction,omitempty"`
	Seed                int64        `json:"seed,omitempty"`
	SelfLearningRate    float64      `json:"self_learning_rate,omitempty"`
	SelfLearningDecay   float64      `json:"self_learning_decay,omitempty"`
	InteractionWeight   float64      `json:"interaction_weight,omitempty"`
	EliteFraction       float64      `json:"elite_fraction,omitempty"`
	ReplacementFraction float64      `json:"replacement_fraction,omitempty"`
	Pairing             string       `json:"pairing,omitempty"`
	Boundary            string       `json:"boundary,omitempty"`
	Replacement         string       `json:"replacement,omitempty"`
	Tolerance           float64      `json:"tolerance,omitempty"`
	ToleranceWindow     int          `json:"tolerance_window,omitempty"`
}

// startJob resolves the request against the benchmark registry, builds the
// optimizer and launches the run asynchronously.
func (s *Server) startJob(req optimizeRequest) (map[string]interface{}, error) {
	if req.Objective == "" {
		return nil, fmt.Errorf("objective is required")
	}
	fn, ok := benchmarks.ByName(req.Objective)
	if !ok {
		return nil, fmt.Errorf("unknown objective %q", req.Objective)
	}

	dim := req.Dimension
	if dim <= 0 {
		dim = 2
	}
	bounds := req.Bounds
	if len(bounds) == 0 {
		bounds = fn.Bounds(dim)
	}

	cfg := optimization.OptimizerConfig{
		Objective:           benchmarks.Objective(fn),
		Bounds:              bounds,
		PopulationSize:      req.PopulationSize,
		MaxIterations:       req.MaxIterations,
		RandomSeed:          req.Seed,
		SelfLearningRate:    req.SelfLearningRate,
		SelfLearningDecay:   req.SelfLearningDecay,
		InteractionWeight:   req.InteractionWeight,
		EliteFraction:       req.EliteFraction,
		ReplacementFraction: req.ReplacementFraction,
		Pairing:             optimization.PairingPolicy(req.Pairing),
		Boundary:            optimization.BoundaryPolicy(req.Boundary),
		Replacement:         optimization.ReplacementStrategy(req.Replacement),
		Tolerance:           req.Tolerance,
		ToleranceWindow:     req.ToleranceWindow,
		Workers:             s.cfg.Optimization.Workers,
	}
	if cfg.PopulationSize == 0 {
		cfg.PopulationSize = s.cfg.Optimization.PopulationSize
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = s.cfg.Optimization.MaxIterations
	}
	if strings.EqualFold(req.Direction, "maximize") {
		cfg.Direction = optimization.Maximize
	}

	opt, err := ias.New(cfg,
		ias.WithLogger(s.engine),
		ias.WithEvaluationHook(s.metrics.Evaluations.Inc))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:            fmt.Sprintf("opt_%d", time.Now().UnixNano()),
		Status:        "pending",
		StartTime:     time.Now(),
		MaxIterations: cfg.MaxIterations,
		Optimizer:     opt,
		Cancel:        cancel,
		LastUpdated:   time.Now(),
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	go s.runJob(ctx, job)

	return map[string]interface{}{
		"optimization_id": job.ID,
		"status":          "pending",
	}, nil
}

// runJob executes one optimization to completion and records its outcome.
func (s *Server) runJob(ctx context.Context, job *Job) {
	s.metrics.JobsStarted.Inc()
	s.metrics.JobsRunning.Inc()
	defer s.metrics.JobsRunning.Dec()

	s.jobsMu.Lock()
	if job.Status == "pending" {
		job.Status = "running"
	}
	job.LastUpdated = time.Now()
	s.jobsMu.Unlock()

	result, err := job.Optimizer.Optimize(ctx, optimization.OptimizerConfig{})

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	switch {
	case err != nil && job.Status == "cancelled":
		// cancellation already recorded by the cancel handler
	case err != nil:
		s.logger.Error("optimization failed", map[string]interface{}{
			"optimization_id": job.ID,
			"error":           err.Error(),
		})
		job.Status = "failed"
		job.Err = err
	default:
		job.Status = "completed"
		job.Result = result
	}

	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now
	s.metrics.JobsFinished.WithLabelValues(job.Status).Inc()
}

// jobStatus builds the status response for one job.
func (s *Server) jobStatus(id string) (map[string]interface{}, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("optimization not found")
	}

	trace := job.Optimizer.Trace()
	progress := 0.0
	if job.MaxIterations > 0 {
		progress = float64(len(trace)) / float64(job.MaxIterations)
	}

	resp := map[string]interface{}{
		"status":      job.Status,
		"progress":    progress,
		"start_time":  job.StartTime.Format(time.RFC3339),
		"last_update": job.LastUpdated.Format(time.RFC3339),
		"trace":       trace,
	}
	if job.EndTime != nil {
		resp["end_time"] = job.EndTime.Format(time.RFC3339)
	}
	if best := job.Optimizer.Best(); best != nil {
		resp["best_solution"] = map[string]interface{}{
			"position": best.Position,
			"fitness":  best.Fitness,
		}
	}
	if job.Result != nil {
		resp["iterations"] = job.Result.Iterations
		resp["evaluations"] = job.Result.Evaluations
		resp["termination"] = string(job.Result.Status)
	}
	if job.Err != nil {
		resp["error"] = job.Err.Error()
	}
	return resp, nil
}

// cancelJob cancels a non-terminal job.
func (s *Server) cancelJob(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("optimization not found")
	}
	switch job.Status {
	case "completed", "failed", "cancelled":
		return fmt.Errorf("cannot cancel optimization with status: %s", job.Status)
	}

	job.Status = "cancelled"
	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now
	if job.Cancel != nil {
		job.Cancel()
	}

	s.logger.Info("optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

// Close cancels every running job.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	for _, job := range s.jobs {
		if job.Cancel != nil {
			job.Cancel()
		}
	}
	return nil
}

// handleOptimize handles POST /api/v1/optimize.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	result, err := s.startJob(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing optimization ID"})
		return
	}
	result, err := s.jobStatus(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing optimization ID"})
		return
	}
	if err := s.cancelJob(id); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancellation requested"})
}

// jsonRPCRequest is a JSON-RPC 2.0 request with positional parameters; the
// first parameter carries the method's argument object.
type jsonRPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

// handleJSONRPC handles POST /rpc.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}
	if req.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	var result interface{}
	var err error
	switch req.Method {
	case "optimization.start":
		var params optimizeRequest
		if err = unmarshalParam(req.Params, &params); err == nil {
			result, err = s.startJob(params)
		}
	case "optimization.status":
		var params struct {
			OptimizationID string `json:"optimization_id"`
		}
		if err = unmarshalParam(req.Params, &params); err == nil {
			result, err = s.jobStatus(params.OptimizationID)
		}
	case "optimization.cancel":
		var params struct {
			OptimizationID string `json:"optimization_id"`
		}
		if err = unmarshalParam(req.Params, &params); err == nil {
			if err = s.cancelJob(params.OptimizationID); err == nil {
				result = map[string]string{"status": "cancellation requested"}
			}
		}
	default:
		s.respondWithError(w, -32601, "Method not found", req.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), req.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  result,
	})
}

func unmarshalParam(params []json.RawMessage, dst interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing required parameters")
	}
	return json.Unmarshal(params[0], dst)
}

// respondWithError sends a JSON-RPC 2.0 error response.
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("request error", map[string]interface{}{
		"code":    code,
		"message": message,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
