// Package vis provides an HTTP and websocket server exposing a planned
// trajectory to plotting frontends. Frontends can query the layer list,
// fetch per-layer coordinates (discrete or time-sampled) and stream
// fixed-interval samples over a websocket.
//
// The full planning pipeline runs to completion before the server is
// constructed; the server only reads immutable plan data.
//
// Copyright (C) 2019-2026  Philipp Schaefer
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package vis

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theOehrly/ActiveVibrationSuppression/pkg/errors"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/log"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/machine"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/metrics"
	"github.com/theOehrly/ActiveVibrationSuppression/pkg/pool"
)

// streamBatchSize is the number of points sent per websocket frame.
const streamBatchSize = 100

// Plan is the read-only view of a planned trajectory the server exposes.
// *machine.Machine implements it.
type Plan interface {
	LayerCount() int
	Layers() []int
	TotalDuration() float64
	TotalDistance() float64
	PathCoordinates(layer int) ([]float64, []float64, error)
	SampledCoordinates(layer int, interval float64) ([]float64, []float64, error)
	NewPositionSampler(axis machine.Axis, layer int) (*machine.PositionSampler, error)
	Limits() machine.Limits
}

// Config holds server configuration.
type Config struct {
	// Addr is the HTTP address to listen on (e.g. ":8723").
	Addr string

	// Plan is the planned trajectory to serve.
	Plan Plan

	// Profile is the name of the machine profile the plan was made with.
	Profile string
}

// Server serves a planned trajectory to visualization clients.
type Server struct {
	plan    Plan
	profile string
	addr    string

	httpServer *http.Server
	wsUpgrader websocket.Upgrader

	mu     sync.Mutex
	logger *log.Logger
}

// New creates a visualization server.
func New(cfg Config) *Server {
	s := &Server{
		plan:    cfg.Plan,
		profile: cfg.Profile,
		addr:    cfg.Addr,
		logger:  log.GetLogger("vis"),
	}
	s.wsUpgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // local tool; all origins allowed
		},
	}
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/plan/info", s.handleInfo)
	mux.HandleFunc("/plan/layers", s.handleLayers)
	mux.HandleFunc("/plan/coordinates", s.handleCoordinates)
	mux.HandleFunc("/stream", s.handleStream)
	mux.Handle("/metrics", metrics.Handler())
	return s.corsMiddleware(mux)
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("serving trajectory on %s", s.addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		metrics.VisRequests.Inc()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// infoResponse summarizes the plan.
type infoResponse struct {
	Profile           string  `json:"profile"`
	Layers            int     `json:"layers"`
	TotalDuration     float64 `json:"total_duration"`
	TotalDistance     float64 `json:"total_distance"`
	MinSpeed          float64 `json:"min_speed"`
	Acceleration      float64 `json:"acceleration"`
	JunctionDeviation float64 `json:"junction_deviation"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	lim := s.plan.Limits()
	writeJSON(w, http.StatusOK, infoResponse{
		Profile:           s.profile,
		Layers:            s.plan.LayerCount(),
		TotalDuration:     s.plan.TotalDuration(),
		TotalDistance:     s.plan.TotalDistance(),
		MinSpeed:          lim.MinSpeed,
		Acceleration:      lim.Acceleration,
		JunctionDeviation: lim.JunctionDeviation,
	})
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count":         s.plan.LayerCount(),
		"start_indices": s.plan.Layers(),
	})
}

// layerParam parses the optional "layer" query parameter; -1 selects the
// whole path.
func layerParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("layer")
	if v == "" {
		return -1, nil
	}
	return strconv.Atoi(v)
}

func intervalParam(r *http.Request) float64 {
	v := r.URL.Query().Get("interval")
	if v == "" {
		return machine.DefaultSampleInterval
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return machine.DefaultSampleInterval
	}
	return f
}

type coordinatesResponse struct {
	Layer int       `json:"layer"`
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
}

func (s *Server) handleCoordinates(w http.ResponseWriter, r *http.Request) {
	layer, err := layerParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var xs, ys []float64
	switch r.URL.Query().Get("mode") {
	case "", "discrete":
		xs, ys, err = s.plan.PathCoordinates(layer)
	case "sampled":
		xs, ys, err = s.plan.SampledCoordinates(layer, intervalParam(r))
	default:
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrPlanLayer, "unknown mode"))
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errors.ErrPlanLayer) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	if xs == nil {
		xs = []float64{}
	}
	if ys == nil {
		ys = []float64{}
	}
	writeJSON(w, http.StatusOK, coordinatesResponse{Layer: layer, X: xs, Y: ys})
}

// streamFrame is one websocket message of time-sampled points.
type streamFrame struct {
	T    []float64 `json:"t"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
	Done bool      `json:"done"`
}

// handleStream upgrades to a websocket and streams fixed-interval samples
// of the requested layer until the trajectory is exhausted.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	layer, err := layerParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	interval := intervalParam(r)

	sx, err := s.plan.NewPositionSampler(machine.AxisX, layer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sy, err := s.plan.NewPositionSampler(machine.AxisY, layer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ts := pool.GetFloat64Slice()
	xs := pool.GetFloat64Slice()
	ys := pool.GetFloat64Slice()
	defer pool.PutFloat64Slice(ts)
	defer pool.PutFloat64Slice(xs)
	defer pool.PutFloat64Slice(ys)

	flush := func(done bool) error {
		frame := streamFrame{T: *ts, X: *xs, Y: *ys, Done: done}
		if err := conn.WriteJSON(frame); err != nil {
			return err
		}
		metrics.VisStreamedPoints.Add(float64(len(*ts)))
		*ts = (*ts)[:0]
		*xs = (*xs)[:0]
		*ys = (*ys)[:0]
		return nil
	}

	for t := 0.0; ; t += interval {
		x, err := sx.Sample(t)
		if err != nil {
			break
		}
		y, err := sy.Sample(t)
		if err != nil {
			break
		}
		*ts = append(*ts, t)
		*xs = append(*xs, x)
		*ys = append(*ys, y)
		if len(*ts) >= streamBatchSize {
			if err := flush(false); err != nil {
				s.logger.Debug("websocket write failed: %v", err)
				return
			}
		}
	}
	if err := flush(true); err != nil {
		s.logger.Debug("websocket write failed: %v", err)
	}
}
