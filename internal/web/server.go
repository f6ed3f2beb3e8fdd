// Package web provides the HTTP status page and calibration endpoints
// for the air-sensor daemon.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/sweeney/air-sensor/internal/gas"
	"github.com/sweeney/air-sensor/internal/status"
)

// Calibrator accepts manual calibration requests. The implementation
// hands them to the poll loop; both methods block until the loop has
// run the calibration and report its outcome.
type Calibrator interface {
	RequestZero(ch gas.Channel) error
	RequestSpan(ch gas.Channel, target float64) error
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	calibrator Calibrator
}

// New creates a Server that reads state from the given tracker.
// calibrator may be nil, in which case the calibration endpoints
// return 503.
func New(addr string, tracker *status.Tracker, calibrator Calibrator) *Server {
	s := &Server{tracker: tracker, calibrator: calibrator}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/calibrate/zero", s.handleCalibrateZero)
	mux.HandleFunc("/calibrate/span", s.handleCalibrateSpan)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// calibrateRequest is the JSON body for both calibration endpoints.
type calibrateRequest struct {
	Channel string  `json:"channel"`
	Target  float64 `json:"target,omitempty"`
}

type calibrateResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleCalibrateZero(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCalibrate(w, r)
	if !ok {
		return
	}
	s.runCalibration(w, func() error {
		return s.calibrator.RequestZero(gas.Channel(req.Channel))
	})
}

func (s *Server) handleCalibrateSpan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCalibrate(w, r)
	if !ok {
		return
	}
	if req.Target <= 0 {
		writeCalibrateError(w, http.StatusBadRequest, "target must be positive")
		return
	}
	s.runCalibration(w, func() error {
		return s.calibrator.RequestSpan(gas.Channel(req.Channel), req.Target)
	})
}

func (s *Server) decodeCalibrate(w http.ResponseWriter, r *http.Request) (calibrateRequest, bool) {
	var req calibrateRequest
	if r.Method != http.MethodPost {
		writeCalibrateError(w, http.StatusMethodNotAllowed, "POST required")
		return req, false
	}
	if s.calibrator == nil {
		writeCalibrateError(w, http.StatusServiceUnavailable, "calibration not available")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCalibrateError(w, http.StatusBadRequest, fmt.Sprintf("bad request body: %v", err))
		return req, false
	}
	if req.Channel == "" {
		writeCalibrateError(w, http.StatusBadRequest, "channel is required")
		return req, false
	}
	return req, true
}

func (s *Server) runCalibration(w http.ResponseWriter, run func() error) {
	if err := run(); err != nil {
		writeCalibrateError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(calibrateResponse{Result: "ok"})
}

func writeCalibrateError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(calibrateResponse{Result: "error", Error: msg})
}
