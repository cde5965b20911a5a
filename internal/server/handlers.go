package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/MeKo-Tech/scanwell/internal/version"
	"github.com/gorilla/mux"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// strategiesHandler lists the catalog, default order first.
func (s *Server) strategiesHandler(w http.ResponseWriter, _ *http.Request) {
	order := s.catalog.List()
	resp := StrategiesResponse{
		DefaultOrder: make([]string, len(order)),
	}
	for i, st := range order {
		resp.DefaultOrder[i] = st.String()
	}
	for _, e := range s.catalog.Entries() {
		resp.Strategies = append(resp.Strategies, s.strategyInfo(e))
	}
	resp.Count = len(resp.Strategies)
	s.writeJSON(w, http.StatusOK, resp)
}

// strategyHandler describes a single strategy; names match case-insensitively.
func (s *Server) strategyHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	st, ok := s.catalog.Lookup(name)
	if !ok {
		s.writeErrorResponse(w, fmt.Sprintf("Unknown strategy: %s", name), http.StatusNotFound)
		return
	}
	e, _ := s.catalog.Describe(st)
	s.writeJSON(w, http.StatusOK, s.strategyInfo(e))
}

func (s *Server) strategyInfo(e strategy.Entry) StrategyInfo {
	info := StrategyInfo{Name: e.Name.String(), Description: e.Description, Default: !e.Extended}
	if !e.Extended {
		for i, st := range s.catalog.List() {
			if st == e.Name {
				info.Position = i + 1
				break
			}
		}
	}
	return info
}

// scanImageHandler scans one uploaded image with a fresh engine run.
func (s *Server) scanImageHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	opts, trace, err := s.requestOptions(r.Form)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	buf, _, err := frame.Decode(file)
	if err != nil {
		scanRequestsTotal.WithLabelValues("image", "error").Inc()
		if errors.Is(err, frame.ErrTooLarge) {
			s.writeErrorResponse(w, "Image dimensions too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}
	buf = frame.Fit(buf, s.maxDimension)

	start := time.Now()
	var (
		res *scan.Result
		tr  *scan.Trace
	)
	if trace {
		res, tr, err = s.engine.ScanTrace(buf, opts)
	} else {
		res, err = s.engine.Scan(buf, opts)
	}
	if err != nil {
		scanRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Scan failed: %v", err), http.StatusBadRequest)
		return
	}
	scanRequestsTotal.WithLabelValues("image", foundLabel(res)).Inc()

	s.writeJSON(w, http.StatusOK, ScanResponse{
		Success: true,
		Found:   res != nil,
		Result:  res,
		Trace:   tr,
		Width:   buf.Width(),
		Height:  buf.Height(),
		TookMs:  time.Since(start).Milliseconds(),
	})
}

// requestOptions overlays the optional strategies, max_attempts and trace
// fields of a request onto the server defaults.
func (s *Server) requestOptions(form url.Values) (scan.Options, bool, error) {
	opts := s.scanOptions
	if raw := strings.TrimSpace(form.Get("strategies")); raw != "" {
		list, err := strategy.Parse(s.catalog, strings.Split(raw, ","))
		if err != nil {
			return scan.Options{}, false, fmt.Errorf("invalid strategies: %w", err)
		}
		opts.Strategies = list
	}
	if raw := strings.TrimSpace(form.Get("max_attempts")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return scan.Options{}, false, fmt.Errorf("invalid max_attempts: %q", raw)
		}
		opts.MaxAttempts = n
	}
	if err := opts.Validate(); err != nil {
		return scan.Options{}, false, err
	}

	trace := false
	if raw := form.Get("trace"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return scan.Options{}, false, fmt.Errorf("invalid trace: %q", raw)
		}
		trace = v
	}
	return opts, trace, nil
}

func foundLabel(res *scan.Result) string {
	if res == nil {
		return "absent"
	}
	return "found"
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ScanResponse{Success: false, Error: message})
}
