// Package server exposes the scan engine over HTTP: single-image scans,
// strategy listing and a WebSocket stream that keeps one scan session per
// connection.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	engine       *scan.Engine
	catalog      *strategy.Catalog
	scanOptions  scan.Options
	maxDimension int
	corsOrigin   string
	maxUploadMB  int64
	timeoutSec   int
	rateLimiter  *RateLimiter
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int

	// ScanOptions are the defaults for every request and stream; requests may
	// override the strategies and the attempt cap.
	ScanOptions scan.Options
	// MaxDimension downscales uploads before scanning; 0 disables it.
	MaxDimension int

	RateLimit RateLimitConfig
	Logger    *slog.Logger
}

// RateLimitConfig configures per-client limits. Zero disables a single limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Addr returns host:port.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// StrategyInfo describes one catalog entry.
type StrategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Default is true for strategies in the default order.
	Default bool `json:"default"`
	// Position is the 1-based slot in the default order, 0 for extended ones.
	Position int `json:"position,omitempty"`
}

// StrategiesResponse is returned by GET /strategies.
type StrategiesResponse struct {
	Strategies   []StrategyInfo `json:"strategies"`
	DefaultOrder []string       `json:"default_order"`
	Count        int            `json:"count"`
}

// ScanResponse is returned by POST /scan/image.
type ScanResponse struct {
	Success bool         `json:"success"`
	Found   bool         `json:"found"`
	Result  *scan.Result `json:"result,omitempty"`
	Trace   *scan.Trace  `json:"trace,omitempty"`
	Width   int          `json:"width,omitempty"`
	Height  int          `json:"height,omitempty"`
	TookMs  int64        `json:"took_ms"`
	Error   string       `json:"error,omitempty"`
}

// NewServer creates a server around a shared engine. catalog is used for
// listing and name resolution; it should be the catalog the engine applies.
func NewServer(config Config, engine *scan.Engine, catalog *strategy.Catalog) (*Server, error) {
	if engine == nil {
		return nil, errors.New("server: engine is required")
	}
	if catalog == nil {
		catalog = strategy.Default()
	}
	if err := config.ScanOptions.Validate(); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:       engine,
		catalog:      catalog,
		scanOptions:  config.ScanOptions,
		maxDimension: config.MaxDimension,
		corsOrigin:   config.CORSOrigin,
		maxUploadMB:  config.MaxUploadMB,
		timeoutSec:   config.TimeoutSec,
		logger:       logger,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 20
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// Router configures the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware, s.metricsMiddleware)

	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/strategies", s.strategiesHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/strategies/{name}", s.strategyHandler).Methods(http.MethodGet, http.MethodOptions)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	scanRoutes := r.PathPrefix("/scan").Subrouter()
	scanRoutes.Use(s.rateLimitMiddleware)
	scanRoutes.HandleFunc("/image", s.scanImageHandler).Methods(http.MethodPost, http.MethodOptions)
	scanRoutes.HandleFunc("/stream", s.streamHandler).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeErrorResponse(w, "Not found", http.StatusNotFound)
	})
	return r
}

// HTTPServer wraps the router in an http.Server with the configured timeouts.
// The write timeout is left unset: WebSocket streams outlive any request timeout.
func (s *Server) HTTPServer(addr string) *http.Server {
	timeout := time.Duration(s.timeoutSec) * time.Second
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		IdleTimeout:       2 * timeout,
	}
}
