// Package main is the entry point for the quickquote server, which fans a
// single search out to several unreliable price-quote providers and returns
// a ranked, badged, cached aggregate.
package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/quickquote/internal/aggregate"
	"github.com/yourorg/quickquote/internal/cache"
	"github.com/yourorg/quickquote/internal/circuitbreaker"
	"github.com/yourorg/quickquote/internal/config"
	"github.com/yourorg/quickquote/internal/fetch"
	"github.com/yourorg/quickquote/internal/gateway"
	"github.com/yourorg/quickquote/internal/model"
	obs "github.com/yourorg/quickquote/internal/otel"
	"github.com/yourorg/quickquote/internal/ratelimit"
	"github.com/yourorg/quickquote/internal/retry"
	"github.com/yourorg/quickquote/internal/validation"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// ServerConfig holds the HTTP-surface configuration
type ServerConfig struct {
	// HTTP port to listen on
	Port string

	// Overall deadline for one search request
	Timeout time.Duration

	// Whether to expose Prometheus metrics
	EnableMetrics bool
}

// Server wires the cache, aggregation engine and provider gateways
// behind the HTTP surface.
type Server struct {
	config   ServerConfig
	gateways []aggregate.Searcher
	breakers *circuitbreaker.Registry
	cache    *cache.ResultCache
	metrics  *serverMetrics
	server   *http.Server
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	quoteCount      prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quickquote_requests_total",
				Help: "Total number of search requests processed",
			},
			[]string{"status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quickquote_request_duration_seconds",
				Help:    "Search request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quickquote_provider_errors_total",
				Help: "Provider failures absorbed by the gateways",
			},
			[]string{"provider", "kind"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quickquote_circuit_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
			},
			[]string{"provider"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quickquote_cache_hits_total",
				Help: "Search responses served from the result cache",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quickquote_cache_misses_total",
				Help: "Search requests that triggered a fresh aggregation",
			},
		),
		quoteCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quickquote_quote_count",
				Help: "Number of quotes in the most recent aggregate",
			},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.providerErrors,
		m.breakerState,
		m.cacheHits,
		m.cacheMisses,
		m.quoteCount,
	)

	return m
}

// main is the entry point for the application
func main() {
	setupLogging()

	cfg := config.Load()

	shutdownTracer := obs.InitTracer(cfg)
	defer shutdownTracer()

	server := NewServer(cfg)
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	if level, err := logrus.ParseLevel(logLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// NewServer assembles the protection layer, aggregation engine and cache
// from configuration.
func NewServer(cfg config.Config) *Server {
	s := &Server{
		config: ServerConfig{
			Port:          cfg.Port,
			Timeout:       getDurationOrDefault("REQUEST_TIMEOUT", 15*time.Second),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		},
	}

	if s.config.EnableMetrics {
		s.metrics = registerMetrics()
	}

	limiter := ratelimit.New(cfg.LimiterRate, cfg.LimiterCapacity)

	s.breakers = circuitbreaker.NewRegistry(
		circuitbreaker.WithThresholds(cfg.BreakerFailureThreshold, cfg.BreakerSuccessThreshold),
		circuitbreaker.WithRegistryCooldown(cfg.BreakerCooldown),
		circuitbreaker.WithRegistryStateChangeCallback(func(name string, from, to circuitbreaker.State) {
			logrus.WithFields(logrus.Fields{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Info("Circuit breaker state changed")
			if s.metrics != nil {
				s.metrics.breakerState.WithLabelValues(name).Set(float64(to))
			}
		}),
	)

	gwOpts := gateway.Options{
		Retry: retry.Options{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Multiplier:  cfg.RetryMultiplier,
		},
		Timeout: cfg.CallTimeout,
	}
	for _, client := range fetch.NewClients(cfg) {
		gw := gateway.New(client, limiter, s.breakers, gwOpts)
		gw.OnError = func(provider, kind string) {
			if s.metrics != nil {
				s.metrics.providerErrors.WithLabelValues(provider, kind).Inc()
			}
		}
		s.gateways = append(s.gateways, gw)
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		store = cache.NewRedisStore(cfg.RedisAddr)
		logrus.Infof("Result cache backed by Redis at %s", cfg.RedisAddr)
	} else {
		store = cache.NewMemoryStore()
	}
	s.cache = cache.New(store, cfg.CacheTTL)

	logrus.WithFields(logrus.Fields{
		"port":           s.config.Port,
		"provider_count": len(s.gateways),
		"cache_ttl":      cfg.CacheTTL,
		"call_timeout":   cfg.CallTimeout,
		"metrics":        s.config.EnableMetrics,
	}).Info("Server initialized")

	return s
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/search", s.handleSearch)   // Main search endpoint
	mux.HandleFunc("/health", s.handleHealth)   // Health check endpoint
	mux.HandleFunc("/metrics", s.handleMetrics) // Prometheus metrics endpoint
	mux.HandleFunc("/status", s.handleStatus)   // Service status endpoint
	mux.HandleFunc("/circuit", s.handleCircuit) // Circuit breaker status/control

	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	logrus.Info("Server stopped")
}

// handleSearch processes one search request: validate, consult the
// result cache, and on a miss fan out to every provider gateway.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet {
		s.errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		query = r.URL.Query().Get("query")
	}
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		s.errorResponse(w, http.StatusBadRequest, "lat and lng must be numbers")
		return
	}
	pincode := r.URL.Query().Get("pincode")

	req := validation.SearchRequest{Query: query, Lat: lat, Lng: lng, Pincode: pincode}
	if err := validation.ValidateSearchRequest(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Timeout)
	defer cancel()

	ctx, span := obs.Tracer().Start(ctx, "search")
	defer span.End()

	clientKey := clientKeyFromRequest(r)
	key := cache.Key(query, lat, lng)

	result, err := s.cache.GetOrSet(ctx, key, func(ctx context.Context) (*model.AggregateResult, error) {
		if s.metrics != nil {
			s.metrics.cacheMisses.Inc()
		}
		res := aggregate.Run(ctx, aggregate.Request{
			Query:     query,
			Lat:       lat,
			Lng:       lng,
			Pincode:   pincode,
			ClientKey: clientKey,
		}, s.gateways)
		return &res, nil
	})
	if err != nil {
		obs.RecordError(ctx, err)
		s.errorResponse(w, http.StatusInternalServerError, "Aggregation failed")
		return
	}

	if s.metrics != nil {
		if result.CacheHit {
			s.metrics.cacheHits.Inc()
		}
		s.metrics.quoteCount.Set(float64(len(result.Results)))
		s.metrics.requestDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
		s.metrics.requestCounter.WithLabelValues("success").Inc()
	}

	// The cache keys on coarse geo buckets only; echo the caller's
	// pincode back rather than the one that populated the entry.
	response := *result
	response.Location.Pincode = pincode

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// clientKeyFromRequest derives the rate-limit key for the caller: the
// X-Client-Id header when present, the remote host otherwise.
func clientKeyFromRequest(r *http.Request) string {
	if id := r.Header.Get("X-Client-Id"); id != "" {
		return id
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleMetrics exposes Prometheus metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.config.EnableMetrics {
		http.Error(w, "Metrics disabled", http.StatusServiceUnavailable)
		return
	}

	promhttp.Handler().ServeHTTP(w, r)
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	breakerStates := map[string]string{}
	for provider, state := range s.breakers.States() {
		breakerStates[provider] = state.String()
	}

	status := map[string]interface{}{
		"status":    "operational",
		"uptime":    time.Since(startTime).String(),
		"version":   "1.0.0",
		"providers": len(s.gateways),
		"breakers":  breakerStates,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleCircuit allows viewing and resetting per-provider circuit breakers
func (s *Server) handleCircuit(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{}

	if r.Method == http.MethodPost {
		action := r.URL.Query().Get("action")
		provider := r.URL.Query().Get("provider")
		if action == "reset" && provider != "" {
			s.breakers.Get(provider).Reset()
			response["message"] = "Circuit breaker reset for " + provider
		}
	}

	states := map[string]string{}
	for provider, state := range s.breakers.States() {
		states[provider] = state.String()
	}
	response["states"] = states

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// errorResponse returns a formatted JSON error response
func (s *Server) errorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	logrus.Warn(errorMsg)

	if s.metrics != nil {
		s.metrics.requestCounter.WithLabelValues("error").Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": statusCode,
		"error":  errorMsg,
	})
}
