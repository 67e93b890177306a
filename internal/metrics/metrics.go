package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Budget metrics
	BudgetUsedMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playwarden_budget_used_minutes",
			Help: "Gaming minutes used today",
		},
	)

	BudgetRemainingMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playwarden_budget_remaining_minutes",
			Help: "Gaming minutes remaining today (negative when exceeded)",
		},
	)

	BudgetTotalAvailableMinutes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playwarden_budget_total_available_minutes",
			Help: "Total gaming minutes available today (allowance + rollover + earned)",
		},
	)

	BudgetUsagePercent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playwarden_budget_usage_percent",
			Help: "Budget usage as a percentage of total available",
		},
	)

	// Session metrics
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playwarden_active_sessions",
			Help: "Number of countable game sessions currently open",
		},
	)

	MergedActiveSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "playwarden_merged_active_seconds_today",
			Help: "Union of today's session intervals in seconds (overlaps counted once)",
		},
	)

	// Poll loop metrics
	PollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playwarden_polls_total",
			Help: "Total monitor service polls attempted",
		},
	)

	PollFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playwarden_poll_failures_total",
			Help: "Polls that failed and fell back to the last known snapshot",
		},
	)

	// Alert metrics
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playwarden_alerts_total",
			Help: "Threshold alerts fired",
		},
		[]string{"severity"},
	)

	GamesClosedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "playwarden_games_closed_total",
			Help: "Force-close operations issued to the monitor service",
		},
	)

	// Backend metrics
	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playwarden_backend_request_duration_seconds",
			Help:    "Monitor service request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"op"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		BudgetUsedMinutes,
		BudgetRemainingMinutes,
		BudgetTotalAvailableMinutes,
		BudgetUsagePercent,
		ActiveSessions,
		MergedActiveSeconds,
		PollsTotal,
		PollFailures,
		AlertsTotal,
		GamesClosedTotal,
		BackendRequestDuration,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
