package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spirit-labs/streamjoin/common"
	"github.com/spirit-labs/streamjoin/conf"
	log "github.com/spirit-labs/streamjoin/logger"
)

type (
	Labels        = prometheus.Labels
	Counter       = prometheus.Counter
	CounterVec    = prometheus.CounterVec
	CounterOpts   = prometheus.CounterOpts
	Gauge         = prometheus.Gauge
	GaugeVec      = prometheus.GaugeVec
	GaugeOpts     = prometheus.GaugeOpts
	HistogramOpts = prometheus.HistogramOpts
	HistogramVec  = prometheus.HistogramVec
	Observer      = prometheus.Observer
)

type Server struct {
	config     conf.Config
	httpServer *http.Server
	dummy      bool
}

type metricServer struct{}

func (ms *metricServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			DisableCompression: true,
		}),
	).ServeHTTP(w, r)
}

// NewServer returns a server exporting the default registry on /metrics. When metrics are disabled in the
// config the returned server does nothing.
func NewServer(config conf.Config) *Server {
	if !*config.MetricsEnabled {
		return &Server{dummy: true}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", &metricServer{})
	return &Server{
		config: config,
		httpServer: &http.Server{
			Addr:    *config.MetricsBind,
			Handler: mux,
		},
	}
}

func (s *Server) Start() error {
	if s.dummy {
		return nil
	}
	common.Go(func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("prometheus http export server failed to listen %v", err)
		}
	})
	log.Debugf("started prometheus http server on address %s", *s.config.MetricsBind)
	return nil
}

func (s *Server) Stop() error {
	if s.dummy {
		return nil
	}
	return s.httpServer.Close()
}
