package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iota-uz/asptt-sync/pkg/application"
)

// DefaultPath is where the asptt_* import and review series are served.
const DefaultPath = "/asptt/metrics"

// PrometheusController serves one or more registries in the text exposition format.
// Without explicit gatherers it serves the default registry, which the service
// counters register into through promauto.
type PrometheusController struct {
	path     string
	gatherer prometheus.Gatherer
}

func NewPrometheusController(path string, gatherers ...prometheus.Gatherer) application.Controller {
	if path == "" {
		path = DefaultPath
	}
	var g prometheus.Gatherer = prometheus.DefaultGatherer
	if len(gatherers) > 0 {
		g = prometheus.Gatherers(gatherers)
	}
	return &PrometheusController{path: path, gatherer: g}
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	h := promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
	r.Handle(c.path, h).Methods(http.MethodGet, http.MethodHead)
}
