package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "firmware_risk_scanner"

// Recorder collects pipeline metrics on its own registry
type Recorder struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	postsFetched  prometheus.Counter
	newPosts      prometheus.Counter
	issuesFound   *prometheus.CounterVec
	recoverable   *prometheus.CounterVec
	assessments   prometheus.Gauge
	lastRunUnix   prometheus.Gauge
	lastRunStatus prometheus.Gauge
}

// NewRecorder creates a recorder with Go runtime and process collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_runs_total",
			Help:      "Number of scan runs by trigger and outcome",
		}, []string{"trigger", "status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of scan runs",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		postsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_fetched_total",
			Help:      "Posts returned by the source",
		}),
		newPosts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_new_total",
			Help:      "Posts stored for the first time",
		}),
		issuesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_classified_total",
			Help:      "Issues produced by the classifier",
		}, []string{"equipment_type", "severity"}),
		recoverable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoverable_errors_total",
			Help:      "Per-item persistence failures skipped during a run",
		}, []string{"stage"}),
		assessments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_assessments_updated",
			Help:      "Risk assessments written by the last successful run",
		}),
		lastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Start time of the last scan run",
		}),
		lastRunStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last scan run succeeded, 0 otherwise",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.runs, r.runDuration, r.postsFetched, r.newPosts, r.issuesFound,
		r.recoverable, r.assessments, r.lastRunUnix, r.lastRunStatus,
	)

	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveRun records the outcome of one run
func (r *Recorder) ObserveRun(trigger string, started time.Time, duration time.Duration, success bool) {
	status := "success"
	statusValue := 1.0
	if !success {
		status = "failure"
		statusValue = 0
	}

	r.runs.WithLabelValues(trigger, status).Inc()
	r.runDuration.Observe(duration.Seconds())
	r.lastRunUnix.Set(float64(started.Unix()))
	r.lastRunStatus.Set(statusValue)
}

// AddPosts records fetched and newly stored posts
func (r *Recorder) AddPosts(fetched, inserted int) {
	r.postsFetched.Add(float64(fetched))
	r.newPosts.Add(float64(inserted))
}

// AddIssue records one classified issue
func (r *Recorder) AddIssue(equipmentType, severity string) {
	r.issuesFound.WithLabelValues(equipmentType, severity).Inc()
}

// AddRecoverable records a skipped item
func (r *Recorder) AddRecoverable(stage string) {
	r.recoverable.WithLabelValues(stage).Inc()
}

// SetAssessments records how many assessments the last aggregation wrote
func (r *Recorder) SetAssessments(n int) {
	r.assessments.Set(float64(n))
}
