// Package metrics exposes service lifecycle, system status and status
// server metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ARTM2000/winvault"
	"github.com/ARTM2000/winvault/sysinfo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "winvault"

// Metrics holds every collector on its own registry.
type Metrics struct {
	reg *prometheus.Registry

	serviceStarts        *prometheus.CounterVec
	serviceStartDuration *prometheus.HistogramVec
	serviceStops         *prometheus.CounterVec
	serviceStopDuration  *prometheus.HistogramVec

	cpuPercent      prometheus.Gauge
	memUsedPercent  prometheus.Gauge
	memAvailable    prometheus.Gauge
	diskFree        *prometheus.GaugeVec
	diskUsedPercent *prometheus.GaugeVec
	netSent         prometheus.Gauge
	netRecv         prometheus.Gauge
	hostUptime      prometheus.Gauge
	lastSample      prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New returns metrics registered on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{reg: reg}

	m.serviceStarts = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "service_starts_total",
		Help:      "Service initializations by outcome.",
	}, []string{"service", "result"})
	m.serviceStartDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "service_start_duration_seconds",
		Help:      "Time spent in service initialization.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service"})
	m.serviceStops = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "service_stops_total",
		Help:      "Service shutdowns by outcome.",
	}, []string{"service", "result"})
	m.serviceStopDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "service_stop_duration_seconds",
		Help:      "Time spent in service shutdown.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service"})

	m.cpuPercent = f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "cpu_percent", Help: "CPU usage in percent."})
	m.memUsedPercent = f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "memory_used_percent", Help: "Memory usage in percent."})
	m.memAvailable = f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "memory_available_bytes", Help: "Available memory."})
	m.diskFree = f.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "disk_free_bytes", Help: "Free space on the sampled volume."}, []string{"path"})
	m.diskUsedPercent = f.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: "disk_used_percent", Help: "Used space on the sampled volume in percent."}, []string{"path"})
	m.netSent = f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "network_sent_bytes", Help: "Bytes sent on all interfaces since boot."})
	m.netRecv = f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "network_received_bytes", Help: "Bytes received on all interfaces since boot."})
	m.hostUptime = f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "host_uptime_seconds", Help: "Host uptime."})
	m.lastSample = f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "last_sample_timestamp_seconds", Help: "Unix time of the latest system sample."})

	m.httpRequests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Status server requests.",
	}, []string{"method", "route", "status"})
	m.httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Status server request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ServiceStarted implements [winvault.Observer].
func (m *Metrics) ServiceStarted(name string, took time.Duration, err error) {
	m.serviceStarts.WithLabelValues(name, result(err)).Inc()
	m.serviceStartDuration.WithLabelValues(name).Observe(took.Seconds())
}

// ServiceStopped implements [winvault.Observer].
func (m *Metrics) ServiceStopped(name string, took time.Duration, err error) {
	m.serviceStops.WithLabelValues(name, result(err)).Inc()
	m.serviceStopDuration.WithLabelValues(name).Observe(took.Seconds())
}

// Observe implements [sysinfo.Sink].
func (m *Metrics) Observe(s sysinfo.Snapshot) {
	m.cpuPercent.Set(s.CPUPercent)
	m.memUsedPercent.Set(s.Memory.UsedPercent)
	m.memAvailable.Set(float64(s.Memory.Available))
	if s.Disk.Path != "" {
		m.diskFree.WithLabelValues(s.Disk.Path).Set(float64(s.Disk.Free))
		m.diskUsedPercent.WithLabelValues(s.Disk.Path).Set(s.Disk.UsedPercent)
	}
	m.netSent.Set(float64(s.Network.BytesSent))
	m.netRecv.Set(float64(s.Network.BytesRecv))
	m.hostUptime.Set(s.Host.Uptime.Seconds())
	m.lastSample.Set(float64(s.TakenAt.Unix()))
}

// ObserveRequest records one status server request.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

var (
	_ winvault.Observer = (*Metrics)(nil)
	_ sysinfo.Sink      = (*Metrics)(nil)
)

// Module registers m as the system status sink.
func Module(m *Metrics) winvault.Module {
	return winvault.NewModule("metrics", func(c winvault.Container) error {
		return c.Supply(m, winvault.As[sysinfo.Sink]())
	})
}
