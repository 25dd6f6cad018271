package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus registry and the engine meters.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	SessionsActive    *prometheus.GaugeVec
	BytesWritten      *prometheus.CounterVec
	DevicesDiscovered *prometheus.GaugeVec
}

// NewMetrics creates a custom Prometheus registry with the escpos meters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "escpos_operation_duration_seconds",
		Help:    "Duration of engine operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "transport"})

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escpos_operation_total",
		Help: "Total number of engine operations by result code.",
	}, []string{"operation", "transport", "code"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "escpos_sessions_active",
		Help: "Number of open sessions.",
	}, []string{"transport"})

	bytesWritten := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escpos_bytes_written_total",
		Help: "Total bytes written to printers.",
	}, []string{"transport"})

	discovered := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "escpos_devices_discovered",
		Help: "Devices returned by the last discovery of each transport.",
	}, []string{"transport"})

	reg.MustRegister(opDuration, opTotal, active, bytesWritten, discovered)

	return &Metrics{
		Registry:          reg,
		OperationDuration: opDuration,
		OperationTotal:    opTotal,
		SessionsActive:    active,
		BytesWritten:      bytesWritten,
		DevicesDiscovered: discovered,
	}
}
