package trainer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors updated by the trainer.
type Metrics struct {
	Epochs          *prometheus.CounterVec
	EpochLoss       *prometheus.GaugeVec
	EpochDuration   *prometheus.HistogramVec
	ValidationScore *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Epochs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openne",
			Name:      "epochs_total",
			Help:      "Completed training epochs.",
		}, []string{"model"}),
		EpochLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "openne",
			Name:      "epoch_loss",
			Help:      "Cumulative loss of the last epoch.",
		}, []string{"model"}),
		EpochDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "openne",
			Name:      "epoch_duration_seconds",
			Help:      "Wall time per epoch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"model"}),
		ValidationScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "openne",
			Name:      "validation_score",
			Help:      "Validation score after the last epoch.",
		}, []string{"model"}),
	}
	if reg != nil {
		reg.MustRegister(m.Epochs, m.EpochLoss, m.EpochDuration, m.ValidationScore)
	}
	return m
}
