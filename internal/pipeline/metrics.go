package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/logfields"
)

const metricNamespace = "pushcord"

const (
	messagesDeliveredMetricName  = "messages_delivered_total"
	enrichmentFailuresMetricName = "enrichment_failures_total"
)

const resultLabel = "result"

type resultLabelVal string

const (
	resultLabelSuccessVal resultLabelVal = "success"
	resultLabelFailureVal resultLabelVal = "failure"
)

type metricCollector struct {
	logger             *zap.Logger
	messagesDelivered  *prometheus.CounterVec
	enrichmentFailures prometheus.Counter
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		messagesDelivered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      messagesDeliveredMetricName,
				Help:      "count of messages sent to discord",
			},
			[]string{resultLabel},
		),
		enrichmentFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      enrichmentFailuresMetricName,
				Help:      "count of failed commit detail retrievals",
			},
		),
	}
}

func (m *metricCollector) MessagesDeliveredInc(result resultLabelVal) {
	cnt, err := m.messagesDelivered.GetMetricWith(prometheus.Labels{resultLabel: string(result)})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", messagesDeliveredMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) EnrichmentFailuresInc() {
	m.enrichmentFailures.Inc()
}
