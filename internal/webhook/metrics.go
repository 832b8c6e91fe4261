package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/pushcord/internal/logfields"
)

const (
	metricNamespace = "pushcord"
	metricSubsystem = "webhook"
)

const requestsMetricName = "requests_total"

const (
	eventTypeLabel = "event_type"
	outcomeLabel   = "outcome"
)

// outcome label values that are not a classification Outcome
const (
	outcomeLabelInvalidRequestVal = "invalid_request"
	outcomeLabelProcessedVal      = "processed"
	outcomeLabelFailedVal         = "failed"
)

const eventTypeLabelOtherVal = "other"

type metricCollector struct {
	logger   *zap.Logger
	requests *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		requests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Subsystem: metricSubsystem,
				Name:      requestsMetricName,
				Help:      "count of received github webhook requests",
			},
			[]string{eventTypeLabel, outcomeLabel},
		),
	}
}

// eventTypeLabelVal maps event types to a bounded set of label values, the
// event type is a client provided header.
func eventTypeLabelVal(eventType string) string {
	switch eventType {
	case EventTypePush, EventTypeIssues, "ping":
		return eventType
	default:
		return eventTypeLabelOtherVal
	}
}

func (m *metricCollector) RequestsInc(eventType, outcome string) {
	cnt, err := m.requests.GetMetricWith(prometheus.Labels{
		eventTypeLabel: eventTypeLabelVal(eventType),
		outcomeLabel:   outcome,
	})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", requestsMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}
