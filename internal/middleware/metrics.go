package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "knowledge_base"

// AuthMetrics は認証処理のPrometheusメトリクスを保持する。nil の場合は何も記録しない。
type AuthMetrics struct {
	resolutions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

// NewAuthMetrics は reg にメトリクスを登録して AuthMetrics を生成する。
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	factory := promauto.With(reg)

	return &AuthMetrics{
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "auth",
			Name:      "resolutions_total",
			Help:      "Total number of request context resolutions by outcome",
		}, []string{"outcome"}),

		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "auth",
			Name:      "gate_rejections_total",
			Help:      "Total number of requests rejected by an authorization gate",
		}, []string{"gate", "reason"}),
	}
}

func (m *AuthMetrics) observeResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) observeRejection(gate, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(gate, reason).Inc()
}
