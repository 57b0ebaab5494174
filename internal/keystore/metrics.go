package keystore

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	ops *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nskeys",
		Subsystem: "keystore",
		Name:      "ops_total",
		Help:      "KeyStore operations by name and result.",
	}, []string{"op", "result"})

	if reg != nil {
		if err := reg.Register(ops); err != nil {
			var are prometheus.AlreadyRegisteredError
			var existing *prometheus.CounterVec
			ok := false
			if errors.As(err, &are) {
				existing, ok = are.ExistingCollector.(*prometheus.CounterVec)
			}
			if ok {
				ops = existing
			} else {
				log.Warnf("newMetrics: failed to register collector: %v", err)
			}
		}
	}
	return &metrics{ops: ops}
}

func (m *metrics) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ops.WithLabelValues(op, result).Inc()
}
