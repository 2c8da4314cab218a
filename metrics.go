package mmkv

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics collects registry and instance counters. A nil *metrics is a no-op.
type metrics struct {
	operations    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	instances     prometheus.Gauge
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	ret := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mmkv",
			Name:      "operations_total",
			Help:      "Instance operations by instance id, operation and result.",
		}, []string{"id", "op", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mmkv",
			Name:      "notifications_total",
			Help:      "Listener callbacks invoked by instance id.",
		}, []string{"id"}),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mmkv",
			Name:      "instances",
			Help:      "Live instances held by the registry.",
		}),
	}
	var err error
	if ret.operations, err = register(registerer, ret.operations); err != nil {
		return nil, err
	}
	if ret.notifications, err = register(registerer, ret.notifications); err != nil {
		return nil, err
	}
	if ret.instances, err = register(registerer, ret.instances); err != nil {
		return nil, err
	}
	return ret, nil
}

// register registers c, reusing an identical collector registered earlier.
func register[T prometheus.Collector](registerer prometheus.Registerer, c T) (T, error) {
	err := registerer.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *metrics) op(id, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(id, op, result).Inc()
}

func (m *metrics) notified(id string, calls int) {
	if m == nil || calls == 0 {
		return
	}
	m.notifications.WithLabelValues(id).Add(float64(calls))
}

func (m *metrics) setInstances(n int) {
	if m == nil {
		return
	}
	m.instances.Set(float64(n))
}
