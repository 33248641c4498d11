package state

import "github.com/prometheus/client_golang/prometheus"

// PrometheusHandler exports transition counts as Prometheus metrics.
type PrometheusHandler struct {
	transitions *prometheus.CounterVec
	closed      *prometheus.CounterVec
}

// NewPrometheusHandler creates a handler registered against reg.
// Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewPrometheusHandler(reg prometheus.Registerer) (*PrometheusHandler, error) {
	h := &PrometheusHandler{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowstate",
			Name:      "transitions_total",
			Help:      "Run-state transitions, by workflow and resulting state.",
		}, []string{"workflow", "state"}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowstate",
			Name:      "closed_total",
			Help:      "Instances reaching a terminal state, by workflow and state.",
		}, []string{"workflow", "state"}),
	}
	for _, c := range []prometheus.Collector{h.transitions, h.closed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

var _ OutputHandler = (*PrometheusHandler)(nil)

func (h *PrometheusHandler) TransitionInto(r RunState) {
	wf := string(r.Instance.WorkflowID)
	s := string(r.State)
	h.transitions.WithLabelValues(wf, s).Inc()
	if r.State.Terminal() {
		h.closed.WithLabelValues(wf, s).Inc()
	}
}
