package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// stepsTotal counts reactor steps.
	stepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reactor_steps_total",
		Help: "Total reactor steps",
	})

	// stepDuration tracks wall time per reactor step.
	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reactor_step_duration_seconds",
		Help:    "Reactor step duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
	})

	// eventsTotal counts appended timeline events by kind and status.
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reactor_events_total",
		Help: "Timeline events appended by event and status",
	}, []string{"event", "status"})

	// eventErrorsTotal counts failed appends.
	eventErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reactor_event_errors_total",
		Help: "Timeline appends that failed by event",
	}, []string{"event"})

	// hardwareCallsTotal counts hardware calls by outcome.
	hardwareCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reactor_hardware_calls_total",
		Help: "Hardware-in-the-loop calls by result",
	}, []string{"result"})

	// budgetExhaustedTotal counts budgets that ran out.
	budgetExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reactor_timeline_budget_exhausted_total",
		Help: "Timeline budgets that reached their cap",
	})
)

// Hardware call results.
const (
	HardwareOK          = "ok"
	HardwareTimeout     = "timeout"
	HardwareError       = "error"
	HardwareUnavailable = "unavailable"
)

// ObserveStep records one reactor step.
func ObserveStep(d time.Duration) {
	stepsTotal.Inc()
	stepDuration.Observe(d.Seconds())
}

// ObserveEvent records the outcome of an append.
func ObserveEvent(e Event, err error) {
	if err != nil {
		eventErrorsTotal.WithLabelValues(string(e.Event)).Inc()
		return
	}
	eventsTotal.WithLabelValues(string(e.Event), string(e.Status)).Inc()
}

// ObserveHardware records a hardware call result.
func ObserveHardware(result string) {
	hardwareCallsTotal.WithLabelValues(result).Inc()
}
