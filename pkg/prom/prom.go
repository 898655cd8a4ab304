package prom

import (
	"errors"
	"strconv"
	"sync"

	xhttp "github.com/nimasrn/rent-reminders/pkg/http"
	"github.com/nimasrn/rent-reminders/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemReminders = "reminder"
	SystemDispatch  = "dispatch"
)

const (
	MetricRemindersGenerated   = "generated_total"
	MetricReminderTransitions  = "transitions_total"
	MetricRemindersSwept       = "swept_total"
	MetricDispatchDuration     = "duration_seconds"
	MetricDispatchResults      = "results_total"
	MetricDispatchInFlight     = "in_flight"
	MetricSchedulerJobDuration = "job_duration_seconds"
)

// Every recording helper is a no-op until Create has run, so libraries and
// tests can call them unconditionally.
var (
	mu      sync.RWMutex
	enabled bool

	counters      = map[string]prometheus.Counter{}
	counterVecs   = map[string]*prometheus.CounterVec{}
	gaugeVecs     = map[string]*prometheus.GaugeVec{}
	histogramVecs = map[string]*prometheus.HistogramVec{}
)

type collectorSet struct {
	namespace string
	labels    prometheus.Labels
	reg       prometheus.Registerer
}

// Create registers the reminder metrics on the default registry with env
// and instance as constant labels. Calling it again is harmless.
func Create(host string, env string, namespace string) error {
	return createOn(prometheus.DefaultRegisterer, host, env, namespace)
}

func createOn(reg prometheus.Registerer, host, env, namespace string) error {
	mu.Lock()
	defer mu.Unlock()

	cs := collectorSet{
		namespace: namespace,
		labels:    prometheus.Labels{"env": env, "instance": host},
		reg:       reg,
	}
	errs := []error{
		cs.counterVec(SystemReminders, MetricRemindersGenerated, "Generation outcomes per reminder pair.", "result"),
		cs.counterVec(SystemReminders, MetricReminderTransitions, "Lifecycle transitions requested.", "status", "applied"),
		cs.counter(SystemReminders, MetricRemindersSwept, "Old reminders deleted by the retention sweep."),
		cs.histogramVec(SystemReminders, MetricSchedulerJobDuration, "Scheduled job run time.", "job"),
		cs.histogramVec(SystemDispatch, MetricDispatchDuration, "Time to hand one reminder to the provider.", "reminder_type"),
		cs.counterVec(SystemDispatch, MetricDispatchResults, "Dispatch outcomes.", "result"),
		cs.gaugeVec(SystemDispatch, MetricDispatchInFlight, "Reminders being dispatched right now.", "queue"),
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	enabled = true
	return nil
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (cs collectorSet) counter(subsystem, name, help string) error {
	c, err := register(cs.reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cs.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: cs.labels,
	}))
	counters[subsystem+name] = c
	return err
}

func (cs collectorSet) counterVec(subsystem, name, help string, labels ...string) error {
	c, err := register(cs.reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cs.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: cs.labels,
	}, labels))
	counterVecs[subsystem+name] = c
	return err
}

func (cs collectorSet) gaugeVec(subsystem, name, help string, labels ...string) error {
	c, err := register(cs.reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cs.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: cs.labels,
	}, labels))
	gaugeVecs[subsystem+name] = c
	return err
}

func (cs collectorSet) histogramVec(subsystem, name, help string, labels ...string) error {
	c, err := register(cs.reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cs.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: cs.labels,
		Buckets: prometheus.DefBuckets,
	}, labels))
	histogramVecs[subsystem+name] = c
	return err
}

// ListenAndServer exposes the default registry on addr at url. It blocks.
func ListenAndServer(addr string, url string) {
	s := xhttp.CreateServer(xhttp.WithName("metrics"))
	s.GET(url, fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	if err := s.ListenAndServe(addr); err != nil {
		logger.Error("metrics server stopped", "addr", addr, "error", err)
	}
}

func addCounter(subsystem, name string, n float64) {
	mu.RLock()
	defer mu.RUnlock()
	if c, ok := counters[subsystem+name]; ok && enabled {
		c.Add(n)
	}
}

func addCounterVec(subsystem, name string, n float64, labelValues ...string) {
	mu.RLock()
	defer mu.RUnlock()
	if c, ok := counterVecs[subsystem+name]; ok && enabled {
		c.WithLabelValues(labelValues...).Add(n)
	}
}

func addGaugeVec(subsystem, name string, n float64, labelValues ...string) {
	mu.RLock()
	defer mu.RUnlock()
	if g, ok := gaugeVecs[subsystem+name]; ok && enabled {
		g.WithLabelValues(labelValues...).Add(n)
	}
}

func observe(subsystem, name string, v float64, labelValues ...string) {
	mu.RLock()
	defer mu.RUnlock()
	if h, ok := histogramVecs[subsystem+name]; ok && enabled {
		h.WithLabelValues(labelValues...).Observe(v)
	}
}

// AddGenerationResult records the outcome counts of one generation run.
func AddGenerationResult(generated, skipped, errors int) {
	addCounterVec(SystemReminders, MetricRemindersGenerated, float64(generated), "generated")
	addCounterVec(SystemReminders, MetricRemindersGenerated, float64(skipped), "skipped")
	addCounterVec(SystemReminders, MetricRemindersGenerated, float64(errors), "error")
}

func IncTransition(status string, applied bool) {
	addCounterVec(SystemReminders, MetricReminderTransitions, 1, status, strconv.FormatBool(applied))
}

func AddSwept(n int64) {
	addCounter(SystemReminders, MetricRemindersSwept, float64(n))
}

func AddJobDuration(job string, seconds float64) {
	observe(SystemReminders, MetricSchedulerJobDuration, seconds, job)
}

func AddDispatchDuration(reminderType string, seconds float64) {
	observe(SystemDispatch, MetricDispatchDuration, seconds, reminderType)
}

func IncDispatchResult(result string) {
	addCounterVec(SystemDispatch, MetricDispatchResults, 1, result)
}

func AddDispatchInFlight(queue string, delta float64) {
	addGaugeVec(SystemDispatch, MetricDispatchInFlight, delta, queue)
}
