package prom

import (
	"fmt"
	"sync"

	xhttp "github.com/nimasrn/btc-invoice-gateway/pkg/http"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemWebhook  = "webhook"
	SystemProvider = "provider"
	SystemInvoice  = "invoice"
	SystemHook     = "hook"
)
const (
	MetricWebhookOutcomeTotal      = "outcome_total"
	MetricWebhookIngestDuration    = "ingest_duration_seconds"
	MetricProviderRequestDuration  = "request_duration_seconds"
	MetricProviderRequestFailures  = "request_failures_total"
	MetricInvoiceCreatedTotal      = "created_total"
	MetricInvoiceSettledTotal      = "settled_total"
	MetricHookRegistrationOutcomes = "registration_total"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogramVec = "histogramVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounters = make(map[string]prometheus.Counter)
var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	// Webhook ingestion
	hasError(createCounterVec(SystemWebhook, MetricWebhookOutcomeTotal, []string{"status"}))
	hasError(createHistogramVec(SystemWebhook, MetricWebhookIngestDuration, []string{"status"}))

	// Chain provider
	hasError(createHistogramVec(SystemProvider, MetricProviderRequestDuration, []string{"provider", "operation"}))
	hasError(createCounterVec(SystemProvider, MetricProviderRequestFailures, []string{"provider", "operation"}))

	// Invoices
	hasError(createCounter(SystemInvoice, MetricInvoiceCreatedTotal))
	hasError(createCounter(SystemInvoice, MetricInvoiceSettledTotal))

	// Address hooks
	hasError(createCounterVec(SystemHook, MetricHookRegistrationOutcomes, []string{"result"}))

	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labelsValues ...string) error {
	switch metricType {
	case TypeCounter:
		return createCounter(metricSubsystem, metricName)
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labelsValues)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labelsValues)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounter(subsystem, name string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounters[subsystem+name] = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	})
	return prometheus.Register(MetricCollectionCounters[subsystem+name])
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	}, labels)
	return prometheus.Register(MetricCollectionHistogramVec[subsystem+name])
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func AddWebhookOutcome(status string, seconds float64) {
	IncCounterVec(SystemWebhook, MetricWebhookOutcomeTotal, status)
	AddHistogramVec(SystemWebhook, MetricWebhookIngestDuration, seconds, status)
}

func AddProviderRequest(provider, operation string, seconds float64, failed bool) {
	AddHistogramVec(SystemProvider, MetricProviderRequestDuration, seconds, provider, operation)
	if failed {
		IncCounterVec(SystemProvider, MetricProviderRequestFailures, provider, operation)
	}
}

func IncInvoiceCreated() {
	IncCounter(SystemInvoice, MetricInvoiceCreatedTotal)
}

func IncInvoiceSettled() {
	IncCounter(SystemInvoice, MetricInvoiceSettledTotal)
}

func IncHookRegistration(result string) {
	IncCounterVec(SystemHook, MetricHookRegistrationOutcomes, result)
}
