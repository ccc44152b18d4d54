package blockchain

import (
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

type EndpointMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64
}

func (m *EndpointMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())
}

func (m *EndpointMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *EndpointMetrics) AvgLatencyMs() int64 {
	total := m.SuccessfulReqs.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *EndpointMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

type EndpointState int32

const (
	StateHealthy EndpointState = iota
	StateCircuitOpen
)

// Endpoint is one base URL of the chain provider, e.g. the primary API or a fallback mirror.
type Endpoint struct {
	name             string
	baseURL          string
	client           *fasthttp.Client
	metrics          *EndpointMetrics
	state            atomic.Int32
	circuitOpenUntil atomic.Int64
}

func newEndpoint(name, baseURL string, client *fasthttp.Client) *Endpoint {
	e := &Endpoint{
		name:    name,
		baseURL: baseURL,
		client:  client,
		metrics: &EndpointMetrics{},
	}
	e.state.Store(int32(StateHealthy))
	return e
}

func (e *Endpoint) Name() string {
	return e.name
}

func (e *Endpoint) GetState() EndpointState {
	return EndpointState(e.state.Load())
}

func (e *Endpoint) SetState(state EndpointState) {
	e.state.Store(int32(state))
}

// IsAvailable closes an expired circuit and lets one request through.
func (e *Endpoint) IsAvailable() bool {
	if e.GetState() != StateCircuitOpen {
		return true
	}
	if time.Now().UnixNano() >= e.circuitOpenUntil.Load() {
		e.SetState(StateHealthy)
		e.metrics.ConsecutiveFails.Store(0)
		return true
	}
	return false
}

func (e *Endpoint) openCircuit(timeout time.Duration) {
	e.SetState(StateCircuitOpen)
	e.circuitOpenUntil.Store(time.Now().Add(timeout).UnixNano())
}

type EndpointStats struct {
	Name             string
	URL              string
	State            string
	TotalRequests    int64
	FailedReqs       int64
	SuccessRate      float64
	AvgLatencyMs     int64
	ConsecutiveFails int32
}

func stateString(state EndpointState) string {
	switch state {
	case StateHealthy:
		return "HEALTHY"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}
