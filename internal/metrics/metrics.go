package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// pollerCounters tracks one polling refresher
type pollerCounters struct {
	fetches      int64
	errors       int64
	staleDropped int64
	lastDuration time.Duration
}

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Polling metrics
	pollers map[string]*pollerCounters

	// Preference metrics
	PreferenceWritesTotal int64
	PreferenceErrorsTotal int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Live feed metrics
	SnapshotsBroadcastTotal int64
	BroadcastErrorsTotal    int64

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // route -> status -> count

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			pollers:           make(map[string]*pollerCounters),
			httpRequestsTotal: make(map[string]map[int]int64),
			startTime:         time.Now(),
		}
	})
	return instance
}

func (m *Metrics) poller(name string) *pollerCounters {
	p, ok := m.pollers[name]
	if !ok {
		p = &pollerCounters{}
		m.pollers[name] = p
	}
	return p
}

// RecordPoll records a completed fetch of a polling refresher
func (m *Metrics) RecordPoll(name string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.poller(name)
	p.fetches++
	p.lastDuration = duration
	if err != nil {
		p.errors++
	}
}

// RecordStaleResponse records a response dropped because a newer request was dispatched
func (m *Metrics) RecordStaleResponse(name string) {
	m.mu.Lock()
	m.poller(name).staleDropped++
	m.mu.Unlock()
}

// PollStats returns fetch, error and stale counts for a refresher
func (m *Metrics) PollStats(name string) (fetches, errors, stale int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pollers[name]
	if !ok {
		return 0, 0, 0
	}
	return p.fetches, p.errors, p.staleDropped
}

// RecordPreferenceWrite increments the preference write counter
func (m *Metrics) RecordPreferenceWrite() {
	m.mu.Lock()
	m.PreferenceWritesTotal++
	m.mu.Unlock()
}

// RecordPreferenceError increments the preference error counter
func (m *Metrics) RecordPreferenceError() {
	m.mu.Lock()
	m.PreferenceErrorsTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordSnapshotBroadcast increments the live snapshot counter
func (m *Metrics) RecordSnapshotBroadcast() {
	m.mu.Lock()
	m.SnapshotsBroadcastTotal++
	m.mu.Unlock()
}

// RecordBroadcastError increments the live feed error counter
func (m *Metrics) RecordBroadcastError() {
	m.mu.Lock()
	m.BroadcastErrorsTotal++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(route string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[route] == nil {
		m.httpRequestsTotal[route] = make(map[int]int64)
	}
	m.httpRequestsTotal[route][statusCode]++
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		write("qmconsole_uptime_seconds", time.Since(m.startTime).Seconds())

		names := make([]string, 0, len(m.pollers))
		for name := range m.pollers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := m.pollers[name]
			write("qmconsole_poll_fetches_total", p.fetches, "poller", name)
			write("qmconsole_poll_errors_total", p.errors, "poller", name)
			write("qmconsole_poll_stale_dropped_total", p.staleDropped, "poller", name)
			write("qmconsole_poll_duration_seconds", p.lastDuration.Seconds(), "poller", name)
		}

		write("qmconsole_preference_writes_total", m.PreferenceWritesTotal)
		write("qmconsole_preference_errors_total", m.PreferenceErrorsTotal)

		write("qmconsole_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("qmconsole_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("qmconsole_websocket_active_connections", m.activeConnections)
		write("qmconsole_websocket_messages_total", m.WebSocketMessagesTotal)
		write("qmconsole_websocket_errors_total", m.WebSocketErrorsTotal)

		write("qmconsole_snapshots_broadcast_total", m.SnapshotsBroadcastTotal)
		write("qmconsole_broadcast_errors_total", m.BroadcastErrorsTotal)

		for route, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("qmconsole_http_requests_total", count, "route", route, "status", strconv.Itoa(status))
			}
		}
	}
}
