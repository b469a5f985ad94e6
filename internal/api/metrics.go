package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/flashlight-core/internal/infrastructure/config"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Runtime       RuntimeMetrics    `json:"runtime"`
	Upstream      UpstreamMetrics   `json:"upstream"`
	Broadcast     BroadcastMetrics  `json:"broadcast"`
	State         StateMetrics      `json:"state"`
	Integrations  IntegrationStatus `json:"integrations"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// UpstreamMetrics contains command reader statistics.
type UpstreamMetrics struct {
	State           string `json:"state"`
	Connected       bool   `json:"connected"`
	CommandsRx      uint64 `json:"commands_rx"`
	MalformedTotal  uint64 `json:"malformed_total"`
	ReconnectsTotal uint64 `json:"reconnects_total"`
	LastActivity    string `json:"last_activity,omitempty"`
	TerminalError   string `json:"terminal_error,omitempty"`
}

// BroadcastMetrics contains fan-out statistics.
type BroadcastMetrics struct {
	Mode          string `json:"mode"`
	Sinks         int    `json:"sinks"`
	Observers     int    `json:"observers"`
	Notifications uint64 `json:"notifications"`
	Delivered     uint64 `json:"delivered"`
	Failed        uint64 `json:"failed"`
}

// StateMetrics mirrors the current device state.
type StateMetrics struct {
	IsOn  bool   `json:"is_turned_on"`
	Color string `json:"color"`
}

// IntegrationStatus reports optional outbound integrations.
type IntegrationStatus struct {
	MQTT     *bool `json:"mqtt,omitempty"`
	InfluxDB *bool `json:"influxdb,omitempty"`
}

// bytesPerMB converts byte counts for the runtime section.
const bytesPerMB = 1024 * 1024

// handleMetrics returns reader counters, observer count and runtime stats.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	up := s.upstream.Stats()
	bc := s.broadcaster.Stats()
	snap := s.state.Snapshot()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(memStats.TotalAlloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		Upstream: UpstreamMetrics{
			State:           up.State.String(),
			Connected:       up.Connected,
			CommandsRx:      up.CommandsRx,
			MalformedTotal:  up.MalformedTotal,
			ReconnectsTotal: up.ReconnectsTotal,
		},
		Broadcast: BroadcastMetrics{
			Mode:          s.broadcastMode(),
			Sinks:         bc.Sinks,
			Observers:     bc.Observers,
			Notifications: bc.Notifications,
			Delivered:     bc.Delivered,
			Failed:        bc.Failed,
		},
		State: StateMetrics{
			IsOn:  snap.IsOn,
			Color: snap.HexColor(),
		},
	}

	if !up.LastActivity.IsZero() {
		metrics.Upstream.LastActivity = up.LastActivity.UTC().Format(time.RFC3339)
	}
	if up.TerminalErr != nil {
		metrics.Upstream.TerminalError = up.TerminalErr.Error()
	}
	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		metrics.Integrations.MQTT = &connected
	}
	if s.telemetry != nil {
		connected := s.telemetry.IsConnected()
		metrics.Integrations.InfluxDB = &connected
	}

	writeJSON(w, http.StatusOK, metrics)
}

// broadcastMode reports the configured fan-out mode.
func (s *Server) broadcastMode() string {
	if s.bcastCfg.Mode == "" {
		return config.BroadcastModeBlocking
	}
	return s.bcastCfg.Mode
}
