package profiling

import (
	"net/http"
	"runtime"
	"time"

	"github.com/goccy/go-json"

	"github.com/kacperjurak/hyqcore/pkg/logging"
)

// GCStats provides garbage collection statistics.
type GCStats struct {
	NumGC         uint32    `json:"gc_runs"`
	PauseTotalMs  float64   `json:"pause_total_ms"`
	PauseRecentUs float64   `json:"pause_recent_us"`
	CPUPercent    float64   `json:"cpu_percent"`
	LastGC        time.Time `json:"last_gc"`
}

type MemoryStats struct {
	AllocMB      float64 `json:"alloc_mb"`
	TotalAllocMB float64 `json:"total_alloc_mb"`
	SysMB        float64 `json:"sys_mb"`
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	HeapObjects  uint64  `json:"heap_objects"`
	StackInUseMB float64 `json:"stack_in_use_mb"`
}

// RuntimeStats is a snapshot of the Go runtime.
type RuntimeStats struct {
	Time       time.Time   `json:"timestamp"`
	Goroutines int         `json:"goroutines"`
	GOMAXPROCS int         `json:"gomaxprocs"`
	NumCPU     int         `json:"num_cpu"`
	Version    string      `json:"version"`
	Memory     MemoryStats `json:"memory"`
	GC         GCStats     `json:"gc"`
}

func ReadRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		Time:       time.Now().UTC(),
		Goroutines: runtime.NumGoroutine(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		NumCPU:     runtime.NumCPU(),
		Version:    runtime.Version(),
		Memory: MemoryStats{
			AllocMB:      bToMb(m.Alloc),
			TotalAllocMB: bToMb(m.TotalAlloc),
			SysMB:        bToMb(m.Sys),
			HeapAllocMB:  bToMb(m.HeapAlloc),
			HeapObjects:  m.HeapObjects,
			StackInUseMB: bToMb(m.StackInuse),
		},
		GC: gcStats(&m),
	}
}

// GetGCStats returns current garbage collection statistics.
func GetGCStats() GCStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return gcStats(&m)
}

func gcStats(m *runtime.MemStats) GCStats {
	var recent time.Duration
	if m.NumGC > 0 {
		recent = time.Duration(m.PauseNs[(m.NumGC+255)%256])
	}
	var last time.Time
	if m.LastGC > 0 {
		last = time.Unix(0, int64(m.LastGC)).UTC()
	}
	return GCStats{
		NumGC:         m.NumGC,
		PauseTotalMs:  float64(m.PauseTotalNs) / 1e6,
		PauseRecentUs: float64(recent.Nanoseconds()) / 1e3,
		CPUPercent:    m.GCCPUFraction * 100,
		LastGC:        last,
	}
}

// ForceGC runs a collection and returns the statistics after it.
func ForceGC() GCStats {
	before := GetGCStats()
	runtime.GC()
	after := GetGCStats()
	logging.Debug().
		Uint32("gc_before", before.NumGC).
		Uint32("gc_after", after.NumGC).
		Float64("pause_us", after.PauseRecentUs).
		Msg("forced gc")
	return after
}

// GCHandler forces a collection and answers with the GC statistics.
func GCHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, ForceGC())
}

func RuntimeHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, ReadRuntimeStats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func bToMb(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
