// Package benchmark - Functionality for running benchmarks.
package benchmark

import (
	"runtime"
	"time"

	"github.com/nvr-ai/go-detect/inference"
)

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario          Scenario                      `json:"scenario"`
	Timestamp         time.Time                     `json:"timestamp"`
	Images            int                           `json:"images"`
	TotalDuration     time.Duration                 `json:"total_duration"`
	InferenceDuration time.Duration                 `json:"inference_duration"`
	FramesPerSecond   float64                       `json:"frames_per_second"`
	Engine            inference.StatsSnapshot       `json:"engine"`
	MemoryStats       MemoryMetrics                 `json:"memory_stats"`
	NumCPU            int                           `json:"num_cpu"`
	DetectionCount    int                           `json:"detection_count"`
	ErrorRate         float64                       `json:"error_rate"`
	Failures          map[inference.FaultKind]int64 `json:"failures,omitempty"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// memoryDelta reports end-of-run usage with allocation and GC counts
// relative to start.
func memoryDelta(start, end runtime.MemStats) MemoryMetrics {
	return MemoryMetrics{
		AllocBytes:      end.Alloc,
		TotalAllocBytes: end.TotalAlloc - start.TotalAlloc,
		SysBytes:        end.Sys,
		NumGC:           end.NumGC - start.NumGC,
		HeapAllocBytes:  end.HeapAlloc,
		HeapSysBytes:    end.HeapSys,
	}
}
