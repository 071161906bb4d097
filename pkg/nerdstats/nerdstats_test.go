package nerdstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_PopulatesRuntimeFields(t *testing.T) {
	start := time.Now().Add(-time.Second)
	stats := Snapshot(start)

	assert.Greater(t, stats.NumCPU, 0)
	assert.Greater(t, stats.GOMAXPROCS, 0)
	assert.NotEmpty(t, stats.GoVersion)
	assert.GreaterOrEqual(t, stats.Uptime, time.Second)
	assert.GreaterOrEqual(t, stats.NumGoroutines, 1)
}

func TestGetMemoryPressure(t *testing.T) {
	tests := []struct {
		name     string
		stats    *NerdStats
		expected string
	}{
		{"high usage and churn", &NerdStats{HeapInuse: 95, HeapSys: 100, Mallocs: 160, Frees: 100}, "HIGH"},
		{"medium via ratio", &NerdStats{HeapInuse: 80, HeapSys: 100, Mallocs: 100, Frees: 100}, "MEDIUM"},
		{"low usage", &NerdStats{HeapInuse: 10, HeapSys: 100, Mallocs: 100, Frees: 100}, "LOW"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.stats.GetMemoryPressure())
		})
	}
}

func TestGetGoroutineHealthStatus(t *testing.T) {
	tests := []struct {
		count    int
		expected string
	}{
		{10, "HEALTHY"},
		{150, "NORMAL"},
		{600, "ELEVATED"},
		{1500, "CONCERNING"},
	}
	for _, tt := range tests {
		stats := &NerdStats{NumGoroutines: tt.count}
		assert.Equal(t, tt.expected, stats.GetGoroutineHealthStatus())
	}
}

func TestGetBuildInfoSummary_NilBuildInfoReturnsEmpty(t *testing.T) {
	stats := &NerdStats{}
	summary := stats.GetBuildInfoSummary()
	assert.Empty(t, summary)
}

func TestCalculateAverageGCPause(t *testing.T) {
	assert.Equal(t, "N/A", CalculateAverageGCPause(&NerdStats{NumGC: 0}))

	stats := &NerdStats{NumGC: 2, TotalGCTime: 4 * time.Second}
	assert.Equal(t, "2s", CalculateAverageGCPause(stats))
}
