package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBytes(t *testing.T) {
	assert.Equal(t, "512 B", Bytes(512))
	assert.Equal(t, "1.00 KB", Bytes(1024))
	assert.Equal(t, "1.50 KB", Bytes(1536))
	assert.Equal(t, "1.00 MB", Bytes(1024*1024))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "500ms", Duration(500*time.Millisecond))
	assert.Equal(t, "5s", Duration(5*time.Second))
	assert.Equal(t, "1m5s", Duration(65*time.Second))
	assert.Equal(t, "1h1m5s", Duration(time.Hour+65*time.Second))
}

func TestEndpointsUp(t *testing.T) {
	assert.Equal(t, "2/3", EndpointsUp(2, 3))
	assert.Equal(t, "12/15", EndpointsUp(12, 15))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, "0%", Percentage(0))
	assert.Equal(t, "100%", Percentage(100))
	assert.Equal(t, "33.3%", Percentage(33.3))
}

func TestLatency(t *testing.T) {
	assert.Equal(t, "0ms", Latency(0))
	assert.Equal(t, "5ms", Latency(5))
	assert.Equal(t, "250ms", Latency(250))
	assert.Equal(t, "1.5s", Latency(1500))
}

func TestTimeAgo(t *testing.T) {
	assert.Equal(t, "never", TimeAgo(time.Time{}))
	assert.Equal(t, "5s ago", TimeAgo(time.Now().Add(-5*time.Second)))
}

func TestTimeUntil(t *testing.T) {
	assert.Equal(t, "unknown", TimeUntil(time.Time{}))
	assert.Equal(t, "now", TimeUntil(time.Now().Add(-time.Second)))
	assert.Equal(t, "in 5s", TimeUntil(time.Now().Add(5*time.Second)))
}

func TestTimeDuration(t *testing.T) {
	assert.Equal(t, "5s", TimeDuration(5*time.Second))
	assert.Equal(t, "2m", TimeDuration(2*time.Minute))
	assert.Equal(t, "3h", TimeDuration(3*time.Hour))
	assert.Equal(t, "2d", TimeDuration(48*time.Hour))
}
