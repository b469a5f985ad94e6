package influxdb_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/flashlight-core/internal/infrastructure/config"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line protocol sent to /api/v2/write.
type fakeInflux struct {
	*httptest.Server

	mu    sync.Mutex
	lines []string
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()

	f := &fakeInflux{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
				if line != "" {
					f.lines = append(f.lines, line)
				}
			}
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

// waitForLines waits until the fake server has received n lines.
func waitForLines(t *testing.T, f *fakeInflux, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.written()) >= n
	}, 5*time.Second, 10*time.Millisecond)
	lines := f.written()
	require.Len(t, lines, n)
	return lines
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "flashlight-dev-token",
		Org:           "flashlight",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	assert.ErrorIs(t, err, influxdb.ErrDisabled)
}

func TestConnectUnreachable(t *testing.T) {
	_, err := influxdb.Connect(testConfig("http://127.0.0.1:1"))
	assert.ErrorIs(t, err, influxdb.ErrConnectionFailed)
}

func TestWriteState(t *testing.T) {
	server := newFakeInflux(t)

	client, err := influxdb.Connect(testConfig(server.URL))
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, client.IsConnected())
	assert.NoError(t, client.HealthCheck(context.Background()))

	client.WriteState(true, 0xFF69B4, "#ff69b4")
	client.Flush()

	lines := waitForLines(t, server, 1)
	assert.True(t, strings.HasPrefix(lines[0], "flashlight_state,color_hex=#ff69b4 "), lines[0])
	assert.Contains(t, lines[0], "is_on=true")
	assert.Contains(t, lines[0], "color=16738740i")
}

func TestWritePipelineStats(t *testing.T) {
	server := newFakeInflux(t)

	client, err := influxdb.Connect(testConfig(server.URL))
	require.NoError(t, err)
	defer client.Close()

	client.WritePipelineStats(influxdb.PipelineSample{
		CommandsRx:      42,
		MalformedTotal:  1,
		ReconnectsTotal: 2,
		Observers:       3,
		State:           "reading",
	})
	client.Flush()

	lines := waitForLines(t, server, 1)
	assert.True(t, strings.HasPrefix(lines[0], "flashlight_pipeline,reader_state=reading "), lines[0])
	assert.Contains(t, lines[0], "commands_rx=42u")
	assert.Contains(t, lines[0], "observers=3i")
}

func TestWriteAfterCloseIsNoop(t *testing.T) {
	server := newFakeInflux(t)

	client, err := influxdb.Connect(testConfig(server.URL))
	require.NoError(t, err)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	client.WriteState(false, 0, "#000000")
	client.Flush()

	assert.False(t, client.IsConnected())
	assert.ErrorIs(t, client.HealthCheck(context.Background()), influxdb.ErrNotConnected)
	assert.Empty(t, server.written())
}

func TestWriteErrorsReachCallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, `{"code":"invalid","message":"bucket not found"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := influxdb.Connect(testConfig(server.URL))
	require.NoError(t, err)
	defer client.Close()

	errs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	client.WriteState(true, 1, "#000001")
	client.Flush()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, influxdb.ErrWriteFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("write error was not reported")
	}
}
