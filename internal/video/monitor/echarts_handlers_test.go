package monitor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestForegroundChartHandler(t *testing.T) {
	newTestManager(t, "fg-chart-stream")
	_, mux := newTestServer(t, "fg-chart-stream")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/charts/foreground", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("chart returned %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "echarts") {
		t.Error("chart page should load echarts")
	}
	if !strings.Contains(body, "Foreground Fraction") {
		t.Error("chart page should carry the foreground series title")
	}
	if !strings.Contains(body, "Processing Time") {
		t.Error("chart page should carry the processing time chart")
	}
}

func TestForegroundChartNoMetrics(t *testing.T) {
	// Register a manager but never record metrics for it.
	newTrainedManager(t, "fg-chart-empty")

	_, mux := newTestServer(t, "fg-chart-empty")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/charts/foreground", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("empty chart returned %d, want %d", rr.Code, http.StatusNotFound)
	}
	if !strings.Contains(rr.Body.String(), "no frame metrics") {
		t.Errorf("body = %q, should explain missing metrics", rr.Body.String())
	}
}

func TestForegroundChartUnknownStream(t *testing.T) {
	_, mux := newTestServer(t, "fg-chart-missing")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/charts/foreground?stream_id=ghost", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown stream returned %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestHeatmapChartHandler(t *testing.T) {
	newTestManager(t, "hm-chart-stream")
	_, mux := newTestServer(t, "hm-chart-stream")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/charts/heatmap?block_size=4", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("heatmap chart returned %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Foreground Heatmap") {
		t.Error("heatmap page should carry its title")
	}
	if !strings.Contains(body, "block_size=4") {
		t.Error("heatmap subtitle should echo the block size")
	}
}

func TestHeatmapChartUnknownStream(t *testing.T) {
	_, mux := newTestServer(t, "hm-chart-missing")

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/charts/heatmap?stream_id=ghost", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown stream returned %d, want %d", rr.Code, http.StatusNotFound)
	}
}
