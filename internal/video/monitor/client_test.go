package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/motion.report/internal/httputil"
)

func TestClientAgainstServer(t *testing.T) {
	mgr := newTestManager(t, "client-e2e-stream")
	var persisted []string
	mgr.PersistCallback = func(reason string) error {
		persisted = append(persisted, reason)
		return nil
	}

	ws, err := NewWebServer(WebServerConfig{Address: ":0", StreamID: "client-e2e-stream"})
	if err != nil {
		t.Fatalf("NewWebServer: %v", err)
	}
	srv := httptest.NewServer(ws.server.Handler)
	defer srv.Close()

	client := NewClient(httputil.NewStandardClient(srv.Client()), srv.URL, "client-e2e-stream")

	if err := client.WaitForHealthy(2 * time.Second); err != nil {
		t.Fatalf("WaitForHealthy: %v", err)
	}

	status, err := client.FetchModelStatus()
	if err != nil {
		t.Fatalf("FetchModelStatus: %v", err)
	}
	if status["stream_id"] != "client-e2e-stream" || status["trained"] != true {
		t.Errorf("status = %v, want trained client-e2e-stream", status)
	}

	metrics, err := client.FetchMetrics(10)
	if err != nil {
		t.Fatalf("FetchMetrics: %v", err)
	}
	if len(metrics) != 1 || metrics[0].ForegroundPixels != 2 {
		t.Errorf("metrics = %+v, want one entry with 2 foreground px", metrics)
	}

	hm, err := client.FetchHeatmap(4)
	if err != nil {
		t.Fatalf("FetchHeatmap: %v", err)
	}
	if hm.MaxCount != 2 {
		t.Errorf("heatmap MaxCount = %d, want 2", hm.MaxCount)
	}

	if err := client.TriggerPersist(); err != nil {
		t.Fatalf("TriggerPersist: %v", err)
	}
	if len(persisted) != 1 || persisted[0] != "api_request" {
		t.Errorf("persist reasons = %v, want [api_request]", persisted)
	}

	if err := client.ResetModel(); err != nil {
		t.Fatalf("ResetModel: %v", err)
	}
	if mgr.Model.Trained() {
		t.Error("model should be untrained after client reset")
	}
}

func TestClientAppendsStreamID(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(200, `{"stream_id":"s1","trained":true}`)

	client := NewClient(mock, "http://monitor:8080/", "s1")
	if _, err := client.FetchModelStatus(); err != nil {
		t.Fatalf("FetchModelStatus: %v", err)
	}

	req := mock.GetRequest(0)
	if req == nil {
		t.Fatal("no request recorded")
	}
	if req.URL.Path != "/api/model/status" {
		t.Errorf("path = %q, want /api/model/status", req.URL.Path)
	}
	if got := req.URL.Query().Get("stream_id"); got != "s1" {
		t.Errorf("stream_id param = %q, want s1", got)
	}
}

func TestClientMetricsLimitParam(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(200, `{"stream_id":"s1","count":0,"metrics":[]}`)

	client := NewClient(mock, "http://monitor:8080", "s1")
	if _, err := client.FetchMetrics(5); err != nil {
		t.Fatalf("FetchMetrics: %v", err)
	}

	q := mock.GetRequest(0).URL.Query()
	if q.Get("limit") != "5" {
		t.Errorf("limit param = %q, want 5", q.Get("limit"))
	}
	if q.Get("stream_id") != "s1" {
		t.Errorf("stream_id param = %q, want s1", q.Get("stream_id"))
	}
}

func TestClientSurfacesErrorStatus(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(404, `{"error":"no background model for stream 'ghost'"}`)

	client := NewClient(mock, "http://monitor:8080", "ghost")
	_, err := client.FetchModelStatus()
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "status 404") || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error = %v, want status and body included", err)
	}
}

func TestClientPersistError(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(501, `{"error":"no persist callback configured for this stream"}`)

	client := NewClient(mock, "http://monitor:8080", "s1")
	err := client.TriggerPersist()
	if err == nil || !strings.Contains(err.Error(), "status 501") {
		t.Errorf("error = %v, want status 501 surfaced", err)
	}
}

func TestClientNilHTTPClientDefaults(t *testing.T) {
	client := NewClient(nil, "http://monitor:8080", "s1")
	if client.HTTPClient == nil {
		t.Fatal("nil http client should fall back to a standard client")
	}
	if client.BaseURL != "http://monitor:8080" {
		t.Errorf("BaseURL = %q", client.BaseURL)
	}
}
