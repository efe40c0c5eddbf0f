package monitor

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/version"
	"github.com/banshee-data/motion.report/internal/video"
	sqlite "github.com/banshee-data/motion.report/internal/video/storage/sqlite"
)

//go:embed status.html
var statusHTML embed.FS

// WebServer handles the HTTP interface for monitoring segmentation runs.
// It provides endpoints for health checks, model status, recent per-frame
// metrics, foreground heatmaps and manual snapshot persistence.
type WebServer struct {
	address   string
	streamID  string
	db        *sqlite.DB
	server    *http.Server
	startTime time.Time
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	// Address is the listen address, e.g. ":8080".
	Address string
	// StreamID is the default stream for handlers when the request does not
	// carry a stream_id query parameter.
	StreamID string
	// DB enables the run/snapshot listing endpoints and the /debug/ admin
	// routes when non-nil.
	DB *sqlite.DB
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	ws := &WebServer{
		address:   config.Address,
		streamID:  config.StreamID,
		db:        config.DB,
		startTime: time.Now(),
	}

	mux := ws.setupRoutes()
	if ws.db != nil {
		if err := ws.db.AttachAdminRoutes(mux); err != nil {
			return nil, fmt.Errorf("attach admin routes: %w", err)
		}
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: mux,
	}

	return ws, nil
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (ws *WebServer) Start(ctx context.Context) error {
	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	// Create a shutdown context with a shorter timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/model/status", ws.handleModelStatus)
	mux.HandleFunc("/api/model/metrics", ws.handleModelMetrics)
	mux.HandleFunc("/api/model/heatmap", ws.handleModelHeatmap)
	mux.HandleFunc("/api/model/heatmap.png", ws.handleModelHeatmapPNG)
	mux.HandleFunc("/api/model/persist", ws.handleModelPersist)
	mux.HandleFunc("/api/model/reset", ws.handleModelReset)
	mux.HandleFunc("/api/runs", ws.handleRuns)
	mux.HandleFunc("/api/snapshots", ws.handleSnapshots)
	mux.HandleFunc("/charts/foreground", ws.handleForegroundChart)
	mux.HandleFunc("/charts/heatmap", ws.handleHeatmapChart)

	return mux
}

// requestStreamID resolves the stream for a request, falling back to the
// configured default.
func (ws *WebServer) requestStreamID(r *http.Request) string {
	if id := r.URL.Query().Get("stream_id"); id != "" {
		return id
	}
	return ws.streamID
}

// requestLimit parses an optional positive limit query parameter with bounds.
func requestLimit(r *http.Request, def, max int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= max {
			limit = v
		}
	}
	return limit
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "motion", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

// handleStatus handles the main status page endpoint
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")

	streamID := ws.requestStreamID(r)
	mgr := video.GetManager(streamID)

	// Load and parse the HTML template from embedded filesystem
	tmpl, err := template.ParseFS(statusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Template data
	data := struct {
		StreamID    string
		HTTPAddress string
		Version     string
		Uptime      string
		DBEnabled   bool
		Status      map[string]interface{}
	}{
		StreamID:    streamID,
		HTTPAddress: ws.address,
		Version:     version.Version,
		Uptime:      time.Since(ws.startTime).Round(time.Second).String(),
		DBEnabled:   ws.db != nil,
		Status:      mgr.ModelStatus(),
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// handleModelStatus returns model-level statistics for a stream as JSON.
// Query params:
//
//	stream_id (optional; defaults to the configured stream)
func (ws *WebServer) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	streamID := ws.requestStreamID(r)
	mgr := video.GetManager(streamID)
	if mgr == nil || mgr.Model == nil {
		httputil.NotFound(w, fmt.Sprintf("no background model for stream '%s'", streamID))
		return
	}
	httputil.WriteJSONOK(w, mgr.ModelStatus())
}

// handleModelMetrics returns the most recent per-frame mask metrics for a
// stream, oldest first.
// Query params:
//
//	stream_id (optional; defaults to the configured stream)
//	limit (optional, default 200, max 1024)
func (ws *WebServer) handleModelMetrics(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	streamID := ws.requestStreamID(r)
	mgr := video.GetManager(streamID)
	if mgr == nil || mgr.Model == nil {
		httputil.NotFound(w, fmt.Sprintf("no background model for stream '%s'", streamID))
		return
	}
	limit := requestLimit(r, 200, 1024)
	metrics := mgr.RecentMetrics(limit)
	httputil.WriteJSONOK(w, map[string]interface{}{
		"stream_id": streamID,
		"count":     len(metrics),
		"metrics":   metrics,
	})
}

// handleModelHeatmap returns the block-aggregated foreground heatmap as JSON.
// Query params:
//
//	stream_id (optional; defaults to the configured stream)
//	block_size (optional, default 8)
func (ws *WebServer) handleModelHeatmap(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	streamID := ws.requestStreamID(r)
	mgr := video.GetManager(streamID)
	if mgr == nil || mgr.Model == nil {
		httputil.NotFound(w, fmt.Sprintf("no background model for stream '%s'", streamID))
		return
	}
	blockSize := 8
	if b := r.URL.Query().Get("block_size"); b != "" {
		if v, err := strconv.Atoi(b); err == nil && v > 0 && v <= 256 {
			blockSize = v
		}
	}
	hm := mgr.GetForegroundHeatmap(blockSize)
	if hm == nil {
		httputil.NotFound(w, fmt.Sprintf("no heatmap available for stream '%s'", streamID))
		return
	}
	httputil.WriteJSONOK(w, hm)
}

// handleModelPersist triggers manual persistence of a model snapshot.
// Expects POST with query param `stream_id` (optional; defaults to the
// configured stream).
func (ws *WebServer) handleModelPersist(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}

	streamID := ws.requestStreamID(r)
	mgr := video.GetManager(streamID)
	if mgr == nil || mgr.Model == nil {
		httputil.NotFound(w, fmt.Sprintf("no background model for stream '%s'", streamID))
		return
	}

	if mgr.PersistCallback == nil {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "no persist callback configured for this stream")
		return
	}

	if err := mgr.PersistCallback("api_request"); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("persist error: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]string{"status": "ok", "stream_id": streamID})
	log.Printf("Successfully persisted snapshot for stream '%s'", streamID)
}

// handleModelReset discards all training state and telemetry for a stream's
// model. Expects POST.
func (ws *WebServer) handleModelReset(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}

	streamID := ws.requestStreamID(r)
	mgr := video.GetManager(streamID)
	if mgr == nil || mgr.Model == nil {
		httputil.NotFound(w, fmt.Sprintf("no background model for stream '%s'", streamID))
		return
	}

	if err := mgr.ResetModel(); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("reset error: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]string{"status": "ok", "stream_id": streamID})
	log.Printf("Reset background model for stream '%s'", streamID)
}

// handleRuns returns recent segmentation run records for a stream.
// Query params:
//
//	stream_id (optional; defaults to the configured stream)
//	limit (optional, default 10, max 100)
func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if ws.db == nil {
		httputil.InternalServerError(w, "no database configured for run lookup")
		return
	}
	streamID := ws.requestStreamID(r)
	limit := requestLimit(r, 10, 100)

	runs, err := sqlite.NewRunStore(ws.db.DB).ListByStream(streamID, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list runs: %v", err))
		return
	}
	httputil.WriteJSONOK(w, runs)
}

// handleSnapshots returns a JSON array of the last N model snapshots for a
// stream, without the serialized model blobs.
// Query params:
//
//	stream_id (optional; defaults to the configured stream)
//	limit (optional, default 10, max 100)
func (ws *WebServer) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	if ws.db == nil {
		httputil.InternalServerError(w, "no database configured for snapshot lookup")
		return
	}
	streamID := ws.requestStreamID(r)
	limit := requestLimit(r, 10, 100)

	snaps, err := sqlite.NewSnapshotStore(ws.db.DB).List(streamID, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list snapshots: %v", err))
		return
	}
	type SnapSummary struct {
		SnapshotID      int64  `json:"snapshot_id"`
		StreamID        string `json:"stream_id"`
		RunID           string `json:"run_id,omitempty"`
		Taken           string `json:"taken"`
		Width           int    `json:"width"`
		Height          int    `json:"height"`
		Channels        int    `json:"channels"`
		FramesSegmented int64  `json:"frames_segmented"`
		SnapshotReason  string `json:"snapshot_reason"`
	}
	summaries := make([]SnapSummary, 0, len(snaps))
	for _, snap := range snaps {
		summaries = append(summaries, SnapSummary{
			SnapshotID:      snap.SnapshotID,
			StreamID:        snap.StreamID,
			RunID:           snap.RunID,
			Taken:           time.Unix(0, snap.TakenUnixNanos).Format(time.RFC3339Nano),
			Width:           snap.Width,
			Height:          snap.Height,
			Channels:        snap.Channels,
			FramesSegmented: snap.FramesSegmented,
			SnapshotReason:  snap.SnapshotReason,
		})
	}
	httputil.WriteJSONOK(w, summaries)
}
