package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/video"
)

// echartsAssetsPrefix serves the chart pages' JS from the public go-echarts
// asset host so the monitor works without bundling assets.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridisColors is the InRange palette shared by the chart handlers.
var viridisColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// handleForegroundChart renders a timeline (HTML) of recent per-frame metrics
// using go-echarts: foreground fraction as a line, processing time as bars.
// This is a debugging-only endpoint (no auth) for watching a run converge
// without a separate UI.
// Query params:
//   - stream_id (optional; defaults to configured stream)
//   - limit (optional, default 200, max 1024)
func (ws *WebServer) handleForegroundChart(w http.ResponseWriter, r *http.Request) {
	streamID := ws.requestStreamID(r)
	mgr := video.GetManager(streamID)
	if mgr == nil || mgr.Model == nil {
		httputil.NotFound(w, fmt.Sprintf("no background model for stream '%s'", streamID))
		return
	}

	limit := requestLimit(r, 200, 1024)
	metrics := mgr.RecentMetrics(limit)
	if len(metrics) == 0 {
		httputil.NotFound(w, "no frame metrics recorded yet")
		return
	}

	frames := make([]string, 0, len(metrics))
	fgData := make([]opts.LineData, 0, len(metrics))
	timeData := make([]opts.BarData, 0, len(metrics))
	for _, m := range metrics {
		frames = append(frames, strconv.Itoa(m.FrameIndex))
		fgData = append(fgData, opts.LineData{Value: m.ForegroundFraction * 100})
		timeData = append(timeData, opts.BarData{Value: m.ProcessingTimeUs})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Foreground Timeline", Theme: "dark", Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Foreground Fraction", Subtitle: fmt.Sprintf("stream=%s frames=%d", streamID, len(metrics))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "foreground (%)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(frames).
		AddSeries("foreground %", fgData,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Processing Time", Subtitle: "per-frame segmentation cost (microseconds)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "time (us)", NameLocation: "middle", NameGap: 55}),
	)
	bar.SetXAxis(frames).AddSeries("time (us)", timeData)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(line, bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleHeatmapChart renders the block-aggregated foreground heatmap as a
// colored scatter (HTML) using go-echarts, for quick hot-zone review in a
// browser.
// Query params:
//   - stream_id (optional; defaults to configured stream)
//   - block_size (optional, default 8)
func (ws *WebServer) handleHeatmapChart(w http.ResponseWriter, r *http.Request) {
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
	if hm == nil || len(hm.Blocks) == 0 {
		httputil.NotFound(w, "no heatmap blocks available")
		return
	}

	data := make([]opts.ScatterData, 0, len(hm.Blocks))
	for _, b := range hm.Blocks {
		// Flip y so image row 0 appears at the top of the chart.
		cx := float64(b.X*hm.BlockSize) + float64(hm.BlockSize)/2
		cy := float64((hm.BlocksY-1-b.Y)*hm.BlockSize) + float64(hm.BlockSize)/2
		data = append(data, opts.ScatterData{Value: []interface{}{cx, cy, b.ForegroundCount}})
	}

	maxCount := float64(hm.MaxCount)
	if maxCount == 0 {
		maxCount = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Foreground Heatmap", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Foreground Heatmap", Subtitle: fmt.Sprintf("stream=%s blocks=%dx%d block_size=%d frames=%d", streamID, hm.BlocksX, hm.BlocksY, hm.BlockSize, hm.FramesSegmented)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: hm.Width, Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: hm.Height, Name: "y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxCount),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisColors},
		}),
	)
	scatter.AddSeries("foreground", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render heatmap chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
