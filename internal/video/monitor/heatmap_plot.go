package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/video"
)

// heatmapGrid adapts a ForegroundHeatmap to gonum's GridXYZ. Rows are
// flipped so image row 0 renders at the top of the plot.
type heatmapGrid struct {
	hm *video.ForegroundHeatmap
}

func (g heatmapGrid) Dims() (c, r int) { return g.hm.BlocksX, g.hm.BlocksY }

func (g heatmapGrid) Z(c, r int) float64 {
	row := g.hm.BlocksY - 1 - r
	return float64(g.hm.Blocks[row*g.hm.BlocksX+c].ForegroundCount)
}

func (g heatmapGrid) X(c int) float64 {
	return float64(c*g.hm.BlockSize) + float64(g.hm.BlockSize)/2
}

func (g heatmapGrid) Y(r int) float64 {
	return float64(r*g.hm.BlockSize) + float64(g.hm.BlockSize)/2
}

// renderHeatmapPNG draws the block heatmap to a PNG with gonum/plot.
func renderHeatmapPNG(hm *video.ForegroundHeatmap) ([]byte, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Foreground activity: %s (%d frames)", hm.StreamID, hm.FramesSegmented)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"

	h := plotter.NewHeatMap(heatmapGrid{hm: hm}, palette.Heat(12, 1))
	p.Add(h)

	width := 8 * vg.Inch
	height := vg.Length(float64(width) * float64(hm.Height) / float64(hm.Width))

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("prepare heatmap png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render heatmap png: %w", err)
	}
	return buf.Bytes(), nil
}

// handleModelHeatmapPNG renders the block-aggregated foreground heatmap as a
// PNG image for embedding in reports.
// Query params:
//
//	stream_id (optional; defaults to the configured stream)
//	block_size (optional, default 8)
func (ws *WebServer) handleModelHeatmapPNG(w http.ResponseWriter, r *http.Request) {
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
	if hm == nil || hm.Width == 0 || hm.Height == 0 {
		httputil.NotFound(w, fmt.Sprintf("no heatmap available for stream '%s'", streamID))
		return
	}
	if hm.MaxCount == 0 {
		httputil.NotFound(w, "no foreground activity recorded yet")
		return
	}

	png, err := renderHeatmapPNG(hm)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render heatmap: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}
