package sweep

import (
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// seriesKey groups combinations that differ only by radius, so each
// (min samples, subsampling) pair becomes one line in score plots.
type seriesKey struct {
	MinSamples        int
	SubsamplingFactor int
}

func (k seriesKey) label() string {
	return fmt.Sprintf("min=%d sub=%d", k.MinSamples, k.SubsamplingFactor)
}

// groupBySeries buckets results by series key. Keys come back sorted so
// legends and colors are stable across runs.
func groupBySeries(results []ComboResult) ([]seriesKey, map[seriesKey][]ComboResult) {
	series := make(map[seriesKey][]ComboResult)
	for _, res := range results {
		k := seriesKey{MinSamples: res.MinSamples, SubsamplingFactor: res.SubsamplingFactor}
		series[k] = append(series[k], res)
	}
	keys := make([]seriesKey, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].MinSamples != keys[j].MinSamples {
			return keys[i].MinSamples < keys[j].MinSamples
		}
		return keys[i].SubsamplingFactor < keys[j].SubsamplingFactor
	})
	return keys, series
}

// SaveScorePlot renders percent correct against radius and writes the plot
// to path as a PNG. Each (min samples, subsampling) pair gets its own line.
func SaveScorePlot(s *Summary, path string) error {
	if len(s.Results) == 0 {
		return fmt.Errorf("no sweep results to plot")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Sweep %s: percent correct vs radius", shortID(s.SweepID))
	p.X.Label.Text = "Radius"
	p.Y.Label.Text = "Percent correct"

	keys, series := groupBySeries(s.Results)
	colors := generateColors(len(keys))
	for i, k := range keys {
		pts := make(plotter.XYs, 0, len(series[k]))
		for _, res := range series[k] {
			pts = append(pts, plotter.XY{X: float64(res.Radius), Y: res.PercentCorrect})
		}
		sort.Slice(pts, func(a, b int) bool { return pts[a].X < pts[b].X })

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("build line for %s: %w", k.label(), err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(k.label(), line)
	}
	p.Legend.Top = true

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save score plot: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// generateColors spreads n hues evenly around the color wheel at fixed
// saturation and lightness.
func generateColors(n int) []color.RGBA {
	colors := make([]color.RGBA, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	var r, g, b float64
	if s == 0 {
		r, g, b = l, l, l
	} else {
		hue2rgb := func(p, q, t float64) float64 {
			if t < 0 {
				t++
			}
			if t > 1 {
				t--
			}
			if t < 1.0/6.0 {
				return p + (q-p)*6*t
			}
			if t < 1.0/2.0 {
				return q
			}
			if t < 2.0/3.0 {
				return p + (q-p)*(2.0/3.0-t)*6
			}
			return p
		}
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		r = hue2rgb(p, q, h+1.0/3.0)
		g = hue2rgb(p, q, h)
		b = hue2rgb(p, q, h-1.0/3.0)
	}
	return uint8(r * 255), uint8(g * 255), uint8(b * 255)
}
