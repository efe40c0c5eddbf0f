package sweep

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// WriteHTMLReport renders the sweep as a standalone HTML page with one
// chart per score dimension plus a per-combination cost chart.
func WriteHTMLReport(w io.Writer, s *Summary) error {
	if len(s.Results) == 0 {
		return fmt.Errorf("no sweep results to report")
	}

	radii := uniqueRadii(s.Results)
	xAxis := make([]string, 0, len(radii))
	for _, r := range radii {
		xAxis = append(xAxis, strconv.Itoa(r))
	}

	subtitle := fmt.Sprintf("sweep=%s combos=%d frames=%d best: radius=%d min_samples=%d subsampling=%d (%.2f%% correct, F1 %.4f)",
		shortID(s.SweepID), len(s.Results), s.FramesTotal,
		s.Best.Radius, s.Best.MinSamples, s.Best.SubsamplingFactor,
		s.Best.PercentCorrect, s.Best.F1)

	pcChart := scoreLineChart("Percent Correct vs Radius", subtitle, "%", xAxis, radii, s.Results,
		func(res ComboResult) float64 { return res.PercentCorrect })
	f1Chart := scoreLineChart("F1 vs Radius", "", "F1", xAxis, radii, s.Results,
		func(res ComboResult) float64 { return res.F1 })

	timeChart := charts.NewBar()
	timeChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "Parameter Sweep",
			Theme:      "dark",
			Width:      "1200px",
			Height:     "400px",
			AssetsHost: echartsAssetsPrefix,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Processing Time per Combination",
			Subtitle: "microseconds per combination index",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	comboAxis := make([]string, 0, len(s.Results))
	timeData := make([]opts.BarData, 0, len(s.Results))
	for _, res := range s.Results {
		comboAxis = append(comboAxis, strconv.Itoa(res.Index))
		timeData = append(timeData, opts.BarData{Value: res.ProcessingTimeUs})
	}
	timeChart.SetXAxis(comboAxis).AddSeries("Processing Time (us)", timeData)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(pcChart, f1Chart, timeChart)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render sweep report: %w", err)
	}
	return nil
}

// scoreLineChart draws one line per (min samples, subsampling) pair with
// radius on the x axis.
func scoreLineChart(title, subtitle, yName string, xAxis []string, radii []int, results []ComboResult, score func(ComboResult) float64) *charts.Line {
	chart := charts.NewLine()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "Parameter Sweep",
			Theme:      "dark",
			Width:      "1200px",
			Height:     "500px",
			AssetsHost: echartsAssetsPrefix,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithXAxisOpts(opts.XAxis{Name: "radius"}),
	)

	chart.SetXAxis(xAxis)
	keys, series := groupBySeries(results)
	for _, k := range keys {
		byRadius := make(map[int]float64, len(series[k]))
		for _, res := range series[k] {
			byRadius[res.Radius] = score(res)
		}
		data := make([]opts.LineData, 0, len(radii))
		for _, r := range radii {
			data = append(data, opts.LineData{Value: byRadius[r]})
		}
		chart.AddSeries(k.label(), data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	}
	return chart
}

func uniqueRadii(results []ComboResult) []int {
	seen := make(map[int]bool)
	radii := make([]int, 0, len(results))
	for _, res := range results {
		if !seen[res.Radius] {
			seen[res.Radius] = true
			radii = append(radii, res.Radius)
		}
	}
	sort.Ints(radii)
	return radii
}
