package stats

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"dasopt/internal/model"
)

// WriteFrontChart renders a scatter plot of the objective space to an
// HTML file: the evaluated candidates as small circles and the final
// front members as triangles. Axis values are the raw objective values
// in their natural direction. Only two-objective runs can be plotted.
func WriteFrontChart(path string, objectives []string, candidates, front []model.Candidate) error {
	if len(objectives) != 2 {
		return fmt.Errorf("front chart needs exactly 2 objectives, got %d", len(objectives))
	}
	if len(front) == 0 {
		return fmt.Errorf("front chart needs at least one front member")
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Objective space",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: objectives[0],
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: objectives[1],
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}))

	scatter.AddSeries("evaluated", scatterPoints(candidates, "circle", 5)).
		AddSeries("front", scatterPoints(front, "triangle", 10)).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
			charts.WithEmphasisOpts(opts.Emphasis{}),
		)

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return scatter.Render(file)
}

// scatterPoints keeps only candidates that carry raw objective values,
// so rejected candidates never show up in the cloud.
func scatterPoints(candidates []model.Candidate, symbol string, size int) []opts.ScatterData {
	points := make([]opts.ScatterData, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Raw) < 2 {
			continue
		}
		points = append(points, opts.ScatterData{
			Value:      []float64{c.Raw[0], c.Raw[1]},
			Symbol:     symbol,
			SymbolSize: size,
		})
	}
	return points
}

// WriteConvergenceChart renders the per-generation progress to an HTML
// file. Single-objective runs plot the best and mean oriented scores,
// multi-objective runs plot the hypervolume when the run tracked one
// and the spread otherwise.
func WriteConvergenceChart(path string, kind model.RunKind, metrics []model.GenerationMetric) error {
	if len(metrics) == 0 {
		return fmt.Errorf("convergence chart needs at least one generation")
	}

	generations := make([]int, len(metrics))
	for i, m := range metrics {
		generations[i] = m.Generation
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Convergence",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "generation",
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}))

	line.SetXAxis(generations)
	if kind == model.RunSingle {
		line.AddSeries("best score", lineSeries(metrics, func(m model.GenerationMetric) float64 { return m.BestScore })).
			AddSeries("mean score", lineSeries(metrics, func(m model.GenerationMetric) float64 { return m.MeanScore }))
	} else {
		name, value := paretoSeries(metrics)
		line.AddSeries(name, lineSeries(metrics, value))
	}
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{
			Smooth: opts.Bool(false),
		}),
		charts.WithLabelOpts(opts.Label{
			Show: opts.Bool(false),
		}),
	)

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return line.Render(file)
}

func lineSeries(metrics []model.GenerationMetric, value func(model.GenerationMetric) float64) []opts.LineData {
	data := make([]opts.LineData, len(metrics))
	for i, m := range metrics {
		data[i] = opts.LineData{Value: value(m)}
	}
	return data
}

func paretoSeries(metrics []model.GenerationMetric) (string, func(model.GenerationMetric) float64) {
	for _, m := range metrics {
		if m.Hypervolume != 0 {
			return "hypervolume", func(m model.GenerationMetric) float64 { return m.Hypervolume }
		}
	}
	return "spread", func(m model.GenerationMetric) float64 { return m.Spread }
}
