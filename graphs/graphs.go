// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package graphs renders diagnostic charts of the abundance filtering step.
package graphs

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/taxprofile/matrix"
	"github.com/grailbio/taxprofile/sparsity"
	"github.com/grailbio/taxprofile/util"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Dir is the subdirectory of the output directory that holds the charts.
const Dir = "graphs"

// Opts controls chart contents.
type Opts struct {
	// Bins is the number of histogram bins.
	Bins int
	// MaxZeroFraction is drawn as a reference line on the zero-fraction chart.
	MaxZeroFraction float64
	// LowMeanCutoff selects the taxa shown in the mean abundance histogram:
	// those whose mean non-zero abundance is below it.
	LowMeanCutoff float64
}

// DefaultOpts is the default value of Opts.
var DefaultOpts = Opts{
	Bins:            30,
	MaxZeroFraction: sparsity.DefaultOpts.MaxZeroFraction,
	LowMeanCutoff:   0.01,
}

var (
	beforeColor = color.RGBA{R: 31, G: 119, B: 180, A: 128}
	afterColor  = color.RGBA{R: 255, G: 127, B: 14, A: 128}
	lineColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Paths returns the chart paths for the given rank, in the order Generate
// writes them: zero fractions, mean abundance, filtered column sums and the
// log2 comparison.
func Paths(outDir, rank string) []string {
	dir := filepath.Join(outDir, Dir)
	return []string{
		filepath.Join(dir, fmt.Sprintf("proportion_zeros_%s.png", rank)),
		filepath.Join(dir, fmt.Sprintf("hist_mean_abundance_%s.png", rank)),
		filepath.Join(dir, fmt.Sprintf("hist_column_sums_filtered_%s.png", rank)),
		filepath.Join(dir, fmt.Sprintf("hist_before_after_log2_%s.png", rank)),
	}
}

// finite drops NaN and infinite values, which plotter rejects.
func finite(vals []float64) plotter.Values {
	out := make(plotter.Values, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p
}

// addHist adds a histogram of vals to p. It returns nil, with nothing added,
// if vals is empty.
func addHist(p *plot.Plot, vals plotter.Values, bins int, fill color.Color) (*plotter.Histogram, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	h, err := plotter.NewHist(vals, bins)
	if err != nil {
		return nil, err
	}
	h.FillColor = fill
	p.Add(h)
	return h, nil
}

// zeroFractionPlot draws the zero fraction of every taxon in increasing order,
// with the sparsity cutoff as a dashed line.
func zeroFractionPlot(abund *matrix.Matrix, opts Opts) (*plot.Plot, error) {
	p := newPlot("Proportion of Zeros in Each Taxa", "Taxa", "Proportion of Zeros")
	fracs := finite(sparsity.ZeroFractions(abund))
	sort.Float64s(fracs)
	if len(fracs) > 0 {
		bars, err := plotter.NewBarChart(fracs, vg.Points(2))
		if err != nil {
			return nil, err
		}
		bars.LineStyle.Width = 0
		bars.Color = beforeColor
		p.Add(bars)
	}
	cutoff := plotter.NewFunction(func(float64) float64 { return opts.MaxZeroFraction })
	cutoff.Color = lineColor
	cutoff.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(cutoff)
	p.X.Min, p.X.Max = 0, math.Max(1, float64(len(fracs)))
	p.Y.Min, p.Y.Max = 0, 1
	p.X.Tick.Marker = plot.ConstantTicks(nil)
	return p, nil
}

func meanAbundancePlot(stats *sparsity.Stats, opts Opts) (*plot.Plot, error) {
	p := newPlot("Distribution of Mean Abundance per Taxa", "Mean Abundance", "Frequency")
	p.Add(plotter.NewGrid())
	var low []float64
	for _, mean := range stats.RowMean {
		if mean < opts.LowMeanCutoff {
			low = append(low, mean)
		}
	}
	_, err := addHist(p, finite(low), opts.Bins, beforeColor)
	return p, err
}

func columnSumsPlot(filtered *matrix.Matrix, opts Opts) (*plot.Plot, error) {
	p := newPlot("Total Abundance per Sample After Filtering", "Total Abundance", "Frequency")
	p.Add(plotter.NewGrid())
	_, err := addHist(p, finite(filtered.ColSums()), opts.Bins, beforeColor)
	return p, err
}

func log2Plot(filtered *matrix.Matrix, opts Opts) (*plot.Plot, error) {
	p := newPlot("Distribution of Data Before and After log2 Transformation", "Value", "Frequency")
	p.Add(plotter.NewGrid())
	before, err := addHist(p, finite(filtered.Values()), opts.Bins, beforeColor)
	if err != nil {
		return nil, err
	}
	after, err := addHist(p, finite(sparsity.Log2(filtered).Values()), opts.Bins, afterColor)
	if err != nil {
		return nil, err
	}
	if before != nil {
		p.Legend.Add("Before log2", before)
	}
	if after != nil {
		p.Legend.Add("After log2", after)
	}
	p.Legend.Top = true
	return p, nil
}

// save writes p as a PNG at path.
func save(ctx context.Context, p *plot.Plot, width, height vg.Length, path string) (err error) {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return errors.E(err, "render", path)
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if _, err = wt.WriteTo(out.Writer(ctx)); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

// Generate writes the four diagnostic charts of one rank under
// outDir/graphs: the sorted zero fraction of every taxon in abund, a histogram
// of the low mean abundances in stats, a histogram of the column totals of
// filtered, and overlaid histograms of filtered before and after the log2
// transform. It returns the chart paths.
func Generate(ctx context.Context, abund, filtered *matrix.Matrix, stats *sparsity.Stats, outDir, rank string, opts Opts) ([]string, error) {
	paths := Paths(outDir, rank)
	if err := util.MkdirAll(filepath.Join(outDir, Dir)); err != nil {
		return nil, err
	}
	type chart struct {
		build         func() (*plot.Plot, error)
		width, height vg.Length
	}
	charts := []chart{
		{func() (*plot.Plot, error) { return zeroFractionPlot(abund, opts) }, 10 * vg.Inch, 6 * vg.Inch},
		{func() (*plot.Plot, error) { return meanAbundancePlot(stats, opts) }, 8 * vg.Inch, 6 * vg.Inch},
		{func() (*plot.Plot, error) { return columnSumsPlot(filtered, opts) }, 8 * vg.Inch, 6 * vg.Inch},
		{func() (*plot.Plot, error) { return log2Plot(filtered, opts) }, 8 * vg.Inch, 6 * vg.Inch},
	}
	for i, c := range charts {
		p, err := c.build()
		if err != nil {
			return nil, errors.E(err, "plot", paths[i])
		}
		if err := save(ctx, p, c.width, c.height, paths[i]); err != nil {
			return nil, err
		}
		log.Debug.Printf("saved %s", paths[i])
	}
	return paths, nil
}
