// Package render turns simulated frames into inspection artefacts:
// per-band PNG heatmaps, column-profile plots and an HTML histogram
// report for checking the DN distribution after a run.
package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/treeview-data/eosim/internal/monitoring"
	"github.com/treeview-data/eosim/internal/signal"
)

// frameGrid adapts a 2-D (y, x) signal to the plotter heatmap input.
type frameGrid struct {
	sig *signal.Signal
	ny  int
	nx  int
	xc  []float64
	yc  []float64
}

func newFrameGrid(sig *signal.Signal) (*frameGrid, error) {
	ny, err := sig.Len(signal.DimY)
	if err != nil {
		return nil, err
	}
	nx, err := sig.Len(signal.DimX)
	if err != nil {
		return nil, err
	}
	g := &frameGrid{sig: sig, ny: ny, nx: nx}
	if ax, err := sig.Axis(signal.DimX); err == nil && ax.Coords != nil {
		g.xc = ax.Coords
	}
	if ax, err := sig.Axis(signal.DimY); err == nil && ax.Coords != nil {
		g.yc = ax.Coords
	}
	return g, nil
}

func (g *frameGrid) Dims() (c, r int) { return g.nx, g.ny }

func (g *frameGrid) Z(c, r int) float64 { return g.sig.At(r, c) }

func (g *frameGrid) X(c int) float64 {
	if g.xc != nil {
		return g.xc[c]
	}
	return float64(c)
}

func (g *frameGrid) Y(r int) float64 {
	if g.yc != nil {
		return g.yc[r]
	}
	return float64(r)
}

// SaveBandFrames writes one heatmap PNG per band of a DN frame into
// dir, named <prefix>_<band>.png, and returns the written paths. Extra
// dimensions beyond y, x and band are reduced to their first slice.
func SaveBandFrames(sig *signal.Signal, dir, prefix string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	frame, err := firstSlice(sig)
	if err != nil {
		return nil, err
	}

	if !frame.HasAxis(signal.DimBand) {
		path := filepath.Join(dir, prefix+".png")
		if err := saveHeatmap(frame, prefix, path); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	ax, err := frame.Axis(signal.DimBand)
	if err != nil {
		return nil, err
	}
	var paths []string
	for b := 0; b < ax.Size; b++ {
		band, err := frame.Isel(signal.DimBand, b)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("band%02d", b)
		if b < len(ax.Labels) && ax.Labels[b] != "" {
			name = ax.Labels[b]
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", prefix, name))
		if err := saveHeatmap(band, name, path); err != nil {
			return nil, fmt.Errorf("band %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func saveHeatmap(frame *signal.Signal, title, path string) error {
	grid, err := newFrameGrid(frame)
	if err != nil {
		return err
	}
	h := plotter.NewHeatMap(grid, moreland.SmoothBlueRed().Palette(255))

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(h)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

// SaveColumnProfile plots the per-column mean DN of each band as a
// line against the x coordinate. Column fixed-pattern offsets show up
// here as persistent vertical stripes.
func SaveColumnProfile(sig *signal.Signal, path string) error {
	frame, err := firstSlice(sig)
	if err != nil {
		return err
	}
	profile, err := frame.MeanOver(signal.DimY)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = "Column mean DN"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "DN"

	bands := 1
	var labels []string
	if ax, err := profile.Axis(signal.DimBand); err == nil {
		bands = ax.Size
		labels = ax.Labels
	}
	for b := 0; b < bands; b++ {
		line := profile
		if profile.HasAxis(signal.DimBand) {
			if line, err = profile.Isel(signal.DimBand, b); err != nil {
				return err
			}
		}
		grid, err := newColumnXYs(line)
		if err != nil {
			return err
		}
		l, err := plotter.NewLine(grid)
		if err != nil {
			return err
		}
		l.Color = plotutil.Color(b)
		l.Width = vg.Points(1)
		p.Add(l)
		name := fmt.Sprintf("band %d", b)
		if b < len(labels) && labels[b] != "" {
			name = labels[b]
		}
		p.Legend.Add(name, l)
	}
	p.Legend.Top = true

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save column profile: %w", err)
	}
	return nil
}

func newColumnXYs(line *signal.Signal) (plotter.XYs, error) {
	n, err := line.Len(signal.DimX)
	if err != nil {
		return nil, err
	}
	var xc []float64
	if ax, err := line.Axis(signal.DimX); err == nil && ax.Coords != nil {
		xc = ax.Coords
	}
	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		if xc != nil {
			x = xc[i]
		}
		pts[i] = plotter.XY{X: x, Y: line.Values()[i]}
	}
	return pts, nil
}

// WriteHistogramReport renders an HTML page with one DN histogram per
// band, binned into bins equal-width buckets.
func WriteHistogramReport(sig *signal.Signal, path string, bins int) error {
	if bins < 1 {
		bins = 32
	}
	frame, err := firstSlice(sig)
	if err != nil {
		return err
	}

	page := components.NewPage()
	page.PageTitle = "DN histograms"

	addBand := func(name string, band *signal.Signal) {
		labels, counts := histogram(band.Values(), bins)
		data := make([]opts.BarData, len(counts))
		for i, c := range counts {
			data[i] = opts.BarData{Value: c}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{Title: name, Subtitle: fmt.Sprintf("%d samples", band.Size())}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "DN"}),
			charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
		)
		bar.SetXAxis(labels)
		bar.AddSeries("count", data)
		page.AddCharts(bar)
	}

	if frame.HasAxis(signal.DimBand) {
		ax, err := frame.Axis(signal.DimBand)
		if err != nil {
			return err
		}
		for b := 0; b < ax.Size; b++ {
			band, err := frame.Isel(signal.DimBand, b)
			if err != nil {
				return err
			}
			name := fmt.Sprintf("band %d", b)
			if b < len(ax.Labels) && ax.Labels[b] != "" {
				name = ax.Labels[b]
			}
			addBand(name, band)
		}
	} else {
		addBand("frame", frame)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// histogram buckets values into bins equal-width ranges and returns
// the bucket labels (lower edges) and counts.
func histogram(values []float64, bins int) ([]string, []int) {
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	width := (hi - lo) / float64(bins)
	if width == 0 {
		width = 1
	}
	counts := make([]int, bins)
	for _, v := range values {
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
	}
	labels := make([]string, bins)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.0f", lo+float64(i)*width)
	}
	return labels, counts
}

// firstSlice reduces any dimensions other than y, x and band to their
// first index so the frame can be drawn as a 2-D image per band.
func firstSlice(sig *signal.Signal) (*signal.Signal, error) {
	out := sig
	for _, dim := range sig.Dims() {
		switch dim {
		case signal.DimY, signal.DimX, signal.DimBand:
			continue
		}
		monitoring.Logf("render: reducing %q axis to its first slice", dim)
		var err error
		if out, err = out.Isel(dim, 0); err != nil {
			return nil, err
		}
	}
	if !out.HasAxis(signal.DimY) || !out.HasAxis(signal.DimX) {
		return nil, fmt.Errorf("%w: frame needs %q and %q axes", signal.ErrAxisMissing, signal.DimY, signal.DimX)
	}
	return out.Canonical()
}
