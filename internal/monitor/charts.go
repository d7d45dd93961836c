package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/dltrophy/simulator/internal/httputil"
	"github.com/dltrophy/simulator/internal/ledstate"
	"github.com/dltrophy/simulator/internal/protocol"
	"github.com/dltrophy/simulator/internal/trophy"
)

// Unlit LEDs are drawn dark grey so they stay visible on a black background.
var unlit = protocol.Color{R: 40, G: 40, B: 40}

func displayColor(c protocol.Color) protocol.Color {
	if c == protocol.Black {
		return unlit
	}
	return c
}

// axisPad widens the chart range so edge LEDs are not clipped.
func axisPad(lo, hi float64) (float64, float64) {
	pad := 0.05 * (hi - lo)
	if pad == 0 {
		pad = 0.05
	}
	return lo - pad, hi + pad
}

// ledChart builds a 3D scatter of every LED, one series per partition.
func ledChart(layout *trophy.Layout, colors ledstate.Colors) *charts.Scatter3D {
	series := map[trophy.Partition][]opts.Chart3DData{}
	for i, p := range layout.Positions {
		part := trophy.PartitionOf(i)
		series[part] = append(series[part], opts.Chart3DData{
			Name:      fmt.Sprintf("LED %d", i),
			Value:     []interface{}{p.X, p.Y, p.Z},
			ItemStyle: &opts.ItemStyle{Color: displayColor(colors[i]).Hex()},
		})
	}

	xMin, xMax := axisPad(layout.Min.X, layout.Max.X)
	yMin, yMax := axisPad(layout.Min.Y, layout.Max.Y)
	zMin, zMax := axisPad(layout.Min.Z, layout.Max.Z)

	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Trophy LEDs", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Trophy LEDs", Subtitle: fmt.Sprintf("%d LEDs", trophy.NumLEDs)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "X", Min: xMin, Max: xMax}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Y", Min: yMin, Max: yMax}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Z", Min: zMin, Max: zMax}),
	)
	for _, part := range []trophy.Partition{trophy.Base, trophy.Logo, trophy.Back, trophy.Floor} {
		scatter.AddSeries(part.String(), series[part])
	}
	return scatter
}

func (s *Server) handleLEDChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := ledChart(s.builder.Layout(), s.store.Snapshot()).Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// layoutPlot draws the front view (X/Y) of every LED in its current color.
func layoutPlot(layout *trophy.Layout, colors ledstate.Colors) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Trophy LEDs (front view)"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.BackgroundColor = color.Black
	p.Title.TextStyle.Color = color.White
	for _, a := range []*plot.Axis{&p.X, &p.Y} {
		a.LineStyle.Color = color.White
		a.Label.TextStyle.Color = color.White
		a.Tick.LineStyle.Color = color.White
		a.Tick.Label.Color = color.White
	}

	pts := make(plotter.XYs, len(layout.Positions))
	for i, pos := range layout.Positions {
		pts[i] = plotter.XY{X: pos.X, Y: pos.Y}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build scatter: %w", err)
	}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		c := displayColor(colors[i])
		radius := vg.Points(3)
		if trophy.IsSingleColor(i) {
			radius = vg.Points(5)
		}
		return draw.GlyphStyle{
			Color:  color.RGBA{R: c.R, G: c.G, B: c.B, A: 255},
			Radius: radius,
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(sc)

	p.X.Min, p.X.Max = axisPad(layout.Min.X, layout.Max.X)
	p.Y.Min, p.Y.Max = axisPad(layout.Min.Y, layout.Max.Y)
	return p, nil
}

// writeLayoutPNG renders the front view as a PNG of the given size.
func writeLayoutPNG(w io.Writer, layout *trophy.Layout, colors ledstate.Colors, size vg.Length) error {
	p, err := layoutPlot(layout, colors)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(size, size, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func (s *Server) handleLayoutPlot(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := writeLayoutPNG(&buf, s.builder.Layout(), s.store.Snapshot(), 6*vg.Inch); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
