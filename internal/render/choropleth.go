// Package render draws choropleth maps of the enriched tract table.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

// NullColor fills tracts with no value for a panel's column.
var NullColor = color.Gray{Y: 0xbb}

var edgeStyle = draw.LineStyle{Color: color.Black, Width: vg.Points(0.25)}

// Panel is one map in the grid: a column drawn against a fixed color range.
type Panel struct {
	Title    string
	Label    string
	Min, Max float64
	ColorMap func() palette.ColorMap
	Value    func(t *domain.Tract) (float64, bool)
}

func optional(get func(t *domain.Tract) *float64) func(t *domain.Tract) (float64, bool) {
	return func(t *domain.Tract) (float64, bool) {
		if p := get(t); p != nil && !math.IsNaN(*p) {
			return *p, true
		}
		return 0, false
	}
}

// Panels returns the six standard maps. The population scale runs to the
// largest tract population.
func Panels(tracts []domain.Tract) []Panel {
	var maxPop float64
	for _, t := range tracts {
		if t.Population != nil && *t.Population > maxPop {
			maxPop = *t.Population
		}
	}

	return []Panel{
		{
			Title: "Chicago Heatwave Temperature Anomaly", Label: "H_a [Δ°C]",
			Min: -2, Max: 2,
			ColorMap: func() palette.ColorMap { return moreland.SmoothBlueRed() },
			Value:    optional(func(t *domain.Tract) *float64 { return t.HeatAnomaly }),
		},
		{
			Title: "Chicago Population from the 2010 Census", Label: "Number of People",
			Min: 0, Max: maxPop,
			ColorMap: moreland.Kindlmann,
			Value:    optional(func(t *domain.Tract) *float64 { return t.Population }),
		},
		{
			Title: "Chicago Crimes from 2021", Label: "Number of Crimes Reported",
			Min: 0, Max: 1000,
			ColorMap: moreland.ExtendedBlackBody,
			Value: func(t *domain.Tract) (float64, bool) {
				return float64(t.CrimeCount), true
			},
		},
		{
			Title: "Chicago Park Area", Label: "Percent Area Covered by Park",
			Min: 0, Max: 0.8,
			ColorMap: moreland.ExtendedKindlmann,
			Value: func(t *domain.Tract) (float64, bool) {
				return t.PctPark, !math.IsNaN(t.PctPark)
			},
		},
		{
			Title: "Chicago Rooftop Solar", Label: "Percent Solar-Qualified Rooftops",
			Min: 0, Max: 100,
			ColorMap: moreland.Kindlmann,
			Value:    optional(func(t *domain.Tract) *float64 { return t.PercentQualified }),
		},
		{
			Title: "Chicago Socioeconomic Data", Label: "Hardship Index",
			Min: 0, Max: 100,
			ColorMap: moreland.BlackBody,
			Value:    optional(func(t *domain.Tract) *float64 { return t.HardshipIndex }),
		},
	}
}

// Grid lays panels out in rows of Cols.
type Grid struct {
	Cols   int
	Width  vg.Length
	Height vg.Length
}

// DefaultGrid is the 3×2 layout at 14×12 inches.
var DefaultGrid = Grid{Cols: 2, Width: 14 * vg.Inch, Height: 12 * vg.Inch}

// Render draws every panel and writes the grid as a PNG to w.
func (g Grid) Render(w io.Writer, tracts []domain.Tract, panels []Panel) error {
	if len(panels) == 0 {
		return fmt.Errorf("render: no panels")
	}
	rows := (len(panels) + g.Cols - 1) / g.Cols

	img := vgimg.New(g.Width, g.Height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: rows, Cols: g.Cols,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}

	for i, p := range panels {
		tile := tiles.At(dc, i%g.Cols, i/g.Cols)
		if err := drawPanel(tile, tracts, p); err != nil {
			return fmt.Errorf("panel %q: %w", p.Title, err)
		}
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// WritePNG renders the standard panels to path.
func WritePNG(path string, tracts []domain.Tract) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot %s: %w", path, err)
	}
	if err := DefaultGrid.Render(f, tracts, Panels(tracts)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func drawPanel(tile draw.Canvas, tracts []domain.Tract, p Panel) error {
	cmap := p.ColorMap()
	lo, hi := p.Min, p.Max
	if hi <= lo {
		hi = lo + 1
	}
	cmap.SetMin(lo)
	cmap.SetMax(hi)

	m := plot.New()
	m.Title.Text = p.Title
	m.HideAxes()
	for i := range tracts {
		fill, err := colorFor(cmap, &tracts[i], p.Value)
		if err != nil {
			return fmt.Errorf("tract %d: %w", tracts[i].GeoID10, err)
		}
		for _, poly := range tracts[i].Geometry {
			shape, err := polygon(poly)
			if err != nil {
				return fmt.Errorf("tract %d: %w", tracts[i].GeoID10, err)
			}
			if shape == nil {
				continue
			}
			shape.Color = fill
			shape.LineStyle = edgeStyle
			m.Add(shape)
		}
	}

	bar := plot.New()
	bar.HideY()
	bar.X.Label.Text = p.Label
	bar.Add(&plotter.ColorBar{ColorMap: cmap})

	barHeight := vg.Centimeter * 1.6
	m.Draw(draw.Crop(tile, 0, 0, barHeight, 0))
	bar.Draw(draw.Crop(tile, tile.Size().X/6, -tile.Size().X/6, 0, barHeight-tile.Size().Y))
	return nil
}

// colorFor maps a tract's value onto cmap, clamping to its range. Missing
// values get NullColor.
func colorFor(cmap palette.ColorMap, t *domain.Tract, value func(*domain.Tract) (float64, bool)) (color.Color, error) {
	v, ok := value(t)
	if !ok {
		return NullColor, nil
	}
	v = math.Max(cmap.Min(), math.Min(cmap.Max(), v))
	return cmap.At(v)
}

// polygon converts an orb polygon into a filled plotter polygon. The shell
// is made counter-clockwise and holes clockwise so the backend cuts them out.
func polygon(poly orb.Polygon) (*plotter.Polygon, error) {
	rings := make([]plotter.XYer, 0, len(poly))
	for i, r := range poly {
		if len(r) < 3 {
			continue
		}
		want := orb.CW
		if i == 0 {
			want = orb.CCW
		}
		rings = append(rings, ringXYs(r, want))
	}
	if len(rings) == 0 {
		return nil, nil
	}
	return plotter.NewPolygon(rings...)
}

func ringXYs(r orb.Ring, want orb.Orientation) plotter.XYs {
	xys := make(plotter.XYs, len(r))
	reverse := r.Orientation() != want
	for i, p := range r {
		j := i
		if reverse {
			j = len(r) - 1 - i
		}
		xys[j] = plotter.XY{X: p[0], Y: p[1]}
	}
	return xys
}
