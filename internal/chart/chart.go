// Package chart draws the per-station level chart with gonum/plot.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"cotas/internal/detector"
	"cotas/internal/models"
)

// UnknownName is used in the title when the inventory lookup gave nothing
const UnknownName = "nome indisponível"

const (
	tickFormat   = "02/01 15:04"
	latestFormat = "02/01/06 15:04"

	// minSpan is the narrowest x extent of the reference lines
	minSpan = float64(2 * time.Hour / time.Second)
)

var (
	levelColor = color.RGBA{B: 255, A: 255}
	alertColor = color.RGBA{R: 255, G: 165, A: 255}
	floodColor = color.RGBA{R: 255, A: 255}
	boxColor   = color.NRGBA{R: 245, G: 222, B: 179, A: 128}
)

var ErrEmptySeries = errors.New("chart: empty series")

// Input is everything needed to draw one station
type Input struct {
	Code       string
	Name       string
	Series     models.Series
	Thresholds *models.Thresholds // nil: no reference lines
	Status     detector.Status
	Days       int
	Location   *time.Location
}

// ReferenceLine is a horizontal threshold drawn across the chart
type ReferenceLine struct {
	Label    string
	Level    float64
	Color    color.Color
	From, To float64 // x extent, unix seconds
}

// Figure is a composed chart, ready to be drawn
type Figure struct {
	Plot       *plot.Plot
	Title      string
	References []ReferenceLine
	Legend     []string
	Footer     string
}

// Build composes the plot for in without drawing it
func Build(in Input) (*Figure, error) {
	latest, ok := in.Series.Latest()
	if !ok {
		return nil, ErrEmptySeries
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	name := in.Name
	if name == "" {
		name = UnknownName
	}

	fig := &Figure{
		Plot:  plot.New(),
		Title: fmt.Sprintf("Estação %s: %s - Cotas dos últimos %d dias", in.Code, name, in.Days),
	}
	p := fig.Plot

	p.Title.Text = fig.Title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Data"
	p.Y.Label.Text = "Cota (cm)"
	p.X.Tick.Marker = plot.TimeTicks{Format: tickFormat, Time: plot.UnixTimeIn(loc)}
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	grid := plotter.NewGrid()
	grid.Vertical.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	grid.Horizontal.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	grid.Vertical.Color = color.Gray{Y: 200}
	grid.Horizontal.Color = color.Gray{Y: 200}
	p.Add(grid)

	xys := make(plotter.XYs, in.Series.Len())
	for i, r := range in.Series.Readings {
		xys[i].X = float64(r.Time.Unix())
		xys[i].Y = r.Level
	}

	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, fmt.Errorf("chart: level line: %w", err)
	}
	line.Color = levelColor
	line.Width = vg.Points(1.5)
	points.Shape = draw.CircleGlyph{}
	points.Color = levelColor
	points.Radius = vg.Points(1)
	p.Add(line, points)

	if in.Thresholds != nil {
		fig.References = []ReferenceLine{
			{Label: fmt.Sprintf("Alerta (%s cm)", in.Thresholds.Alert), Level: in.Thresholds.Alert.InexactFloat64(), Color: alertColor},
			{Label: fmt.Sprintf("Inundação (%s cm)", in.Thresholds.Flood), Level: in.Thresholds.Flood.InexactFloat64(), Color: floodColor},
		}

		p.Legend.Add("Nível do rio", line, points)
		fig.Legend = append(fig.Legend, "Nível do rio")

		xmin, xmax := xExtent(xys)
		for i := range fig.References {
			ref := &fig.References[i]
			ref.From, ref.To = xmin, xmax
			refLine, err := plotter.NewLine(plotter.XYs{{X: xmin, Y: ref.Level}, {X: xmax, Y: ref.Level}})
			if err != nil {
				return nil, fmt.Errorf("chart: reference line: %w", err)
			}
			refLine.Color = ref.Color
			refLine.Width = vg.Points(1.5)
			refLine.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
			p.Add(refLine)
			p.Legend.Add(ref.Label, refLine)
			fig.Legend = append(fig.Legend, ref.Label)
		}
		p.Legend.Top = true
		p.Legend.Left = true
	}

	fig.Footer = footerText(latest, in.Thresholds != nil, in.Status, loc)
	return fig, nil
}

// xExtent is the x range of the readings, widened to minSpan around its
// middle so reference lines stay visible for a single reading.
func xExtent(xys plotter.XYs) (float64, float64) {
	xmin, xmax := xys[0].X, xys[len(xys)-1].X
	if xmax-xmin < minSpan {
		mid := (xmin + xmax) / 2
		xmin, xmax = mid-minSpan/2, mid+minSpan/2
	}
	return xmin, xmax
}

func footerText(latest models.Reading, withStatus bool, status detector.Status, loc *time.Location) string {
	txt := fmt.Sprintf("Último dado:\nData: %s\nCota: %.0f cm",
		latest.Time.In(loc).Format(latestFormat), latest.Level)
	if withStatus {
		txt += "\nSituação: " + status.Label()
	}
	return txt
}

// Draw renders the figure on c, keeping a footer strip at the bottom for the
// latest-reading box.
func (f *Figure) Draw(c draw.Canvas) {
	sty := text.Style{
		Color:   color.Black,
		Font:    font.From(plot.DefaultFont, vg.Points(10)),
		Handler: plot.DefaultTextHandler,
		XAlign:  draw.XLeft,
		YAlign:  draw.YTop,
	}

	pad := vg.Points(6)
	boxW := sty.Width(f.Footer) + 2*pad
	boxH := sty.Height(f.Footer) + 2*pad
	footer := boxH + 2*pad

	f.Plot.Draw(draw.Crop(c, 0, 0, footer, 0))

	minX := c.Max.X - boxW - 2*pad
	minY := c.Min.Y + pad
	box := []vg.Point{
		{X: minX, Y: minY},
		{X: minX + boxW, Y: minY},
		{X: minX + boxW, Y: minY + boxH},
		{X: minX, Y: minY + boxH},
	}
	c.FillPolygon(boxColor, box)
	c.StrokeLines(draw.LineStyle{Color: color.Gray{Y: 120}, Width: vg.Points(0.5)}, append(box, box[0]))
	c.FillText(sty, vg.Point{X: minX + pad, Y: minY + boxH - pad}, f.Footer)
}
