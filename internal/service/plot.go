package service

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// IndexAxis selects the row index as the x axis.
const IndexAxis = "(index)"

var (
	ErrNotNumeric  = errors.New("column is not numeric")
	ErrNoPlotData  = errors.New("no values to plot")
	ErrMissingAxis = errors.New("y column is required")
)

// PlotTitle is the chart title for y over x.
func PlotTitle(yCol, xCol string) string {
	if xCol == "" || xCol == IndexAxis {
		xCol = "index"
	}
	return yCol + " over " + xCol
}

// PlotLine renders yCol against xCol as a PNG line chart. An empty xCol or
// IndexAxis uses the row index, as does an xCol that is not numeric.
func PlotLine(t *Table, yCol, xCol string) ([]byte, error) {
	if yCol == "" {
		return nil, ErrMissingAxis
	}
	ys, present, err := t.Floats(yCol)
	if err != nil {
		if errors.Is(err, ErrUnknownColumn) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %q", ErrNotNumeric, yCol)
	}

	xs, xPresent, xLabel := plotXValues(t, xCol)

	var xv, yv []float64
	for i := range ys {
		if !present[i] || !xPresent[i] {
			continue
		}
		xv = append(xv, xs[i])
		yv = append(yv, ys[i])
	}
	if len(yv) == 0 {
		return nil, ErrNoPlotData
	}
	// a single point has no x range; widen it like a flat segment
	if len(xv) == 1 {
		xv = append(xv, xv[0]+1)
		yv = append(yv, yv[0])
	}

	ch := chart.Chart{
		Title:      PlotTitle(yCol, xLabel),
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: xLabel},
		YAxis:      chart.YAxis{Name: yCol, Range: flatRange(yv)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    yCol,
				XValues: xv,
				YValues: yv,
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("1f77b4"),
					StrokeWidth: 2,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}

func plotXValues(t *Table, xCol string) ([]float64, []bool, string) {
	if xCol != "" && xCol != IndexAxis {
		if xs, present, err := t.Floats(xCol); err == nil {
			return xs, present, xCol
		}
	}

	xs := make([]float64, len(t.Rows))
	present := make([]bool, len(t.Rows))
	for i := range xs {
		xs[i] = float64(i)
		present[i] = true
	}
	return xs, present, "index"
}

// flatRange pads a constant series so the y axis has a non-zero span.
func flatRange(ys []float64) chart.Range {
	lo, hi := ys[0], ys[0]
	for _, v := range ys[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo != hi {
		return nil
	}
	return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}
