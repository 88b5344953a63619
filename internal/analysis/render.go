package analysis

import (
	"bytes"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/xtxerr/rcaeda/internal/errors"
)

// Renderer draws a histogram image.
type Renderer interface {
	Render(column string, values []float64, bins int) ([]byte, error)
}

// PlotRenderer renders PNG histograms with gonum/plot.
type PlotRenderer struct {
	Width  vg.Length
	Height vg.Length
}

// DefaultRenderer is a 6x4 inch PNG renderer.
var DefaultRenderer = PlotRenderer{Width: 6 * vg.Inch, Height: 4 * vg.Inch}

// Render implements Renderer.
func (r PlotRenderer) Render(column string, values []float64, bins int) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Histogram of " + column
	p.X.Label.Text = column
	p.Y.Label.Text = "Frequency"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrRenderFailed, column, err)
	}
	p.Add(h)

	w, h2 := r.Width, r.Height
	if w == 0 || h2 == 0 {
		w, h2 = DefaultRenderer.Width, DefaultRenderer.Height
	}
	wt, err := p.WriterTo(w, h2, "png")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrRenderFailed, column, err)
	}

	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrRenderFailed, column, err)
	}
	return buf.Bytes(), nil
}
