package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/embtrace/schedtrace/internal/sched"
)

const (
	dpi      = 96.0
	fontSize = 12.0

	plotWidth  = 1400 // pixels spanning the display window
	rowHeight  = 90
	barHeight  = 44
	markerSize = 6

	tickMarkHeight = 5
	pixelsPerLabel = 120.0

	// Default border sizes in pixels
	defaultTopBorder    = 46
	defaultLeftBorder   = 230
	defaultBottomBorder = 64
	defaultRightBorder  = 40
)

var (
	gridColor   = color.RGBA{R: 0xd9, G: 0xd9, B: 0xd9, A: 0xff}
	markerColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	missColor   = color.RGBA{R: 0xff, A: 0xff}
)

// BorderConfig defines the sizes of white space around the chart
type BorderConfig struct {
	Top    int // Space for the marker legend
	Left   int // Space for task labels
	Bottom int // Space for the time scale and information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for the Gantt chart
type RenderConfig struct {
	// Display window in seconds; ViewEnd of 0 means the full capture.
	// The window affects rendering only, never the analysis.
	ViewStart float64
	ViewEnd   float64

	ShowReleases  bool
	ShowDeadlines bool

	FontSize float64
	Borders  BorderConfig
}

// GanttRenderer draws the analyzed schedule as an annotated chart
type GanttRenderer struct {
	config RenderConfig
}

// NewGanttRenderer creates a renderer with the given configuration
func NewGanttRenderer(config RenderConfig) (*GanttRenderer, error) {
	// Set defaults for zero values
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}

	return &GanttRenderer{config: config}, nil
}

// Render creates an image of the analyzed schedule: one row per task with its
// execution bars, release and deadline markers, misses highlighted in red.
func (r *GanttRenderer) Render(a *sched.Analysis) (*image.RGBA, error) {
	viewStart := r.config.ViewStart
	viewEnd := r.config.ViewEnd
	if viewEnd <= viewStart {
		viewEnd = a.Duration
	}
	if viewEnd <= viewStart {
		viewEnd = viewStart + 1 // degenerate capture, keep the mapping finite
	}

	n := len(a.Tasks)
	fullWidth := r.config.Borders.Left + plotWidth + r.config.Borders.Right
	fullHeight := r.config.Borders.Top + n*rowHeight + r.config.Borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	// Fill with white background
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	ann, err := newAnnotator(r.config.FontSize)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()
	ann.setDst(img)

	if err = r.drawTimeScale(img, ann, viewStart, viewEnd, n); err != nil {
		return nil, fmt.Errorf("drawing time scale: %w", err)
	}

	for i, ta := range a.Tasks {
		if err = r.drawTaskRow(img, ann, i, ta, viewStart, viewEnd); err != nil {
			return nil, fmt.Errorf("drawing task %q: %w", ta.Task.Name, err)
		}
	}

	if err = r.drawMarkerLegend(img, ann); err != nil {
		return nil, fmt.Errorf("drawing legend: %w", err)
	}
	if err = r.drawInfoBar(img, ann, a); err != nil {
		return nil, fmt.Errorf("drawing info bar: %w", err)
	}

	return img, nil
}

// timeToX maps a timestamp onto a plot-area x coordinate.
func (r *GanttRenderer) timeToX(t, viewStart, viewEnd float64) int {
	ratio := (t - viewStart) / (viewEnd - viewStart)
	return r.config.Borders.Left + int(math.Round(ratio*plotWidth))
}

func (r *GanttRenderer) drawTimeScale(img *image.RGBA, ann *annotator, viewStart, viewEnd float64, rows int) error {
	axisY := r.config.Borders.Top + rows*rowHeight
	step := niceTimeStep(viewEnd-viewStart, plotWidth)
	start := math.Ceil(viewStart/step) * step

	metrics := ann.face.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := axisY + tickMarkHeight + fontHeight

	// Axis line
	for x := r.config.Borders.Left; x <= r.config.Borders.Left+plotWidth; x++ {
		img.Set(x, axisY, color.Black)
	}

	for t := start; t <= viewEnd+step/1e6; t += step {
		x := r.config.Borders.Left + int(math.Round((t-viewStart)/(viewEnd-viewStart)*plotWidth))

		// Gridline through the rows, tick below the axis
		for y := r.config.Borders.Top; y < axisY; y++ {
			img.Set(x, y, gridColor)
		}
		for y := axisY; y < axisY+tickMarkHeight; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatSeconds(t)
		width := font.MeasureString(ann.face, label)
		if _, err := ann.drawString(label, x-(width.Round()/2), textY, color.Black); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (r *GanttRenderer) drawTaskRow(img *image.RGBA, ann *annotator, idx int, ta sched.TaskAnalysis, viewStart, viewEnd float64) error {
	rowTop := r.config.Borders.Top + idx*rowHeight
	barTop := rowTop + (rowHeight-barHeight)/2
	barColor := taskColor(ta.Task.Color, idx)

	// Task labels in the left border
	metrics := ann.face.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	labelY := rowTop + rowHeight/2 - fontHeight/2

	name := ta.Task.Name
	if ta.Task.GPIO != "" {
		name = fmt.Sprintf("%s (%s)", ta.Task.Name, ta.Task.GPIO)
	}
	if _, err := ann.drawString(name, 10, labelY, color.Black); err != nil {
		return fmt.Errorf("drawing task name: %w", err)
	}
	params := fmt.Sprintf("C=%s D=%s T=%s",
		formatSeconds(ta.Task.WCET), formatSeconds(ta.Task.Deadline), formatSeconds(ta.Task.Period))
	if _, err := ann.drawString(params, 10, labelY+fontHeight+2, markerColor); err != nil {
		return fmt.Errorf("drawing task parameters: %w", err)
	}

	// Execution bars
	for _, iv := range ta.Intervals {
		if iv.End < viewStart || iv.Start > viewEnd {
			continue
		}
		x0 := r.timeToX(math.Max(iv.Start, viewStart), viewStart, viewEnd)
		x1 := r.timeToX(math.Min(iv.End, viewEnd), viewStart, viewEnd)
		if x1 <= x0 {
			x1 = x0 + 1 // keep sub-pixel executions visible
		}

		bar := image.Rect(x0, barTop, x1, barTop+barHeight)
		fillRect(img, bar, barColor)
		strokeRect(img, bar, color.Black)
	}

	// Release markers (upward triangles below the bar)
	if r.config.ShowReleases {
		for _, rel := range ta.Releases {
			if rel < viewStart || rel > viewEnd {
				continue
			}
			x := r.timeToX(rel, viewStart, viewEnd)
			drawTriangle(img, x, rowTop+rowHeight-markerSize-2, markerSize, true, markerColor)
		}
	}

	// Deadline markers (downward triangles above the bar), misses in red
	if r.config.ShowDeadlines {
		missed := make(map[float64]struct{}, len(ta.Misses))
		for _, m := range ta.Misses {
			missed[m] = struct{}{}
		}

		for _, d := range ta.Deadlines {
			if d < viewStart || d > viewEnd {
				continue
			}
			x := r.timeToX(d, viewStart, viewEnd)

			if _, isMiss := missed[d]; isMiss {
				drawTriangle(img, x, rowTop+2, markerSize+2, false, missColor)
				dashedVLine(img, x, rowTop, rowTop+rowHeight, missColor)
			} else {
				drawTriangle(img, x, rowTop+2, markerSize, false, markerColor)
			}
		}
	}

	return nil
}

func (r *GanttRenderer) drawMarkerLegend(img *image.RGBA, ann *annotator) error {
	metrics := ann.face.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	y := r.config.Borders.Top/2 - markerSize
	textY := r.config.Borders.Top/2 + fontHeight/2 - metrics.Descent.Round()

	entries := []struct {
		label string
		up    bool
		color color.RGBA
	}{
		{"release", true, markerColor},
		{"deadline", false, markerColor},
		{"deadline miss", false, missColor},
	}

	x := r.config.Borders.Left
	for _, e := range entries {
		drawTriangle(img, x+markerSize, y+markerSize, markerSize, e.up, e.color)
		width, err := ann.drawString(e.label, x+2*markerSize+6, textY, color.Black)
		if err != nil {
			return fmt.Errorf("drawing legend label: %w", err)
		}
		x += 2*markerSize + 6 + width + 40
	}
	return nil
}

func (r *GanttRenderer) drawInfoBar(img *image.RGBA, ann *annotator, a *sched.Analysis) error {
	verdict := "schedulable"
	if !a.Schedulable() {
		verdict = "OVERLOADED"
	}

	info := fmt.Sprintf("%d tasks; %s captured @ %s; U = %.3f (%s); %d deadline miss(es)",
		len(a.Tasks), formatSeconds(a.Duration), humanRate(a.SampleRate), a.Utilization, verdict, a.TotalMisses())

	metrics := ann.face.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// Below the time-scale labels, centered in what is left of the border
	textY := img.Bounds().Max.Y - (r.config.Borders.Bottom-2*fontHeight)/2 - metrics.Descent.Round()

	textColor := color.Color(color.Black)
	if a.TotalMisses() > 0 {
		textColor = missColor
	}
	if _, err := ann.drawString(info, r.config.Borders.Left, textY, textColor); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// Internal annotator implementation

type annotator struct {
	context *freetype.Context
	face    font.Face
}

func newAnnotator(size float64) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		face: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) setDst(img *image.RGBA) {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)
}

// drawString renders s with its baseline at (x, y) and returns the advance
// width in pixels.
func (a *annotator) drawString(s string, x, y int, c color.Color) (int, error) {
	a.context.SetSrc(image.NewUniform(c))
	if _, err := a.context.DrawString(s, freetype.Pt(x, y)); err != nil {
		return 0, err
	}
	return font.MeasureString(a.face, s).Round(), nil
}

func (a *annotator) Close() error {
	if a.face != nil {
		return a.face.Close()
	}
	return nil
}

// Drawing helpers

func fillRect(img *image.RGBA, rect image.Rectangle, c color.Color) {
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

func strokeRect(img *image.RGBA, rect image.Rectangle, c color.Color) {
	for x := rect.Min.X; x < rect.Max.X; x++ {
		img.Set(x, rect.Min.Y, c)
		img.Set(x, rect.Max.Y-1, c)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		img.Set(rect.Min.X, y, c)
		img.Set(rect.Max.X-1, y, c)
	}
}

// drawTriangle fills an isosceles triangle of the given half-width pointing
// up or down, with its apex at (cx, cy) for up and its base at cy for down.
func drawTriangle(img *image.RGBA, cx, cy, size int, up bool, c color.Color) {
	for dy := 0; dy <= size; dy++ {
		half := dy * size / max(size, 1)
		y := cy + dy
		if !up {
			half = (size - dy) * size / max(size, 1)
		}
		for x := cx - half; x <= cx+half; x++ {
			img.Set(x, y, c)
		}
	}
}

func dashedVLine(img *image.RGBA, x, y0, y1 int, c color.Color) {
	for y := y0; y < y1; y++ {
		if (y-y0)%6 < 3 {
			img.Set(x, y, c)
		}
	}
}

// niceTimeStep picks a 1-2-5 series step that yields readable label spacing
// across the plot.
func niceTimeStep(span float64, width int) float64 {
	if span <= 0 || width <= 0 {
		return 1
	}

	target := span / (float64(width) / pixelsPerLabel)
	mag := math.Pow(10, math.Floor(math.Log10(target)))
	for _, m := range []float64{1, 2, 5} {
		if step := m * mag; step >= target {
			return step
		}
	}
	return 10 * mag
}

// formatSeconds renders a timestamp without trailing zeros, e.g. "0.25s".
func formatSeconds(t float64) string {
	// Round away float noise before trimming
	return strconv.FormatFloat(math.Round(t*1e6)/1e6, 'f', -1, 64) + "s"
}

func humanRate(hz float64) string {
	fract, suffix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%0.2f %sHz", fract, suffix)
}
