package ui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ngmaloney/pendulum/internal/canvas"
)

const upperHalfBlock = '▀'

// cell is one terminal character: a glyph with foreground and background
type cell struct {
	ch     rune
	fg, bg color.RGBA
}

// surface maps the display image onto terminal cells. Each cell covers
// scale pixels across and 2*scale pixels down, drawn as an upper half block.
type surface struct {
	scale      int
	cols, rows int
	cells      [][]cell
}

// fitScale is the smallest integer scale at which bounds fit cols x rows
func fitScale(bounds image.Rectangle, cols, rows int) int {
	if cols <= 0 || rows <= 0 {
		return 1
	}
	scale := 1
	for bounds.Dx() > cols*scale || bounds.Dy() > rows*2*scale {
		scale++
	}
	return scale
}

// newSurface samples img into cells. Within each half cell the pixel
// furthest from the background wins, so thin strokes survive downscaling.
func newSurface(img *image.RGBA, scale int, bg color.RGBA) *surface {
	b := img.Bounds()
	s := &surface{
		scale: scale,
		cols:  (b.Dx() + scale - 1) / scale,
		rows:  (b.Dy() + 2*scale - 1) / (2 * scale),
	}
	s.cells = make([][]cell, s.rows)
	for cy := 0; cy < s.rows; cy++ {
		row := make([]cell, s.cols)
		for cx := 0; cx < s.cols; cx++ {
			x0 := b.Min.X + cx*scale
			y0 := b.Min.Y + cy*2*scale
			row[cx] = cell{
				ch: upperHalfBlock,
				fg: dominant(img, image.Rect(x0, y0, x0+scale, y0+scale), bg),
				bg: dominant(img, image.Rect(x0, y0+scale, x0+scale, y0+2*scale), bg),
			}
		}
		s.cells[cy] = row
	}
	return s
}

func dominant(img *image.RGBA, r image.Rectangle, bg color.RGBA) color.RGBA {
	r = r.Intersect(img.Bounds())
	best, bestDist := bg, 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if d := distance(c, bg); d > bestDist {
				best, bestDist = c, d
			}
		}
	}
	return best
}

func distance(a, b color.RGBA) int {
	abs := func(v int) int {
		if v < 0 {
			return -v
		}
		return v
	}
	return abs(int(a.R)-int(b.R)) + abs(int(a.G)-int(b.G)) + abs(int(a.B)-int(b.B))
}

// stamp writes text into the row at the vertical centre of t.rect
func (s *surface) stamp(origin image.Point, t textItem, bg color.RGBA) {
	if t.text == "" {
		return
	}
	r := t.rect.Sub(origin)
	row := (r.Min.Y + r.Max.Y) / 2 / (2 * s.scale)
	if row < 0 || row >= s.rows {
		return
	}
	first := r.Min.X / s.scale
	last := (r.Max.X + s.scale - 1) / s.scale
	if first < 0 {
		first = 0
	}
	if last > s.cols {
		last = s.cols
	}
	width := last - first
	if width <= 0 {
		return
	}

	runes := []rune(t.text)
	if len(runes) > width {
		runes = runes[:width]
	}
	start := first
	switch t.align {
	case canvas.AlignCenter:
		start += (width - len(runes)) / 2
	case canvas.AlignRight:
		start = last - len(runes)
	}
	for i, ch := range runes {
		s.cells[row][start+i] = cell{ch: ch, fg: t.color, bg: bg}
	}
}

// String renders the cells, one lipgloss style per run of equal cells
func (s *surface) String() string {
	var sb strings.Builder
	for y, row := range s.cells {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < len(row); {
			end := x + 1
			for end < len(row) && row[end].fg == row[x].fg && row[end].bg == row[x].bg {
				end++
			}
			run := make([]rune, 0, end-x)
			for _, c := range row[x:end] {
				run = append(run, c.ch)
			}
			style := lipgloss.NewStyle().
				Foreground(hexColor(row[x].fg)).
				Background(hexColor(row[x].bg))
			sb.WriteString(style.Render(string(run)))
			x = end
		}
	}
	return sb.String()
}

func hexColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// RenderTerminal paints f and returns it as terminal text fitting cols x rows
func (d *Display) RenderTerminal(f Frame, cols, rows int) string {
	scr := d.PaintFace(f)
	s := newSurface(scr.Image(), fitScale(d.layout.Bounds, cols, rows), d.theme.Background)
	for _, t := range d.texts(f) {
		s.stamp(d.layout.Bounds.Min, t, d.theme.Background)
	}
	return s.String()
}
