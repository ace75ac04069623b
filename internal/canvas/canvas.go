// Package canvas rasterizes the watch display into an in-memory RGBA image.
// A Screen is the whole display; a Layer is a clipped drawing context over
// a rectangle of it, with layer-relative coordinates.
package canvas

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"
)

// kappa is the control point distance for a cubic Bézier quarter circle
const kappa = 0.5522847498

// Screen is the full display framebuffer
type Screen struct {
	img *image.RGBA
}

// NewScreen allocates a framebuffer of the given bounds
func NewScreen(bounds image.Rectangle) *Screen {
	return &Screen{img: image.NewRGBA(bounds)}
}

// Image exposes the framebuffer
func (s *Screen) Image() *image.RGBA {
	return s.img
}

// Bounds returns the display rectangle
func (s *Screen) Bounds() image.Rectangle {
	return s.img.Bounds()
}

// Fill paints the whole display with c
func (s *Screen) Fill(c color.Color) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// Layer returns a drawing context clipped to rect
func (s *Screen) Layer(rect image.Rectangle) *Layer {
	return &Layer{
		img:         s.img,
		rect:        rect.Intersect(s.img.Bounds()),
		origin:      rect.Min,
		stroke:      color.White,
		fill:        color.White,
		strokeWidth: 1,
	}
}

// Layer draws into a rectangle of the screen. It implements face.Context.
type Layer struct {
	img         *image.RGBA
	rect        image.Rectangle
	origin      image.Point
	stroke      color.Color
	fill        color.Color
	strokeWidth int
	antialiased bool
}

// SetStrokeColor sets the colour of subsequent outlines
func (l *Layer) SetStrokeColor(c color.Color) { l.stroke = c }

// SetFillColor sets the colour of subsequent fills
func (l *Layer) SetFillColor(c color.Color) { l.fill = c }

// SetStrokeWidth sets the outline width in pixels
func (l *Layer) SetStrokeWidth(w int) {
	if w < 1 {
		w = 1
	}
	l.strokeWidth = w
}

// SetAntialiased toggles antialiased rasterization
func (l *Layer) SetAntialiased(on bool) { l.antialiased = on }

// DrawCircle strokes a circle outline
func (l *Layer) DrawCircle(center image.Point, radius int) {
	if radius < 0 || l.rect.Empty() {
		return
	}
	if l.antialiased {
		center = l.rasterPoint(center)
		half := float32(l.strokeWidth) / 2
		outer := float32(radius) + half
		inner := float32(radius) - half
		z := l.rasterizer()
		addCircle(z, center, outer, 1)
		if inner > 0 {
			addCircle(z, center, inner, -1)
		}
		l.drawPath(z, l.stroke)
		return
	}

	lo := radius - (l.strokeWidth-1)/2
	for r := lo; r < lo+l.strokeWidth; r++ {
		if r >= 0 {
			l.midpointCircle(center, r)
		}
	}
}

// FillCircle fills a disc
func (l *Layer) FillCircle(center image.Point, radius int) {
	if radius < 0 || l.rect.Empty() {
		return
	}
	if l.antialiased {
		center = l.rasterPoint(center)
		z := l.rasterizer()
		addCircle(z, center, float32(radius)+0.5, 1)
		l.drawPath(z, l.fill)
		return
	}

	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				l.set(center.X+dx, center.Y+dy, l.fill)
			}
		}
	}
}

// midpointCircle plots a one pixel wide aliased circle
func (l *Layer) midpointCircle(c image.Point, r int) {
	x, y := r, 0
	err := 1 - r
	for x >= y {
		for _, p := range [8][2]int{
			{x, y}, {y, x}, {-y, x}, {-x, y},
			{-x, -y}, {-y, -x}, {y, -x}, {x, -y},
		} {
			l.set(c.X+p[0], c.Y+p[1], l.stroke)
		}
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

func (l *Layer) set(x, y int, c color.Color) {
	p := image.Pt(x, y).Add(l.origin)
	if p.In(l.rect) {
		l.img.Set(p.X, p.Y, c)
	}
}

func (l *Layer) rasterizer() *vector.Rasterizer {
	z := vector.NewRasterizer(l.rect.Dx(), l.rect.Dy())
	z.DrawOp = draw.Over
	return z
}

// rasterPoint converts a layer point to rasterizer space, which starts at
// the clipped rectangle rather than the layer origin
func (l *Layer) rasterPoint(p image.Point) image.Point {
	return p.Add(l.origin).Sub(l.rect.Min)
}

func (l *Layer) drawPath(z *vector.Rasterizer, c color.Color) {
	z.Draw(l.img, l.rect, image.NewUniform(c), image.Point{})
}

// addCircle appends a closed circle to z. dir=1 winds clockwise on screen,
// dir=-1 counter-clockwise, so an inner circle of opposite winding cuts a
// hole. Pixel (x,y) covers [x,x+1), hence the half pixel shift.
func addCircle(z *vector.Rasterizer, c image.Point, r float32, dir float32) {
	cx := float32(c.X) + 0.5
	cy := float32(c.Y) + 0.5
	k := r * kappa
	dy := dir

	z.MoveTo(cx+r, cy)
	z.CubeTo(cx+r, cy+dy*k, cx+k, cy+dy*r, cx, cy+dy*r)
	z.CubeTo(cx-k, cy+dy*r, cx-r, cy+dy*k, cx-r, cy)
	z.CubeTo(cx-r, cy-dy*k, cx-k, cy-dy*r, cx, cy-dy*r)
	z.CubeTo(cx+k, cy-dy*r, cx+r, cy-dy*k, cx+r, cy)
	z.ClosePath()
}
