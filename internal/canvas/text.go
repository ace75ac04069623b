package canvas

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Alignment positions text horizontally within its rectangle
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// DrawText draws s inside rect with the built-in bitmap face, vertically
// centred and clipped to rect.
func (s *Screen) DrawText(rect image.Rectangle, text string, c color.Color, align Alignment) {
	rect = rect.Intersect(s.img.Bounds())
	if rect.Empty() || text == "" {
		return
	}

	face := basicfont.Face7x13
	dst, ok := s.img.SubImage(rect).(*image.RGBA)
	if !ok {
		return
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}

	width := d.MeasureString(text).Ceil()
	x := rect.Min.X
	switch align {
	case AlignCenter:
		x += (rect.Dx() - width) / 2
	case AlignRight:
		x = rect.Max.X - width
	}

	m := face.Metrics()
	textHeight := (m.Ascent + m.Descent).Ceil()
	baseline := rect.Min.Y + (rect.Dy()-textHeight)/2 + m.Ascent.Ceil()

	d.Dot = fixed.P(x, baseline)
	d.DrawString(text)
}
