package ui

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/ngmaloney/pendulum/internal/canvas"
	"github.com/ngmaloney/pendulum/internal/face"
	"github.com/ngmaloney/pendulum/internal/platform"
)

// Frame is what the display shows at one moment
type Frame struct {
	Hour        int
	Minute      int
	Time        string
	Temperature string
	Conditions  string
}

// textItem is one text element in display coordinates
type textItem struct {
	rect  image.Rectangle
	text  string
	color color.RGBA
	align canvas.Alignment
}

// Display owns the geometry, palette and face renderer of one platform
type Display struct {
	platform platform.Platform
	layout   Layout
	theme    face.Theme
	renderer *face.Renderer
}

// NewDisplay prepares a display for p, with or without the weather strip
func NewDisplay(p platform.Platform, weather bool) *Display {
	theme := face.NewTheme(p)
	return &Display{
		platform: p,
		layout:   ComputeLayout(p.Bounds(), p.Font.TextHeight(), weather),
		theme:    theme,
		renderer: face.NewRenderer(theme),
	}
}

// Layout returns the element positions
func (d *Display) Layout() Layout {
	return d.layout
}

// Theme returns the palette
func (d *Display) Theme() face.Theme {
	return d.theme
}

// PaintFace clears the screen and draws the analog face only
func (d *Display) PaintFace(f Frame) *canvas.Screen {
	scr := canvas.NewScreen(d.layout.Bounds)
	scr.Fill(d.theme.Background)
	d.renderer.Render(scr.Layer(d.layout.Clock), d.layout.FaceSize, f.Hour, f.Minute)
	return scr
}

// Paint draws the face and rasterizes the text elements on top
func (d *Display) Paint(f Frame) *canvas.Screen {
	scr := d.PaintFace(f)
	for _, t := range d.texts(f) {
		scr.DrawText(t.rect, t.text, t.color, t.align)
	}
	return scr
}

// WritePNG encodes a fully painted frame
func (d *Display) WritePNG(w io.Writer, f Frame) error {
	if err := png.Encode(w, d.Paint(f).Image()); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

func (d *Display) texts(f Frame) []textItem {
	items := []textItem{
		{rect: d.layout.Time, text: f.Time, color: d.theme.Text, align: canvas.AlignCenter},
	}
	if d.layout.Weather {
		items = append(items,
			textItem{rect: d.layout.Temperature, text: f.Temperature, color: d.theme.Temperature, align: canvas.AlignLeft},
			textItem{rect: d.layout.Conditions, text: f.Conditions, color: d.theme.Conditions, align: canvas.AlignRight},
		)
	}
	return items
}
