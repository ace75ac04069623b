package face

import (
	"image"
	"image/color"

	"github.com/ngmaloney/pendulum/internal/hands"
	"github.com/ngmaloney/pendulum/internal/platform"
)

const (
	// DotRadius is the radius of the filled disc at each hand tip
	DotRadius = 5

	minuteInset = 5
	hourInset   = 15
	strokeWidth = 2
)

// Context is the drawing surface the renderer paints into. Coordinates are
// relative to the clock layer's origin.
type Context interface {
	SetStrokeColor(c color.Color)
	SetFillColor(c color.Color)
	SetStrokeWidth(w int)
	SetAntialiased(on bool)
	DrawCircle(center image.Point, radius int)
	FillCircle(center image.Point, radius int)
}

// Color palette used on colour displays
var (
	ColorBlack        = color.RGBA{0x00, 0x00, 0x00, 0xff}
	ColorWhite        = color.RGBA{0xff, 0xff, 0xff, 0xff}
	ColorBlueMoon     = color.RGBA{0x00, 0x55, 0xff, 0xff}
	ColorIslamicGreen = color.RGBA{0x00, 0xaa, 0x00, 0xff}
)

// Theme holds the colours and stroke capabilities for one platform
type Theme struct {
	Background  color.RGBA
	Minute      color.RGBA
	Hour        color.RGBA
	Text        color.RGBA
	Temperature color.RGBA
	Conditions  color.RGBA
	Antialiased bool
}

// NewTheme picks the palette for a platform. Monochrome displays draw
// everything in white on black.
func NewTheme(p platform.Platform) Theme {
	t := Theme{
		Background:  ColorBlack,
		Minute:      ColorWhite,
		Hour:        ColorWhite,
		Text:        ColorWhite,
		Temperature: ColorWhite,
		Conditions:  ColorWhite,
		Antialiased: p.Antialiased,
	}
	if p.Color {
		t.Minute = ColorBlueMoon
		t.Hour = ColorIslamicGreen
		t.Text = ColorBlueMoon
		t.Temperature = ColorIslamicGreen
		t.Conditions = ColorIslamicGreen
	}
	return t
}

// Renderer draws the two ring-and-dot hands of the clock face
type Renderer struct {
	theme Theme
}

// NewRenderer creates a renderer for the given theme
func NewRenderer(theme Theme) *Renderer {
	return &Renderer{theme: theme}
}

// Render draws the minute and hour hands for a square face of faceSize
// pixels. It only draws into ctx.
func (r *Renderer) Render(ctx Context, faceSize, hours, minutes int) {
	minuteAngle := hands.MinuteAngle(minutes)
	hourAngle := hands.HourAngle(hours, minutes)

	r.drawHand(ctx, faceSize, minuteAngle, faceSize/2-minuteInset, r.theme.Minute)
	r.drawHand(ctx, faceSize, hourAngle, faceSize/2-hourInset, r.theme.Hour)
}

// drawHand draws a ring of the given radius and a dot on it at angle
func (r *Renderer) drawHand(ctx Context, faceSize int, angle int32, radius int, c color.RGBA) {
	center := image.Pt(faceSize/2, faceSize/2)

	if r.theme.Antialiased {
		ctx.SetStrokeWidth(strokeWidth)
		ctx.SetAntialiased(true)
	}

	ctx.SetStrokeColor(c)
	ctx.DrawCircle(center, radius)

	ctx.SetFillColor(c)
	ctx.FillCircle(hands.HandPoint(center, angle, radius), DotRadius)
}
