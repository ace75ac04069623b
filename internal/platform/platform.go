package platform

import (
	"fmt"
	"image"
	"sort"
	"strings"
)

// FontChoice selects the digital time font family of a platform
type FontChoice int

const (
	FontBitham34 FontChoice = iota // Bitham 34 medium numbers
	FontLeco32                     // LECO 32 bold numbers
)

// String returns the system font key name
func (f FontChoice) String() string {
	switch f {
	case FontLeco32:
		return "LECO_32_BOLD_NUMBERS"
	case FontBitham34:
		return "BITHAM_34_MEDIUM_NUMBERS"
	}
	return "UNKNOWN"
}

// TextHeight is the height in pixels reserved for a text line in this font
func (f FontChoice) TextHeight() int {
	if f == FontLeco32 {
		return 40
	}
	return 42
}

// Platform describes the display capabilities of a watch model. It is
// chosen once at startup and never changes afterwards.
type Platform struct {
	Name        string
	Width       int
	Height      int
	Color       bool // 64-colour display; otherwise black and white
	Antialiased bool // stroke width and antialiasing supported
	Font        FontChoice
}

// Bounds returns the full screen rectangle
func (p Platform) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}

var presets = map[string]Platform{
	"aplite":  {Name: "aplite", Width: 144, Height: 168, Color: false, Antialiased: false, Font: FontBitham34},
	"basalt":  {Name: "basalt", Width: 144, Height: 168, Color: true, Antialiased: true, Font: FontLeco32},
	"chalk":   {Name: "chalk", Width: 180, Height: 180, Color: true, Antialiased: true, Font: FontLeco32},
	"diorite": {Name: "diorite", Width: 144, Height: 168, Color: false, Antialiased: false, Font: FontBitham34},
}

// Default is the platform used when none is configured
const Default = "basalt"

// Lookup returns the preset with the given name
func Lookup(name string) (Platform, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Platform{}, fmt.Errorf("unknown platform %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists the known preset names in sorted order
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
