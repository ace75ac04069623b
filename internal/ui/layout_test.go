package ui

import (
	"image"
	"testing"

	"github.com/ngmaloney/pendulum/internal/platform"
)

func TestComputeLayout(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		weather  bool
		want     Layout
	}{
		{
			name:     "basalt with weather",
			platform: "basalt",
			weather:  true,
			want: Layout{
				Bounds:      image.Rect(0, 0, 144, 168),
				FaceSize:    144,
				Clock:       image.Rect(0, 2, 144, 146),
				Time:        image.Rect(0, 54, 144, 94),
				Temperature: image.Rect(2, 148, 37, 168),
				Conditions:  image.Rect(37, 148, 140, 168),
				Weather:     true,
			},
		},
		{
			name:     "aplite with weather uses the taller font",
			platform: "aplite",
			weather:  true,
			want: Layout{
				Bounds:      image.Rect(0, 0, 144, 168),
				FaceSize:    144,
				Clock:       image.Rect(0, 2, 144, 146),
				Time:        image.Rect(0, 53, 144, 95),
				Temperature: image.Rect(2, 148, 37, 168),
				Conditions:  image.Rect(37, 148, 140, 168),
				Weather:     true,
			},
		},
		{
			name:     "chalk is limited by height",
			platform: "chalk",
			weather:  true,
			want: Layout{
				Bounds:      image.Rect(0, 0, 180, 180),
				FaceSize:    160,
				Clock:       image.Rect(10, 0, 170, 160),
				Time:        image.Rect(0, 60, 180, 100),
				Temperature: image.Rect(2, 160, 46, 180),
				Conditions:  image.Rect(46, 160, 176, 180),
				Weather:     true,
			},
		},
		{
			name:     "basalt without weather",
			platform: "basalt",
			weather:  false,
			want: Layout{
				Bounds:   image.Rect(0, 0, 144, 168),
				FaceSize: 144,
				Clock:    image.Rect(0, 12, 144, 156),
				Time:     image.Rect(0, 64, 144, 104),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := platform.Lookup(tt.platform)
			if err != nil {
				t.Fatal(err)
			}
			got := ComputeLayout(p.Bounds(), p.Font.TextHeight(), tt.weather)
			if got != tt.want {
				t.Errorf("ComputeLayout() =\n%+v\nwant\n%+v", got, tt.want)
			}
		})
	}
}

func TestComputeLayout_OffsetBounds(t *testing.T) {
	got := ComputeLayout(image.Rect(10, 20, 154, 188), 40, true)
	if got.Clock != image.Rect(10, 22, 154, 166) {
		t.Errorf("Clock = %v", got.Clock)
	}
	if got.Temperature.Min != image.Pt(12, 168) {
		t.Errorf("Temperature.Min = %v", got.Temperature.Min)
	}
}
