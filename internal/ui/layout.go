package ui

import "image"

// StatusHeight is the strip reserved at the bottom for weather text
const StatusHeight = 20

// Layout is the position of every element on the display
type Layout struct {
	Bounds      image.Rectangle
	Clock       image.Rectangle // square drawing surface of the analog face
	FaceSize    int
	Time        image.Rectangle // digital time, centred over the face
	Temperature image.Rectangle // left of the status strip
	Conditions  image.Rectangle // right of the status strip
	Weather     bool
}

// ComputeLayout places the elements within bounds. With weather the
// bottom StatusHeight pixels are reserved for temperature and conditions;
// without it the face is centred in the full bounds.
func ComputeLayout(bounds image.Rectangle, textHeight int, weather bool) Layout {
	w, h := bounds.Dx(), bounds.Dy()
	status := 0
	if weather {
		status = StatusHeight
	}

	size := w
	if h-status < size {
		size = h - status
	}

	at := func(x, y, width, height int) image.Rectangle {
		return image.Rect(x, y, x+width, y+height).Add(bounds.Min)
	}

	l := Layout{
		Bounds:   bounds,
		FaceSize: size,
		Clock:    at((w-size)/2, (h-status-size)/2, size, size),
		Time:     at(0, (h-textHeight-status)/2, w, textHeight),
		Weather:  weather,
	}
	if weather {
		l.Temperature = at(2, h-StatusHeight, (w-4)/4, StatusHeight)
		l.Conditions = at((w-4)/4+2, h-StatusHeight, (w-4)*3/4-2, StatusHeight)
	}
	return l
}
