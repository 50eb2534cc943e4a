package annotation

import (
	"image"
	"image/color"
)

// strokeOffsets returns the pixel offsets covered by a stroke of width w
// around its centre line. Even widths extend one pixel further right and down.
func strokeOffsets(w int) (lo, hi int) {
	if w < 1 {
		w = 1
	}
	return -(w - 1) / 2, w / 2
}

func setThickPixel(img *image.RGBA, x, y, width int, col color.RGBA) {
	lo, hi := strokeOffsets(width)
	b := img.Bounds()
	for dx := lo; dx <= hi; dx++ {
		for dy := lo; dy <= hi; dy++ {
			if image.Pt(x+dx, y+dy).In(b) {
				img.SetRGBA(x+dx, y+dy, col)
			}
		}
	}
}

// drawLine rasterizes the segment a-b with Bresenham's algorithm.
func drawLine(img *image.RGBA, a, b image.Point, col color.RGBA, width int) {
	x0, y0, x1, y1 := a.X, a.Y, b.X, b.Y
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		setThickPixel(img, x0, y0, width, col)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// lineBounds is the rectangle drawLine may touch for a-b, clipped to clip.
func lineBounds(a, b image.Point, width int, clip image.Rectangle) image.Rectangle {
	lo, hi := strokeOffsets(width)
	r := image.Rectangle{Min: a, Max: b}.Canon()
	r.Min = r.Min.Add(image.Pt(lo, lo))
	r.Max = r.Max.Add(image.Pt(hi+1, hi+1))
	return r.Intersect(clip)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
