package tables

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	kernelLength = 40
	inkThreshold = 128
)

// decodeImage decodes any registered raster format.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// toGray converts img to grayscale, downscaling so neither side exceeds
// maxDim. It returns the scale factor from source to result.
func toGray(img image.Image, maxDim int) (*image.Gray, float64) {
	b := img.Bounds()
	scale := 1.0
	if maxDim > 0 && max(b.Dx(), b.Dy()) > maxDim {
		scale = float64(maxDim) / float64(max(b.Dx(), b.Dy()))
	}
	w := max(int(float64(b.Dx())*scale), 1)
	h := max(int(float64(b.Dy())*scale), 1)
	gray := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	return gray, scale
}

// inkMask marks dark pixels, the inverse binary threshold of gray.
func inkMask(gray *image.Gray) [][]bool {
	b := gray.Bounds()
	mask := make([][]bool, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		mask[y] = make([]bool, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			mask[y][x] = gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y < inkThreshold
		}
	}
	return mask
}

// lineMask is the union of the morphological openings of mask with a
// horizontal and a vertical line kernel. Opening with a 1-D line keeps
// exactly the runs at least as long as the kernel.
func lineMask(mask [][]bool, k int) [][]bool {
	h := len(mask)
	if h == 0 {
		return nil
	}
	w := len(mask[0])
	out := make([][]bool, h)
	for y := range out {
		out[y] = make([]bool, w)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; {
			if !mask[y][x] {
				x++
				continue
			}
			start := x
			for x < w && mask[y][x] {
				x++
			}
			if x-start >= k {
				for i := start; i < x; i++ {
					out[y][i] = true
				}
			}
		}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; {
			if !mask[y][x] {
				y++
				continue
			}
			start := y
			for y < h && mask[y][x] {
				y++
			}
			if y-start >= k {
				for i := start; i < y; i++ {
					out[i][x] = true
				}
			}
		}
	}
	return out
}

// components returns the bounding rectangles of 8-connected regions.
func components(mask [][]bool) []image.Rectangle {
	h := len(mask)
	if h == 0 {
		return nil
	}
	w := len(mask[0])
	seen := make([][]bool, h)
	for y := range seen {
		seen[y] = make([]bool, w)
	}

	var rects []image.Rectangle
	stack := make([]image.Point, 0, 64)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y][x] || seen[y][x] {
				continue
			}
			r := image.Rect(x, y, x+1, y+1)
			seen[y][x] = true
			stack = append(stack[:0], image.Pt(x, y))
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				r = r.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p.X+dx, p.Y+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h || seen[ny][nx] || !mask[ny][nx] {
							continue
						}
						seen[ny][nx] = true
						stack = append(stack, image.Pt(nx, ny))
					}
				}
			}
			rects = append(rects, r)
		}
	}
	return rects
}

// tableRegions finds ruled table areas in img, in source coordinates.
// Regions whose area is at most minArea pixels are discarded.
func tableRegions(img image.Image, maxDim, minArea int) []image.Rectangle {
	gray, scale := toGray(img, maxDim)
	lines := lineMask(inkMask(gray), kernelLength)

	origin := img.Bounds().Min
	var regions []image.Rectangle
	for _, r := range components(lines) {
		src := image.Rect(
			int(float64(r.Min.X)/scale), int(float64(r.Min.Y)/scale),
			int(float64(r.Max.X)/scale), int(float64(r.Max.Y)/scale),
		).Add(origin).Intersect(img.Bounds())
		if src.Dx()*src.Dy() > minArea {
			regions = append(regions, src)
		}
	}
	return regions
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropPNG encodes the r portion of img as PNG.
func cropPNG(img image.Image, r image.Rectangle) ([]byte, error) {
	var part image.Image = img
	if s, ok := img.(subImager); ok {
		part = s.SubImage(r)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, r.Min, draw.Src)
		part = rgba
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, part); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
