package raster

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/ivlev/frameforge/internal/effects"
	"github.com/ivlev/frameforge/internal/transition"
)

// matrix is a 3x3 linear color transform on RGB in [0,1].
type matrix [9]float64

var identity = matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}

func saturateMatrix(s float64) matrix {
	return matrix{
		0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s,
		0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s,
		0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s,
	}
}

func sepiaMatrix(a float64) matrix {
	k := 1 - a
	return matrix{
		0.393 + 0.607*k, 0.769 - 0.769*k, 0.189 - 0.189*k,
		0.349 - 0.349*k, 0.686 + 0.314*k, 0.168 - 0.168*k,
		0.272 - 0.272*k, 0.534 - 0.534*k, 0.131 + 0.869*k,
	}
}

func hueMatrix(deg float64) matrix {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return matrix{
		0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928,
		0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283,
		0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072,
	}
}

// pixelOp maps one RGB triple in [0,1].
type pixelOp func(r, g, b float64) (float64, float64, float64)

func matrixOp(m matrix) pixelOp {
	return func(r, g, b float64) (float64, float64, float64) {
		return m[0]*r + m[1]*g + m[2]*b,
			m[3]*r + m[4]*g + m[5]*b,
			m[6]*r + m[7]*g + m[8]*b
	}
}

func fraction(v float64) float64 {
	return math.Max(0, math.Min(1, v/100))
}

// opFor turns a descriptor into a pixel operation. Blur is handled
// separately since it reads neighbouring pixels.
func opFor(d effects.Descriptor) pixelOp {
	switch effects.Type(d.Name) {
	case effects.Brightness:
		k := math.Max(0, d.Value/100)
		return func(r, g, b float64) (float64, float64, float64) { return r * k, g * k, b * k }
	case effects.Contrast:
		k := math.Max(0, d.Value/100)
		f := func(v float64) float64 { return (v-0.5)*k + 0.5 }
		return func(r, g, b float64) (float64, float64, float64) { return f(r), f(g), f(b) }
	case effects.Saturate:
		return matrixOp(saturateMatrix(math.Max(0, d.Value/100)))
	case effects.Grayscale:
		return matrixOp(saturateMatrix(1 - fraction(d.Value)))
	case effects.Sepia:
		return matrixOp(sepiaMatrix(fraction(d.Value)))
	case effects.Invert:
		a := fraction(d.Value)
		f := func(v float64) float64 { return v*(1-a) + (1-v)*a }
		return func(r, g, b float64) (float64, float64, float64) { return f(r), f(g), f(b) }
	case effects.HueRotate:
		return matrixOp(hueMatrix(d.Value))
	default:
		return nil
	}
}

// applyFilters runs the stack in order over img.
func applyFilters(img *image.RGBA, stack []effects.Descriptor) {
	for _, d := range stack {
		if d.Empty() {
			continue
		}
		if effects.Type(d.Name) == effects.Blur {
			boxBlur(img, int(math.Round(d.Value)))
			continue
		}
		if op := opFor(d); op != nil {
			mapPixels(img, op)
		}
	}
}

func mapPixels(img *image.RGBA, op pixelOp) {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		a := float64(pix[i+3]) / 255
		if a == 0 {
			continue
		}
		// unpremultiply, transform, premultiply
		r, g, b := op(float64(pix[i])/255/a, float64(pix[i+1])/255/a, float64(pix[i+2])/255/a)
		pix[i] = channel(r * a)
		pix[i+1] = channel(g * a)
		pix[i+2] = channel(b * a)
	}
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// boxBlur approximates a gaussian of the given radius with one horizontal
// and one vertical box pass.
func boxBlur(img *image.RGBA, radius int) {
	if radius < 1 {
		return
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tmp := make([]uint8, len(img.Pix))

	pass := func(src, dst []uint8, n, lines int, at func(line, i int) int) {
		for l := 0; l < lines; l++ {
			for c := 0; c < 4; c++ {
				sum, count := 0, 0
				for i := 0; i <= radius && i < n; i++ {
					sum += int(src[at(l, i)+c])
					count++
				}
				for i := 0; i < n; i++ {
					dst[at(l, i)+c] = uint8(sum / count)
					if out := i - radius; out >= 0 {
						sum -= int(src[at(l, out)+c])
						count--
					}
					if in := i + radius + 1; in < n {
						sum += int(src[at(l, in)+c])
						count++
					}
				}
			}
		}
	}

	stride := img.Stride
	pass(img.Pix, tmp, w, h, func(line, i int) int { return line*stride + i*4 })
	pass(tmp, img.Pix, h, w, func(line, i int) int { return i*stride + line*4 })
}

// clip paints the inset region outside the visible window with bg.
func clip(img *image.RGBA, inset transition.Inset, bg color.RGBA) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	vis := image.Rect(
		b.Min.X+int(math.Round(w*inset.Left/100)),
		b.Min.Y+int(math.Round(h*inset.Top/100)),
		b.Max.X-int(math.Round(w*inset.Right/100)),
		b.Max.Y-int(math.Round(h*inset.Bottom/100)),
	)
	u := image.NewUniform(bg)
	for _, r := range []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, vis.Min.Y),
		image.Rect(b.Min.X, vis.Max.Y, b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, vis.Min.Y, vis.Min.X, vis.Max.Y),
		image.Rect(vis.Max.X, vis.Min.Y, b.Max.X, vis.Max.Y),
	} {
		draw.Draw(img, r.Intersect(b), u, image.Point{}, draw.Src)
	}
}
