package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const outlineWidth = 2

func rect(w, h int, c color.RGBA, outline bool) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	u := image.NewUniform(c)
	if !outline {
		draw.Draw(img, img.Bounds(), u, image.Point{}, draw.Src)
		return img
	}
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, w, outlineWidth),
		image.Rect(0, h-outlineWidth, w, h),
		image.Rect(0, 0, outlineWidth, h),
		image.Rect(w-outlineWidth, 0, w, h),
	} {
		draw.Draw(img, r, u, image.Point{}, draw.Src)
	}
	return img
}

// glow is a radial gradient from c at a quarter strength in the center to
// transparent at the rim.
func glow(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	cx, cy := float64(w)/2, float64(h)/2
	radius := math.Min(cx, cy)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) / radius
			if d >= 1 {
				continue
			}
			a := 0.25 * (1 - d)
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(float64(c.R) * a),
				G: uint8(float64(c.G) * a),
				B: uint8(float64(c.B) * a),
				A: uint8(255 * a),
			})
		}
	}
	return img
}

// textImage draws s with the built-in 7x13 face, scaled to size pixels
// high and centered in a w by h box. Text wider than the box is shrunk to
// fit.
func textImage(s string, size float64, w, h int, c color.RGBA) image.Image {
	box := image.NewRGBA(image.Rect(0, 0, w, h))
	if s == "" {
		return box
	}

	face := basicfont.Face7x13
	adv := font.MeasureString(face, s).Ceil()
	glyphH := face.Metrics().Height.Ceil()
	line := image.NewRGBA(image.Rect(0, 0, adv, glyphH))
	d := &font.Drawer{
		Dst:  line,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)

	scale := size / float64(glyphH)
	if size <= 0 {
		scale = 1
	}
	if fw := float64(w) / float64(adv); fw < scale {
		scale = fw
	}
	tw := int(math.Round(float64(adv) * scale))
	th := int(math.Round(float64(glyphH) * scale))
	x0 := (w - tw) / 2
	y0 := (h - th) / 2
	draw.ApproxBiLinear.Scale(box, image.Rect(x0, y0, x0+tw, y0+th), line, line.Bounds(), draw.Over, nil)
	return box
}

func qrImage(content string, w, h int, fg color.RGBA) (image.Image, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	q.ForegroundColor = fg
	q.BackgroundColor = color.White

	side := w
	if h < side {
		side = h
	}
	code := q.Image(side)

	box := image.NewRGBA(image.Rect(0, 0, w, h))
	off := image.Pt((w-side)/2, (h-side)/2)
	draw.Draw(box, code.Bounds().Add(off), code, code.Bounds().Min, draw.Src)
	return box, nil
}

// fit scales img into a w by h box, covering it (cropping the overflow)
// when cover is set and fitting inside it otherwise.
func fit(img image.Image, w, h int, cover bool) image.Image {
	b := img.Bounds()
	sx := float64(w) / float64(b.Dx())
	sy := float64(h) / float64(b.Dy())
	s := math.Min(sx, sy)
	if cover {
		s = math.Max(sx, sy)
	}
	tw := int(math.Round(float64(b.Dx()) * s))
	th := int(math.Round(float64(b.Dy()) * s))

	box := image.NewRGBA(image.Rect(0, 0, w, h))
	x0 := (w - tw) / 2
	y0 := (h - th) / 2
	draw.ApproxBiLinear.Scale(box, image.Rect(x0, y0, x0+tw, y0+th), img, b, draw.Src, nil)
	return box
}
