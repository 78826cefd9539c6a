// Package raster draws a template.VisualState into an RGBA frame.
package raster

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/frameforge/internal/system"
	"github.com/ivlev/frameforge/internal/template"
)

// MediaResolver loads the image behind a media reference (file path, URL,
// PDF page).
type MediaResolver interface {
	Image(ctx context.Context, src string) (image.Image, error)
}

// Frames hands out and takes back frame buffers. *system.FramePool is the
// production implementation.
type Frames interface {
	Get(rect image.Rectangle) *image.RGBA
	Put(img *image.RGBA)
}

type Rasterizer struct {
	media  MediaResolver
	frames Frames
	log    zerolog.Logger
}

// New returns a rasterizer drawing into buffers from frames. media may be
// nil, in which case media layers are skipped; a nil frames gets a private
// pool.
func New(media MediaResolver, frames Frames, log zerolog.Logger) *Rasterizer {
	if frames == nil {
		frames = system.NewFramePool()
	}
	return &Rasterizer{media: media, frames: frames, log: log}
}

// Render draws vs onto a pooled buffer. The caller owns the result and
// should hand it back with Release once it has been consumed.
func (r *Rasterizer) Render(ctx context.Context, vs template.VisualState) (*image.RGBA, error) {
	if vs.Width <= 0 || vs.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas %dx%d", vs.Width, vs.Height)
	}

	bg, err := ParseHex(vs.Background)
	if err != nil {
		return nil, err
	}

	dst := r.frames.Get(image.Rect(0, 0, vs.Width, vs.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	for _, l := range vs.Layers {
		if err := ctx.Err(); err != nil {
			r.Release(dst)
			return nil, err
		}
		if l.Opacity <= 0 || l.Bounds.W < 1 || l.Bounds.H < 1 {
			continue
		}
		if l.Transform.HasScale() && l.Transform.Scale == 0 {
			continue
		}

		src, err := r.layerImage(ctx, l)
		if err != nil {
			r.log.Warn().Err(err).Str("layer", l.Name).Int("frame", vs.Frame).Msg("layer skipped")
			continue
		}
		if src == nil {
			continue
		}
		place(dst, src, l)
	}

	applyFilters(dst, vs.Filters)
	if vs.Clip != nil {
		clip(dst, *vs.Clip, bg)
	}
	return dst, nil
}

// Release returns a frame obtained from Render to the pool.
func (r *Rasterizer) Release(img *image.RGBA) {
	r.frames.Put(img)
}

func (r *Rasterizer) layerImage(ctx context.Context, l template.Layer) (image.Image, error) {
	w, h := int(math.Ceil(l.Bounds.W)), int(math.Ceil(l.Bounds.H))

	switch l.Kind {
	case template.LayerRect:
		c, err := ParseHex(l.Color)
		if err != nil {
			return nil, err
		}
		return rect(w, h, c, l.Outline), nil
	case template.LayerCircle:
		c, err := ParseHex(l.Color)
		if err != nil {
			return nil, err
		}
		return glow(w, h, c), nil
	case template.LayerText:
		c, err := ParseHex(l.Color)
		if err != nil {
			return nil, err
		}
		return textImage(l.Text, l.FontSize, w, h, c), nil
	case template.LayerQR:
		c, err := ParseHex(l.Color)
		if err != nil {
			return nil, err
		}
		return qrImage(l.Text, w, h, c)
	case template.LayerMedia:
		if r.media == nil {
			return nil, nil
		}
		img, err := r.media.Image(ctx, l.Src)
		if err != nil {
			return nil, err
		}
		return fit(img, w, h, l.Name == "background"), nil
	default:
		return nil, fmt.Errorf("unknown layer kind %q", l.Kind)
	}
}

// place draws src, already sized to the layer box, onto dst with the
// layer transform applied around the box center.
func place(dst *image.RGBA, src image.Image, l template.Layer) {
	tr := l.Transform
	s := tr.Scale
	if s == 0 && !tr.HasScale() {
		s = 1
	}
	theta := tr.Rotation * math.Pi / 180
	cos, sin := math.Cos(theta)*s, math.Sin(theta)*s

	b := src.Bounds()
	hw, hh := float64(b.Dx())/2, float64(b.Dy())/2
	cx, cy := l.Bounds.Center()
	cx += tr.X
	cy += tr.Y

	m := f64.Aff3{
		cos, -sin, cx - (cos*hw - sin*hh),
		sin, cos, cy - (sin*hw + cos*hh),
	}

	opts := &draw.Options{}
	if l.Opacity < 1 {
		opts.SrcMask = image.NewUniform(color.Alpha16{A: uint16(l.Opacity * 0xffff)})
	}

	if tr.Rotation == 0 && s == 1 {
		off := image.Pt(int(math.Round(m[2])), int(math.Round(m[5])))
		draw.DrawMask(dst, b.Sub(b.Min).Add(off), src, b.Min, opts.SrcMask, b.Min, draw.Over)
		return
	}
	draw.ApproxBiLinear.Transform(dst, m, src, b, draw.Over, opts)
}

// ParseHex parses #RRGGBB or #RRGGBBAA.
func ParseHex(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(hex) == 6 {
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}
	// premultiply so the value is a valid color.RGBA
	a := uint32(v & 0xff)
	return color.RGBA{
		R: uint8(uint32(v>>24&0xff) * a / 0xff),
		G: uint8(uint32(v>>16&0xff) * a / 0xff),
		B: uint8(uint32(v>>8&0xff) * a / 0xff),
		A: uint8(a),
	}, nil
}
