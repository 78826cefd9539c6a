package animation

import (
	"fmt"
	"strings"
)

const (
	hasScale uint8 = 1 << iota
	hasRotation
	hasX
	hasY
)

// Transform is the ordered composition of scale, rotation and translation.
// Only the components that were set appear in String().
type Transform struct {
	Scale    float64
	Rotation float64 // degrees
	X, Y     float64 // pixels
	mask     uint8
}

// Identity returns a transform with no components set.
func Identity() Transform {
	return Transform{Scale: 1}
}

func (t Transform) WithScale(s float64) Transform {
	t.Scale = s
	t.mask |= hasScale
	return t
}

func (t Transform) WithRotation(deg float64) Transform {
	t.Rotation = deg
	t.mask |= hasRotation
	return t
}

func (t Transform) WithTranslate(x, y float64) Transform {
	return t.WithX(x).WithY(y)
}

func (t Transform) WithX(x float64) Transform {
	t.X = x
	t.mask |= hasX
	return t
}

func (t Transform) WithY(y float64) Transform {
	t.Y = y
	t.mask |= hasY
	return t
}

// HasScale reports whether a scale component was set. An unset scale on
// a zero Transform reads as 0 but means 1.
func (t Transform) HasScale() bool {
	return t.mask&hasScale != 0
}

// Then applies o after t: scales multiply, rotations and offsets add.
func (t Transform) Then(o Transform) Transform {
	t.Scale *= o.Scale
	t.Rotation += o.Rotation
	t.X += o.X
	t.Y += o.Y
	t.mask |= o.mask
	return t
}

// String renders the transform in the fixed order scale, rotate,
// translateX, translateY.
func (t Transform) String() string {
	parts := make([]string, 0, 4)
	if t.mask&hasScale != 0 {
		parts = append(parts, fmt.Sprintf("scale(%s)", num(t.Scale)))
	}
	if t.mask&hasRotation != 0 {
		parts = append(parts, fmt.Sprintf("rotate(%sdeg)", num(t.Rotation)))
	}
	if t.mask&hasX != 0 {
		parts = append(parts, fmt.Sprintf("translateX(%spx)", num(t.X)))
	}
	if t.mask&hasY != 0 {
		parts = append(parts, fmt.Sprintf("translateY(%spx)", num(t.Y)))
	}
	return strings.Join(parts, " ")
}

const (
	hasOpacity uint8 = 1 << iota
	hasBlur
	hasBrightness
)

// Style holds the non-transform properties. Each is applied independently.
type Style struct {
	Opacity    float64
	Blur       float64 // px
	Brightness float64 // percent, 100 = unchanged
	mask       uint8
}

// DefaultStyle is fully opaque, unblurred and at normal brightness.
func DefaultStyle() Style {
	return Style{Opacity: 1, Brightness: 100}
}

func (s Style) WithOpacity(o float64) Style {
	s.Opacity = o
	s.mask |= hasOpacity
	return s
}

func (s Style) WithBlur(px float64) Style {
	s.Blur = px
	s.mask |= hasBlur
	return s
}

func (s Style) WithBrightness(pct float64) Style {
	s.Brightness = pct
	s.mask |= hasBrightness
	return s
}

// Filter renders blur and brightness as a filter descriptor string.
func (s Style) Filter() string {
	parts := make([]string, 0, 2)
	if s.mask&hasBlur != 0 {
		parts = append(parts, fmt.Sprintf("blur(%spx)", num(s.Blur)))
	}
	if s.mask&hasBrightness != 0 {
		parts = append(parts, fmt.Sprintf("brightness(%s%%)", num(s.Brightness)))
	}
	return strings.Join(parts, " ")
}

// Compose evaluates every track at frame and folds the results into one
// transform and one style. When several tracks animate the same property
// the last one wins.
func Compose(tracks []Track, frame int) (Transform, Style) {
	tr := Identity()
	st := DefaultStyle()

	byProp := make(map[Property]float64, len(tracks))
	for _, t := range tracks {
		byProp[t.Property] = ValueAt(t, frame)
	}

	if v, ok := byProp[PropScale]; ok {
		tr = tr.WithScale(v)
	}
	if v, ok := byProp[PropRotation]; ok {
		tr = tr.WithRotation(v)
	}
	if v, ok := byProp[PropX]; ok {
		tr = tr.WithX(v)
	}
	if v, ok := byProp[PropY]; ok {
		tr = tr.WithY(v)
	}

	if v, ok := byProp[PropOpacity]; ok {
		st = st.WithOpacity(v)
	}
	if v, ok := byProp[PropBlur]; ok {
		st = st.WithBlur(v)
	}
	if v, ok := byProp[PropBrightness]; ok {
		st = st.WithBrightness(v)
	}

	return tr, st
}

// num formats without trailing zeros so descriptors stay stable.
func num(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
