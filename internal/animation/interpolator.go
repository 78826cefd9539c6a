package animation

import "sort"

// ValueAt returns the value of the track at frame. Values are clamped to the
// first and last keyframes; between keyframes the segment is interpolated
// with the easing of its starting keyframe (linear when unset).
func ValueAt(t Track, frame int) float64 {
	kfs := t.Keyframes
	switch len(kfs) {
	case 0:
		return 0
	case 1:
		return kfs[0].Value
	}

	if frame <= kfs[0].Frame {
		return kfs[0].Value
	}
	last := kfs[len(kfs)-1]
	if frame >= last.Frame {
		return last.Value
	}

	// first keyframe at or after frame; i >= 1 because frame > kfs[0].Frame
	i := sort.Search(len(kfs), func(i int) bool { return kfs[i].Frame >= frame })
	next := kfs[i]
	if next.Frame == frame {
		return next.Value
	}
	prev := kfs[i-1]

	t01 := float64(frame-prev.Frame) / float64(next.Frame-prev.Frame)
	return lerp(prev.Value, next.Value, prev.Easing.Apply(t01))
}

// Apply maps linear progress t in [0,1] through the easing curve.
func (e Easing) Apply(t float64) float64 {
	t = clamp01(t)
	switch e {
	case EaseIn:
		return t * t
	case EaseOut:
		return 1 - (1-t)*(1-t)
	case EaseInOut:
		return easeInOutCubic(t)
	default:
		return t
	}
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
