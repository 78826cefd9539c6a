package animation

import (
	"fmt"
	"strings"
)

// Expression renders the track as a piecewise linear FFmpeg expression over
// variable (for example "n", or "(t*30)" for filters that count seconds).
// Segment easing is not represented; FFmpeg gets the linear baseline.
func Expression(t Track, variable string) string {
	kfs := t.Keyframes
	switch len(kfs) {
	case 0:
		return "0"
	case 1:
		return fmt.Sprintf("%.6f", kfs[0].Value)
	}

	var b strings.Builder

	// Hold the first value before the first keyframe
	fmt.Fprintf(&b, "if(lte(%s,%d),%.6f,", variable, kfs[0].Frame, kfs[0].Value)

	for i := 0; i < len(kfs)-1; i++ {
		a, c := kfs[i], kfs[i+1]
		// if(lte(v,end),start+(v-startFrame)/len*(delta),...)
		fmt.Fprintf(&b, "if(lte(%s,%d),%.6f+(%s-%d)/%d*(%.6f),",
			variable, c.Frame, a.Value, variable, a.Frame, c.Frame-a.Frame, c.Value-a.Value)
	}

	fmt.Fprintf(&b, "%.6f", kfs[len(kfs)-1].Value)
	b.WriteString(strings.Repeat(")", len(kfs)))

	return b.String()
}
