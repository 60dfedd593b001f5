package generation

import (
	"regexp"
	"strconv"
)

var chartIndexRe = regexp.MustCompile(`(?i)chart\s*#?\s*(\d+)`)

// ResolveChartIndex maps a customize request onto a chart slot. A
// 1-based number in the free text ("fix chart 2") wins over the explicit
// index. When count is known, out-of-range values clamp to 0 — a UX
// leniency so a sloppy reference edits the first chart instead of
// erroring. count <= 0 means the caller's dashboard size is unknown and
// the resolved index is passed through unclamped.
func ResolveChartIndex(prompt string, explicit int, count int) int {
	if m := chartIndexRe.FindStringSubmatch(prompt); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			idx := n - 1
			if idx >= 0 && (count <= 0 || idx < count) {
				return idx
			}
		}
		return 0
	}
	if explicit >= 0 && (count <= 0 || explicit < count) {
		return explicit
	}
	return 0
}
