package stopwatch

import (
	"fmt"
	"strconv"
	"strings"
)

// Sum adds up the seconds of ms in order
func Sum(ms []Measurement) float64 {
	var total float64
	for _, m := range ms {
		total += m.Seconds
	}
	return total
}

// FormatSeconds renders seconds with six significant digits.
func FormatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Format renders one line per measurement, the label left-aligned in a
// column of the given width, followed by a TOT line with the sum:
//
//	match               :	0.2	sec
//	TOT:	0.2	sec
//
// The TOT line has no trailing newline.
func Format(ms []Measurement, width int) string {
	var b strings.Builder
	for _, m := range ms {
		fmt.Fprintf(&b, "%-*s:\t%s\tsec\n", width, m.Label, FormatSeconds(m.Seconds))
	}
	fmt.Fprintf(&b, "TOT:\t%s\tsec", FormatSeconds(Sum(ms)))
	return b.String()
}
