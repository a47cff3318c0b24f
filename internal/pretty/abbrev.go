// Package pretty formats values for log lines.
package pretty

import "unicode/utf8"

// Abbrev shortens s for display. With no ranges, strings over 12 bytes are cut
// to 12. One range sets both the limit and the cut, two set them separately.
func Abbrev(s string, ranges ...int) Abbreviated {
	maxLen, cutTo := 12, 12
	if len(ranges) >= 2 {
		maxLen, cutTo = ranges[0], ranges[1]
	} else if len(ranges) == 1 {
		maxLen, cutTo = ranges[0], ranges[0]
	}
	return Abbreviated{
		Original: s,
		MaxLen:   maxLen,
		CutTo:    cutTo,
	}
}

// Abbreviated is a string that is cut when printed.
type Abbreviated struct {
	Original string
	MaxLen   int
	CutTo    int
}

func (s Abbreviated) String() string {
	if len(s.Original) <= s.MaxLen {
		return s.Original
	}
	cut := s.CutTo
	// Never split a multi-byte rune.
	for cut > 0 && !utf8.RuneStart(s.Original[cut]) {
		cut--
	}
	return s.Original[:cut] + "…"
}
