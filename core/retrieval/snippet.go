package retrieval

import "unicode/utf16"

// TruncateUTF16 shortens s to at most maxUnits UTF-16 code units, only
// cutting at rune boundaries. Runes outside the basic multilingual plane
// count as two units and are never split into a lone surrogate.
func TruncateUTF16(s string, maxUnits int) string {
	if maxUnits <= 0 {
		return ""
	}

	units := 0
	for i, r := range s {
		units += utf16.RuneLen(r)
		if units > maxUnits {
			return s[:i]
		}
	}

	return s
}
