// Package progress measures reading progress by counting readable
// characters per paragraph.
package progress

import (
	"unicode"

	"golang.org/x/text/unicode/rangetable"
)

// readableRanges lists the inclusive rune ranges counted besides the
// Radical and Unified_Ideograph properties.
var readableRanges = [][2]rune{
	{'0', '9'}, {'A', 'Z'}, {'a', 'z'},
	{'０', '９'}, {'Ａ', 'Ｚ'}, {'ａ', 'ｚ'},
	{'○', '○'}, {'◯', '◯'}, {'々', '〇'}, {'〻', '〻'},
	{'ぁ', 'ゖ'}, {'ゝ', 'ゞ'},
	{'ァ', 'ヺ'}, {'ー', 'ー'},
	{'ｦ', 'ﾝ'},
}

// Table is the readable character class.
var Table = buildTable()

func buildTable() *unicode.RangeTable {
	var runes []rune
	for _, r := range readableRanges {
		for c := r[0]; c <= r[1]; c++ {
			runes = append(runes, c)
		}
	}
	return rangetable.Merge(rangetable.New(runes...), unicode.Radical, unicode.Unified_Ideograph)
}

// Readable reports whether r counts toward reading progress. Whitespace,
// punctuation and symbols do not.
func Readable(r rune) bool {
	return unicode.Is(Table, r)
}

// CountString returns the number of readable runes in s.
func CountString(s string) int {
	n := 0
	for _, r := range s {
		if Readable(r) {
			n++
		}
	}
	return n
}
