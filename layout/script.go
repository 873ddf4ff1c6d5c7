package layout

import (
	"unicode"

	"golang.org/x/text/width"
)

var uprightScripts = []*unicode.RangeTable{
	unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Bopomofo, unicode.Yi,
}

var cursiveScripts = []*unicode.RangeTable{
	unicode.Arabic, unicode.Syriac, unicode.Mongolian, unicode.Nko, unicode.Mandaic, unicode.Thaana,
}

// hasUprightVerticalOrientation 报告字符在竖排中是否保持直立。
func hasUprightVerticalOrientation(r rune) bool {
	if unicode.In(r, uprightScripts...) {
		return true
	}
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return true
	}
	return false
}

// allowsVerticalWritingMode 报告文本是否含有可竖排的字符。
func allowsVerticalWritingMode(text string) bool {
	for _, r := range text {
		if hasUprightVerticalOrientation(r) {
			return true
		}
	}
	return false
}

// allowsLetterSpacing 连写文字不能插入字距。
func allowsLetterSpacing(text string) bool {
	for _, r := range text {
		if unicode.In(r, cursiveScripts...) {
			return false
		}
	}
	return true
}

// allowsIdeographicBreaking 表意文字之间可以随处断行。
func allowsIdeographicBreaking(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Bopomofo) ||
		width.LookupRune(r).Kind() == width.EastAsianFullwidth
}
