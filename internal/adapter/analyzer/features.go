package analyzer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"chunk/internal/domain"
)

const (
	boundaryStart = "<s>"
	boundaryEnd   = "</s>"
)

// Features is the default chunking feature extractor. Every token gets a
// bias term, its normalized word and tag, a word window of one and a tag
// window of two on each side, tag bigrams, affixes, a word shape and the
// ezafe marker carried by tags ending in "e".
func Features(sentence []domain.TaggedToken) [][]string {
	words := make([]string, len(sentence))
	tags := make([]string, len(sentence))
	for i, tok := range sentence {
		words[i] = NormalizeWord(tok.Text)
		tags[i] = tok.POS
	}

	at := func(seq []string, i int) string {
		switch {
		case i < 0:
			return boundaryStart
		case i >= len(seq):
			return boundaryEnd
		}
		return seq[i]
	}

	rows := make([][]string, len(sentence))
	for i := range sentence {
		w, pos := words[i], tags[i]
		f := []string{
			"bias",
			"w=" + w,
			"pos=" + pos,
			"w[-1]=" + at(words, i-1),
			"w[+1]=" + at(words, i+1),
			"pos[-2]=" + at(tags, i-2),
			"pos[-1]=" + at(tags, i-1),
			"pos[+1]=" + at(tags, i+1),
			"pos[+2]=" + at(tags, i+2),
			"pos[-1]|pos=" + at(tags, i-1) + "|" + pos,
			"pos|pos[+1]=" + pos + "|" + at(tags, i+1),
			"shape=" + Shape(w),
		}

		runes := []rune(w)
		if len(runes) > 2 {
			f = append(f,
				"pre2="+string(runes[:2]),
				"suf2="+string(runes[len(runes)-2:]),
			)
		}
		if len(runes) > 3 {
			f = append(f, "suf3="+string(runes[len(runes)-3:]))
		}
		if len(pos) > 1 && strings.HasSuffix(pos, "e") {
			f = append(f, "ezafe", "pos.base="+strings.TrimSuffix(pos, "e"))
		}
		if i == 0 {
			f = append(f, "BOS")
		}
		if i == len(sentence)-1 {
			f = append(f, "EOS")
		}
		rows[i] = f
	}
	return rows
}

// NormalizeWord returns the NFC lowercase form of a word.
func NormalizeWord(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// Shape maps a word to its collapsed character classes: d for digits, x for
// letters, p for punctuation and symbols, o for anything else. "۱۰" is "d",
// "A-1" is "xpd".
func Shape(s string) string {
	var sb strings.Builder
	var last byte
	for _, r := range s {
		var c byte
		switch {
		case unicode.IsDigit(r):
			c = 'd'
		case unicode.IsLetter(r) || unicode.Is(unicode.Mn, r):
			c = 'x'
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			c = 'p'
		default:
			c = 'o'
		}
		if c != last {
			sb.WriteByte(c)
			last = c
		}
	}
	return sb.String()
}
