// Package textnorm canonicalizes free text for search comparisons.
//
// The source corpus mixes ASCII, fullwidth forms, roman-numeral glyphs, and
// Japanese (kanji/kana) titles, so every comparison in the search path goes
// through NFKC compatibility folding first. All functions are pure and safe
// on empty input.
package textnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Stopwords are generic catalog words that appear in most book titles and
// carry no signal for ranking.
var stopwords = map[string]struct{}{
	"問題集": {},
	"入試":  {},
	"演習":  {},
	"講座":  {},
	"ノート": {},
	"完全":  {},
	"総合":  {},
	"実戦":  {},
	"実践":  {},
}

// digitGlyphs maps roman-numeral and circled-digit glyphs to ASCII digits.
// Applied before NFKC folding: NFKC would turn Ⅲ into the letters "III",
// losing the digit. Fullwidth digits are left to NFKC.
var digitGlyphs = strings.NewReplacer(
	"Ⅹ", "10", "①", "1", "②", "2", "③", "3", "④", "4", "⑤", "5",
	"⑥", "6", "⑦", "7", "⑧", "8", "⑨", "9", "⑩", "10",
	"Ⅰ", "1", "Ⅱ", "2", "Ⅲ", "3", "Ⅳ", "4", "Ⅴ", "5",
	"Ⅵ", "6", "Ⅶ", "7", "Ⅷ", "8", "Ⅸ", "9",
)

var (
	// A kanji compound joined by one or two hiragana characters (like
	// 数学の問題), split so both kanji halves become separate tokens.
	kanaBridge = regexp.MustCompile(`([\x{4E00}-\x{9FAF}])[\x{3041}-\x{3093}]{1,2}([\x{4E00}-\x{9FAF}])`)

	// Token boundary: anything that is neither a word character (letter,
	// digit, underscore) nor CJK/kana. \p{L} and \p{N} already cover the
	// ideograph and kana blocks.
	nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
)

// Normalize folds a string for equality and substring comparisons:
// surrounding whitespace stripped, lowercased, NFKC compatibility folded.
func Normalize(s string) string {
	return norm.NFKC.String(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizeHeader folds a sheet header for column matching. Like Normalize
// but additionally removes all spaces (ASCII and ideographic), since header
// rows are typed by hand and spacing is inconsistent.
func NormalizeHeader(s string) string {
	folded := Normalize(s)
	folded = strings.ReplaceAll(folded, "　", "")
	return strings.ReplaceAll(folded, " ", "")
}

// Tokenize splits text into search lexemes: digit glyphs mapped to ASCII,
// NFKC folded, kanji compounds split at short kana bridges, lowercased, cut
// at non-word boundaries, with single-character tokens and stopwords dropped.
// Returns nil for empty input.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	s := digitGlyphs.Replace(text)
	s = norm.NFKC.String(s)
	s = kanaBridge.ReplaceAllString(s, "$1 $2")
	s = strings.ToLower(s)

	var tokens []string
	for _, part := range nonWord.Split(s, -1) {
		t := strings.TrimSpace(part)
		if utf8.RuneCountInString(t) < 2 {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}
