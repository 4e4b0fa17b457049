package normalization

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func ParseInputString(input string) string {
	normalized := strings.ToLower(strings.TrimSpace(input))
	return normalized
}

// stripMarks removes combining marks after NFKC folding. Arabic harakat
// (fatha, damma, kasra, shadda, sukun, ...) are all category Mn.
var stripMarks = transform.Chain(norm.NFKC, runes.Remove(runes.In(unicode.Mn)))

const tatweel = 'ـ'

// FoldDigits maps Arabic-Indic (U+0660..U+0669) and extended Arabic-Indic
// (U+06F0..U+06F9) digits to their ASCII equivalents.
func FoldDigits(input string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		default:
			return r
		}
	}, input)
}

// foldArabicLetters collapses orthographic variants that users mix freely:
// hamza-carrying alef forms to bare alef, alef maqsura to ya, ta marbuta to
// ha, and hamza on waw/ya to the bare carrier.
func foldArabicLetters(input string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case 'آ', 'أ', 'إ', 'ٱ': // آ أ إ ٱ
			return 'ا' // ا
		case 'ؤ': // ؤ
			return 'و' // و
		case 'ئ': // ئ
			return 'ي' // ي
		case 'ى': // ى
			return 'ي' // ي
		case 'ة': // ة
			return 'ه' // ه
		case tatweel:
			return -1
		default:
			return r
		}
	}, input)
}

// Fold runs the full answer-matching pipeline: NFKC fold, diacritic strip,
// Arabic digit and letter-variant folding, case fold, and squashing every
// run of non letter/digit runes to a single space.
func Fold(input string) string {
	folded, _, err := transform.String(stripMarks, input)
	if err != nil {
		folded = input
	}
	folded = FoldDigits(folded)
	folded = foldArabicLetters(folded)
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Compact is Fold with the remaining spaces removed, for strict equality
// checks that should ignore word boundaries.
func Compact(input string) string {
	return strings.ReplaceAll(Fold(input), " ", "")
}

// abjadOrder maps single Arabic letters used as list markers to 1-based
// positions (abjad sequence).
var abjadOrder = []rune("ابجدهوزحطي")

// OrdinalIndex interprets a short token as a 1-based position in a displayed
// option list: "1"/"٢" style digits, a single Latin letter ("a", "B"), or a
// single Arabic abjad letter. Returns false for anything else.
func OrdinalIndex(token string) (int, bool) {
	t := Compact(token)
	if t == "" {
		return 0, false
	}
	allDigits := true
	for _, r := range t {
		if r < '0' || r > '9' {
			allDigits = false
			break
		}
	}
	if allDigits {
		if len(t) > 2 {
			return 0, false
		}
		n := 0
		for _, r := range t {
			n = n*10 + int(r-'0')
		}
		if n < 1 {
			return 0, false
		}
		return n, true
	}
	runes := []rune(t)
	if len(runes) != 1 {
		return 0, false
	}
	r := runes[0]
	if r >= 'a' && r <= 'z' {
		return int(r-'a') + 1, true
	}
	for i, a := range abjadOrder {
		if r == a {
			return i + 1, true
		}
	}
	return 0, false
}
