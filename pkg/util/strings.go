package util

import (
	"strings"
	"unicode"
)

var foldTurkish = strings.NewReplacer(
	"ç", "c", "Ç", "c", "ğ", "g", "Ğ", "g", "ı", "i", "İ", "i",
	"ö", "o", "Ö", "o", "ş", "s", "Ş", "s", "ü", "u", "Ü", "u",
)

// CanonicalKey lowercases, folds Turkish letters to ASCII and joins words with
// underscores: "  Domates  Salkım " -> "domates_salkim".
func CanonicalKey(s string) string {
	s = strings.ToLower(foldTurkish.Replace(s))
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
