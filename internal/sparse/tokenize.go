package sparse

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// spanishStopwords are dropped before weighting. Listing text is Spanish.
var spanishStopwords = toSet(
	"a", "al", "algo", "ante", "con", "como", "cual", "de", "del", "desde", "donde", "el", "ella",
	"en", "entre", "es", "esta", "este", "esto", "hay", "la", "las", "le", "lo", "los", "mas",
	"muy", "no", "o", "para", "pero", "por", "que", "se", "sin", "sobre", "su", "sus", "tambien",
	"un", "una", "uno", "unos", "unas", "y", "ya",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// tokenizer lower-cases, optionally folds accents, splits on anything that is
// not a letter or digit and drops stopwords.
type tokenizer struct {
	foldAccents bool
	stopwords   map[string]struct{}
	minLength   int
}

func (t tokenizer) tokens(text string) []string {
	text = strings.ToLower(text)
	if t.foldAccents {
		text = foldAccents(text)
	}
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < t.minLength {
			continue
		}
		if _, stop := t.stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// foldAccents strips combining marks: "baño" -> "bano", "ubicación" -> "ubicacion".
func foldAccents(s string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(chain, s)
	if err != nil {
		return s
	}
	return out
}
