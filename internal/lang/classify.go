// Package lang decides whether a parsed subtitle track is "English enough"
// to index, and assigns it a normalized language tag.
package lang

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	iso "github.com/barbashov/iso639-3"

	"github.com/nodo1014/indexer-quick/internal/core"
)

// DefaultMinEnglishRatio is the admission threshold used when config does
// not override it.
const DefaultMinEnglishRatio = 0.6

// Result is the outcome of classifying a track's concatenated cue text.
type Result struct {
	Lang     string
	Accepted bool
	Ratio    float64
}

// Classify computes the ASCII-letter ratio admission test and, separately,
// a best-effort language tag. The ratio governs admission; the detector
// only ever changes the recorded tag.
func Classify(text string, minRatio float64) Result {
	ratio := asciiLetterRatio(text)
	accepted := ratio >= minRatio

	detectedTag := core.UnknownLang
	if info := whatlanggo.Detect(text); info.Confidence > 0 {
		if tag := normalizeTag(info.Lang.Iso6391()); tag != "" {
			detectedTag = tag
		} else if tag := normalizeTag(info.Lang.Iso6393()); tag != "" {
			detectedTag = tag
		}
	}

	lang := detectedTag
	if accepted && lang == core.UnknownLang {
		lang = "en"
	}

	return Result{Lang: lang, Accepted: accepted, Ratio: ratio}
}

// asciiLetterRatio is R = (ASCII-letter bytes) / (total letter-class bytes).
func asciiLetterRatio(s string) float64 {
	var ascii, total int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		n := utf8.RuneLen(r)
		total += n
		if r <= unicode.MaxASCII {
			ascii += n
		}
	}
	if total == 0 {
		return 0
	}
	return float64(ascii) / float64(total)
}

// normalizeTag maps a whatlanggo ISO code onto the iso639-3 lookup
// table and returns a lowercase 2-letter code where one exists.
func normalizeTag(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	l := iso.FromAnyCode(code)
	if l == nil {
		return strings.ToLower(code)
	}
	if l.Part1 != "" {
		return strings.ToLower(l.Part1)
	}
	return strings.ToLower(l.Part3)
}
