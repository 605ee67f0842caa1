// Package language folds raw language signals into the closed set of
// normalized languages. This is a best-effort heuristic: declared codes
// win, script inspection of the title is the fallback, and English is
// the default when nothing matches.
package language

import (
	"strings"
	"unicode"

	"github.com/hondana-dev/hondana/pkg/models"
	"golang.org/x/text/language"
)

// Signal bundles everything the classifier may inspect for one book.
type Signal struct {
	DeclaredCode string
	TitleText    string
	Tags         []string
}

// aliases maps lower-cased declared codes straight to a normalized
// language. European languages deliberately fold to English; the
// organized tree only distinguishes Japanese, English, and Chinese.
var aliases = map[string]models.Language{
	"eng": models.LanguageEnglish, "en": models.LanguageEnglish, "english": models.LanguageEnglish,
	"jpn": models.LanguageJapanese, "ja": models.LanguageJapanese, "japanese": models.LanguageJapanese,
	"zho": models.LanguageChinese, "zh": models.LanguageChinese, "chi": models.LanguageChinese,
	"chinese": models.LanguageChinese, "cmn": models.LanguageChinese,
	"zh-cn": models.LanguageChinese, "zh-tw": models.LanguageChinese,
	"deu": models.LanguageEnglish, "de": models.LanguageEnglish,
	"fra": models.LanguageEnglish, "fr": models.LanguageEnglish,
	"spa": models.LanguageEnglish, "es": models.LanguageEnglish,
	"ita": models.LanguageEnglish, "it": models.LanguageEnglish,
	"por": models.LanguageEnglish, "pt": models.LanguageEnglish,
	"rus": models.LanguageEnglish, "ru": models.LanguageEnglish,
}

// baseLanguages maps BCP 47 base languages to the closed set, for
// declared codes the alias table doesn't list verbatim (e.g. "en-US",
// "ja-JP").
var baseLanguages = map[string]models.Language{
	"en": models.LanguageEnglish,
	"ja": models.LanguageJapanese,
	"zh": models.LanguageChinese,
	"de": models.LanguageEnglish,
	"fr": models.LanguageEnglish,
	"es": models.LanguageEnglish,
	"it": models.LanguageEnglish,
	"pt": models.LanguageEnglish,
	"ru": models.LanguageEnglish,
}

// Classify maps a signal to a normalized language. Always returns a
// member of the closed set.
func Classify(sig Signal) models.Language {
	if lang, ok := FromDeclaredCode(sig.DeclaredCode); ok {
		return lang
	}

	if lang, ok := fromScript(sig.TitleText); ok {
		return lang
	}
	if lang, ok := fromScript(strings.Join(sig.Tags, " ")); ok {
		return lang
	}

	return models.LanguageEnglish
}

// FromDeclaredCode resolves a declared language code against the alias
// table, falling back to BCP 47 parsing for regioned variants.
func FromDeclaredCode(code string) (models.Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "unknown" || code == "und" {
		return "", false
	}

	if lang, ok := aliases[code]; ok {
		return lang, true
	}

	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	lang, ok := baseLanguages[base.String()]
	return lang, ok
}

// fromScript inspects the text's code points. Kana always wins over
// ideographs since Japanese text mixes both; Chinese requires ideographs
// with no kana at all.
func fromScript(text string) (models.Language, bool) {
	var kana, ideographs, ascii, total int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana++
		case r >= 0x4E00 && r <= 0x9FFF:
			ideographs++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			ascii++
		}
		total++
	}
	if total == 0 {
		return "", false
	}

	if kana > 0 && (ideographs > 0 || float64(kana)/float64(total) > 0.1) {
		return models.LanguageJapanese, true
	}
	if kana == 0 && float64(ideographs)/float64(total) > 0.3 {
		return models.LanguageChinese, true
	}
	if float64(ascii)/float64(total) > 0.5 {
		return models.LanguageEnglish, true
	}

	return "", false
}
