package report

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Language is a report locale.
type Language string

const (
	LangEnglish Language = "en"
	LangGerman  Language = "de"
)

var ErrUnsupportedLanguage = errors.New("report: unsupported language")

//go:embed en.json de.json
var localeFS embed.FS

// aliases maps accepted --lang spellings to a locale.
var aliases = map[string]Language{
	"":        LangEnglish,
	"en":      LangEnglish,
	"en-us":   LangEnglish,
	"en-gb":   LangEnglish,
	"english": LangEnglish,
	"de":      LangGerman,
	"de-de":   LangGerman,
	"de-at":   LangGerman,
	"german":  LangGerman,
	"deutsch": LangGerman,
}

var locales = loadLocales(LangEnglish, LangGerman)

func loadLocales(langs ...Language) map[Language]map[string]string {
	out := make(map[Language]map[string]string, len(langs))
	for _, lang := range langs {
		data, err := localeFS.ReadFile(string(lang) + ".json")
		if err != nil {
			panic(fmt.Sprintf("report: locale %s: %v", lang, err))
		}
		var strs map[string]string
		if err := json.Unmarshal(data, &strs); err != nil {
			panic(fmt.Sprintf("report: locale %s: %v", lang, err))
		}
		out[lang] = strs
	}
	return out
}

// Translator looks up report strings, falling back to English and then to
// the key itself.
type Translator struct {
	lang Language
}

func NewTranslator(lang Language) Translator {
	if _, ok := locales[lang]; !ok {
		lang = LangEnglish
	}
	return Translator{lang: lang}
}

func (t Translator) T(key string) string {
	for _, lang := range []Language{t.lang, LangEnglish} {
		if s, ok := locales[lang][key]; ok {
			return s
		}
	}
	return key
}

func (t Translator) Format(key string, args ...any) string {
	return fmt.Sprintf(t.T(key), args...)
}

// ParseLanguage resolves a --lang or config value.
func ParseLanguage(s string) (Language, error) {
	if lang, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lang, nil
	}
	return LangEnglish, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, s)
}
