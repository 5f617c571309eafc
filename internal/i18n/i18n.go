package i18n

import "strings"

type Lang string

const (
	RU Lang = "ru"
	EN Lang = "en"
)

// Default is used when neither the session nor the Telegram client reports a language.
const Default = RU

// FromLanguageCode maps a Telegram language_code onto a supported language.
func FromLanguageCode(code string) Lang {
	code = strings.ToLower(strings.TrimSpace(code))
	switch {
	case code == "":
		return Default
	case strings.HasPrefix(code, "ru"), strings.HasPrefix(code, "uk"), strings.HasPrefix(code, "be"):
		return RU
	default:
		return EN
	}
}

func Parse(s string) Lang {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ru":
		return RU
	case "en":
		return EN
	default:
		return Default
	}
}

// Text holds one user-facing string in every supported language.
type Text struct {
	RU string
	EN string
}

func (t Text) In(lang Lang) string {
	if lang == EN && t.EN != "" {
		return t.EN
	}
	return t.RU
}
