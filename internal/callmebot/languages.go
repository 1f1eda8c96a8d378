package callmebot

// Language is one text-to-speech voice choice offered in settings.
type Language struct {
	Name string
	Code string
}

// Languages returns the TTS languages the API accepts, in menu order.
func Languages() []Language {
	return []Language{
		{"English", "en"},
		{"Spanish", "es"},
		{"French", "fr"},
		{"German", "de"},
		{"Italian", "it"},
		{"Portuguese", "pt"},
		{"Russian", "ru"},
		{"Chinese", "zh"},
		{"Japanese", "ja"},
		{"Korean", "ko"},
	}
}

// ValidLanguage reports whether code is one of the accepted TTS codes.
func ValidLanguage(code string) bool {
	for _, l := range Languages() {
		if l.Code == code {
			return true
		}
	}
	return false
}
