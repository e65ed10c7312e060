package chat

// DefaultLanguage is used for sessions that never picked a language.
const DefaultLanguage = "English"

// languages lists the response languages the assistant supports,
// matching the options offered by the chat frontend.
var languages = []string{
	"English", "Kannada", "Hindi", "Telugu", "Tamil",
	"Marathi", "Gujarati", "Bengali", "Punjabi", "Malayalam",
	"Odia", "Assamese", "Urdu", "Bhojpuri", "Nepali",
}

// Languages returns the supported response languages.
func Languages() []string {
	return append([]string(nil), languages...)
}

// SupportedLanguage reports whether lang is one of the offered options.
func SupportedLanguage(lang string) bool {
	for _, l := range languages {
		if l == lang {
			return true
		}
	}
	return false
}
