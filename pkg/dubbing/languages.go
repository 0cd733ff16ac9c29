// ABOUTME: Closed set of languages supported by the dubbing backend
// ABOUTME: Provides lookup, validation and cycling for language selectors
package dubbing

// Language is a selectable source or target language
type Language struct {
	Code  string
	Label string
}

// Languages is the closed set offered for both source and target
var Languages = []Language{
	{Code: "en", Label: "English"},
	{Code: "hi", Label: "Hindi"},
	{Code: "es", Label: "Spanish"},
	{Code: "fr", Label: "French"},
	{Code: "de", Label: "German"},
	{Code: "ja", Label: "Japanese"},
}

const (
	// DefaultSourceLang is the initial source selection
	DefaultSourceLang = "en"
	// DefaultTargetLang is the initial target selection
	DefaultTargetLang = "hi"
)

// ValidLanguage reports whether code is in the supported set
func ValidLanguage(code string) bool {
	for _, l := range Languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// LanguageLabel returns the display name for code, or code itself
func LanguageLabel(code string) string {
	for _, l := range Languages {
		if l.Code == code {
			return l.Label
		}
	}
	return code
}

// NextLanguage returns the code following code in the set, wrapping around
func NextLanguage(code string) string {
	for i, l := range Languages {
		if l.Code == code {
			return Languages[(i+1)%len(Languages)].Code
		}
	}
	return Languages[0].Code
}
