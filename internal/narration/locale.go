package narration

import (
	"strings"

	"github.com/maauso/zinara-studio/internal/audio"
)

// locales maps the studio's language labels to locale tags.
var locales = map[string]string{
	"English":  "en-US",
	"Spanish":  "es-ES",
	"French":   "fr-FR",
	"German":   "de-DE",
	"Swahili":  "sw-KE",
	"Mandarin": "zh-CN",
	"Arabic":   "ar-SA",
	"Hindi":    "hi-IN",
}

// LocaleFor returns the locale tag for a language label.
// Unknown labels are returned unchanged.
func LocaleFor(language string) string {
	if tag, ok := locales[language]; ok {
		return tag
	}
	return language
}

// SelectVoice picks a voice for locale. Voices are matched on the two-letter
// language prefix; names containing "Google" or "Natural" are preferred.
// It returns nil when nothing matches so the facility default is used.
func SelectVoice(voices []audio.Voice, locale string) *audio.Voice {
	if len(locale) < 2 {
		return nil
	}
	prefix := strings.ToLower(locale[:2])

	var first *audio.Voice
	for i := range voices {
		v := &voices[i]
		if !strings.HasPrefix(strings.ToLower(v.Locale), prefix) {
			continue
		}
		if strings.Contains(v.Name, "Google") || strings.Contains(v.Name, "Natural") {
			return v
		}
		if first == nil {
			first = v
		}
	}
	return first
}
