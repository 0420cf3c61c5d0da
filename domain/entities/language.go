package entities

import (
	"fmt"
	"strings"
)

// Language is a target language the tutor can converse in.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var languages = []Language{
	{"en", "English"},
	{"es", "Spanish"},
	{"fr", "French"},
	{"de", "German"},
	{"it", "Italian"},
	{"pt", "Portuguese"},
	{"ja", "Japanese"},
	{"zh", "Chinese"},
	{"ko", "Korean"},
	{"ar", "Arabic"},
	{"nl", "Dutch"},
	{"ru", "Russian"},
	{"th", "Thai"},
	{"vi", "Vietnamese"},
	{"tr", "Turkish"},
	{"el", "Greek"},
	{"pl", "Polish"},
	{"hi", "Hindi"},
}

// Piper voice ids per language; the first entry is the default.
var ttsVoices = map[string][]string{
	"en": {"en_US-lessac-medium", "en_US-amy-medium", "en_GB-alan-medium"},
	"es": {"es_ES-davefx-medium", "es_MX-ald-medium"},
	"fr": {"fr_FR-siwis-medium", "fr_FR-upmc-medium"},
	"de": {"de_DE-thorsten-medium", "de_DE-karlsson-low"},
	"it": {"it_IT-riccardo-medium"},
	"pt": {"pt_BR-faber-medium", "pt_PT-tugao-medium"},
	"ja": {"ja_JP-kokoro-medium"},
	"zh": {"zh_CN-huayan-medium"},
	"ko": {"ko_KR-keonhee-medium"},
	"ar": {"ar_JO-kareem-medium"},
	"nl": {"nl_NL-mls-medium"},
	"ru": {"ru_RU-dmitri-medium"},
	"th": {"th_TH-pongkul-medium"},
	"vi": {"vi_VN-vivos-medium"},
	"tr": {"tr_TR-dfki-medium"},
	"el": {"el_GR-rapunzelina-low"},
	"pl": {"pl_PL-mls-medium"},
}

// Scenario is a role-play situation used to steer the conversation.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []Scenario{
	{"greeting", "Practice basic greetings and introductions"},
	{"restaurant", "Ordering food at a restaurant"},
	{"directions", "Asking for and giving directions"},
	{"shopping", "Shopping and negotiating prices"},
	{"hotel", "Checking in/out of a hotel"},
	{"transportation", "Using public transportation"},
	{"emergency", "Handling emergency situations"},
	{"small_talk", "Making casual conversation with locals"},
	{"sightseeing", "Asking about tourist attractions"},
}

// DefaultScenarioDescription is used for scenarios outside the catalog.
const DefaultScenarioDescription = "General conversation practice"

// Languages returns the catalog in display order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// LanguageName returns the English name for code, or the upper-cased code when unknown.
func LanguageName(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range languages {
		if l.Code == code {
			return l.Name
		}
	}
	return strings.ToUpper(code)
}

// IsKnownLanguage reports whether code is in the catalog.
func IsKnownLanguage(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// NormalizeLanguage maps engine output such as "english", "es-ES" or "PT" to a
// catalog code. Unrecognised input is returned lower-cased.
func NormalizeLanguage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if i := strings.IndexAny(s, "-_"); i > 0 {
		if IsKnownLanguage(s[:i]) {
			return s[:i]
		}
	}
	for _, l := range languages {
		if l.Code == s || strings.ToLower(l.Name) == s {
			return l.Code
		}
	}
	return s
}

// Voices returns a copy of the voice table.
func Voices() map[string][]string {
	out := make(map[string][]string, len(ttsVoices))
	for lang, v := range ttsVoices {
		out[lang] = append([]string(nil), v...)
	}
	return out
}

// VoicesFor returns the voices for a language, nil when it has none.
func VoicesFor(code string) []string {
	v := ttsVoices[strings.ToLower(strings.TrimSpace(code))]
	if v == nil {
		return nil
	}
	return append([]string(nil), v...)
}

// DefaultVoice returns the first voice of a language.
func DefaultVoice(code string) (string, bool) {
	v := ttsVoices[strings.ToLower(strings.TrimSpace(code))]
	if len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// HasVoice reports whether voice belongs to the language.
func HasVoice(code, voice string) bool {
	for _, v := range ttsVoices[strings.ToLower(strings.TrimSpace(code))] {
		if v == voice {
			return true
		}
	}
	return false
}

// VoiceLanguage returns the language a voice id belongs to.
func VoiceLanguage(voice string) (string, bool) {
	for lang, voices := range ttsVoices {
		for _, v := range voices {
			if v == voice {
				return lang, true
			}
		}
	}
	return "", false
}

// Scenarios returns the scenario catalog in display order.
func Scenarios() []Scenario {
	out := make([]Scenario, len(scenarios))
	copy(out, scenarios)
	return out
}

// ScenarioDescription describes a scenario, falling back to general practice.
func ScenarioDescription(name string) string {
	for _, s := range scenarios {
		if s.Name == name {
			return s.Description
		}
	}
	return DefaultScenarioDescription
}

// Difficulty is the learner level a reply is pitched at.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParseDifficulty validates s; empty input means beginner.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DifficultyBeginner, nil
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// Guidelines shape replies for a difficulty level.
type Guidelines struct {
	MaxSentenceLength  int // words, 0 means no limit
	VocabularyLevel    string
	GrammarComplexity  string
	SpeechRate         string
	ProvideTranslation bool
}

// Guidelines returns the level's guidelines; unknown levels get beginner's.
func (d Difficulty) Guidelines() Guidelines {
	switch d {
	case DifficultyIntermediate:
		return Guidelines{20, "intermediate", "moderate", "normal", false}
	case DifficultyAdvanced:
		return Guidelines{0, "advanced", "complex", "native", false}
	default:
		return Guidelines{10, "basic", "simple", "slow", true}
	}
}

// LengthScale converts the level's speech rate into a piper length scale.
func (d Difficulty) LengthScale() float64 {
	switch d.Guidelines().SpeechRate {
	case "slow":
		return 1.25
	case "native":
		return 0.9
	default:
		return 1.0
	}
}

// TeachingIntensity controls how much the tutor corrects and explains.
type TeachingIntensity string

const (
	IntensityLight     TeachingIntensity = "light"
	IntensityBalanced  TeachingIntensity = "balanced"
	IntensityImmersive TeachingIntensity = "immersive"
)

// ParseTeachingIntensity validates s; empty input means balanced.
func ParseTeachingIntensity(s string) (TeachingIntensity, error) {
	switch ti := TeachingIntensity(strings.ToLower(strings.TrimSpace(s))); ti {
	case "":
		return IntensityBalanced, nil
	case IntensityLight, IntensityBalanced, IntensityImmersive:
		return ti, nil
	default:
		return "", fmt.Errorf("unknown teaching intensity %q", s)
	}
}
