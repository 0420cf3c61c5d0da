package entities

import "testing"

func TestLanguageCatalog(t *testing.T) {
	if got := len(Languages()); got != 18 {
		t.Errorf("Expected 18 languages, got %d", got)
	}

	if LanguageName("es") != "Spanish" {
		t.Errorf("LanguageName(es) = %s", LanguageName("es"))
	}

	if LanguageName("xx") != "XX" {
		t.Errorf("Unknown codes should be upper-cased, got %s", LanguageName("xx"))
	}

	if _, ok := DefaultVoice("hi"); ok {
		t.Error("Hindi has no piper voice")
	}

	voice, ok := DefaultVoice("fr")
	if !ok || voice != "fr_FR-siwis-medium" {
		t.Errorf("DefaultVoice(fr) = %s, %v", voice, ok)
	}

	if !HasVoice("en", "en_GB-alan-medium") || HasVoice("en", "es_ES-davefx-medium") {
		t.Error("HasVoice does not respect language boundaries")
	}

	if lang, ok := VoiceLanguage("pt_PT-tugao-medium"); !ok || lang != "pt" {
		t.Errorf("VoiceLanguage = %s, %v", lang, ok)
	}
}

func TestVoicesReturnsCopy(t *testing.T) {
	v := Voices()
	v["en"][0] = "mutated"
	if d, _ := DefaultVoice("en"); d != "en_US-lessac-medium" {
		t.Error("Voices must not expose the internal table")
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"english": "en",
		"Spanish": "es",
		"es-ES":   "es",
		"pt_BR":   "pt",
		"JA":      "ja",
		"":        "",
		"klingon": "klingon",
	}
	for in, want := range tests {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestScenarioDescription(t *testing.T) {
	if got := len(Scenarios()); got != 9 {
		t.Errorf("Expected 9 scenarios, got %d", got)
	}
	if ScenarioDescription("hotel") != "Checking in/out of a hotel" {
		t.Errorf("ScenarioDescription(hotel) = %s", ScenarioDescription("hotel"))
	}
	if ScenarioDescription("space_travel") != DefaultScenarioDescription {
		t.Error("Unknown scenarios should fall back to general practice")
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in      string
		want    Difficulty
		wantErr bool
	}{
		{"", DifficultyBeginner, false},
		{"Intermediate", DifficultyIntermediate, false},
		{"advanced", DifficultyAdvanced, false},
		{"expert", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDifficulty(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDifficulty(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestDifficultyGuidelines(t *testing.T) {
	if g := DifficultyBeginner.Guidelines(); g.MaxSentenceLength != 10 || !g.ProvideTranslation {
		t.Errorf("beginner guidelines = %+v", g)
	}
	if g := DifficultyAdvanced.Guidelines(); g.MaxSentenceLength != 0 || g.SpeechRate != "native" {
		t.Errorf("advanced guidelines = %+v", g)
	}
	if DifficultyBeginner.LengthScale() <= DifficultyAdvanced.LengthScale() {
		t.Error("beginner speech should be slower than advanced")
	}
}

func TestParseTeachingIntensity(t *testing.T) {
	if ti, err := ParseTeachingIntensity(""); err != nil || ti != IntensityBalanced {
		t.Errorf("ParseTeachingIntensity(\"\") = %q, %v", ti, err)
	}
	if _, err := ParseTeachingIntensity("extreme"); err == nil {
		t.Error("expected error for unknown intensity")
	}
}
