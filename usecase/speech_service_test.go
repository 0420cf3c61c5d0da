package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/lingua/adapters/tts"
	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/internal/audio"
)

func newSpeech(t *testing.T, stt *fixedSTT, engine *recordingTTS) *SpeechService {
	if engine == nil {
		engine = &recordingTTS{TextToSpeech: tts.NewToneTTS(zaptest.NewLogger(t))}
	}
	if stt == nil {
		stt = &fixedSTT{text: "hola", language: "es"}
	}
	return NewSpeechService(stt, engine, SpeechConfig{
		MaxAudioDuration: 2 * time.Second,
		MaxUploadBytes:   1 << 20,
	}, zaptest.NewLogger(t))
}

func wavClip(d time.Duration) []byte {
	return audio.Tone(220, 0.3, d, 16000).Encode()
}

func TestSynthesize_Validation(t *testing.T) {
	svc := newSpeech(t, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SynthesisRequest
	}{
		{"empty text", SynthesisRequest{Text: "  ", Language: "es"}},
		{"unknown language", SynthesisRequest{Text: "hola", Language: "xx"}},
		{"language without voices", SynthesisRequest{Text: "namaste", Language: "hi"}},
		{"voice of another language", SynthesisRequest{Text: "hola", Language: "es", Voice: "en_US-amy-medium"}},
		{"speech rate too high", SynthesisRequest{Text: "hola", Language: "es", SpeechRate: 5}},
		{"negative speech rate", SynthesisRequest{Text: "hola", Language: "es", SpeechRate: -1}},
		{"unknown style", SynthesisRequest{Text: "hola", Language: "es", VoiceStyle: "angry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Synthesize(ctx, tt.req)
			if domain.KindOf(err) != domain.KindInvalidRequest {
				t.Errorf("err = %v, want invalid_request", err)
			}
		})
	}
}

func TestSynthesize_SingleVoice(t *testing.T) {
	engine := &recordingTTS{TextToSpeech: tts.NewToneTTS(zaptest.NewLogger(t))}
	svc := newSpeech(t, nil, engine)

	out, err := svc.Synthesize(context.Background(), SynthesisRequest{
		Text:       "Hola (Hello)",
		Language:   "es",
		Voice:      "es_MX-ald-medium",
		Difficulty: entities.DifficultyAdvanced,
	})
	if err != nil {
		t.Fatal(err)
	}
	// no explanation language: one utterance, parentheses included
	if !reflect.DeepEqual(engine.voices, []string{"es_MX-ald-medium"}) {
		t.Errorf("voices = %v", engine.voices)
	}
	if out.ContentType != audio.ContentTypeWAV || !audio.IsWAV(out.Audio) {
		t.Errorf("content type %q, wav=%v", out.ContentType, audio.IsWAV(out.Audio))
	}
}

func TestSynthesize_BilingualSegments(t *testing.T) {
	engine := &recordingTTS{TextToSpeech: tts.NewToneTTS(zaptest.NewLogger(t))}
	svc := newSpeech(t, nil, engine)

	out, err := svc.Synthesize(context.Background(), SynthesisRequest{
		Text:                "Hola amigo (Hello friend) ¿qué tal?",
		Language:            "es",
		ExplanationLanguage: "en",
		Difficulty:          entities.DifficultyBeginner,
		Intensity:           entities.IntensityBalanced,
	})
	if err != nil {
		t.Fatal(err)
	}

	es, _ := entities.DefaultVoice("es")
	en, _ := entities.DefaultVoice("en")
	if want := []string{es, en, es}; !reflect.DeepEqual(engine.voices, want) {
		t.Errorf("voices = %v, want %v", engine.voices, want)
	}
	if want := []string{"Hola amigo", "Hello friend", "¿qué tal?"}; !reflect.DeepEqual(engine.texts, want) {
		t.Errorf("texts = %v, want %v", engine.texts, want)
	}

	// beginner length scale 1.25: 1.0s + 1.2s + 0.9s of tone plus two pauses
	want := 3100*time.Millisecond + 2*segmentPause
	if diff := out.Duration - want; diff < -10*time.Millisecond || diff > 10*time.Millisecond {
		t.Errorf("duration = %v, want about %v", out.Duration, want)
	}
	if out.Voice != es {
		t.Errorf("voice = %q, want %q", out.Voice, es)
	}
}

func TestSynthesize_ImmersiveIsNotSegmented(t *testing.T) {
	engine := &recordingTTS{TextToSpeech: tts.NewToneTTS(zaptest.NewLogger(t))}
	svc := newSpeech(t, nil, engine)

	_, err := svc.Synthesize(context.Background(), SynthesisRequest{
		Text:                "Hola (Hello)",
		Language:            "es",
		ExplanationLanguage: "en",
		Intensity:           entities.IntensityImmersive,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(engine.voices) != 1 {
		t.Errorf("engine called %d times, want 1", len(engine.voices))
	}
}

func TestSynthesize_EngineFailureIsSynthesisFailure(t *testing.T) {
	engine := &recordingTTS{TextToSpeech: tts.NewToneTTS(zaptest.NewLogger(t)), err: errors.New("piper exited 1")}
	svc := newSpeech(t, nil, engine)

	_, err := svc.Synthesize(context.Background(), SynthesisRequest{Text: "hola", Language: "es"})
	if domain.KindOf(err) != domain.KindSynthesisFailure {
		t.Errorf("err = %v, want synthesis_failure", err)
	}
}

func TestSplitExplanations(t *testing.T) {
	tests := []struct {
		text string
		want []Segment
	}{
		{"Hola", []Segment{{"Hola", "es"}}},
		{"(Hi) Hola", []Segment{{"Hi", "en"}, {"Hola", "es"}}},
		{"Hola (Hi) y (and) adiós", []Segment{{"Hola", "es"}, {"Hi", "en"}, {"y", "es"}, {"and", "en"}, {"adiós", "es"}}},
		{"Hola (sin cerrar", []Segment{{"Hola (sin cerrar", "es"}}},
		{"Hola () adiós", []Segment{{"Hola", "es"}, {"adiós", "es"}}},
	}
	for _, tt := range tests {
		got := SplitExplanations(tt.text, "es", "en")
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitExplanations(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestTranscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes result", func(t *testing.T) {
		stt := &fixedSTT{text: "  hola  ", language: "Spanish"}
		svc := newSpeech(t, stt, nil)
		out, err := svc.Transcribe(ctx, wavClip(time.Second), repositoriesAudio(""))
		if err != nil {
			t.Fatal(err)
		}
		if out.Text != "hola" || out.Language != "es" {
			t.Errorf("got %q/%q", out.Text, out.Language)
		}
		if out.Segments == nil {
			t.Error("segments should be an empty list, not nil")
		}
	})

	t.Run("rejects", func(t *testing.T) {
		stt := &fixedSTT{text: "hola"}
		svc := newSpeech(t, stt, nil)
		for name, call := range map[string]func() error{
			"empty":            func() error { _, err := svc.Transcribe(ctx, nil, repositoriesAudio("")); return err },
			"too long":         func() error { _, err := svc.Transcribe(ctx, wavClip(3*time.Second), repositoriesAudio("")); return err },
			"unknown language": func() error { _, err := svc.Transcribe(ctx, wavClip(time.Second), repositoriesAudio("xx")); return err },
		} {
			if err := call(); domain.KindOf(err) != domain.KindInvalidRequest {
				t.Errorf("%s: err = %v, want invalid_request", name, err)
			}
		}
		if stt.calls != 0 {
			t.Errorf("engine called %d times for rejected clips", stt.calls)
		}
	})

	t.Run("over-long message", func(t *testing.T) {
		svc := newSpeech(t, nil, nil)
		err := svc.ValidateClip(wavClip(2064 * time.Millisecond))
		if got, want := domain.MessageOf(err), "audio too long: 2.06s (max 2.00s)"; got != want {
			t.Errorf("message = %q, want %q", got, want)
		}
	})

	t.Run("engine failure", func(t *testing.T) {
		svc := newSpeech(t, &fixedSTT{err: errors.New("decoder error")}, nil)
		_, err := svc.Transcribe(ctx, wavClip(time.Second), repositoriesAudio(""))
		if domain.KindOf(err) != domain.KindTranscriptionFailure {
			t.Errorf("err = %v, want transcription_failure", err)
		}
	})
}
