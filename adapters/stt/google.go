package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/audio"
)

// Google wants BCP-47 locales rather than bare language codes.
var googleLocales = map[string]string{
	"en": "en-US", "es": "es-ES", "fr": "fr-FR", "de": "de-DE", "it": "it-IT",
	"pt": "pt-BR", "ja": "ja-JP", "zh": "cmn-Hans-CN", "ko": "ko-KR", "ar": "ar-EG",
	"nl": "nl-NL", "ru": "ru-RU", "th": "th-TH", "vi": "vi-VN", "tr": "tr-TR",
	"el": "el-GR", "pl": "pl-PL", "hi": "hi-IN",
}

// Without a hint Google picks among the primary locale and up to three alternatives.
var googleAutoDetect = []string{"es-ES", "fr-FR", "de-DE"}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

// NewGoogleSpeechToText creates a client using application default credentials.
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

func (g *GoogleSpeechToText) Name() string {
	return "google"
}

func (g *GoogleSpeechToText) Ready(ctx context.Context) error {
	if g.client == nil {
		return domain.NewError(domain.KindModelUnavailable, "google speech client not initialised", nil)
	}
	return nil
}

func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// Transcribe converts a finished clip to text with a single Recognize call.
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, data []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	if len(data) == 0 {
		return nil, domain.InvalidRequest("no audio data received")
	}

	recognitionConfig, err := googleRecognitionConfig(data, config)
	if err != nil {
		return nil, domain.InvalidRequest("%v", err)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: data}},
	})
	if err != nil {
		g.logger.Error("Google recognize failed", zap.Error(err))
		return nil, domain.NewError(domain.KindTranscriptionFailure, "speech recognition failed", err)
	}

	result := &repositories.Transcription{Language: entities.NormalizeLanguage(config.Language)}
	var texts []string
	var confidence float32
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		texts = append(texts, strings.TrimSpace(alt.Transcript))
		confidence = alt.Confidence
		if r.LanguageCode != "" {
			result.Language = entities.NormalizeLanguage(r.LanguageCode)
		}
		end := 0.0
		if r.ResultEndTime != nil {
			end = r.ResultEndTime.AsDuration().Seconds()
		}
		start := 0.0
		if n := len(result.Segments); n > 0 {
			start = result.Segments[n-1].End
		}
		result.Segments = append(result.Segments, repositories.Segment{Start: start, End: end, Text: alt.Transcript})
	}
	result.Text = strings.TrimSpace(strings.Join(texts, " "))
	if config.Language != "" {
		result.LanguageProbability = 1
	} else {
		result.LanguageProbability = float64(confidence)
	}
	if d, err := audio.Duration(data); err == nil {
		result.Duration = d.Seconds()
	}

	g.logger.Info("Google transcription complete",
		zap.Int("audioSize", len(data)),
		zap.String("language", result.Language),
		zap.Int("segments", len(result.Segments)))

	return result, nil
}

func googleRecognitionConfig(data []byte, config repositories.AudioConfig) (*speechpb.RecognitionConfig, error) {
	encoding, err := getAudioEncoding(config.ContentType)
	if err != nil {
		return nil, err
	}
	rc := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		EnableAutomaticPunctuation: true,
	}
	if config.SampleRate > 0 && encoding != speechpb.RecognitionConfig_ENCODING_UNSPECIFIED {
		rc.SampleRateHertz = int32(config.SampleRate)
	}
	if encoding == speechpb.RecognitionConfig_LINEAR16 && audio.IsWAV(data) {
		// the WAV header carries the format
		rc.Encoding = speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
		rc.SampleRateHertz = 0
	}

	if locale, ok := googleLocales[entities.NormalizeLanguage(config.Language)]; ok {
		rc.LanguageCode = locale
	} else {
		rc.LanguageCode = "en-US"
		rc.AlternativeLanguageCodes = googleAutoDetect
	}
	return rc, nil
}

// getAudioEncoding maps an upload content type to the Speech API enum
func getAudioEncoding(contentType string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "", "audio/wav", "audio/x-wav", "audio/wave", "audio/l16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "audio/flac", "audio/x-flac":
		return speechpb.RecognitionConfig_FLAC, nil
	case "audio/basic", "audio/mulaw":
		return speechpb.RecognitionConfig_MULAW, nil
	case "audio/amr":
		return speechpb.RecognitionConfig_AMR, nil
	case "audio/amr-wb":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio content type: %s", contentType)
	}
}
