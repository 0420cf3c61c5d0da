package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/audio"
)

const (
	// segmentPause separates target-language and explanation segments.
	segmentPause      = 160 * time.Millisecond
	segmentPeak       = 0.9
	maxSpeechRate     = 3.0
	defaultVoiceStyle = "neutral"
)

// voiceStyles maps a style to piper's noise_scale and noise_w.
var voiceStyles = map[string][2]float64{
	"neutral":    {0.667, 0.8},
	"expressive": {0.9, 1.0},
	"calm":       {0.4, 0.5},
}

// SpeechConfig bounds accepted audio
type SpeechConfig struct {
	MaxAudioDuration time.Duration
	MaxUploadBytes   int64
}

// SpeechService validates and relays transcription and synthesis
type SpeechService struct {
	stt    repositories.SpeechToText
	tts    repositories.TextToSpeech
	config SpeechConfig
	logger *zap.Logger
}

// NewSpeechService creates a new speech service
func NewSpeechService(stt repositories.SpeechToText, tts repositories.TextToSpeech, config SpeechConfig, logger *zap.Logger) *SpeechService {
	return &SpeechService{stt: stt, tts: tts, config: config, logger: logger}
}

// ValidateClip rejects empty, oversized and over-long uploads. Duration is
// only known for WAV input.
func (s *SpeechService) ValidateClip(data []byte) error {
	if len(data) == 0 {
		return domain.InvalidRequest("no audio data received")
	}
	if s.config.MaxUploadBytes > 0 && int64(len(data)) > s.config.MaxUploadBytes {
		return domain.InvalidRequest("audio upload too large: %d bytes (max %d)", len(data), s.config.MaxUploadBytes)
	}
	if !audio.IsWAV(data) {
		return nil
	}
	d, err := audio.Duration(data)
	if err != nil {
		return domain.InvalidRequest("invalid WAV audio: %v", err)
	}
	if s.config.MaxAudioDuration > 0 && d > s.config.MaxAudioDuration {
		return domain.InvalidRequest("audio too long: %.2fs (max %.2fs)", d.Seconds(), s.config.MaxAudioDuration.Seconds())
	}
	return nil
}

// Transcribe converts one clip to text. An empty language auto-detects.
func (s *SpeechService) Transcribe(ctx context.Context, data []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	if err := s.ValidateClip(data); err != nil {
		return nil, err
	}
	if config.Language != "" {
		hint := strings.ToLower(strings.TrimSpace(config.Language))
		if !entities.IsKnownLanguage(hint) {
			return nil, domain.InvalidRequest("unsupported language %q", config.Language)
		}
		config.Language = hint
	}
	if config.ContentType == "" && audio.IsWAV(data) {
		config.ContentType = audio.ContentTypeWAV
	}

	start := time.Now()
	result, err := s.stt.Transcribe(ctx, data, config)
	if err != nil {
		s.logger.Error("Transcription failed", zap.String("engine", s.stt.Name()), zap.Error(err))
		return nil, domain.Classify(err, domain.KindTranscriptionFailure, "transcription failed")
	}
	result.Text = strings.TrimSpace(result.Text)
	result.Language = entities.NormalizeLanguage(result.Language)
	if result.Segments == nil {
		result.Segments = make([]repositories.Segment, 0)
	}

	s.logger.Info("Transcription completed",
		zap.String("language", result.Language),
		zap.Int("chars", len(result.Text)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// SynthesisRequest describes one utterance to voice
type SynthesisRequest struct {
	Text     string
	Language string
	Voice    string
	// SpeechRate is a length scale in (0, 3]; 0 derives it from Difficulty.
	SpeechRate          float64
	VoiceStyle          string
	ExplanationLanguage string
	ExplanationVoice    string
	Difficulty          entities.Difficulty
	Intensity           entities.TeachingIntensity
}

// Synthesize voices text. A language without voices is rejected rather than
// voiced with another language's voice. When an explanation language is
// given and intensity is not immersive, parenthesised spans are voiced in
// that language and the pieces are joined with a short pause.
func (s *SpeechService) Synthesize(ctx context.Context, req SynthesisRequest) (*repositories.SpeechAudio, error) {
	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	if len(plan.segments) == 1 {
		seg := plan.segments[0]
		return s.synthesizeOne(ctx, seg.Text, plan.options(seg.Language))
	}

	parts := make([][]byte, 0, len(plan.segments))
	sampleRate := 0
	for _, seg := range plan.segments {
		out, err := s.synthesizeOne(ctx, seg.Text, plan.options(seg.Language))
		if err != nil {
			return nil, err
		}
		if sampleRate == 0 {
			sampleRate = out.SampleRate
		}
		parts = append(parts, out.Audio)
	}

	joined, err := audio.Concat(parts, sampleRate, segmentPause, segmentPeak)
	if err != nil {
		return nil, domain.NewError(domain.KindSynthesisFailure, "failed to join speech segments", err)
	}
	duration, _ := audio.Duration(joined)

	s.logger.Info("Synthesized segmented speech",
		zap.Int("segments", len(parts)),
		zap.Duration("duration", duration))
	return &repositories.SpeechAudio{
		Audio:       joined,
		ContentType: audio.ContentTypeWAV,
		SampleRate:  sampleRate,
		Voice:       plan.voices[plan.target],
		Duration:    duration,
	}, nil
}

func (s *SpeechService) synthesizeOne(ctx context.Context, text string, opts repositories.SynthesisOptions) (*repositories.SpeechAudio, error) {
	out, err := s.tts.Synthesize(ctx, text, opts)
	if err != nil {
		s.logger.Error("Synthesis failed",
			zap.String("engine", s.tts.Name()),
			zap.String("voice", opts.Voice),
			zap.Error(err))
		return nil, domain.Classify(err, domain.KindSynthesisFailure, "speech synthesis failed")
	}
	if out.Duration == 0 && audio.IsWAV(out.Audio) {
		out.Duration, _ = audio.Duration(out.Audio)
	}
	return out, nil
}

type synthesisPlan struct {
	target      string
	voices      map[string]string
	lengthScale float64
	noise       [2]float64
	segments    []Segment
}

func (p *synthesisPlan) options(language string) repositories.SynthesisOptions {
	return repositories.SynthesisOptions{
		Voice:       p.voices[language],
		Language:    language,
		LengthScale: p.lengthScale,
		NoiseScale:  p.noise[0],
		NoiseW:      p.noise[1],
	}
}

func (s *SpeechService) plan(req SynthesisRequest) (*synthesisPlan, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, domain.InvalidRequest("text cannot be empty")
	}

	target := strings.ToLower(strings.TrimSpace(req.Language))
	if target == "" {
		target = defaultLanguage
	}
	voice, err := pickVoice(target, req.Voice)
	if err != nil {
		return nil, err
	}

	p := &synthesisPlan{
		target:   target,
		voices:   map[string]string{target: voice},
		segments: []Segment{{Text: text, Language: target}},
	}

	switch {
	case req.SpeechRate < 0 || req.SpeechRate > maxSpeechRate:
		return nil, domain.InvalidRequest("speech_rate must be in (0, %.0f], got %v", maxSpeechRate, req.SpeechRate)
	case req.SpeechRate > 0:
		p.lengthScale = req.SpeechRate
	default:
		p.lengthScale = req.Difficulty.LengthScale()
	}

	style := strings.ToLower(strings.TrimSpace(req.VoiceStyle))
	if style == "" {
		style = defaultVoiceStyle
	}
	noise, ok := voiceStyles[style]
	if !ok {
		return nil, domain.InvalidRequest("unknown voice_style %q", req.VoiceStyle)
	}
	p.noise = noise

	explanation := strings.ToLower(strings.TrimSpace(req.ExplanationLanguage))
	if explanation == "" || explanation == target || req.Intensity == entities.IntensityImmersive {
		return p, nil
	}
	segments := SplitExplanations(text, target, explanation)
	if len(segments) < 2 {
		return p, nil
	}
	explanationVoice, err := pickVoice(explanation, req.ExplanationVoice)
	if err != nil {
		return nil, err
	}
	p.voices[explanation] = explanationVoice
	p.segments = segments
	return p, nil
}

func pickVoice(language, requested string) (string, error) {
	if !entities.IsKnownLanguage(language) {
		return "", domain.InvalidRequest("unsupported language %q", language)
	}
	fallback, ok := entities.DefaultVoice(language)
	if !ok {
		return "", domain.InvalidRequest("no voice available for language %q", language)
	}
	if requested == "" {
		return fallback, nil
	}
	if !entities.HasVoice(language, requested) {
		return "", domain.InvalidRequest("voice %q is not available for language %q", requested, language)
	}
	return requested, nil
}

// Segment is a span of text voiced in one language
type Segment struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// SplitExplanations splits text into target-language spans and parenthesised
// explanation spans, dropping the parentheses. An unclosed parenthesis is
// treated as ordinary text.
func SplitExplanations(text, target, explanation string) []Segment {
	var segments []Segment
	add := func(s, lang string) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, Segment{Text: s, Language: lang})
		}
	}

	rest := text
	for {
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			break
		}
		closing := strings.IndexByte(rest[open:], ')')
		if closing < 0 {
			break
		}
		add(rest[:open], target)
		add(rest[open+1:open+closing], explanation)
		rest = rest[open+closing+1:]
	}
	add(rest, target)
	return segments
}
