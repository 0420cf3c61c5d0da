package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/audio"
)

const (
	defaultPiperBinary = "piper"
	defaultPiperVoice  = "en_US-lessac-medium"
)

// PiperConfig locates the piper executable and its voice models. A voice
// "xx_YY-name-quality" is loaded from ModelDir/xx_YY-name-quality.onnx.
type PiperConfig struct {
	Binary   string
	ModelDir string
	Voice    string
}

// ValidatePiperConfig validates the PiperConfig
func ValidatePiperConfig(config PiperConfig) error {
	if config.ModelDir == "" {
		return fmt.Errorf("piper model directory is required")
	}
	return nil
}

// PiperTTS implements TextToSpeech by running the piper CLI once per utterance
type PiperTTS struct {
	binary   string
	modelDir string
	voice    string
	logger   *zap.Logger
}

var _ repositories.TextToSpeech = (*PiperTTS)(nil)

func NewPiperTTS(config PiperConfig, logger *zap.Logger) (*PiperTTS, error) {
	if err := ValidatePiperConfig(config); err != nil {
		return nil, err
	}

	binary := config.Binary
	if binary == "" {
		binary = defaultPiperBinary
		logger.Info("Using default piper binary", zap.String("binary", binary))
	}
	voice := config.Voice
	if voice == "" {
		voice = defaultPiperVoice
		logger.Info("Using default voice", zap.String("voice", voice))
	}

	return &PiperTTS{
		binary:   binary,
		modelDir: config.ModelDir,
		voice:    voice,
		logger:   logger,
	}, nil
}

func (p *PiperTTS) Name() string {
	return "piper"
}

// Ready checks that the binary resolves and the default voice is installed.
func (p *PiperTTS) Ready(ctx context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return domain.NewError(domain.KindModelUnavailable, "piper binary not found", err)
	}
	if _, err := os.Stat(p.modelPath(p.voice)); err != nil {
		return domain.NewError(domain.KindModelUnavailable, fmt.Sprintf("voice %s is not installed", p.voice), err)
	}
	return nil
}

// InstalledVoices lists the voice models present in the model directory.
func (p *PiperTTS) InstalledVoices() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(p.modelDir, "*.onnx"))
	if err != nil {
		return nil, err
	}
	voices := make([]string, 0, len(matches))
	for _, m := range matches {
		voices = append(voices, strings.TrimSuffix(filepath.Base(m), ".onnx"))
	}
	return voices, nil
}

func (p *PiperTTS) Synthesize(ctx context.Context, text string, opts repositories.SynthesisOptions) (*repositories.SpeechAudio, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.InvalidRequest("text cannot be empty")
	}

	voice := opts.Voice
	if voice == "" {
		voice = p.voice
	}
	model := p.modelPath(voice)
	if _, err := os.Stat(model); err != nil {
		p.logger.Warn("Voice model unavailable", zap.String("voice", voice), zap.String("model", model))
		return nil, domain.NewError(domain.KindModelUnavailable, fmt.Sprintf("voice %s is not installed", voice), err)
	}

	out, err := os.CreateTemp("", "piper-*.wav")
	if err != nil {
		return nil, domain.NewError(domain.KindSynthesisFailure, "failed to create output file", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	args := []string{"--model", model, "--output_file", outPath}
	if opts.LengthScale > 0 {
		args = append(args, "--length_scale", formatScale(opts.LengthScale))
	}
	if opts.NoiseScale > 0 {
		args = append(args, "--noise_scale", formatScale(opts.NoiseScale))
	}
	if opts.NoiseW > 0 {
		args = append(args, "--noise_w", formatScale(opts.NoiseW))
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary, args...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewError(domain.KindModelUnavailable, "piper binary not found", err)
		}
		p.logger.Error("Piper synthesis failed",
			zap.String("voice", voice),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
			zap.Error(err))
		return nil, domain.NewError(domain.KindSynthesisFailure, "piper synthesis failed", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, domain.NewError(domain.KindSynthesisFailure, "failed to read synthesized audio", err)
	}
	clip, err := audio.Decode(data)
	if err != nil {
		return nil, domain.NewError(domain.KindSynthesisFailure, "piper produced invalid audio", err)
	}

	p.logger.Info("Synthesized speech",
		zap.Int("characters", len([]rune(text))),
		zap.String("voice", voice),
		zap.Duration("duration", clip.Duration()))

	return &repositories.SpeechAudio{
		Audio:       data,
		ContentType: audio.ContentTypeWAV,
		SampleRate:  clip.SampleRate,
		Voice:       voice,
		Duration:    clip.Duration(),
	}, nil
}

func (p *PiperTTS) modelPath(voice string) string {
	return filepath.Join(p.modelDir, filepath.Base(voice)+".onnx")
}

func formatScale(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
