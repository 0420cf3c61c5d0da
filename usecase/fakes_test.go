package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/lingua/adapters/memory"
	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/repositories"
)

// countingLLM replays chunks and counts every Recv call.
type countingLLM struct {
	mu        sync.Mutex
	chunks    []string
	failAt    int // Recv index that fails, -1 for none
	endless   bool
	pulls     int
	closed    bool
	lastInput []repositories.ChatMessage
}

func newCountingLLM(chunks ...string) *countingLLM {
	return &countingLLM{chunks: chunks, failAt: -1}
}

func (f *countingLLM) Name() string                    { return "counting" }
func (f *countingLLM) Ready(ctx context.Context) error { return nil }

func (f *countingLLM) StreamChat(ctx context.Context, messages []repositories.ChatMessage, opts repositories.GenerationOptions) (repositories.CompletionStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastInput = messages
	return &countingStream{llm: f}, nil
}

func (f *countingLLM) Pulls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pulls
}

func (f *countingLLM) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *countingLLM) LastInput() []repositories.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastInput
}

type countingStream struct {
	llm  *countingLLM
	next int
}

func (s *countingStream) Recv() (string, error) {
	s.llm.mu.Lock()
	defer s.llm.mu.Unlock()
	s.llm.pulls++
	i := s.next
	s.next++
	switch {
	case s.llm.endless:
		return "bla ", nil
	case i == s.llm.failAt:
		return "", errors.New("runtime crashed")
	case i >= len(s.llm.chunks):
		return "", io.EOF
	}
	return s.llm.chunks[i], nil
}

func (s *countingStream) Close() error {
	s.llm.mu.Lock()
	defer s.llm.mu.Unlock()
	s.llm.closed = true
	return nil
}

// recordingTTS wraps an engine and records the voices it was asked for.
type recordingTTS struct {
	repositories.TextToSpeech
	mu     sync.Mutex
	voices []string
	texts  []string
	err    error
}

func (r *recordingTTS) Synthesize(ctx context.Context, text string, opts repositories.SynthesisOptions) (*repositories.SpeechAudio, error) {
	r.mu.Lock()
	r.voices = append(r.voices, opts.Voice)
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.TextToSpeech.Synthesize(ctx, text, opts)
}

// fixedSTT returns the same transcription for every clip.
type fixedSTT struct {
	text     string
	language string
	err      error
	calls    int
}

func (f *fixedSTT) Name() string                    { return "fixed" }
func (f *fixedSTT) Ready(ctx context.Context) error { return nil }

func (f *fixedSTT) Transcribe(ctx context.Context, data []byte, config repositories.AudioConfig) (*repositories.Transcription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &repositories.Transcription{Text: f.text, Language: f.language, LanguageProbability: 0.9, Duration: 1}, nil
}

func newSessions(t *testing.T) *memory.SessionRepository {
	return memory.NewSessionRepository(repositories.SessionOptions{HistoryLimit: 20}, zaptest.NewLogger(t))
}

func historyLen(t *testing.T, repo repositories.SessionRepository, id string) int {
	t.Helper()
	s, err := repo.Get(context.Background(), id)
	if domain.KindOf(err) == domain.KindSessionNotFound {
		return 0
	}
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return len(s.Turns)
}

func collect(events <-chan domain.Event) []domain.Event {
	var out []domain.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func repositoriesAudio(language string) repositories.AudioConfig {
	return repositories.AudioConfig{Filename: "clip.wav", Language: language}
}
