package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/adapters/llm"
	"github.com/satriahrh/lingua/adapters/memory"
	"github.com/satriahrh/lingua/adapters/stt"
	"github.com/satriahrh/lingua/adapters/tts"
	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/audio"
	"github.com/satriahrh/lingua/internal/auth"
	"github.com/satriahrh/lingua/internal/pipeline"
	"github.com/satriahrh/lingua/internal/sseclient"
	"github.com/satriahrh/lingua/usecase"
)

// endlessLLM never finishes a reply and counts every pull.
type endlessLLM struct {
	pulls  atomic.Int64
	closed atomic.Bool
}

func (l *endlessLLM) Name() string                    { return "endless" }
func (l *endlessLLM) Ready(ctx context.Context) error { return nil }

func (l *endlessLLM) StreamChat(ctx context.Context, messages []repositories.ChatMessage, opts repositories.GenerationOptions) (repositories.CompletionStream, error) {
	return &endlessStream{llm: l}, nil
}

type endlessStream struct {
	llm *endlessLLM
}

func (s *endlessStream) Recv() (string, error) {
	s.llm.pulls.Add(1)
	time.Sleep(time.Millisecond)
	return "la ", nil
}

func (s *endlessStream) Close() error {
	s.llm.closed.Store(true)
	return nil
}

type fixture struct {
	e        *echo.Echo
	sessions *memory.SessionRepository
	stt      *stt.MockSpeechToText
}

type fixtureOption func(*Deps, *ServerOptions)

func withLLM(model repositories.LanguageModel) fixtureOption {
	return func(d *Deps, _ *ServerOptions) { d.LLM = model }
}

func withAuth(m *auth.Manager) fixtureOption {
	return func(d *Deps, _ *ServerOptions) { d.Auth = m }
}

func withRequestTimeout(timeout time.Duration) fixtureOption {
	return func(_ *Deps, o *ServerOptions) { o.RequestTimeout = timeout }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	logger := zap.NewNop()

	deps := Deps{
		LLM:            llm.NewRuleLLM(logger),
		TTS:            tts.NewToneTTS(logger),
		Languages:      []string{"en", "es", "hi"},
		MaxUploadBytes: 1 << 20,
	}
	serverOpts := ServerOptions{
		CORSOrigins:    []string{"*"},
		RequestTimeout: time.Minute,
	}
	for _, opt := range opts {
		opt(&deps, &serverOpts)
	}
	serverOpts.MaxUploadBytes = deps.MaxUploadBytes

	sessions := memory.NewSessionRepository(repositories.SessionOptions{TTL: time.Hour, HistoryLimit: 20}, logger)
	mockSTT := stt.NewMockSpeechToText("hola", logger)
	conversation := usecase.NewConversationService(deps.LLM, sessions, usecase.ConversationConfig{ContextLength: 10}, logger)
	speech := usecase.NewSpeechService(mockSTT, deps.TTS, usecase.SpeechConfig{
		MaxAudioDuration: 30 * time.Second,
		MaxUploadBytes:   deps.MaxUploadBytes,
	}, logger)

	deps.Conversation = conversation
	deps.Speech = speech
	deps.Voice = usecase.NewVoiceService(conversation, speech, pipeline.NewRunner(logger), logger)
	deps.Sessions = sessions
	deps.STT = mockSTT

	e := NewServer(NewHandler(deps, logger), serverOpts, logger)

	return &fixture{e: e, sessions: sessions, stt: mockSTT}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) postJSON(path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return f.do(req)
}

func (f *fixture) postForm(path string, fields map[string]string, clip []byte) *httptest.ResponseRecorder {
	body, contentType := multipartBody(fields, clip)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, contentType)
	return f.do(req)
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (f *fixture) historyLen(t *testing.T, id string) int {
	t.Helper()
	session, err := f.sessions.Get(context.Background(), id)
	if domain.KindOf(err) == domain.KindSessionNotFound {
		return 0
	}
	if err != nil {
		t.Fatalf("Get(%q) error = %v", id, err)
	}
	return len(session.Turns)
}

func multipartBody(fields map[string]string, clip []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	if clip != nil {
		part, _ := w.CreateFormFile("audio", "clip.wav")
		part.Write(clip)
	}
	w.Close()
	return body, w.FormDataContentType()
}

func testClip() []byte {
	return audio.Tone(440, 0.3, 500*time.Millisecond, 16000).Encode()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	var resp ErrorResponse
	decode(t, rec, &resp)
	if resp.Error != kind {
		t.Errorf("error = %q, want %q", resp.Error, kind)
	}
	if resp.Message == "" {
		t.Error("error message is empty")
	}
}

func readEvents(t *testing.T, body io.Reader) []domain.Event {
	t.Helper()
	var events []domain.Event
	if err := sseclient.Each(body, func(ev domain.Event) error {
		events = append(events, ev)
		return nil
	}); err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	return events
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health HealthResponse
	decode(t, rec, &health)
	if health.Status != "healthy" {
		t.Errorf("health = %+v", health)
	}

	var root RootResponse
	decode(t, f.get("/api"), &root)
	if root.Health != "/api/health" {
		t.Errorf("root = %+v", root)
	}

	var scenarios ScenariosResponse
	decode(t, f.get("/api/health/scenarios"), &scenarios)
	if scenarios.Count != 9 || scenarios.Scenarios["restaurant"] == "" {
		t.Errorf("scenarios = %+v", scenarios)
	}
}

func TestHealthModels(t *testing.T) {
	f := newFixture(t)

	var models ModelsResponse
	decode(t, f.get("/api/health/models"), &models)

	for _, key := range []string{"stt", "llm", "tts"} {
		if models.Models[key] != "loaded" {
			t.Errorf("%s = %q, want loaded", key, models.Models[key])
		}
	}
	want := map[string]string{"stt": "mock", "llm": "rules", "tts": "tone"}
	for k, v := range want {
		if models.Providers[k] != v {
			t.Errorf("provider %s = %q, want %q", k, models.Providers[k], v)
		}
	}
}

func TestHealthLanguages(t *testing.T) {
	f := newFixture(t)

	var resp LanguagesResponse
	decode(t, f.get("/api/health/languages"), &resp)

	if resp.Count != 3 {
		t.Errorf("count = %d, want 3", resp.Count)
	}
	if resp.Languages["es"].Name != "Spanish" || len(resp.Languages["es"].TTSVoices) == 0 {
		t.Errorf("es = %+v", resp.Languages["es"])
	}
	if hi := resp.Languages["hi"]; hi.TTSVoices == nil || len(hi.TTSVoices) != 0 {
		t.Errorf("hi voices = %#v, want empty list", hi.TTSVoices)
	}
}

func TestTextConversation(t *testing.T) {
	f := newFixture(t)

	rec := f.postJSON("/api/conversation/text", map[string]interface{}{
		"message":  "hello",
		"language": "es",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp ConversationResponse
	decode(t, rec, &resp)
	if resp.Response == "" || resp.Language != "es" || resp.SessionID != "default" {
		t.Errorf("unexpected response %+v", resp)
	}
	if n := f.historyLen(t, "default"); n != 2 {
		t.Errorf("history = %d turns, want 2", n)
	}
}

func TestTextConversation_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{name: "empty message", body: map[string]interface{}{"message": "  "}},
		{name: "unknown language", body: map[string]interface{}{"message": "hi", "language": "xx"}},
		{name: "unknown difficulty", body: map[string]interface{}{"message": "hi", "difficulty": "expert"}},
		{name: "bad history role", body: map[string]interface{}{
			"message": "hi",
			"history": []map[string]string{{"role": "system", "content": "x"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			expectError(t, f.postJSON("/api/conversation/text", tt.body), http.StatusBadRequest, "invalid_request")
			expectError(t, f.postJSON("/api/conversation/text-stream", tt.body), http.StatusBadRequest, "invalid_request")
			if n := f.historyLen(t, "default"); n != 0 {
				t.Errorf("history = %d turns, want 0", n)
			}
		})
	}
}

func TestTextStream_ChunksMatchFullResponse(t *testing.T) {
	f := newFixture(t)

	rec := f.postJSON("/api/conversation/text-stream", map[string]interface{}{
		"message":    "hello there",
		"language":   "es",
		"session_id": "s1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	events := readEvents(t, rec.Body)
	if len(events) < 3 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Type != domain.EventStatus || events[0].Status != "generating" {
		t.Errorf("first event = %+v, want generating status", events[0])
	}

	var chunks strings.Builder
	for _, ev := range events[1 : len(events)-1] {
		if ev.Type != domain.EventChunk {
			t.Fatalf("unexpected %s event mid-stream", ev.Type)
		}
		chunks.WriteString(ev.Chunk)
	}
	last := events[len(events)-1]
	if last.Type != domain.EventComplete {
		t.Fatalf("last event = %+v", last)
	}
	if last.Completion.FullResponse != chunks.String() {
		t.Errorf("full_response %q != chunks %q", last.Completion.FullResponse, chunks.String())
	}
	if last.Completion.SessionID != "s1" {
		t.Errorf("session_id = %q", last.Completion.SessionID)
	}
	if n := f.historyLen(t, "s1"); n != 2 {
		t.Errorf("history = %d turns, want 2", n)
	}
}

func TestTextStream_DisconnectStopsGeneration(t *testing.T) {
	model := &endlessLLM{}
	f := newFixture(t, withLLM(model))
	server := httptest.NewServer(f.e)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, server.URL+"/api/conversation/text-stream",
		strings.NewReader(`{"message":"hola","session_id":"gone"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	reader := sseclient.NewReader(resp.Body)
	chunks := 0
	for chunks < 3 {
		ev, err := reader.Next()
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if ev.Type == domain.EventChunk {
			chunks++
		}
	}
	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(3 * time.Second)
	for !model.closed.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !model.closed.Load() {
		t.Fatal("completion stream was not closed after disconnect")
	}

	before := model.pulls.Load()
	time.Sleep(100 * time.Millisecond)
	if after := model.pulls.Load(); after != before {
		t.Errorf("pulls continued after disconnect: %d -> %d", before, after)
	}
	if n := f.historyLen(t, "gone"); n != 0 {
		t.Errorf("history = %d turns, want 0", n)
	}
}

func TestTextStream_DeadlineEndsWithErrorEvent(t *testing.T) {
	model := &endlessLLM{}
	f := newFixture(t, withLLM(model), withRequestTimeout(200*time.Millisecond))

	rec := f.postJSON("/api/conversation/text-stream", map[string]interface{}{
		"message":    "hola",
		"session_id": "slow",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	events := readEvents(t, rec.Body)
	if len(events) < 2 {
		t.Fatalf("got %d events", len(events))
	}
	last := events[len(events)-1]
	if last.Type != domain.EventError {
		t.Fatalf("last event = %+v, want error", last)
	}
	if last.ErrorKind != domain.KindGenerationFailure || !strings.Contains(last.ErrorMessage, "timed out") {
		t.Errorf("error event = %s %q", last.ErrorKind, last.ErrorMessage)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Terminal() {
			t.Fatalf("terminal %s event before the end", ev.Type)
		}
	}
	if n := f.historyLen(t, "slow"); n != 0 {
		t.Errorf("history = %d turns, want 0", n)
	}
}

func TestTranscribe(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm("/api/conversation/transcribe", map[string]string{"language": "es"}, testClip())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp TranscriptionResponse
	decode(t, rec, &resp)
	if resp.Text != "hola" || resp.DetectedLanguage != "es" || len(resp.Segments) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Duration < 0.49 || resp.Duration > 0.51 {
		t.Errorf("duration = %v, want 0.5", resp.Duration)
	}
}

func TestTranscribe_InvalidRequests(t *testing.T) {
	f := newFixture(t)

	expectError(t, f.postForm("/api/conversation/transcribe", nil, nil), http.StatusBadRequest, "invalid_request")
	expectError(t, f.postForm("/api/conversation/transcribe", map[string]string{"language": "xx"}, testClip()),
		http.StatusBadRequest, "invalid_request")

	long := audio.Tone(440, 0.3, 31*time.Second, 8000).Encode()
	expectError(t, f.postForm("/api/conversation/transcribe", nil, long), http.StatusBadRequest, "invalid_request")

	if f.stt.Calls() != 0 {
		t.Errorf("engine called %d times for rejected requests", f.stt.Calls())
	}
}

func TestSynthesize(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm("/api/conversation/synthesize", map[string]string{
		"text":     "Hola, ¿cómo estás?",
		"language": "es",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != audio.ContentTypeWAV {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); cd != "attachment; filename=speech.wav" {
		t.Errorf("content disposition = %q", cd)
	}
	if !audio.IsWAV(rec.Body.Bytes()) {
		t.Error("body is not WAV")
	}
}

func TestSynthesize_Bilingual(t *testing.T) {
	f := newFixture(t)

	single := f.postForm("/api/conversation/synthesize", map[string]string{
		"text":               "Me gusta el café (I like coffee)",
		"language":           "es",
		"teaching_intensity": "immersive",
	}, nil)
	segmented := f.postForm("/api/conversation/synthesize", map[string]string{
		"text":                 "Me gusta el café (I like coffee)",
		"language":             "es",
		"explanation_language": "en",
	}, nil)
	if single.Code != http.StatusOK || segmented.Code != http.StatusOK {
		t.Fatalf("status = %d / %d", single.Code, segmented.Code)
	}

	a, err := audio.Duration(single.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	b, err := audio.Duration(segmented.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	// beginner pace is 100ms per character with the tone engine; the
	// segmented rendering drops the parentheses and adds a 160ms pause
	near := func(got, want time.Duration) bool {
		d := got - want
		return d > -5*time.Millisecond && d < 5*time.Millisecond
	}
	if !near(a, 3200*time.Millisecond) {
		t.Errorf("single duration = %v, want 3.2s", a)
	}
	if !near(b, 3060*time.Millisecond) {
		t.Errorf("segmented duration = %v, want 3.06s", b)
	}
}

func TestSynthesize_InvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{name: "missing text", fields: map[string]string{"language": "es"}},
		{name: "unsupported language", fields: map[string]string{"text": "hi", "language": "xx"}},
		{name: "language without voices", fields: map[string]string{"text": "namaste", "language": "hi"}},
		{name: "voice of another language", fields: map[string]string{"text": "hola", "language": "es", "voice": "en_US-amy-medium"}},
		{name: "speech rate not a number", fields: map[string]string{"text": "hola", "language": "es", "speech_rate": "fast"}},
		{name: "speech rate out of range", fields: map[string]string{"text": "hola", "language": "es", "speech_rate": "5"}},
		{name: "unknown voice style", fields: map[string]string{"text": "hola", "language": "es", "voice_style": "shouty"}},
		{name: "unknown difficulty", fields: map[string]string{"text": "hola", "language": "es", "difficulty": "expert"}},
	}

	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, f.postForm("/api/conversation/synthesize", tt.fields, nil), http.StatusBadRequest, "invalid_request")
		})
	}
}

func TestSpeak(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm("/api/conversation/speak", map[string]string{
		"language":   "es",
		"session_id": "voice",
	}, testClip())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp ConversationResponse
	decode(t, rec, &resp)
	if resp.TranscribedText != "hola" || resp.DetectedLanguage != "es" || resp.Response == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Audio == nil || !audio.IsWAV(resp.Audio.Data) {
		t.Fatal("expected synthesized WAV audio")
	}
	for _, stage := range []string{usecase.StageTranscribe, usecase.StageGenerate, usecase.StageSynthesize, usecase.StageCommit, "total"} {
		if _, ok := resp.TimingsMs[stage]; !ok {
			t.Errorf("timings missing %q", stage)
		}
	}
	if n := f.historyLen(t, "voice"); n != 2 {
		t.Errorf("history = %d turns, want 2", n)
	}
}

func TestSpeakStream_TranscriptionFirst(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm("/api/conversation/speak-stream", map[string]string{
		"language":   "es",
		"synthesize": "false",
	}, testClip())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	events := readEvents(t, rec.Body)
	if len(events) < 4 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Type != domain.EventTranscription || events[0].Transcription.Text != "hola" {
		t.Fatalf("first event = %+v, want transcription of hola", events[0])
	}
	if events[1].Type != domain.EventStatus {
		t.Errorf("second event = %s, want status", events[1].Type)
	}
	last := events[len(events)-1]
	if last.Type != domain.EventComplete {
		t.Fatalf("last event = %+v", last)
	}
	if last.Completion.TranscribedText != "hola" || last.Completion.Audio != nil {
		t.Errorf("completion = %+v", last.Completion)
	}
	if n := f.historyLen(t, "default"); n != 2 {
		t.Errorf("history = %d turns, want 2", n)
	}
}

func TestSpeak_UnvoicedLanguageRejectedUpFront(t *testing.T) {
	f := newFixture(t)

	rec := f.postForm("/api/conversation/speak", map[string]string{"language": "hi"}, testClip())
	expectError(t, rec, http.StatusBadRequest, "invalid_request")

	if f.stt.Calls() != 0 {
		t.Errorf("transcription ran %d times", f.stt.Calls())
	}
	if n := f.historyLen(t, "default"); n != 0 {
		t.Errorf("history = %d turns, want 0", n)
	}
}

func TestSpeak_InvalidForm(t *testing.T) {
	f := newFixture(t)

	expectError(t, f.postForm("/api/conversation/speak", map[string]string{"language": "es"}, nil),
		http.StatusBadRequest, "invalid_request")
	expectError(t, f.postForm("/api/conversation/speak", map[string]string{"synthesize": "maybe"}, testClip()),
		http.StatusBadRequest, "invalid_request")
	expectError(t, f.postForm("/api/conversation/speak-stream", map[string]string{"scenario": "x", "difficulty": "expert"}, testClip()),
		http.StatusBadRequest, "invalid_request")
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	expectError(t, f.get("/api/conversation/session/s1"), http.StatusNotFound, "session_not_found")

	f.postJSON("/api/conversation/text", map[string]interface{}{"message": "hello", "session_id": "s1"})

	rec := f.get("/api/conversation/session/s1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var session SessionResponse
	decode(t, rec, &session)
	if session.SessionID != "s1" || len(session.Messages) != 2 {
		t.Fatalf("session = %+v", session)
	}
	if session.Messages[0].Role != "user" || session.Messages[0].Content != "hello" {
		t.Errorf("first turn = %+v", session.Messages[0])
	}

	del := f.do(httptest.NewRequest(http.MethodDelete, "/api/conversation/session/s1", nil))
	var cleared SessionClearedResponse
	decode(t, del, &cleared)
	if del.Code != http.StatusOK || cleared.Status != "cleared" || cleared.SessionID != "s1" {
		t.Errorf("delete = %d %+v", del.Code, cleared)
	}
	expectError(t, f.get("/api/conversation/session/s1"), http.StatusNotFound, "session_not_found")

	again := f.do(httptest.NewRequest(http.MethodDelete, "/api/conversation/session/s1", nil))
	if again.Code != http.StatusOK {
		t.Errorf("second delete status = %d", again.Code)
	}
}

func TestVoices(t *testing.T) {
	f := newFixture(t)

	var resp VoicesResponse
	decode(t, f.get("/api/conversation/voices"), &resp)
	if len(resp.Voices["es"]) == 0 || len(resp.Voices["en"]) == 0 {
		t.Errorf("voices = %+v", resp.Voices)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	expectError(t, f.get("/api/nope"), http.StatusNotFound, "not_found")
}

func TestAuth(t *testing.T) {
	f := newFixture(t, withAuth(auth.NewManager("secret", "open-sesame", time.Hour)))

	if rec := f.get("/api/health"); rec.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", rec.Code)
	}
	expectError(t, f.get("/api/conversation/voices"), http.StatusUnauthorized, "unauthorized")
	expectError(t, f.postJSON("/api/auth/token", map[string]string{"access_key": "wrong"}),
		http.StatusUnauthorized, "authentication_failed")

	rec := f.postJSON("/api/auth/token", map[string]string{"access_key": "open-sesame"})
	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d", rec.Code)
	}
	var token TokenResponse
	decode(t, rec, &token)
	if token.Token == "" || token.ExpiresAt.IsZero() {
		t.Fatalf("token = %+v", token)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/conversation/voices", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token.Token)
	if rec := f.do(req); rec.Code != http.StatusOK {
		t.Errorf("authorized request status = %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[domain.Kind]int{
		domain.KindInvalidRequest:       http.StatusBadRequest,
		domain.KindSessionNotFound:      http.StatusNotFound,
		domain.KindModelUnavailable:     http.StatusServiceUnavailable,
		domain.KindTranscriptionFailure: http.StatusBadGateway,
		domain.KindGenerationFailure:    http.StatusBadGateway,
		domain.KindSynthesisFailure:     http.StatusBadGateway,
		"":                              http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := statusFor(kind); got != want {
			t.Errorf("statusFor(%q) = %d, want %d", kind, got, want)
		}
	}
	if domain.KindOf(errors.New("plain")) != "" {
		t.Error("plain errors must not carry a kind")
	}
}
