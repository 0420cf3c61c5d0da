package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/domain/entities"
	"github.com/satriahrh/lingua/domain/repositories"
	"github.com/satriahrh/lingua/internal/pipeline"
)

// Stage names, also the keys of the completion timings.
const (
	StageTranscribe = "transcribe"
	StageGenerate   = "generate"
	StageSynthesize = "synthesize"
	StageCommit     = "commit"
)

// VoiceRequest is one finished recording to answer
type VoiceRequest struct {
	Audio []byte
	// AudioConfig.Language is the optional input-language hint.
	AudioConfig repositories.AudioConfig
	Settings    TurnSettings
	SessionID   string
	Synthesize  bool
	Voice       string
	SpeechRate  float64
}

// VoiceReply is the outcome of a completed voice turn
type VoiceReply struct {
	Transcription *repositories.Transcription
	Text          string
	Language      string
	SessionID     string
	Audio         *repositories.SpeechAudio
	Report        *pipeline.Report
}

// VoiceService runs voice turns: transcribe, generate, synthesize, then
// record both turns. A failing stage ends the turn and nothing is recorded.
type VoiceService struct {
	conversation *ConversationService
	speech       *SpeechService
	runner       *pipeline.Runner
	logger       *zap.Logger
}

// NewVoiceService creates a new voice service
func NewVoiceService(conversation *ConversationService, speech *SpeechService, runner *pipeline.Runner, logger *zap.Logger) *VoiceService {
	return &VoiceService{
		conversation: conversation,
		speech:       speech,
		runner:       runner,
		logger:       logger,
	}
}

// Respond runs a voice turn to completion.
func (v *VoiceService) Respond(ctx context.Context, req VoiceRequest) (*VoiceReply, error) {
	return v.run(ctx, req, nil)
}

// Stream runs a voice turn as events: transcription, generating status,
// chunks, then complete (with audio when synthesized) or a single error.
func (v *VoiceService) Stream(ctx context.Context, req VoiceRequest) <-chan domain.Event {
	return relay(ctx, v.logger, func(emit emitFunc) (domain.Event, error) {
		reply, err := v.run(ctx, req, emit)
		if err != nil {
			return domain.Event{}, err
		}
		return domain.CompleteEvent(reply.Completion()), nil
	})
}

// Completion converts the reply into the terminal event payload.
func (r *VoiceReply) Completion() domain.Completion {
	c := domain.Completion{
		FullResponse:     r.Text,
		Language:         r.Language,
		SessionID:        r.SessionID,
		TranscribedText:  r.Transcription.Text,
		DetectedLanguage: r.Transcription.Language,
	}
	if r.Audio != nil {
		c.Audio = &domain.AudioInfo{
			ContentType:     r.Audio.ContentType,
			SampleRate:      r.Audio.SampleRate,
			Voice:           r.Audio.Voice,
			DurationSeconds: r.Audio.Duration.Seconds(),
			Data:            r.Audio.Audio,
		}
	}
	if r.Report != nil {
		c.TimingsMs = r.Report.TimingsMs()
	}
	return c
}

func (v *VoiceService) run(ctx context.Context, req VoiceRequest, emit emitFunc) (*VoiceReply, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := v.speech.ValidateClip(req.Audio); err != nil {
		return nil, err
	}
	if req.Synthesize {
		if _, err := pickVoice(req.Settings.Language, req.Voice); err != nil {
			return nil, err
		}
	}

	reply := &VoiceReply{Language: req.Settings.Language, SessionID: sessionID}

	stages := []pipeline.Stage{
		{Name: StageTranscribe, Run: func(ctx context.Context) error {
			t, err := v.speech.Transcribe(ctx, req.Audio, req.AudioConfig)
			if err != nil {
				return err
			}
			if strings.TrimSpace(t.Text) == "" {
				return domain.NewError(domain.KindTranscriptionFailure, "no speech recognised in the recording", nil)
			}
			reply.Transcription = t
			if emit != nil {
				return emit(domain.TranscriptionEvent(domain.TranscriptionInfo{
					Text:                t.Text,
					DetectedLanguage:    t.Language,
					LanguageProbability: t.LanguageProbability,
					Duration:            t.Duration,
				}))
			}
			return nil
		}},
		{Name: StageGenerate, Run: func(ctx context.Context) error {
			history, err := v.conversation.history(ctx, sessionID)
			if err != nil {
				return err
			}
			messages := BuildMessages(req.Settings, history, v.conversation.config.ContextLength, reply.Transcription.Text)
			reply.Text, err = v.conversation.generate(ctx, messages, emit)
			return err
		}},
	}
	if req.Synthesize {
		stages = append(stages, pipeline.Stage{Name: StageSynthesize, Run: func(ctx context.Context) error {
			var err error
			reply.Audio, err = v.speech.Synthesize(ctx, SynthesisRequest{
				Text:                reply.Text,
				Language:            req.Settings.Language,
				Voice:               req.Voice,
				SpeechRate:          req.SpeechRate,
				ExplanationLanguage: req.Settings.ExplanationLanguage,
				Difficulty:          req.Settings.Difficulty,
				Intensity:           req.Settings.Intensity,
			})
			return err
		}})
	}
	stages = append(stages, pipeline.Stage{Name: StageCommit, Run: func(ctx context.Context) error {
		return v.conversation.commit(ctx, sessionID,
			entities.NewTurn(entities.RoleUser, reply.Transcription.Text, reply.Transcription.Language),
			entities.NewTurn(entities.RoleAssistant, reply.Text, req.Settings.Language),
		)
	}})

	v.logger.Info("Processing voice turn",
		zap.String("session_id", sessionID),
		zap.Int("audio_bytes", len(req.Audio)),
		zap.Bool("synthesize", req.Synthesize))

	report, err := v.runner.Execute(ctx, "voice_turn", stages...)
	reply.Report = report
	if err != nil {
		return nil, err
	}
	return reply, nil
}
