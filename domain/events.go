package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType tags the variants carried on a reply stream.
type EventType string

const (
	EventStatus        EventType = "status"
	EventTranscription EventType = "transcription"
	EventChunk         EventType = "chunk"
	EventComplete      EventType = "complete"
	EventError         EventType = "error"
)

// StatusGenerating is sent once before the first chunk.
const StatusGenerating = "generating"

// TranscriptionInfo is the payload of a transcription event.
type TranscriptionInfo struct {
	Text                string
	DetectedLanguage    string
	LanguageProbability float64
	Duration            float64
}

// AudioInfo describes synthesized reply audio. Data is base64 on the wire.
type AudioInfo struct {
	ContentType     string  `json:"content_type"`
	SampleRate      int     `json:"sample_rate"`
	Voice           string  `json:"voice"`
	DurationSeconds float64 `json:"duration_seconds"`
	Data            []byte  `json:"data,omitempty"`
}

// Completion is the payload of the terminal success event.
type Completion struct {
	FullResponse     string
	Language         string
	SessionID        string
	TranscribedText  string
	DetectedLanguage string
	Audio            *AudioInfo
	TimingsMs        map[string]int64
}

// Event is one element of a reply stream. Exactly one payload matches Type.
type Event struct {
	Type          EventType
	Status        string
	Transcription *TranscriptionInfo
	Chunk         string
	Completion    *Completion
	ErrorKind     Kind
	ErrorMessage  string
}

func StatusEvent(status string) Event {
	return Event{Type: EventStatus, Status: status}
}

func TranscriptionEvent(info TranscriptionInfo) Event {
	return Event{Type: EventTranscription, Transcription: &info}
}

func ChunkEvent(text string) Event {
	return Event{Type: EventChunk, Chunk: text}
}

func CompleteEvent(c Completion) Event {
	return Event{Type: EventComplete, Completion: &c}
}

// ErrorEvent converts err into a terminal error event, keeping its kind when classified.
func ErrorEvent(err error) Event {
	kind := KindOf(err)
	if kind == "" {
		kind = KindGenerationFailure
	}
	return Event{Type: EventError, ErrorKind: kind, ErrorMessage: MessageOf(err)}
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Err returns the classified error carried by an error event, nil otherwise.
func (e Event) Err() error {
	if e.Type != EventError {
		return nil
	}
	return NewError(e.ErrorKind, e.ErrorMessage, nil)
}

type wireEvent struct {
	Type EventType `json:"type,omitempty"`

	Status string `json:"status,omitempty"`

	Text                string   `json:"text,omitempty"`
	LanguageProbability *float64 `json:"language_probability,omitempty"`
	Duration            *float64 `json:"duration,omitempty"`

	Chunk *string `json:"chunk,omitempty"`

	FullResponse     *string          `json:"full_response,omitempty"`
	Language         string           `json:"language,omitempty"`
	SessionID        string           `json:"session_id,omitempty"`
	TranscribedText  string           `json:"transcribed_text,omitempty"`
	DetectedLanguage string           `json:"detected_language,omitempty"`
	Audio            *AudioInfo       `json:"audio,omitempty"`
	TimingsMs        map[string]int64 `json:"timings_ms,omitempty"`

	Error string `json:"error,omitempty"`
	Kind  Kind   `json:"kind,omitempty"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{Type: e.Type}
	switch e.Type {
	case EventStatus:
		w.Status = e.Status
	case EventTranscription:
		if e.Transcription == nil {
			return nil, errors.New("transcription event without payload")
		}
		w.Text = e.Transcription.Text
		w.DetectedLanguage = e.Transcription.DetectedLanguage
		prob, dur := e.Transcription.LanguageProbability, e.Transcription.Duration
		w.LanguageProbability = &prob
		w.Duration = &dur
	case EventChunk:
		chunk := e.Chunk
		w.Chunk = &chunk
	case EventComplete:
		if e.Completion == nil {
			return nil, errors.New("complete event without payload")
		}
		c := e.Completion
		full := c.FullResponse
		w.FullResponse = &full
		w.Language = c.Language
		w.SessionID = c.SessionID
		w.TranscribedText = c.TranscribedText
		w.DetectedLanguage = c.DetectedLanguage
		w.Audio = c.Audio
		w.TimingsMs = c.TimingsMs
	case EventError:
		w.Error = e.ErrorMessage
		w.Kind = e.ErrorKind
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts payloads with or without a "type" field; untyped
// payloads are classified by the fields they carry.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	typ := w.Type
	if typ == "" {
		switch {
		case w.Error != "":
			typ = EventError
		case w.FullResponse != nil:
			typ = EventComplete
		case w.Chunk != nil:
			typ = EventChunk
		case w.Status != "":
			typ = EventStatus
		case w.Text != "" || w.LanguageProbability != nil:
			typ = EventTranscription
		default:
			return fmt.Errorf("unrecognised event payload: %s", data)
		}
	}

	*e = Event{Type: typ}
	switch typ {
	case EventStatus:
		e.Status = w.Status
	case EventTranscription:
		info := TranscriptionInfo{Text: w.Text, DetectedLanguage: w.DetectedLanguage}
		if w.LanguageProbability != nil {
			info.LanguageProbability = *w.LanguageProbability
		}
		if w.Duration != nil {
			info.Duration = *w.Duration
		}
		e.Transcription = &info
	case EventChunk:
		if w.Chunk != nil {
			e.Chunk = *w.Chunk
		}
	case EventComplete:
		c := Completion{
			Language:         w.Language,
			SessionID:        w.SessionID,
			TranscribedText:  w.TranscribedText,
			DetectedLanguage: w.DetectedLanguage,
			Audio:            w.Audio,
			TimingsMs:        w.TimingsMs,
		}
		if w.FullResponse != nil {
			c.FullResponse = *w.FullResponse
		}
		e.Completion = &c
	case EventError:
		e.ErrorMessage = w.Error
		e.ErrorKind = w.Kind
		if e.ErrorKind == "" {
			e.ErrorKind = KindGenerationFailure
		}
	default:
		return fmt.Errorf("unknown event type %q", typ)
	}
	return nil
}
