// Command client talks to a running lingua server from the terminal.
//
//	client text   [flags] <message>   stream a typed turn over SSE
//	client listen [flags] <clip.wav>  stream a recording over the listening socket
package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/internal/audio"
	"github.com/satriahrh/lingua/internal/sseclient"
)

const frameDuration = 100 * time.Millisecond

var errUsage = errors.New("usage")

type options struct {
	server     string
	token      string
	language   string
	difficulty string
	scenario   string
	intensity  string
	session    string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.server, "server", "http://localhost:8000", "server base URL")
	fs.StringVar(&o.token, "token", os.Getenv("LINGUA_TOKEN"), "access token when the server requires one")
	fs.StringVar(&o.language, "lang", "es", "target language")
	fs.StringVar(&o.difficulty, "difficulty", "beginner", "beginner, intermediate or advanced")
	fs.StringVar(&o.scenario, "scenario", "greeting", "conversation scenario")
	fs.StringVar(&o.intensity, "intensity", "balanced", "light, balanced or immersive")
	fs.StringVar(&o.session, "session", "", "session id")
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := printer{out: os.Stdout, status: os.Stderr}
	var err error
	switch os.Args[1] {
	case "text":
		err = runText(ctx, os.Args[2:], p)
	case "listen":
		err = runListen(ctx, os.Args[2:], p)
	default:
		usage()
	}
	if errors.Is(err, errUsage) {
		usage()
	}
	if err != nil {
		log.Fatalf("error: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: client text [flags] <message>")
	fmt.Fprintln(os.Stderr, "       client listen [flags] <clip.wav>")
	os.Exit(2)
}

func runText(ctx context.Context, args []string, p printer) error {
	var opts options
	fs := flag.NewFlagSet("text", flag.ContinueOnError)
	fs.SetOutput(p.status)
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	body, _ := json.Marshal(map[string]string{
		"message":            strings.Join(fs.Args(), " "),
		"language":           opts.language,
		"difficulty":         opts.difficulty,
		"scenario":           opts.scenario,
		"teaching_intensity": opts.intensity,
		"session_id":         opts.session,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.server+"/api/conversation/text-stream", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return sseclient.Each(resp.Body, p.event)
}

func runListen(ctx context.Context, args []string, p printer) error {
	var opts options
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	fs.SetOutput(p.status)
	opts.register(fs)
	continuous := fs.Bool("continuous", false, "keep listening after each reply")
	synthesize := fs.Bool("synthesize", false, "ask the server to voice replies")
	fast := fs.Bool("fast", false, "send audio as fast as possible instead of in real time")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	clip, err := audio.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", fs.Arg(0), err)
	}
	clip = clip.Mono()

	conn, err := dial(ctx, opts)
	if err != nil {
		return err
	}
	defer conn.Close()

	start := map[string]interface{}{
		"type":               "listening_start",
		"language":           opts.language,
		"difficulty":         opts.difficulty,
		"scenario":           opts.scenario,
		"teaching_intensity": opts.intensity,
		"session_id":         opts.session,
		"sample_rate":        clip.SampleRate,
		"continuous":         *continuous,
		"synthesize":         *synthesize,
	}
	if err := conn.WriteJSON(start); err != nil {
		return fmt.Errorf("send listening_start: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- readReplies(conn, *continuous, p) }()

	// Trailing silence lets the server detect the end of speech.
	samples := append(clip.Samples, make([]int16, 2*clip.SampleRate)...)
	if err := sendAudio(ctx, conn, samples, clip.SampleRate, *fast); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		conn.WriteJSON(map[string]string{"type": "listening_stop"})
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	}
}

func dial(ctx context.Context, opts options) (*websocket.Conn, error) {
	u, err := url.Parse(opts.server)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/conversation/listen"
	if opts.token != "" {
		q := u.Query()
		q.Set("token", opts.token)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}
	return conn, nil
}

func sendAudio(ctx context.Context, conn *websocket.Conn, samples []int16, sampleRate int, fast bool) error {
	frame := int(frameDuration.Seconds() * float64(sampleRate))
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	buf := new(bytes.Buffer)
	for off := 0; off < len(samples); off += frame {
		end := off + frame
		if end > len(samples) {
			end = len(samples)
		}
		buf.Reset()
		binary.Write(buf, binary.LittleEndian, samples[off:end])
		if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}

		if fast {
			continue
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// readReplies prints server messages. Outside continuous mode it returns
// once the recorder goes idle.
func readReplies(conn *websocket.Conn, continuous bool, p printer) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		var head struct {
			Type   string `json:"type"`
			State  string `json:"state"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return fmt.Errorf("invalid message %q: %w", data, err)
		}

		switch head.Type {
		case "listening_state":
			fmt.Fprintf(p.status, "[%s: %s]\n", head.State, head.Reason)
			if head.State == "idle" && !continuous {
				return nil
			}
		case "pong":
		default:
			// stream events and socket errors share the event encoding
			var ev domain.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				return err
			}
			p.event(ev)
		}
	}
}

// printer writes replies to out and progress to status.
type printer struct {
	out    io.Writer
	status io.Writer
}

func (p printer) event(ev domain.Event) error {
	switch ev.Type {
	case domain.EventStatus:
		fmt.Fprintf(p.status, "[%s]\n", ev.Status)
	case domain.EventTranscription:
		fmt.Fprintf(p.out, "you (%s): %s\n", ev.Transcription.DetectedLanguage, ev.Transcription.Text)
	case domain.EventChunk:
		fmt.Fprint(p.out, ev.Chunk)
	case domain.EventComplete:
		fmt.Fprintln(p.out)
		if ev.Completion.Audio != nil {
			fmt.Fprintf(p.status, "[audio: %.1fs %s]\n", ev.Completion.Audio.DurationSeconds, ev.Completion.Audio.Voice)
		}
		if total, ok := ev.Completion.TimingsMs["total"]; ok {
			fmt.Fprintf(p.status, "[%dms]\n", total)
		}
	case domain.EventError:
		fmt.Fprintln(p.out)
		fmt.Fprintf(p.status, "error (%s): %s\n", ev.ErrorKind, ev.ErrorMessage)
	}
	return nil
}
