package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/lingua/domain"
	"github.com/satriahrh/lingua/internal/audio"
	"github.com/satriahrh/lingua/internal/listening"
	"github.com/satriahrh/lingua/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio frames

	// How often silence, max-duration and resume timers are checked.
	tickInterval = 100 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	// Origins are enforced by the CORS middleware in front of the route.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// VoiceStreamer runs one voice turn as a stream of events
type VoiceStreamer interface {
	Stream(ctx context.Context, req usecase.VoiceRequest) <-chan domain.Event
}

// Hub maintains the set of active listening clients.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Closed when Run returns.
	done chan struct{}

	voice     VoiceStreamer
	defaults  listening.Config
	validator *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub. defaults apply to every listening
// session unless the client overrides them.
func NewHub(voice VoiceStreamer, defaults listening.Config, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		voice:      voice,
		defaults:   defaults,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
}

// Run starts the hub's main loop. On shutdown every client is disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("client_id", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.id)
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("client_id", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.cancel()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ActiveClients returns how many clients are connected
func (h *Hub) ActiveClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id     string
	logger *zap.Logger

	// ctx lives as long as the connection; cancelling it stops generation.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	machine    *listening.Machine
	request    usecase.VoiceRequest
	sampleRate int
	// audio clock of the current recording: start time plus samples received
	recordStart time.Time
	buffer      []int16
}

// HandleWebSocket upgrades the request and serves one listening client.
func HandleWebSocket(hub *Hub, c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		id:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
	}
	client.logger = hub.logger.With(zap.String("client_id", client.id))

	select {
	case hub.register <- client:
	case <-hub.done:
		cancel()
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.tickLoop()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the client.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message, time.Now())
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the client to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// tickLoop drives the machine's timers between audio frames.
func (c *Client) tickLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			c.mu.Lock()
			machine := c.machine
			c.mu.Unlock()
			if machine == nil {
				continue
			}
			if tr, ok := machine.Tick(now); ok {
				c.onTransition(tr, now)
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// processMessage handles control frames from the client
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		c.sendJSON(CreateErrorMessage(domain.InvalidRequest("%v", err)))
		return
	}

	switch m := msg.(type) {
	case *ListeningStartMessage:
		c.handleListeningStart(m, time.Now())
	case *BaseMessage:
		switch m.Type {
		case MessageTypeListeningStop:
			c.handleListeningStop(time.Now())
		case MessageTypePing:
			c.sendJSON(CreatePongMessage())
		}
	}
}

// handleListeningStart configures a fresh machine and starts recording
func (c *Client) handleListeningStart(msg *ListeningStartMessage, now time.Time) {
	settings, err := usecase.ParseTurnSettings(msg.Language, msg.Difficulty, msg.Scenario, msg.TeachingIntensity)
	if err != nil {
		c.sendJSON(CreateErrorMessage(err))
		return
	}
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	c.mu.Lock()
	if c.machine != nil && c.machine.State() == listening.Processing {
		c.mu.Unlock()
		c.sendJSON(CreateErrorMessage(domain.InvalidRequest("%v", listening.ErrBusy)))
		return
	}
	c.machine = listening.New(msg.ListeningConfig(c.hub.defaults))
	c.sampleRate = msg.SampleRate
	c.recordStart = now
	c.buffer = nil
	c.request = usecase.VoiceRequest{
		AudioConfig: msg.AudioConfig(),
		Settings:    settings,
		SessionID:   sessionID,
		Synthesize:  msg.WantsSynthesis(),
		Voice:       msg.Voice,
	}
	machine := c.machine
	c.mu.Unlock()

	tr, err := machine.Start(now)
	if err != nil {
		c.sendJSON(CreateErrorMessage(domain.InvalidRequest("%v", err)))
		return
	}

	c.logger.Info("Listening started",
		zap.String("session_id", sessionID),
		zap.Int("sample_rate", msg.SampleRate),
		zap.Bool("continuous", msg.Continuous))
	c.onTransition(tr, now)
}

// handleListeningStop leaves continuous mode and processes what was heard
func (c *Client) handleListeningStop(now time.Time) {
	c.mu.Lock()
	machine, sessionID := c.machine, c.request.SessionID
	c.mu.Unlock()
	if machine == nil {
		return
	}

	if tr, ok := machine.Stop(now); ok {
		c.onTransition(tr, now)
		return
	}
	state := machine.State()
	c.sendJSON(CreateStateMessage(listening.Transition{From: state, To: state, Reason: listening.ReasonManual}, sessionID))
}

// processBinaryAudioChunk appends PCM16 audio and feeds its energy to the
// machine. Frames are timed by the audio they carry, anchored at the wall
// time recording started, so clients may send faster than real time.
func (c *Client) processBinaryAudioChunk(data []byte, now time.Time) {
	c.mu.Lock()
	machine := c.machine
	if machine == nil || machine.State() != listening.Recording {
		c.mu.Unlock()
		return
	}
	samples := audio.PCM16(data)
	c.buffer = append(c.buffer, samples...)
	at := c.recordStart.Add(audio.FrameDuration(len(c.buffer), c.sampleRate))
	c.mu.Unlock()

	if tr, ok := machine.Observe(at, audio.RMS(samples)); ok {
		c.onTransition(tr, now)
	}
}

// onTransition reports a state change and acts on it.
func (c *Client) onTransition(tr listening.Transition, now time.Time) {
	c.mu.Lock()
	sessionID := c.request.SessionID
	var clip []int16
	switch tr.To {
	case listening.Recording:
		if tr.From != listening.Recording {
			c.recordStart = now
			c.buffer = nil
		}
	case listening.Processing:
		clip, c.buffer = c.buffer, nil
		// The frame that crossed the limit is buffered whole.
		if limit := maxClipSamples(c.machine, c.sampleRate); len(clip) > limit {
			clip = clip[:limit]
		}
	case listening.Idle:
		c.buffer = nil
	}
	req := c.request
	sampleRate := c.sampleRate
	machine := c.machine
	c.mu.Unlock()

	c.logger.Debug("Listening transition",
		zap.String("from", tr.From.String()),
		zap.String("to", tr.To.String()),
		zap.String("reason", string(tr.Reason)))
	c.sendJSON(CreateStateMessage(tr, sessionID))

	if tr.To == listening.Processing {
		go c.process(machine, req, clip, sampleRate)
	}
}

func maxClipSamples(machine *listening.Machine, sampleRate int) int {
	return int(machine.MaxDuration() * time.Duration(sampleRate) / time.Second)
}

// process runs one clip through the voice pipeline, relaying every event.
func (c *Client) process(machine *listening.Machine, req usecase.VoiceRequest, samples []int16, sampleRate int) {
	clip := &audio.Clip{SampleRate: sampleRate, Channels: 1, Samples: samples}
	req.Audio = clip.Encode()
	req.AudioConfig.SampleRate = sampleRate

	c.logger.Info("Processing recording",
		zap.String("session_id", req.SessionID),
		zap.Duration("duration", clip.Duration()))

	for ev := range c.hub.voice.Stream(c.ctx, req) {
		c.sendJSON(ev)
	}
	if c.ctx.Err() != nil {
		return
	}

	now := time.Now()
	if tr, err := machine.Finish(now); err == nil {
		c.onTransition(tr, now)
	}
}

// sendJSON queues a text frame unless the connection is gone.
func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	case <-c.ctx.Done():
	}
}
