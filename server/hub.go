package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pithecene-io/vantage/canvas"
	"github.com/pithecene-io/vantage/log"
	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/runtime"
	"github.com/pithecene-io/vantage/session"
	"github.com/pithecene-io/vantage/stream"
	"github.com/pithecene-io/vantage/types"
)

// Websocket limits.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Sessions are unauthenticated; any origin may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// hub binds one session to its engine, its canvas panel and its websocket
// clients.
type hub struct {
	sess      *session.Session
	engine    *runtime.IngestionEngine
	panel     *canvas.Panel
	selector  *canvas.Selector
	logger    *log.Logger
	collector *metrics.Collector
	exporter  *metrics.Exporter

	mu          sync.Mutex
	clients     map[*client]struct{}
	closed      bool
	unsubscribe func()
}

func newHub(sess *session.Session, cfg Config) *hub {
	logger := cfg.Logger.WithSession(types.SessionMeta{SessionID: sess.ID})
	h := &hub{
		sess:      sess,
		panel:     canvas.NewPanel(),
		selector:  cfg.Selector,
		logger:    logger,
		collector: cfg.Collector,
		exporter:  cfg.Exporter,
		clients:   make(map[*client]struct{}),
		engine: runtime.NewIngestionEngine(nil, runtime.EngineConfig{
			SessionID: sess.ID,
			Page:      sess.Page,
			Policy:    cfg.Policy,
			Notifier:  cfg.Notifier,
			Logger:    logger,
			Collector: cfg.Collector,
		}),
	}
	h.unsubscribe = sess.Provider.Subscribe(h.onChange)
	return h
}

// onChange runs for every provider change, outside the provider lock.
func (h *hub) onChange(ch session.Change) {
	h.panel.Observe(ch)
	h.broadcast(ServerMessage{Type: MessageState, State: h.viewOf(ch.Next)})
}

// view returns the session view for the current state.
func (h *hub) view() *SessionView {
	return h.viewOf(h.sess.Provider.State())
}

func (h *hub) viewOf(state stream.State) *SessionView {
	v := h.selector.Select(state)
	view := &SessionView{
		SessionID: h.sess.ID,
		ChatID:    h.sess.Page.ChatID(),
		Panel:     h.panel.State(state),
		Current:   state.Current,
		Fallback:  v.Fallback,
		Types:     state.Types,
		Tabs:      canvas.Tabs(state),
		Cards:     canvas.Cards(state),
	}
	if v.Renderer != nil {
		view.Renderer = v.Renderer.Name()
	}
	return view
}

// broadcastView pushes the current view, for changes that bypass the
// provider (panel dismissal).
func (h *hub) broadcastView() {
	h.broadcast(ServerMessage{Type: MessageState, State: h.view()})
}

func (h *hub) broadcast(msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.sendLocked(c, msg)
	}
}

func (h *hub) send(c *client, msg ServerMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendLocked(c, msg)
}

func (h *hub) sendLocked(c *client, msg ServerMessage) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("websocket client too slow, message dropped", map[string]any{
			"type": msg.Type,
		})
	}
}

func (h *hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.exporter != nil {
		h.exporter.WSConnectionsActive.Inc()
	}
	return true
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *hub) unregisterLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if h.exporter != nil {
		h.exporter.WSConnectionsActive.Dec()
	}
}

// close disconnects every client and stops observing the provider.
func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		h.unregisterLocked(c)
	}
	h.mu.Unlock()
	h.unsubscribe()
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// client is one websocket connection.
type client struct {
	conn *websocket.Conn
	send chan ServerMessage
}

// serveWS handles GET /ws/sessions/:id.
func (s *Server) serveWS(c *gin.Context) {
	h, _ := s.hubFor(c.Param("id"), true)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	cl := &client{conn: conn, send: make(chan ServerMessage, sendBuffer)}
	if !h.register(cl) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	h.logger.Debug("websocket client connected", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(cl)
	}()

	h.send(cl, ServerMessage{Type: MessageState, State: h.view()})
	h.readPump(c.Request.Context(), cl)

	h.unregister(cl)
	<-done
	h.logger.Debug("websocket client disconnected", nil)
}

// readPump handles client messages until the connection fails.
func (h *hub) readPump(ctx context.Context, c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", map[string]any{"error": err.Error()})
			}
			return
		}
		if h.exporter != nil {
			h.exporter.WSMessagesTotal.WithLabelValues("in").Inc()
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.send(c, ServerMessage{Type: MessageError, Error: "invalid message: " + err.Error()})
			continue
		}
		if reply, ok := h.handle(ctx, msg); ok {
			h.send(c, reply)
		}
	}
}

// handle applies one client message. The state broadcast that follows a
// change is sent by onChange; the returned message is a direct reply.
func (h *hub) handle(ctx context.Context, msg ClientMessage) (ServerMessage, bool) {
	switch msg.Type {
	case ClientPing:
		return ServerMessage{Type: MessagePong}, true
	case ClientPart:
		if msg.Part == nil || msg.Part.Type == "" {
			return ServerMessage{Type: MessageError, Error: "part message without part type"}, true
		}
		if err := h.engine.Ingest(ctx, *msg.Part); err != nil {
			return ServerMessage{Type: MessageError, Error: err.Error()}, true
		}
		return ServerMessage{Type: MessageAck, Seq: h.engine.CurrentSeq()}, true
	case ClientNavigate:
		if err := h.navigate(ctx, msg.ChatID); err != nil {
			return ServerMessage{Type: MessageError, Error: err.Error()}, true
		}
		return ServerMessage{}, false
	case ClientSelect:
		if !h.selectArtifact(msg.ID) {
			return ServerMessage{Type: MessageError, Error: "unknown artifact " + msg.ID}, true
		}
		return ServerMessage{}, false
	case ClientReset:
		h.reset()
		return ServerMessage{}, false
	case ClientDismiss:
		h.panel.Dismiss()
		h.broadcastView()
		return ServerMessage{}, false
	case ClientOpen:
		h.panel.Open()
		h.broadcastView()
		return ServerMessage{}, false
	default:
		return ServerMessage{Type: MessageError, Error: "unknown message type " + msg.Type}, true
	}
}

// navigate routes a navigation through the engine so buffered parts are
// flushed under the previous chat.
func (h *hub) navigate(ctx context.Context, chatID string) error {
	if chatID == "" {
		return errChatIDRequired
	}
	return h.engine.Ingest(ctx, types.DataPart{
		Type: types.PartSessionNavigate,
		Data: map[string]any{"chatId": chatID},
	})
}

func (h *hub) selectArtifact(id string) bool {
	if !canvas.SelectCard(h.sess.Provider, h.panel, id) {
		return false
	}
	h.collector.IncSelection()
	return true
}

func (h *hub) reset() {
	h.sess.Provider.Reset()
	h.collector.IncReset()
}

// writePump writes queued messages and keepalive pings. It returns when
// the send channel is closed or a write fails, closing the connection.
func (h *hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
			if h.exporter != nil {
				h.exporter.WSMessagesTotal.WithLabelValues("out").Inc()
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
