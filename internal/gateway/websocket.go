package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"chatapp-gateway/internal/auth"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Verifier turns a bearer token into a user id.
type Verifier interface {
	Verify(token string) (int64, error)
}

// wsConn queues frames for a gorilla connection. Close stops the writer after
// it has flushed what is already queued.
type wsConn struct {
	ws    *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
	sugar *zap.SugaredLogger
}

func newWsConn(ws *websocket.Conn, sugar *zap.SugaredLogger) *wsConn {
	return &wsConn{
		ws:    ws,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
		sugar: sugar,
	}
}

func (c *wsConn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *wsConn) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsConn) write(messageType int, data []byte) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.sugar.Debug(err)
		return false
	}
	if err := c.ws.WriteMessage(messageType, data); err != nil {
		if !isExpectedCloseError(err) {
			c.sugar.Debug(err)
		}
		return false
	}
	return true
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

// flush writes whatever is still queued, then a close frame.
func (c *wsConn) flush() {
	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				return
			}
		default:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *wsConn) setupRead() {
	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.sugar.Debug(err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func isExpectedCloseError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

// Handler upgrades authenticated HTTP requests into gateway sessions.
type Handler struct {
	gw       *Gateway
	auth     Verifier
	upgrader websocket.Upgrader
	sugar    *zap.SugaredLogger
}

// NewHandler accepts browser origins listed in allowedOrigins; an empty list
// or "*" accepts any origin.
func NewHandler(gw *Gateway, verifier Verifier, allowedOrigins []string, sugar *zap.SugaredLogger) *Handler {
	origins, allowAll := normalizeOrigins(allowedOrigins, sugar)

	return &Handler{
		gw:   gw,
		auth: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				normalized, ok := normalizeOrigin(origin)
				if !ok {
					return false
				}
				_, allowed := origins[normalized]
				if !allowed {
					sugar.Debugf("Blocked websocket connection from origin %q", origin)
				}
				return allowed
			},
		},
		sugar: sugar,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.Verify(auth.TokenFromRequest(r, true))
	if err != nil {
		h.sugar.Debug(err)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		h.sugar.Debug(err)
		return
	}

	conn := newWsConn(ws, h.sugar)
	go conn.writePump()

	ctx := context.WithoutCancel(r.Context())
	session, err := h.gw.Open(ctx, userID, conn)
	if err != nil {
		h.sugar.Debugf("Couldn't open session for user ID %d: %v", userID, err)
		return
	}
	defer session.Close()

	conn.setupRead()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !isExpectedCloseError(err) {
				h.sugar.Debugf("Session %s read error: %v", session.ID, err)
			}
			return
		}
		session.Dispatch(ctx, data)
	}
}

func normalizeOrigins(origins []string, sugar *zap.SugaredLogger) (map[string]struct{}, bool) {
	normalized := make(map[string]struct{}, len(origins))
	configured := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			return nil, true
		}
		configured = true

		n, ok := normalizeOrigin(trimmed)
		if !ok {
			sugar.Warnf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}
		normalized[n] = struct{}{}
	}

	return normalized, !configured
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
