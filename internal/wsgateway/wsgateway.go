// Package wsgateway is the WebSocket half of the external collaborator
// binding of spec §6: it turns a long-lived upgrade connection into an
// eventbus.Subscriber, translating inbound control frames (`ping`,
// `subscribe`, `unsubscribe`, `get_subscriptions`, `get_stats`) into Bus
// calls and batched/immediate deliveries into outbound frames. The
// `subscribe(conn, filter)` function contract of spec §6 lives here rather
// than in internal/httpapi because a subscription is the connection, not a
// single request/response. Grounded on the teacher's internal/httpserver
// request-id/logging middleware idiom for the connection lifecycle log
// lines, using gorilla/websocket for the framing the pack's other
// WS-capable services don't otherwise need.
package wsgateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dnscp/dnscp/internal/eventbus"
	"github.com/dnscp/dnscp/internal/model"
)

// Gateway upgrades HTTP connections into event-bus subscribers.
type Gateway struct {
	bus      *eventbus.Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a Gateway. allowedOrigins empty means same-origin only is
// not enforced (CheckOrigin always true) — the CORS surface here is a
// long-lived bidirectional connection, not a browser form post, so the
// usual CSRF-style concerns don't apply the same way; origins are still
// checked when provided.
func New(bus *eventbus.Bus, logger *slog.Logger, allowedOrigins []string) *Gateway {
	g := &Gateway{bus: bus, logger: logger}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
	return g
}

// sessionFromRequest builds a model.Session from the trusted upstream
// headers set on the upgrade request (spec §1: auth primitives out of
// scope, only the session/permission contract is consumed here).
func sessionFromRequest(r *http.Request) model.Session {
	userID := r.Header.Get("X-User-ID")
	var perms []model.Permission
	if raw := r.Header.Get("X-Permissions"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				perms = append(perms, model.Permission(p))
			}
		}
	}
	return model.Session{UserID: userID, Permissions: perms}
}

// connSender adapts a gorilla websocket connection to eventbus.Sender. A
// mutex guards writes since the bus's batch flush and the read loop's
// control-message replies can both write concurrently, and gorilla
// connections permit only one writer at a time.
type connSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *connSender) Send(ctx context.Context, payload []byte, compressed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgType := websocket.TextMessage
	if compressed {
		msgType = websocket.BinaryMessage
	}
	return c.conn.WriteMessage(msgType, payload)
}

func (c *connSender) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// inboundMessage is the control envelope accepted over the connection
// (spec §6 "Inbound messages ... ping, subscribe {...}, unsubscribe {...},
// get_subscriptions, get_stats").
type inboundMessage struct {
	Type       string   `json:"type"`
	EventTypes []string `json:"event_types,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Severities []string `json:"severities,omitempty"`
	SubID      string   `json:"subscription_id,omitempty"`
}

// outboundFrame is the framed JSON wire shape produced to the connection
// (spec §6 "Event wire format").
type outboundFrame struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ServeHTTP upgrades the request into a WebSocket connection and registers
// it as an event-bus subscriber for the lifetime of the connection.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.New().String()
	session := sessionFromRequest(r)
	sender := &connSender{conn: conn}
	g.bus.Register(connID, session, sender)

	g.logger.Info("websocket connection opened", "connection_id", connID, "user_id", session.UserID)

	defer func() {
		g.bus.Unregister(connID)
		conn.Close()
		g.logger.Info("websocket connection closed", "connection_id", connID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		g.handleInbound(connID, sender, raw)
	}
}

func (g *Gateway) handleInbound(connID string, sender *connSender, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.writeError(sender, "invalid control message: "+err.Error())
		return
	}

	switch msg.Type {
	case "ping":
		g.writeFrame(sender, "pong", nil)

	case "subscribe":
		filter := toEventFilter(msg)
		sub, err := g.bus.Subscribe(connID, filter)
		if err != nil {
			g.writeError(sender, err.Error())
			return
		}
		g.writeFrame(sender, "response", sub)

	case "unsubscribe":
		if err := g.bus.Unsubscribe(connID, msg.SubID); err != nil {
			g.writeError(sender, err.Error())
			return
		}
		g.writeFrame(sender, "response", map[string]string{"status": "unsubscribed"})

	case "get_subscriptions":
		g.writeFrame(sender, "response", g.bus.GetSubscriptions(connID))

	case "get_stats":
		g.writeFrame(sender, "response", map[string]int{"subscriptions": len(g.bus.GetSubscriptions(connID))})

	default:
		g.writeError(sender, "unknown message type "+msg.Type)
	}
}

func toEventFilter(msg inboundMessage) model.EventFilter {
	filter := model.EventFilter{}
	for _, t := range msg.EventTypes {
		filter.EventTypes = append(filter.EventTypes, model.EventType(t))
	}
	for _, c := range msg.Categories {
		filter.Categories = append(filter.Categories, model.Category(c))
	}
	found := false
	for _, s := range msg.Severities {
		if sev, ok := model.ParseSeverity(s); ok && (!found || sev < filter.MinSeverity) {
			filter.MinSeverity = sev
			found = true
		}
	}
	return filter
}

func (g *Gateway) writeFrame(sender *connSender, frameType string, data any) {
	if err := sender.writeJSON(outboundFrame{Type: frameType, Data: data, Timestamp: time.Now().UTC().Format(time.RFC3339)}); err != nil {
		g.logger.Error("writing websocket frame", "type", frameType, "error", err)
	}
}

func (g *Gateway) writeError(sender *connSender, message string) {
	g.writeFrame(sender, "error", map[string]string{"message": message})
}
