package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gamelend/internal/domain"
	"gamelend/internal/middleware"
	"gamelend/internal/modules/lifecycle"
	"gamelend/internal/modules/presentation"
	"gamelend/internal/modules/queue"
	"gamelend/internal/pkg/apperr"
	"gamelend/internal/pkg/response"
)

// Handler serves the live queue feed: one poller per connection, every tick
// pushed as a full snapshot.
type Handler struct {
	hub      *Hub
	queue    *queue.Service
	engine   *lifecycle.Engine
	interval time.Duration
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewHandler(hub *Hub, svc *queue.Service, engine *lifecycle.Engine, interval time.Duration, allowedOrigins []string, log *zap.SugaredLogger) *Handler {
	origins := middleware.NewOrigins(allowedOrigins)
	return &Handler{
		hub:      hub,
		queue:    svc,
		engine:   engine,
		interval: interval,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins.Allowed(origin) || sameHost(r, origin)
			},
		},
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/queues", h.Serve)
}

// Serve upgrades the request and streams one queue.
// GET /ws/queues?role=owner|borrower
func (h *Handler) Serve(c *gin.Context) {
	kind, ok := lifecycle.ParseQueueKind(c.Query("role"))
	if !ok {
		response.Error(c, http.StatusBadRequest, "INVALID_QUEUE", "role must be owner or borrower")
		return
	}
	sess := middleware.SessionFrom(c)
	if !sess.Authenticated() {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "viewer_id", sess.ViewerID, "error", err)
		return
	}

	h.serveConn(conn, sess, kind)
}

func (h *Handler) serveConn(conn *websocket.Conn, sess *domain.Session, kind lifecycle.QueueKind) {
	c := &connection{
		sessionID: sess.ID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
	}
	view := h.queue.View(sess)

	publish := func(snap lifecycle.Snapshot) {
		c.push(Event{
			Type:  EventSnapshot,
			Queue: kind,
			Data:  presentation.PresentQueue(snap, sess.ViewerID, view.Forms),
		})
	}
	poller := lifecycle.NewPoller(h.engine, view, kind, h.interval, publish, h.log)

	ctx, cancel := context.WithCancel(context.Background())
	h.hub.register(c)
	h.log.Debugw("live feed connected", "viewer_id", sess.ViewerID, "queue", kind)

	go poller.Run(ctx)
	go writePump(c)

	defer func() {
		poller.Stop()
		cancel()
		h.hub.unregister(c)
		_ = conn.Close()
		h.log.Debugw("live feed closed", "viewer_id", sess.ViewerID, "queue", kind)
	}()

	h.readPump(ctx, c, sess, kind, view, poller)
}

func (h *Handler) readPump(ctx context.Context, c *connection, sess *domain.Session, kind lifecycle.QueueKind, view *lifecycle.View, poller *lifecycle.Poller) {
	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugw("live feed read error", "viewer_id", sess.ViewerID, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.push(Event{Type: EventError, Code: "INVALID_JSON", Message: "Failed to parse message"})
			continue
		}

		switch msg.Type {
		case "action":
			h.handleAction(ctx, c, sess, kind, view, poller, msg.ActionRequest)
		case "refresh":
			poller.Refresh()
		case "ping":
			c.push(Event{Type: EventPong})
		default:
			c.push(Event{Type: EventError, Code: "UNKNOWN_TYPE", Message: "Unknown message type: " + msg.Type})
		}
	}
}

func (h *Handler) handleAction(ctx context.Context, c *connection, sess *domain.Session, kind lifecycle.QueueKind, view *lifecycle.View, poller *lifecycle.Poller, a queue.ActionRequest) {
	res, err := h.queue.Dispatch(ctx, sess, a)
	if err != nil {
		if n := presentation.Notify(err); n != nil {
			c.push(Event{Type: EventNotification, Queue: kind, Notification: n})
		} else {
			c.push(Event{
				Type:    EventInvalid,
				Queue:   kind,
				Fields:  apperr.FieldsOf(err),
				Message: apperr.UserMessage(err),
			})
		}
		h.republish(c, sess, kind, view)
		return
	}

	c.push(Event{Type: EventResult, Queue: kind, Data: res})

	switch a.Action {
	case presentation.ActionInitiateReturn, presentation.ActionCancelReturn:
		// form state only; show it without a fetch
		h.republish(c, sess, kind, view)
	default:
		poller.Refresh()
	}
}

func (h *Handler) republish(c *connection, sess *domain.Session, kind lifecycle.QueueKind, view *lifecycle.View) {
	if snap, ok := view.Latest(kind); ok {
		c.push(Event{
			Type:  EventSnapshot,
			Queue: kind,
			Data:  presentation.PresentQueue(snap, sess.ViewerID, view.Forms),
		})
	}
}

func sameHost(r *http.Request, origin string) bool {
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
