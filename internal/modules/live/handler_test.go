package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamelend/internal/domain"
	"gamelend/internal/middleware"
	"gamelend/internal/modules/lifecycle"
	"gamelend/internal/modules/presentation"
	"gamelend/internal/modules/queue"
	"gamelend/internal/modules/rating"
	"gamelend/internal/pkg/logger"
	"gamelend/internal/repository"
)

// backendStub serves a single pending request for game 1, owned by 10 and
// requested by 20, and counts list calls.
type backendStub struct {
	mu       sync.Mutex
	accepted *time.Time
	lists    int
	down     bool
}

func (b *backendStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.down {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	switch {
	case r.Method == http.MethodGet:
		b.lists++
		req := domain.BorrowRequest{
			ID:         7,
			Game:       domain.GameRef{ID: 1, Title: "Catan", Owner: domain.UserRef{ID: 10}},
			Borrower:   domain.UserRef{ID: 20},
			CreatedAt:  time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
			AcceptedAt: b.accepted,
		}
		list := []domain.BorrowRequest{}
		if strings.HasSuffix(r.URL.Path, "/games") {
			list = append(list, req)
		}
		_ = json.NewEncoder(w).Encode(list)
	case strings.HasSuffix(r.URL.Path, "/agree"):
		now := time.Now().UTC()
		b.accepted = &now
	}
}

func (b *backendStub) listCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lists
}

func setupLive(t *testing.T, backend http.Handler) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()

	bsrv := httptest.NewServer(backend)
	t.Cleanup(bsrv.Close)

	client := repository.NewBackendClient(bsrv.URL, 2*time.Second, log)
	requests := repository.NewBorrowRequestRepository(client)
	reviews := repository.NewReviewRepository(client)
	engine := lifecycle.NewEngine(requests, rating.NewService(requests, reviews, log), log)
	svc := queue.NewService(engine, lifecycle.NewViews(), log)
	hub := NewHub()
	h := NewHandler(hub, svc, engine, 20*time.Millisecond, nil, log)

	router := gin.New()
	ws := router.Group("/ws")
	ws.Use(func(c *gin.Context) {
		c.Set(middleware.ContextSession, &domain.Session{ID: "sess-10", Token: "tok", ViewerID: 10})
		c.Next()
	})
	h.RegisterRoutes(ws)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/queues"
}

type received struct {
	Type         string                     `json:"type"`
	Queue        string                     `json:"queue"`
	Data         json.RawMessage            `json:"data"`
	Notification *presentation.Notification `json:"notification"`
}

func readEvent(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev received
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// readUntil skips events until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(received) bool) received {
	t.Helper()
	for i := 0; i < 50; i++ {
		ev := readEvent(t, conn)
		if ev.Type == typ && (match == nil || match(ev)) {
			return ev
		}
	}
	t.Fatalf("no %s event", typ)
	return received{}
}

func TestLive_PushesSnapshots(t *testing.T) {
	_, url := setupLive(t, &backendStub{})

	conn, _, err := websocket.DefaultDialer.Dial(url+"?role=owner", nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := readUntil(t, conn, EventSnapshot, nil)
	assert.Equal(t, "owner", ev.Queue)

	var qv presentation.QueueView
	require.NoError(t, json.Unmarshal(ev.Data, &qv))
	require.Len(t, qv.Items, 1)
	assert.Equal(t, lifecycle.StatePending, qv.Items[0].Display.Status)
}

func TestLive_ActionThenRefresh(t *testing.T) {
	_, url := setupLive(t, &backendStub{})

	conn, _, err := websocket.DefaultDialer.Dial(url+"?role=owner", nil)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, EventSnapshot, nil)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "action", "action": "accept", "requestId": 7}))

	readUntil(t, conn, EventResult, nil)
	ev := readUntil(t, conn, EventSnapshot, func(ev received) bool {
		var qv presentation.QueueView
		_ = json.Unmarshal(ev.Data, &qv)
		return len(qv.Items) == 1 && qv.Items[0].Display.Status == lifecycle.StateActive
	})
	assert.Equal(t, "owner", ev.Queue)
}

func TestLive_ActionFailureNotifies(t *testing.T) {
	_, url := setupLive(t, &backendStub{})

	conn, _, err := websocket.DefaultDialer.Dial(url+"?role=owner", nil)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, EventSnapshot, nil)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "action", "action": "accept", "requestId": 999}))

	ev := readUntil(t, conn, EventNotification, nil)
	require.NotNil(t, ev.Notification)
	assert.Equal(t, "not_found", ev.Notification.Code)
}

func TestLive_PollFailureIsSilent(t *testing.T) {
	stub := &backendStub{}
	_, url := setupLive(t, stub)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?role=owner", nil)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, EventSnapshot, nil)

	stub.mu.Lock()
	stub.down = true
	stub.mu.Unlock()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	// only pongs and no notifications while polls fail
	for i := 0; i < 3; i++ {
		ev := readEvent(t, conn)
		assert.NotEqual(t, EventNotification, ev.Type)
		if ev.Type == EventPong {
			break
		}
	}
}

func TestLive_TeardownStopsPolling(t *testing.T) {
	stub := &backendStub{}
	hub, url := setupLive(t, stub)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?role=owner", nil)
	require.NoError(t, err)
	readUntil(t, conn, EventSnapshot, nil)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)

	after := stub.listCount()
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, stub.listCount(), after+1)
}

func TestLive_CloseSession(t *testing.T) {
	hub, url := setupLive(t, &backendStub{})

	conn, _, err := websocket.DefaultDialer.Dial(url+"?role=borrower", nil)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, EventSnapshot, nil)

	assert.Equal(t, 1, hub.CloseSession("sess-10"))
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestLive_InvalidRole(t *testing.T) {
	_, url := setupLive(t, &backendStub{})

	_, resp, err := websocket.DefaultDialer.Dial(url+"?role=admin", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConnection_PushAfterCloseIsDropped(t *testing.T) {
	c := &connection{send: make(chan []byte, 1)}
	c.close()
	assert.False(t, c.push(Event{Type: EventPong}))
}
