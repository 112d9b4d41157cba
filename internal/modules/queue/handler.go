package queue

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gamelend/internal/middleware"
	"gamelend/internal/modules/lifecycle"
	"gamelend/internal/modules/presentation"
	"gamelend/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts reads on protected and state-changing calls on
// actions, which is expected to carry the rate limiter as well.
func (h *Handler) RegisterRoutes(protected, actions *gin.RouterGroup) {
	protected.GET("/queues/:kind", h.GetQueue)
	protected.GET("/requests/:id", h.GetRequest)
	protected.POST("/games/borrowable", h.Borrowable)

	actions.POST("/games/:id/borrow", h.Borrow)
	actions.POST("/requests/:id/accept", h.Accept)
	actions.POST("/requests/:id/reject", h.Reject)
	actions.POST("/requests/:id/return/initiate", h.InitiateReturn)
	actions.POST("/requests/:id/return/cancel", h.CancelReturn)
	actions.POST("/requests/:id/return/confirm", h.ConfirmReturn)
}

// GetQueue returns the presented owner or borrower queue.
// GET /queues/:kind
func (h *Handler) GetQueue(c *gin.Context) {
	kind, ok := lifecycle.ParseQueueKind(c.Param("kind"))
	if !ok {
		response.Error(c, http.StatusBadRequest, "INVALID_QUEUE", "Queue must be owner or borrower")
		return
	}
	sess := middleware.SessionFrom(c)
	response.Success(c, http.StatusOK, h.svc.Queue(c.Request.Context(), sess, kind))
}

// GetRequest returns the freshly fetched state of one request.
// GET /requests/:id
func (h *Handler) GetRequest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sess := middleware.SessionFrom(c)
	response.Success(c, http.StatusOK, h.svc.RequestState(c.Request.Context(), sess, id))
}

// POST /games/borrowable
func (h *Handler) Borrowable(c *gin.Context) {
	var req BorrowableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	sess := middleware.SessionFrom(c)
	response.Success(c, http.StatusOK, gin.H{"games": h.svc.Borrowable(c.Request.Context(), sess, req.Games)})
}

// Borrow asks the owner of a game to lend it. The body is optional and only
// carries the owner so a self-borrow is refused without a backend call.
// POST /games/:id/borrow
func (h *Handler) Borrow(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body BorrowGameRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
			return
		}
	}
	h.run(c, http.StatusCreated, ActionRequest{Action: ActionBorrow, GameID: id, OwnerID: body.OwnerID})
}

// POST /requests/:id/accept
func (h *Handler) Accept(c *gin.Context) {
	h.runOnRequest(c, presentation.ActionAccept)
}

// POST /requests/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	h.runOnRequest(c, presentation.ActionReject)
}

// InitiateReturn reveals the rating form. No backend call.
// POST /requests/:id/return/initiate
func (h *Handler) InitiateReturn(c *gin.Context) {
	h.runOnRequest(c, presentation.ActionInitiateReturn)
}

// POST /requests/:id/return/cancel
func (h *Handler) CancelReturn(c *gin.Context) {
	h.runOnRequest(c, presentation.ActionCancelReturn)
}

// ConfirmReturn confirms the return and rates the counterpart.
// POST /requests/:id/return/confirm
func (h *Handler) ConfirmReturn(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body ConfirmReturnRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	h.run(c, http.StatusOK, ActionRequest{
		Action:    presentation.ActionConfirmReturn,
		RequestID: id,
		Rating:    body.Rating,
		Comment:   body.Comment,
	})
}

func (h *Handler) runOnRequest(c *gin.Context, action presentation.Action) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	h.run(c, http.StatusOK, ActionRequest{Action: action, RequestID: id})
}

func (h *Handler) run(c *gin.Context, status int, a ActionRequest) {
	sess := middleware.SessionFrom(c)
	res, err := h.svc.Dispatch(c.Request.Context(), sess, a)
	if err != nil {
		if n := presentation.Notify(err); n != nil {
			response.Failure(c, err, n)
		} else {
			response.Failure(c, err, nil)
		}
		return
	}
	response.Success(c, status, res)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid ID")
		return 0, false
	}
	return id, true
}
