package queue

import (
	"gamelend/internal/domain"
	"gamelend/internal/modules/lifecycle"
	"gamelend/internal/modules/presentation"
)

type BorrowGameRequest struct {
	OwnerID int64 `json:"ownerId"`
}

type ConfirmReturnRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type BorrowableRequest struct {
	Games []domain.GameRef `json:"games" binding:"required"`
}

type BorrowableGame struct {
	GameID     int64 `json:"gameId"`
	Borrowable bool  `json:"borrowable"`
}

type RequestStateResponse struct {
	Request *domain.BorrowRequest `json:"request,omitempty"`
	Role    domain.Role           `json:"role"`
	Display presentation.Display  `json:"display"`
}

// ActionResult is what the browser gets back after a successful action.
// Display is nil when the request no longer exists (rejected).
type ActionResult struct {
	RequestID int64                 `json:"requestId,omitempty"`
	GameID    int64                 `json:"gameId,omitempty"`
	State     lifecycle.State       `json:"state,omitempty"`
	Display   *presentation.Display `json:"display,omitempty"`
	Outcome   string                `json:"outcome,omitempty"`
}

// ActionRequest is one user action, as sent over the live feed.
type ActionRequest struct {
	Action    presentation.Action `json:"action"`
	RequestID int64               `json:"requestId"`
	GameID    int64               `json:"gameId"`
	OwnerID   int64               `json:"ownerId"`
	Rating    int                 `json:"rating"`
	Comment   string              `json:"comment"`
}

func (a ActionRequest) Details() domain.ReturnDetails {
	return domain.ReturnDetails{Rating: a.Rating, Comment: a.Comment}
}

// ActionBorrow is only offered on game listings, never on a request.
const ActionBorrow presentation.Action = "borrow"
