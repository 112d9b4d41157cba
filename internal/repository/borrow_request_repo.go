package repository

import (
	"context"
	"fmt"
	"net/http"

	"gamelend/internal/domain"
)

// BorrowRequestRepository wraps the backend's borrow-request endpoints.
type BorrowRequestRepository struct {
	backend *BackendClient
}

func NewBorrowRequestRepository(backend *BackendClient) *BorrowRequestRepository {
	return &BorrowRequestRepository{backend: backend}
}

// Create asks to borrow a game. A game already under an open request comes
// back as a Conflict.
func (r *BorrowRequestRepository) Create(ctx context.Context, sess *domain.Session, gameID int64) error {
	return r.backend.do(ctx, sess, call{
		op:     "borrow_request.create",
		method: http.MethodPut,
		path:   fmt.Sprintf("/board-game/borrow-request/%d/request", gameID),
	})
}

// ListOwned returns requests for games the viewer owns.
func (r *BorrowRequestRepository) ListOwned(ctx context.Context, sess *domain.Session) ([]domain.BorrowRequest, error) {
	var out []domain.BorrowRequest
	err := r.backend.do(ctx, sess, call{
		op:     "borrow_request.list_owned",
		method: http.MethodGet,
		path:   "/board-game/borrow-request/games",
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return r.checked("borrow_request.list_owned", out), nil
}

// ListBorrowed returns requests the viewer made as a borrower.
func (r *BorrowRequestRepository) ListBorrowed(ctx context.Context, sess *domain.Session) ([]domain.BorrowRequest, error) {
	var out []domain.BorrowRequest
	err := r.backend.do(ctx, sess, call{
		op:     "borrow_request.list_borrowed",
		method: http.MethodGet,
		path:   "/board-game/borrow-request/my",
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return r.checked("borrow_request.list_borrowed", out), nil
}

func (r *BorrowRequestRepository) Accept(ctx context.Context, sess *domain.Session, id int64) error {
	return r.backend.do(ctx, sess, call{
		op:     "borrow_request.accept",
		method: http.MethodPut,
		path:   fmt.Sprintf("/board-game/borrow-request/%d/agree", id),
	})
}

// Delete rejects a request. The backend removes it; there is no rejected state.
func (r *BorrowRequestRepository) Delete(ctx context.Context, sess *domain.Session, id int64) error {
	return r.backend.do(ctx, sess, call{
		op:     "borrow_request.delete",
		method: http.MethodDelete,
		path:   fmt.Sprintf("/board-game/borrow-request/%d/delete", id),
	})
}

func (r *BorrowRequestRepository) ConfirmReturn(ctx context.Context, sess *domain.Session, id int64, details domain.ReturnDetails, idempotencyKey string) error {
	return r.backend.do(ctx, sess, call{
		op:             "borrow_request.confirm_return",
		method:         http.MethodPut,
		path:           fmt.Sprintf("/board-game/borrow-request/%d/confirm-return", id),
		body:           details,
		idempotencyKey: idempotencyKey,
	})
}

// checked logs records whose timestamps are out of order. They are still
// returned: state is derived from which timestamps are set, not their order.
func (r *BorrowRequestRepository) checked(op string, in []domain.BorrowRequest) []domain.BorrowRequest {
	if in == nil {
		return []domain.BorrowRequest{}
	}
	for i := range in {
		if err := in[i].CheckTimeline(); err != nil {
			r.backend.log.Warnw("backend returned inconsistent request", "op", op, "request_id", in[i].ID, "error", err)
		}
	}
	return in
}
