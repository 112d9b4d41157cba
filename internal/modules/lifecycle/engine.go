package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gamelend/internal/domain"
	"gamelend/internal/modules/rating"
	"gamelend/internal/pkg/apperr"
)

type RequestRepository interface {
	Create(ctx context.Context, sess *domain.Session, gameID int64) error
	ListOwned(ctx context.Context, sess *domain.Session) ([]domain.BorrowRequest, error)
	ListBorrowed(ctx context.Context, sess *domain.Session) ([]domain.BorrowRequest, error)
	Accept(ctx context.Context, sess *domain.Session, id int64) error
	Delete(ctx context.Context, sess *domain.Session, id int64) error
}

type ReturnSubmitter interface {
	SubmitReturn(ctx context.Context, sess *domain.Session, req domain.BorrowRequest, details domain.ReturnDetails) rating.Outcome
}

// Engine runs the borrow lifecycle transitions for a view. Preconditions are
// checked against the view's latest fetched copy; the backend stays the
// authority and any local check it contradicts is settled by the next fetch.
type Engine struct {
	requests RequestRepository
	returns  ReturnSubmitter
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewEngine(requests RequestRepository, returns ReturnSubmitter, log *zap.SugaredLogger) *Engine {
	return &Engine{requests: requests, returns: returns, log: log, now: time.Now}
}

// Fetch loads one full list for the view's session.
func (e *Engine) Fetch(ctx context.Context, v *View, kind QueueKind) ([]domain.BorrowRequest, error) {
	sess := v.Session()
	switch kind {
	case QueueOwner:
		return e.requests.ListOwned(ctx, sess)
	case QueueBorrower:
		return e.requests.ListBorrowed(ctx, sess)
	default:
		return nil, apperr.New(apperr.KindValidation, "lifecycle.fetch", "unknown queue "+string(kind))
	}
}

// Refresh fetches one list and replaces the view's snapshot with it. On error
// the view keeps what it had.
func (e *Engine) Refresh(ctx context.Context, v *View, kind QueueKind) (Snapshot, error) {
	list, err := e.Fetch(ctx, v, kind)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Kind: kind, Requests: list, FetchedAt: e.now()}
	v.Apply(snap)
	return snap, nil
}

// RefreshAll refreshes both lists, owner first.
func (e *Engine) RefreshAll(ctx context.Context, v *View) error {
	if _, err := e.Refresh(ctx, v, QueueOwner); err != nil {
		return err
	}
	_, err := e.Refresh(ctx, v, QueueBorrower)
	return err
}

// StateOf fetches fresh lists and classifies one request. A failed fetch or a
// request that cannot be matched is UNAVAILABLE.
func (e *Engine) StateOf(ctx context.Context, v *View, id int64) (domain.BorrowRequest, State) {
	if err := e.RefreshAll(ctx, v); err != nil {
		e.log.Warnw("request state unavailable", "request_id", id, "viewer_id", v.ViewerID(), "error", err)
		return domain.BorrowRequest{}, StateUnavailable
	}
	req, ok := v.Lookup(id)
	if !ok {
		return domain.BorrowRequest{}, StateUnavailable
	}
	return req, Classify(&req)
}

// RequestBorrow asks the owner of game for it.
func (e *Engine) RequestBorrow(ctx context.Context, v *View, game domain.GameRef) error {
	const op = "lifecycle.request_borrow"
	sess := v.Session()
	if !sess.Authenticated() {
		return apperr.New(apperr.KindAuthorization, op, "login required")
	}
	if game.ID <= 0 {
		return apperr.Validation(op, map[string]string{"gameId": "required"})
	}
	if game.Owner.ID != 0 && game.Owner.ID == sess.ViewerID {
		return apperr.New(apperr.KindValidation, op, "cannot borrow your own game")
	}

	if err := e.requests.Create(ctx, sess, game.ID); err != nil {
		return err
	}
	e.log.Infow("borrow requested", "game_id", game.ID, "viewer_id", sess.ViewerID)
	v.changed()
	return nil
}

func (e *Engine) Accept(ctx context.Context, v *View, id int64) error {
	const op = "lifecycle.accept"
	if _, err := e.requireOwnerPending(ctx, v, id, op); err != nil {
		return err
	}
	if err := e.requests.Accept(ctx, v.Session(), id); err != nil {
		return err
	}
	e.log.Infow("borrow request accepted", "request_id", id, "viewer_id", v.ViewerID())
	v.changed()
	return nil
}

// Reject deletes the request. There is no rejected state to show afterwards.
func (e *Engine) Reject(ctx context.Context, v *View, id int64) error {
	const op = "lifecycle.reject"
	if _, err := e.requireOwnerPending(ctx, v, id, op); err != nil {
		return err
	}
	if err := e.requests.Delete(ctx, v.Session(), id); err != nil {
		return err
	}
	v.Forms.Close(id)
	e.log.Infow("borrow request rejected", "request_id", id, "viewer_id", v.ViewerID())
	v.changed()
	return nil
}

// InitiateReturn only reveals the rating form. No backend call is made.
func (e *Engine) InitiateReturn(v *View, id int64) error {
	const op = "lifecycle.initiate_return"
	if _, err := e.requireParty(v, id, op, StateActive); err != nil {
		return err
	}
	v.Forms.Open(id)
	return nil
}

func (e *Engine) CancelReturn(v *View, id int64) {
	v.Forms.Close(id)
}

// ConfirmReturn submits the return and the counterpart rating. On any
// failure the form stays open so the user can retry. A retry may find the
// request already RETURNED when only the rating failed last time; both calls
// are sent again under the same idempotency key.
func (e *Engine) ConfirmReturn(ctx context.Context, v *View, id int64, details domain.ReturnDetails) (rating.Outcome, error) {
	const op = "lifecycle.confirm_return"
	if err := rating.ValidateDetails(details); err != nil {
		return rating.Outcome{Status: rating.StatusFailure, Err: err}, err
	}
	if !v.Forms.IsOpen(id) {
		err := apperr.New(apperr.KindValidation, op, "return was not initiated")
		return rating.Outcome{Status: rating.StatusFailure, Err: err}, err
	}
	req, err := e.requireParty(v, id, op, StateActive, StateReturned)
	if err != nil {
		return rating.Outcome{Status: rating.StatusFailure, Err: err}, err
	}

	out := e.returns.SubmitReturn(ctx, v.Session(), req, details)
	if !out.Succeeded() {
		return out, out.Err
	}

	v.Forms.Close(id)
	e.log.Infow("return confirmed", "request_id", id, "viewer_id", v.ViewerID(), "rating", details.Rating)
	v.changed()
	return out, nil
}

// lookup finds id in the view, fetching once when the view has not seen it.
func (e *Engine) lookup(ctx context.Context, v *View, id int64, op string) (domain.BorrowRequest, error) {
	if req, ok := v.Lookup(id); ok {
		return req, nil
	}
	if err := e.RefreshAll(ctx, v); err != nil {
		return domain.BorrowRequest{}, err
	}
	if req, ok := v.Lookup(id); ok {
		return req, nil
	}
	return domain.BorrowRequest{}, apperr.New(apperr.KindNotFound, op, "request not found")
}

func (e *Engine) requireOwnerPending(ctx context.Context, v *View, id int64, op string) (domain.BorrowRequest, error) {
	if !v.Session().Authenticated() {
		return domain.BorrowRequest{}, apperr.New(apperr.KindAuthorization, op, "login required")
	}
	req, err := e.lookup(ctx, v, id, op)
	if err != nil {
		return req, err
	}
	if domain.DeriveRole(&req, v.ViewerID()) != domain.RoleOwner {
		return req, apperr.New(apperr.KindValidation, op, "only the owner can decide on a request")
	}
	if Classify(&req) != StatePending {
		return req, apperr.New(apperr.KindValidation, op, "request is not pending")
	}
	return req, nil
}

// requireParty uses only what the view already holds.
func (e *Engine) requireParty(v *View, id int64, op string, allowed ...State) (domain.BorrowRequest, error) {
	if !v.Session().Authenticated() {
		return domain.BorrowRequest{}, apperr.New(apperr.KindAuthorization, op, "login required")
	}
	req, ok := v.Lookup(id)
	if !ok {
		return req, apperr.New(apperr.KindNotFound, op, "request not loaded")
	}
	if domain.DeriveRole(&req, v.ViewerID()) == domain.RoleNeither {
		return req, apperr.New(apperr.KindValidation, op, "viewer is not a party to this request")
	}
	state := Classify(&req)
	for _, a := range allowed {
		if state == a {
			return req, nil
		}
	}
	return req, apperr.New(apperr.KindValidation, op, "request is not active")
}
