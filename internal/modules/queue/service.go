package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gamelend/internal/domain"
	"gamelend/internal/modules/lifecycle"
	"gamelend/internal/modules/presentation"
	"gamelend/internal/pkg/apperr"
)

type Service struct {
	engine *lifecycle.Engine
	views  *lifecycle.Views
	log    *zap.SugaredLogger
}

func NewService(engine *lifecycle.Engine, views *lifecycle.Views, log *zap.SugaredLogger) *Service {
	return &Service{engine: engine, views: views, log: log}
}

func (s *Service) View(sess *domain.Session) *lifecycle.View {
	return s.views.For(sess)
}

// Queue fetches and presents one queue. A failed fetch falls back to the last
// good snapshot, or to the unavailable display when there is none.
func (s *Service) Queue(ctx context.Context, sess *domain.Session, kind lifecycle.QueueKind) presentation.QueueView {
	v := s.views.For(sess)
	snap, err := s.engine.Refresh(ctx, v, kind)
	if err != nil {
		s.log.Warnw("queue fetch failed", "queue", kind, "viewer_id", sess.ViewerID, "error", err)
		prev, ok := v.Latest(kind)
		if !ok {
			prev = lifecycle.Snapshot{Kind: kind, FetchedAt: time.Now(), Unavailable: true}
			v.Apply(prev)
		}
		snap = prev
	}
	return presentation.PresentQueue(snap, sess.ViewerID, v.Forms)
}

func (s *Service) RequestState(ctx context.Context, sess *domain.Session, id int64) RequestStateResponse {
	v := s.views.For(sess)
	req, state := s.engine.StateOf(ctx, v, id)
	if state == lifecycle.StateUnavailable {
		return RequestStateResponse{Role: domain.RoleNeither, Display: presentation.PresentError(nil)}
	}
	role := domain.DeriveRole(&req, sess.ViewerID)
	return RequestStateResponse{
		Request: &req,
		Role:    role,
		Display: presentation.Present(state, role, v.Forms.IsOpen(id)),
	}
}

// Borrowable decides the borrow affordance for each listed game from the
// requests this viewer can currently observe.
func (s *Service) Borrowable(ctx context.Context, sess *domain.Session, games []domain.GameRef) []BorrowableGame {
	v := s.views.For(sess)
	if err := s.engine.RefreshAll(ctx, v); err != nil {
		s.log.Warnw("borrowable check on stale data", "viewer_id", sess.ViewerID, "error", err)
	}
	open := v.OpenGames()

	out := make([]BorrowableGame, 0, len(games))
	for _, g := range games {
		out = append(out, BorrowableGame{
			GameID:     g.ID,
			Borrowable: lifecycle.Borrowable(g, sess.ViewerID, open),
		})
	}
	return out
}

// Dispatch runs one action for the session's view. Failures are logged once
// here; callers only render them.
func (s *Service) Dispatch(ctx context.Context, sess *domain.Session, a ActionRequest) (ActionResult, error) {
	v := s.views.For(sess)
	res, err := s.dispatch(ctx, v, a)
	if err != nil {
		s.log.Errorw("action failed",
			"op", a.Action,
			"request_id", a.RequestID,
			"game_id", a.GameID,
			"viewer_id", sess.ViewerID,
			"kind", apperr.KindOf(err),
			"error", err,
		)
	}
	return res, err
}

func (s *Service) dispatch(ctx context.Context, v *lifecycle.View, a ActionRequest) (ActionResult, error) {
	switch a.Action {
	case ActionBorrow:
		game := domain.GameRef{ID: a.GameID, Owner: domain.UserRef{ID: a.OwnerID}}
		if err := s.engine.RequestBorrow(ctx, v, game); err != nil {
			return ActionResult{}, err
		}
		return ActionResult{GameID: a.GameID, State: lifecycle.StatePending}, nil

	case presentation.ActionAccept:
		if err := s.engine.Accept(ctx, v, a.RequestID); err != nil {
			return ActionResult{}, err
		}
		return s.result(ctx, v, a.RequestID, true), nil

	case presentation.ActionReject:
		if err := s.engine.Reject(ctx, v, a.RequestID); err != nil {
			return ActionResult{}, err
		}
		return ActionResult{RequestID: a.RequestID}, nil

	case presentation.ActionInitiateReturn:
		if err := s.engine.InitiateReturn(v, a.RequestID); err != nil {
			return ActionResult{}, err
		}
		return s.result(ctx, v, a.RequestID, false), nil

	case presentation.ActionCancelReturn:
		s.engine.CancelReturn(v, a.RequestID)
		return s.result(ctx, v, a.RequestID, false), nil

	case presentation.ActionConfirmReturn:
		out, err := s.engine.ConfirmReturn(ctx, v, a.RequestID, a.Details())
		if err != nil {
			return ActionResult{RequestID: a.RequestID, Outcome: string(out.Status)}, err
		}
		res := s.result(ctx, v, a.RequestID, true)
		res.Outcome = string(out.Status)
		return res, nil

	default:
		return ActionResult{}, apperr.Validation("queue.dispatch", map[string]string{"action": "oneof"})
	}
}

// result re-reads the request after an action. With refresh set the lists
// are fetched again first; a failed refresh leaves the result without display.
func (s *Service) result(ctx context.Context, v *lifecycle.View, id int64, refresh bool) ActionResult {
	if refresh {
		if err := s.engine.RefreshAll(ctx, v); err != nil {
			s.log.Warnw("refresh after action failed", "request_id", id, "viewer_id", v.ViewerID(), "error", err)
			return ActionResult{RequestID: id}
		}
	}
	req, ok := v.Lookup(id)
	if !ok {
		return ActionResult{RequestID: id}
	}
	state := lifecycle.Classify(&req)
	d := presentation.Present(state, domain.DeriveRole(&req, v.ViewerID()), v.Forms.IsOpen(id))
	return ActionResult{RequestID: id, State: state, Display: &d}
}
