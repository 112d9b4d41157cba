package rating

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gamelend/internal/domain"
	"gamelend/internal/pkg/apperr"
	"gamelend/internal/pkg/validator"
)

// returnNamespace scopes idempotency keys for return submissions.
var returnNamespace = uuid.MustParse("6f1c5a52-3d0e-4a55-9d8c-2b7f1e0c9a41")

type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial_failure"
	StatusFailure        Status = "failure"
)

// Outcome of one return submission. Callers show the user Err only; the
// per-call errors are kept for logging.
type Outcome struct {
	Status     Status
	Err        error
	ConfirmErr error
	ReviewErr  error
}

func (o Outcome) Succeeded() bool { return o.Status == StatusSuccess }

type ConfirmRepository interface {
	ConfirmReturn(ctx context.Context, sess *domain.Session, id int64, details domain.ReturnDetails, idempotencyKey string) error
}

type ReviewRepository interface {
	AddUserReview(ctx context.Context, sess *domain.Session, in domain.ReviewInput, idempotencyKey string) error
}

type Service struct {
	requests ConfirmRepository
	reviews  ReviewRepository
	log      *zap.SugaredLogger
}

func NewService(requests ConfirmRepository, reviews ReviewRepository, log *zap.SugaredLogger) *Service {
	return &Service{requests: requests, reviews: reviews, log: log}
}

// IdempotencyKey is stable per request, so a retry after a partial failure
// lets the backend recognise the duplicate confirm-return.
func IdempotencyKey(requestID int64) string {
	return uuid.NewSHA1(returnNamespace, []byte("borrow-request:"+strconv.FormatInt(requestID, 10)+":return")).String()
}

// ValidateDetails rejects a submission before any network call.
func ValidateDetails(details domain.ReturnDetails) error {
	if fields := validator.Validate(details); fields != nil {
		return apperr.Validation("return.confirm", fields)
	}
	return nil
}

// SubmitReturn confirms the return and rates the counterpart. Both calls are
// issued concurrently and neither is rolled back if the other fails.
func (s *Service) SubmitReturn(ctx context.Context, sess *domain.Session, req domain.BorrowRequest, details domain.ReturnDetails) Outcome {
	if err := ValidateDetails(details); err != nil {
		return Outcome{Status: StatusFailure, Err: err}
	}

	viewerID := int64(0)
	if sess != nil {
		viewerID = sess.ViewerID
	}
	counterpart, ok := domain.Counterpart(&req, viewerID)
	if !ok {
		return Outcome{
			Status: StatusFailure,
			Err:    apperr.New(apperr.KindValidation, "return.confirm", "viewer is not a party to this request"),
		}
	}

	key := IdempotencyKey(req.ID)
	review := domain.ReviewInput{
		ReviewedUserID: counterpart.ID,
		Rating:         details.Rating,
		Comment:        details.Comment,
	}

	var confirmErr, reviewErr error
	var g errgroup.Group
	g.Go(func() error {
		confirmErr = s.requests.ConfirmReturn(ctx, sess, req.ID, details, key)
		return confirmErr
	})
	g.Go(func() error {
		reviewErr = s.reviews.AddUserReview(ctx, sess, review, key)
		return reviewErr
	})
	_ = g.Wait()

	out := Outcome{ConfirmErr: confirmErr, ReviewErr: reviewErr}
	switch {
	case confirmErr == nil && reviewErr == nil:
		out.Status = StatusSuccess
		return out
	case confirmErr != nil && reviewErr != nil:
		out.Status = StatusFailure
		out.Err = confirmErr
	case confirmErr != nil:
		out.Status = StatusPartialFailure
		out.Err = confirmErr
	default:
		out.Status = StatusPartialFailure
		out.Err = reviewErr
	}

	s.log.Errorw("return submission failed",
		"request_id", req.ID,
		"viewer_id", viewerID,
		"status", out.Status,
		"confirm_error", errString(confirmErr),
		"review_error", errString(reviewErr),
	)
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
