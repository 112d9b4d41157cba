package repository

import (
	"context"
	"net/http"

	"gamelend/internal/domain"
)

type ReviewRepository struct {
	backend *BackendClient
}

func NewReviewRepository(backend *BackendClient) *ReviewRepository {
	return &ReviewRepository{backend: backend}
}

// AddUserReview submits the counterpart rating written at return time.
func (r *ReviewRepository) AddUserReview(ctx context.Context, sess *domain.Session, in domain.ReviewInput, idempotencyKey string) error {
	return r.backend.do(ctx, sess, call{
		op:             "review.add_user",
		method:         http.MethodPost,
		path:           "/review/users/add",
		body:           in,
		idempotencyKey: idempotencyKey,
	})
}
