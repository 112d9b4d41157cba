package domain

import (
	"errors"
	"time"
)

var (
	ErrAcceptedBeforeCreated  = errors.New("acceptedAt precedes createdAt")
	ErrReturnedBeforeAccepted = errors.New("returnedAt precedes acceptedAt")
	ErrReturnedWithoutAccept  = errors.New("returnedAt set while acceptedAt is null")
	ErrMissingCreatedAt       = errors.New("createdAt is not set")
)

// UserRef is the slice of a backend user the client needs for role gating and contact display.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type GameRef struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Owner UserRef `json:"owner"`
}

// BorrowRequest is one lending transaction, from proposal through return.
// The backend owns it; every copy held here is transient and re-fetchable.
type BorrowRequest struct {
	ID         int64      `json:"id"`
	Game       GameRef    `json:"game"`
	Borrower   UserRef    `json:"borrower"`
	CreatedAt  time.Time  `json:"createdAt"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty"`

	// Set at return confirmation
	Comment string `json:"comment,omitempty"`
	Rating  *int   `json:"rating,omitempty"`
}

// IsOpen reports an accepted request that has not been returned yet.
func (r *BorrowRequest) IsOpen() bool {
	return r.AcceptedAt != nil && r.ReturnedAt == nil
}

// CheckTimeline verifies createdAt <= acceptedAt <= returnedAt for whichever
// timestamps are present.
func (r *BorrowRequest) CheckTimeline() error {
	if r.CreatedAt.IsZero() {
		return ErrMissingCreatedAt
	}
	if r.ReturnedAt != nil && r.AcceptedAt == nil {
		return ErrReturnedWithoutAccept
	}
	if r.AcceptedAt != nil && r.AcceptedAt.Before(r.CreatedAt) {
		return ErrAcceptedBeforeCreated
	}
	if r.ReturnedAt != nil && r.ReturnedAt.Before(*r.AcceptedAt) {
		return ErrReturnedBeforeAccepted
	}
	return nil
}

// ReturnDetails is what the party completing a return submits.
type ReturnDetails struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"required,notblank"`
}
