package domain

import "time"

// Review is authored by the party completing a return about their counterpart.
// Append-only: the client never edits one.
type Review struct {
	ID             int64     `json:"id"`
	ReviewerID     int64     `json:"reviewerId"`
	ReviewedUserID int64     `json:"reviewedUserId"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ReviewInput is the body of POST /review/users/add.
type ReviewInput struct {
	ReviewedUserID int64  `json:"reviewedUserId" validate:"required,gt=0"`
	Rating         int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment        string `json:"comment" validate:"required,notblank"`
}
