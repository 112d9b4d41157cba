package presentation

import (
	"time"

	"gamelend/internal/domain"
	"gamelend/internal/modules/lifecycle"
	"gamelend/internal/pkg/apperr"
)

type Action string

const (
	ActionAccept         Action = "accept"
	ActionReject         Action = "reject"
	ActionInitiateReturn Action = "initiate_return"
	ActionCancelReturn   Action = "cancel_return"
	ActionConfirmReturn  Action = "confirm_return"
)

const (
	LabelAwaitingDecision = "Awaiting your decision"
	LabelWaitingForOwner  = "Waiting for owner"
	LabelLentOut          = "Lent out"
	LabelBorrowed         = "Borrowed"
	LabelOnLoan           = "On loan"
	LabelReturned         = "Returned"
	LabelReturnIncomplete = "Return not finished"
	LabelUnavailable      = "Status unavailable"
)

type Display struct {
	Status         lifecycle.State `json:"status"`
	Label          string          `json:"label"`
	Actions        []Action        `json:"actions"`
	ShowRatingForm bool            `json:"showRatingForm"`
}

// Present maps a classified request to what the viewer sees. Pure; the same
// inputs always give the same display.
func Present(state lifecycle.State, role domain.Role, formOpen bool) Display {
	d := Display{Status: state, Actions: []Action{}}

	switch state {
	case lifecycle.StatePending:
		if role == domain.RoleOwner {
			d.Label = LabelAwaitingDecision
			d.Actions = []Action{ActionAccept, ActionReject}
		} else {
			d.Label = LabelWaitingForOwner
		}
	case lifecycle.StateActive:
		switch role {
		case domain.RoleOwner:
			d.Label = LabelLentOut
		case domain.RoleBorrower:
			d.Label = LabelBorrowed
		default:
			d.Label = LabelOnLoan
			return d
		}
		if formOpen {
			d.Actions = []Action{ActionConfirmReturn, ActionCancelReturn}
			d.ShowRatingForm = true
		} else {
			d.Actions = []Action{ActionInitiateReturn}
		}
	case lifecycle.StateReturned:
		d.Label = LabelReturned
		// an open form here means the last submission only half succeeded
		if formOpen && role != domain.RoleNeither {
			d.Label = LabelReturnIncomplete
			d.Actions = []Action{ActionConfirmReturn, ActionCancelReturn}
			d.ShowRatingForm = true
		}
	default:
		return PresentError(nil)
	}
	return d
}

// PresentError is the fixed display for anything that could not be loaded.
func PresentError(error) Display {
	return Display{Status: lifecycle.StateUnavailable, Label: LabelUnavailable, Actions: []Action{}}
}

type Notification struct {
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Notify turns an action failure into the one message the user sees. Returns
// nil for nil and for local validation failures, which are shown inline.
func Notify(err error) *Notification {
	if err == nil || isInlineValidation(err) {
		return nil
	}
	return &Notification{
		Level:   "error",
		Code:    string(apperr.KindOf(err)),
		Message: apperr.UserMessage(err),
	}
}

func isInlineValidation(err error) bool {
	return apperr.IsKind(err, apperr.KindValidation) && len(apperr.FieldsOf(err)) > 0
}

type Item struct {
	Request domain.BorrowRequest `json:"request"`
	Role    domain.Role          `json:"role"`
	Display Display              `json:"display"`
}

type QueueView struct {
	Kind        lifecycle.QueueKind `json:"kind"`
	Items       []Item              `json:"items"`
	Pending     []Item              `json:"pending,omitempty"`
	History     []Item              `json:"history"`
	FetchedAt   *time.Time          `json:"fetchedAt,omitempty"`
	Unavailable bool                `json:"unavailable"`
	Label       string              `json:"label,omitempty"`
}

// FormState reports whether a request's rating form is revealed.
type FormState interface {
	IsOpen(id int64) bool
}

// PresentQueue renders one snapshot. The owner queue lists what needs the
// owner; the borrower queue lists open borrows with pending requests apart.
func PresentQueue(snap lifecycle.Snapshot, viewerID int64, forms FormState) QueueView {
	qv := QueueView{
		Kind:    snap.Kind,
		Items:   []Item{},
		History: []Item{},
	}
	if !snap.FetchedAt.IsZero() {
		ts := snap.FetchedAt
		qv.FetchedAt = &ts
	}
	if snap.Unavailable {
		qv.Unavailable = true
		qv.Label = LabelUnavailable
		return qv
	}

	switch snap.Kind {
	case lifecycle.QueueOwner:
		qv.Items = items(lifecycle.OwnerQueue(snap.Requests, viewerID), viewerID, forms)
	case lifecycle.QueueBorrower:
		qv.Items = items(lifecycle.OpenBorrows(snap.Requests, viewerID), viewerID, forms)
		qv.Pending = items(lifecycle.PendingBorrows(snap.Requests, viewerID), viewerID, forms)
	}
	qv.History = items(lifecycle.History(snap.Requests, viewerID), viewerID, forms)
	return qv
}

func items(list []domain.BorrowRequest, viewerID int64, forms FormState) []Item {
	out := make([]Item, 0, len(list))
	for i := range list {
		r := list[i]
		role := domain.DeriveRole(&r, viewerID)
		open := forms != nil && forms.IsOpen(r.ID)
		out = append(out, Item{
			Request: r,
			Role:    role,
			Display: Present(lifecycle.Classify(&r), role, open),
		})
	}
	return out
}
