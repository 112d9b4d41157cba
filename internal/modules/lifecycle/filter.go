package lifecycle

import (
	"sort"

	"gamelend/internal/domain"
)

// OpenBorrows keeps the requests where the viewer is the borrower and the
// game is currently lent out (accepted, not returned).
func OpenBorrows(list []domain.BorrowRequest, viewerID int64) []domain.BorrowRequest {
	out := make([]domain.BorrowRequest, 0, len(list))
	for i := range list {
		r := &list[i]
		if r.Borrower.ID == viewerID && r.AcceptedAt != nil && r.ReturnedAt == nil {
			out = append(out, *r)
		}
	}
	return out
}

// PendingBorrows keeps the viewer's requests still waiting for the owner.
func PendingBorrows(list []domain.BorrowRequest, viewerID int64) []domain.BorrowRequest {
	out := make([]domain.BorrowRequest, 0)
	for i := range list {
		r := &list[i]
		if domain.DeriveRole(r, viewerID) == domain.RoleBorrower && Classify(r) == StatePending {
			out = append(out, *r)
		}
	}
	return out
}

// OwnerQueue keeps requests for the viewer's games that still need the owner:
// pending ones to decide and active ones to see returned. Oldest first.
func OwnerQueue(list []domain.BorrowRequest, viewerID int64) []domain.BorrowRequest {
	out := make([]domain.BorrowRequest, 0, len(list))
	for i := range list {
		r := &list[i]
		if domain.DeriveRole(r, viewerID) != domain.RoleOwner {
			continue
		}
		if s := Classify(r); s == StatePending || s == StateActive {
			out = append(out, *r)
		}
	}
	sortByCreated(out)
	return out
}

// History keeps returned requests the viewer took part in, newest return first.
func History(list []domain.BorrowRequest, viewerID int64) []domain.BorrowRequest {
	out := make([]domain.BorrowRequest, 0)
	for i := range list {
		r := &list[i]
		if domain.DeriveRole(r, viewerID) != domain.RoleNeither && Classify(r) == StateReturned {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReturnedAt.After(*out[j].ReturnedAt)
	})
	return out
}

// OpenGameIDs is the set of games the viewer can see under an open request.
func OpenGameIDs(lists ...[]domain.BorrowRequest) map[int64]bool {
	ids := make(map[int64]bool)
	for _, list := range lists {
		for i := range list {
			if list[i].IsOpen() {
				ids[list[i].Game.ID] = true
			}
		}
	}
	return ids
}

// Borrowable decides whether to offer the borrow action for a game. Only
// observed data is used; the backend remains the enforcer.
func Borrowable(game domain.GameRef, viewerID int64, open map[int64]bool) bool {
	if viewerID <= 0 || game.Owner.ID == viewerID {
		return false
	}
	return !open[game.ID]
}

// Find returns the request with the given id, if present.
func Find(list []domain.BorrowRequest, id int64) (domain.BorrowRequest, bool) {
	for i := range list {
		if list[i].ID == id {
			return list[i], true
		}
	}
	return domain.BorrowRequest{}, false
}

func sortByCreated(list []domain.BorrowRequest) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
