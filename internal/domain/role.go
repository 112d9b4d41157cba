package domain

// Role is the viewer's relation to a borrow request.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleBorrower Role = "borrower"
	RoleNeither  Role = "neither"
)

// DeriveRole is the only place role gating compares identities. A viewer who
// is somehow both owner and borrower is treated as the owner.
func DeriveRole(req *BorrowRequest, viewerID int64) Role {
	if req == nil || viewerID <= 0 {
		return RoleNeither
	}
	switch viewerID {
	case req.Game.Owner.ID:
		return RoleOwner
	case req.Borrower.ID:
		return RoleBorrower
	default:
		return RoleNeither
	}
}

// Counterpart returns the user the viewer rates when completing a return.
func Counterpart(req *BorrowRequest, viewerID int64) (UserRef, bool) {
	switch DeriveRole(req, viewerID) {
	case RoleBorrower:
		return req.Game.Owner, true
	case RoleOwner:
		return req.Borrower, true
	default:
		return UserRef{}, false
	}
}
