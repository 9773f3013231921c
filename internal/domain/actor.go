package domain

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSeller   Role = "seller"
	RoleCustomer Role = "customer"
)

const VendorStatusApproved = "approved"

// Actor is the already-authenticated caller of a catalog operation.
type Actor struct {
	UserID         string
	Role           Role
	VendorApproved bool
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) CanManageCategories() bool {
	return a.IsAdmin()
}

func (a Actor) CanSellProducts() bool {
	return a.IsAdmin() || (a.Role == RoleSeller && a.VendorApproved)
}

func (a Actor) CanManageProduct(vendor string) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == vendor)
}

func (a Actor) CanVerifyProducts() bool {
	return a.IsAdmin()
}
