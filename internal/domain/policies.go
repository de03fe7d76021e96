package domain

import (
	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/transaction"
)

type (
	RoleRepository       = Repository[Role, *Role]
	MenuRepository       = Repository[Menu, *Menu]
	PermissionRepository = Repository[Permission, *Permission]
)

// RolePolicy: Name and Code identify a role. Supplied non-empty values win.
var RolePolicy = Policy[Role]{
	Natural: []string{"Name", "Code"},
	Merge: func(existing, supplied *Role) {
		if supplied.Name != "" {
			existing.Name = supplied.Name
		}
		if supplied.Code != "" {
			existing.Code = supplied.Code
		}
		if supplied.Sort != 0 {
			existing.Sort = supplied.Sort
		}
		if supplied.Remark != nil {
			existing.Remark = supplied.Remark
		}
	},
}

// MenuPolicy: Name and Path identify a menu entry
var MenuPolicy = Policy[Menu]{
	Natural: []string{"Name", "Path"},
	Merge: func(existing, supplied *Menu) {
		if supplied.Name != "" {
			existing.Name = supplied.Name
		}
		if supplied.Path != "" {
			existing.Path = supplied.Path
		}
		if supplied.ParentUid != nil {
			existing.ParentUid = supplied.ParentUid
		}
		if supplied.Icon != nil {
			existing.Icon = supplied.Icon
		}
		if supplied.Sort != 0 {
			existing.Sort = supplied.Sort
		}
		existing.Visible = supplied.Visible
	},
}

// PermissionPolicy: a role holds at most one grant per menu
var PermissionPolicy = Policy[Permission]{
	Natural: []string{"RoleUid", "MenuUid"},
	Merge: func(existing, supplied *Permission) {
		if supplied.Actions != nil {
			existing.Actions = supplied.Actions
		}
	},
}

// UserPolicy: Account identifies a user. The password is never merged; it
// changes only through ChangePassword.
var UserPolicy = Policy[User]{
	Natural: []string{"Account"},
	Merge: func(existing, supplied *User) {
		if supplied.Name != "" {
			existing.Name = supplied.Name
		}
		if supplied.Email != nil {
			existing.Email = supplied.Email
		}
		if supplied.Phone != nil {
			existing.Phone = supplied.Phone
		}
		if supplied.RoleUid != nil {
			existing.RoleUid = supplied.RoleUid
		}
	},
}

// NewRoleRepository creates the role repository
func NewRoleRepository(tx *transaction.Manager, d dialect.Dialect, opts ...Option) (*RoleRepository, error) {
	return NewRepository[Role](tx, d, RolePolicy, opts...)
}

// NewMenuRepository creates the menu repository
func NewMenuRepository(tx *transaction.Manager, d dialect.Dialect, opts ...Option) (*MenuRepository, error) {
	return NewRepository[Menu](tx, d, MenuPolicy, opts...)
}

// NewPermissionRepository creates the permission repository
func NewPermissionRepository(tx *transaction.Manager, d dialect.Dialect, opts ...Option) (*PermissionRepository, error) {
	return NewRepository[Permission](tx, d, PermissionPolicy, opts...)
}
