package domain

// User is an account that signs in with Account and a bcrypt-hashed password
type User struct {
	Base
	Account  string  `orm:"length:50;unique" validate:"required,max=50" msgpack:"account"`
	Password string  `orm:"length:60;fixed" validate:"required" msgpack:"-"`
	Name     string  `orm:"length:50;unicode" validate:"max=50" msgpack:"name"`
	Email    *string `orm:"length:100" validate:"omitempty,email,max=100" msgpack:"email"`
	Phone    *string `orm:"length:20" validate:"omitempty,max=20" msgpack:"phone"`
	RoleUid  *string `orm:"length:36" msgpack:"role_uid"`
}

// Role groups permissions. Name and Code together are unique.
type Role struct {
	Base
	Name   string  `orm:"length:50;unicode" validate:"required,max=50" msgpack:"name"`
	Code   string  `orm:"length:20" validate:"required,max=20" msgpack:"code"`
	Sort   int     `msgpack:"sort"`
	Remark *string `orm:"length:200;unicode" validate:"omitempty,max=200" msgpack:"remark"`
}

// Menu is a navigation entry. Name and Path together are unique.
type Menu struct {
	Base
	Name      string  `orm:"length:50;unicode" validate:"required,max=50" msgpack:"name"`
	Path      string  `orm:"length:200" validate:"max=200" msgpack:"path"`
	ParentUid *string `orm:"length:36" msgpack:"parent_uid"`
	Icon      *string `orm:"length:50" msgpack:"icon"`
	Sort      int     `msgpack:"sort"`
	Visible   bool    `msgpack:"visible"`
}

// Permission grants a role access to a menu. RoleUid and MenuUid together are unique.
type Permission struct {
	Base
	RoleUid string   `orm:"length:36" validate:"required,max=36" msgpack:"role_uid"`
	MenuUid string   `orm:"length:36" validate:"required,max=36" msgpack:"menu_uid"`
	Actions []string `orm:"converter:json;length:500" msgpack:"actions"`
}
