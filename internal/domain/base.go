// Package domain defines the account and navigation entities and the
// repositories that enforce their uniqueness and bookkeeping rules.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state shared by every entity
type Status int

const (
	StatusNormal Status = iota
	StatusDisabled
	StatusLocked
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusDisabled:
		return "disabled"
	case StatusLocked:
		return "locked"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus reads the String form of a status
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return StatusNormal, nil
	case "disabled":
		return StatusDisabled, nil
	case "locked":
		return StatusLocked, nil
	}
	return StatusNormal, fmt.Errorf("unknown status %q", s)
}

// Base carries the identifier and bookkeeping columns of every entity.
// Bookkeeping columns sort after the entity's own columns.
type Base struct {
	Uid       string    `orm:"key;explicitkey;length:36;order:-1" msgpack:"uid"`
	Status    Status    `orm:"order:100" msgpack:"status"`
	IsDeleted int       `orm:"order:101" msgpack:"is_deleted" validate:"oneof=0 1"`
	CreatedBy string    `orm:"length:36;order:102" msgpack:"created_by"`
	CreatedAt time.Time `orm:"order:103" msgpack:"created_at"`
	UpdatedBy string    `orm:"length:36;order:104" msgpack:"updated_by"`
	UpdatedAt time.Time `orm:"order:105" msgpack:"updated_at"`
}

// Entity is implemented by every type embedding Base
type Entity interface {
	Bookkeeping() *Base
}

func (b *Base) Bookkeeping() *Base { return b }

// Live reports whether the entity is not soft-deleted
func (b *Base) Live() bool { return b.IsDeleted == 0 }

// prepare fills a new entity's identifier and creation bookkeeping
func (b *Base) prepare(by string, now time.Time) {
	if b.Uid == "" {
		b.Uid = uuid.NewString()
	}
	b.IsDeleted = 0
	b.CreatedBy = by
	b.CreatedAt = now
	b.UpdatedBy = by
	b.UpdatedAt = now
}

// stamp overwrites the update bookkeeping of b with the values supplied by the caller
func (b *Base) stamp(supplied *Base, now time.Time) {
	b.Status = supplied.Status
	b.IsDeleted = supplied.IsDeleted
	b.UpdatedBy = supplied.UpdatedBy
	b.UpdatedAt = now
}
