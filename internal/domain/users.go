package domain

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/redochen/ccnetcore/internal/orm/crud"
	"github.com/redochen/ccnetcore/internal/orm/dialect"
	"github.com/redochen/ccnetcore/internal/orm/query"
	"github.com/redochen/ccnetcore/internal/orm/transaction"
)

// UserRepository manages users and their credentials
type UserRepository struct {
	*Repository[User, *User]
	cost int
}

// NewUserRepository creates the user repository. cost is the bcrypt cost;
// zero means bcrypt.DefaultCost.
func NewUserRepository(tx *transaction.Manager, d dialect.Dialect, cost int, opts ...Option) (*UserRepository, error) {
	inner, err := NewRepository[User](tx, d, UserPolicy, opts...)
	if err != nil {
		return nil, err
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UserRepository{Repository: inner, cost: cost}, nil
}

// Register hashes password into u and creates u
func (r *UserRepository) Register(ctx context.Context, u *User, password, by string) error {
	if u == nil || password == "" {
		return fmt.Errorf("register user: %w", crud.ErrInvalidParam)
	}
	hash, err := r.hash(password)
	if err != nil {
		return err
	}
	u.Password = hash
	return r.Create(ctx, u, by)
}

// ChangePassword replaces the password of the live user uid after verifying
// current against the stored hash. A mismatch returns crud.ErrIdentify.
func (r *UserRepository) ChangePassword(ctx context.Context, uid, current, next, by string) error {
	if uid == "" || next == "" {
		return fmt.Errorf("change password: %w", crud.ErrInvalidParam)
	}
	u, err := r.Get(ctx, uid)
	if err != nil {
		return err
	}
	if !u.Live() {
		return fmt.Errorf("change password %s: %w", uid, crud.ErrNotFound)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(current)); err != nil {
		return fmt.Errorf("change password %s: %w", uid, crud.ErrIdentify)
	}

	hash, err := r.hash(next)
	if err != nil {
		return err
	}
	update := &User{
		Base:     Base{Uid: uid, UpdatedBy: by, UpdatedAt: r.now().UTC()},
		Password: hash,
	}
	n, err := r.UpdateFields(ctx, update, []string{"Password", "UpdatedBy", "UpdatedAt"}, []string{"Uid", "IsDeleted"})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("change password %s: %w", uid, crud.ErrFailure)
	}
	return nil
}

// Authenticate returns the live user with account when password matches.
// Unknown accounts and wrong passwords both return crud.ErrIdentify.
func (r *UserRepository) Authenticate(ctx context.Context, account, password string) (*User, error) {
	cond := &User{Account: account}
	page, err := r.Find(ctx, query.Match(cond, "Account", "IsDeleted"), crud.FindOptions{PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Items) == 0 {
		// burn comparable time for unknown accounts
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, fmt.Errorf("authenticate %s: %w", account, crud.ErrIdentify)
	}
	u := &page.Items[0]
	if u.Status != StatusNormal {
		return nil, fmt.Errorf("authenticate %s: user is %s: %w", account, u.Status, crud.ErrIdentify)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", account, crud.ErrIdentify)
	}
	return u, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("ccnetcore"), bcrypt.MinCost)

func (r *UserRepository) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("hash password: %w: %w", crud.ErrInvalidParam, err)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

