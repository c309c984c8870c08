package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookingledger/internal/domain/shared/money"
)

var (
	ErrIDRequired   = errors.New("user: id is required")
	ErrNameRequired = errors.New("user: name is required")
	ErrNotFound     = errors.New("user: not found")
)

type ID string

// User is the ledger's view of a marketplace account: the payout token that
// makes a host payable, the income earned as a host and the bookings made as
// a guest.
type User struct {
	ID          ID
	Name        string
	PayoutToken string
	Income      money.Money
	BookingIDs  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	Save(ctx context.Context, user *User) error
	AppendBooking(ctx context.Context, id ID, bookingID string) error
	AddIncome(ctx context.Context, id ID, amount money.Money) error
}

type CreateParams struct {
	ID          ID
	Name        string
	PayoutToken string
	Currency    string
	CreatedAt   time.Time
}

func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &User{
		ID:          ID(id),
		Name:        name,
		PayoutToken: strings.TrimSpace(params.PayoutToken),
		Income:      money.Zero(params.Currency),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Payable reports whether the user has connected a payout account and can
// receive charges as a host.
func (u *User) Payable() bool {
	return u != nil && strings.TrimSpace(u.PayoutToken) != ""
}

func (u *User) ConnectPayout(token string, now time.Time) {
	u.PayoutToken = strings.TrimSpace(token)
	u.touch(now)
}

func (u *User) Copy() *User {
	clone := *u
	clone.BookingIDs = append([]string(nil), u.BookingIDs...)
	return &clone
}

func (u *User) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	u.UpdatedAt = now.UTC()
}
