package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired  = errors.New("identity: id is required")
	ErrInvalidKind = errors.New("identity: invalid kind")
	ErrNotFound    = errors.New("identity: not found")
)

// Kind tags which account collection a user identifier belongs to.
// Creators and customers live in separate collections but are
// interchangeable as message endpoints.
type Kind string

const (
	KindCreator  Kind = "creator"
	KindCustomer Kind = "customer"
)

// Ref is a tagged reference to a user in either collection.
type Ref struct {
	ID   string
	Kind Kind
}

// Profile is the display projection of a user used to enrich messages
// and the directory listing.
type Profile struct {
	ID         string
	Kind       Kind
	Name       string
	Role       string
	AvatarURL  string
	LastSeenAt time.Time
}

// Directory resolves refs to display profiles. Implementations back it
// with the creator and customer collections.
type Directory interface {
	Resolve(ctx context.Context, ref Ref) (*Profile, error)
	List(ctx context.Context) ([]Profile, error)
	TouchLastSeen(ctx context.Context, ref Ref, at time.Time) error
}

func NewRef(id string, kind Kind) (Ref, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Ref{}, ErrIDRequired
	}
	normalized, err := ParseKind(string(kind))
	if err != nil {
		return Ref{}, err
	}
	return Ref{ID: id, Kind: normalized}, nil
}

func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "creator":
		return KindCreator, nil
	case "customer":
		return KindCustomer, nil
	default:
		return "", ErrInvalidKind
	}
}
