package chat

import (
	"errors"
	"strings"
)

// roomSeparator joins the two participant ids into a canonical room id.
// User ids are restricted to an alphabet that cannot contain it, so the
// mapping is collision-free.
const roomSeparator = "_"

var ErrInvalidUserID = errors.New("chat: invalid user id")

// RoomID maps an unordered pair of user ids to the canonical
// conversation id: the ids sorted lexicographically and joined with the
// separator. RoomID(a, b) == RoomID(b, a) for all valid pairs.
func RoomID(a, b string) (string, error) {
	if err := ValidateUserID(a); err != nil {
		return "", err
	}
	if err := ValidateUserID(b); err != nil {
		return "", err
	}
	if a > b {
		a, b = b, a
	}
	return a + roomSeparator + b, nil
}

// ValidateUserID enforces the constrained id alphabet (letters, digits
// and dashes). Anything else, the separator included, is rejected
// before it can reach RoomID.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" || id != strings.TrimSpace(id) {
		return ErrInvalidUserID
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return ErrInvalidUserID
		}
	}
	return nil
}
