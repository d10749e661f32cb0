package domain

import (
	"strconv"

	dErrors "refhub/pkg/domain-errors"
)

// UserID identifies a chat user. IDs come from the messaging transport as
// signed 64-bit integers and are treated as opaque beyond being positive.
type UserID int64

// ParseUserID validates an ID arriving at a trust boundary (HTTP payloads,
// URL parameters). IDs must be positive integers.
func ParseUserID(raw string) (UserID, error) {
	if raw == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "user id must be an integer")
	}
	if n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user id must be positive")
	}
	return UserID(n), nil
}

func (id UserID) Int64() int64 { return int64(id) }

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// IsZero reports whether the ID is unset.
func (id UserID) IsZero() bool { return id == 0 }
