package domain

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrEmptyOfficeID     = errors.New("office id is required")
	ErrInvalidExternalID = errors.New("external id must be a positive integer")
)

// OfficeID is the opaque tenant identifier. Every entity, repository call,
// legacy API call, lock key, and event is scoped by exactly one OfficeID.
type OfficeID struct {
	value string
}

// ParseOfficeID validates an office identifier from untrusted input.
func ParseOfficeID(raw string) (OfficeID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return OfficeID{}, ErrEmptyOfficeID
	}
	return OfficeID{value: raw}, nil
}

func (o OfficeID) String() string { return o.value }

// IsZero reports whether the office ID is unset.
func (o OfficeID) IsZero() bool { return o.value == "" }

// ExternalID wraps a legacy-system-assigned positive integer. Together with
// an OfficeID it is the join key between shadow rows and legacy records.
type ExternalID struct {
	value int64
}

// TrustedExternalID wraps an identifier that came from the legacy system
// itself and is assumed valid.
func TrustedExternalID(v int64) ExternalID {
	return ExternalID{value: v}
}

// ParseExternalID validates an identifier from untrusted input, rejecting
// non-positive values.
func ParseExternalID(v int64) (ExternalID, error) {
	if v <= 0 {
		return ExternalID{}, ErrInvalidExternalID
	}
	return ExternalID{value: v}, nil
}

func (e ExternalID) Int64() int64 { return e.value }

func (e ExternalID) String() string { return strconv.FormatInt(e.value, 10) }

// IsZero reports whether the external ID is unset.
func (e ExternalID) IsZero() bool { return e.value == 0 }
