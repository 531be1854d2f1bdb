package types

import (
	"fmt"
	"strconv"
)

// Address is a terminal's phone number. The zero value is reserved and
// denotes an invalid or unset address.
type Address uint8

// InvalidAddress never matches any terminal.
const InvalidAddress Address = 0

// ParseAddress parses a decimal phone number in the range 1..255.
func ParseAddress(s string) (Address, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return InvalidAddress, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if n == 0 {
		return InvalidAddress, fmt.Errorf("invalid address %q: 0 is reserved", s)
	}
	return Address(n), nil
}

// IsValid reports whether the address is usable for routing.
func (a Address) IsValid() bool {
	return a != InvalidAddress
}

// Matches compares two addresses. An invalid address matches nothing,
// not even another invalid address.
func (a Address) Matches(other Address) bool {
	return a.IsValid() && a == other
}

func (a Address) String() string {
	if !a.IsValid() {
		return "<invalid>"
	}
	return strconv.Itoa(int(a))
}

// BtsID identifies a base station.
type BtsID uint32

func (b BtsID) String() string {
	return strconv.FormatUint(uint64(b), 10)
}
