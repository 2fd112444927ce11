package shared

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte width of a numerical account address.
const AddressLength = 32

// NumericalAddress is a fully resolved account address.
type NumericalAddress [AddressLength]byte

// DefaultErrorAddress stands in when a module has no usable address so that
// translation can continue and report more problems.
var DefaultErrorAddress = NumericalAddress{}

// ParseNumericalAddress accepts 0x-prefixed hex of up to AddressLength bytes.
func ParseNumericalAddress(s string) (NumericalAddress, error) {
	var out NumericalAddress
	if !strings.HasPrefix(s, "0x") {
		return out, fmt.Errorf("invalid address %q: expected 0x-prefixed hex", s)
	}
	digits := s[2:]
	if digits == "" {
		return out, fmt.Errorf("invalid address %q: no digits", s)
	}
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return out, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) > AddressLength {
		return out, fmt.Errorf("invalid address %q: longer than %d bytes", s, AddressLength)
	}
	copy(out[AddressLength-len(raw):], raw)
	return out, nil
}

func (a NumericalAddress) String() string {
	// Short canonical form: strip leading zero bytes, keep at least one.
	i := 0
	for i < AddressLength-1 && a[i] == 0 {
		i++
	}
	return "0x" + hex.EncodeToString(a[i:])
}

// NamedAddressMap assigns numeric values to address names for one package
// path group.
type NamedAddressMap map[string]NumericalAddress

// NamedAddressMaps is the indexed collection of all address maps in a
// compilation; package paths reference their map by index.
type NamedAddressMaps struct {
	maps []NamedAddressMap
}

func NewNamedAddressMaps() *NamedAddressMaps {
	return &NamedAddressMaps{}
}

func (n *NamedAddressMaps) Insert(m NamedAddressMap) int {
	n.maps = append(n.maps, m)
	return len(n.maps) - 1
}

func (n *NamedAddressMaps) Get(idx int) NamedAddressMap {
	return n.maps[idx]
}

func (n *NamedAddressMaps) All() []NamedAddressMap {
	return n.maps
}
