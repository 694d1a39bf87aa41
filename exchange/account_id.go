// Package exchange defines the venue-connection handle (Exchange), its
// identity (AccountID), the concurrent registry of live connections, and
// the per-exchange blocking registry that governs whether an exchange may
// originate outbound traffic.
package exchange

import (
	"fmt"
	"strconv"
	"strings"
)

// AccountID identifies one authenticated connection set to a venue within a
// process, of the form "<ExchangeID><index>" (e.g. "Binance0"). It is
// immutable and unique within a process.
type AccountID struct {
	ExchangeID string
	Index      uint8
}

// NewAccountID builds an AccountID from its parts.
func NewAccountID(exchangeID string, index uint8) AccountID {
	return AccountID{ExchangeID: exchangeID, Index: index}
}

// String renders the canonical "<ExchangeID><index>" form.
func (a AccountID) String() string {
	return fmt.Sprintf("%s%d", a.ExchangeID, a.Index)
}

// ParseAccountID parses the canonical "<ExchangeID><index>" form, e.g.
// "Binance0" -> {ExchangeID: "Binance", Index: 0}. The index is the
// trailing run of decimal digits; everything before it is the exchange ID.
func ParseAccountID(s string) (AccountID, error) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) || i == 0 {
		return AccountID{}, fmt.Errorf("invalid exchange account id %q: expected <name><index>", s)
	}

	name := strings.TrimSpace(s[:i])
	if name == "" {
		return AccountID{}, fmt.Errorf("invalid exchange account id %q: missing exchange name", s)
	}

	idx, err := strconv.ParseUint(s[i:], 10, 8)
	if err != nil {
		return AccountID{}, fmt.Errorf("invalid exchange account id %q: index out of range: %w", s, err)
	}

	return AccountID{ExchangeID: name, Index: uint8(idx)}, nil
}

// MarshalText implements encoding.TextMarshaler, used by the TOML decoder.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder.
func (a *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
